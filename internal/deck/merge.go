/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package deck

import "deckwriter/internal/geometry"

// SlidePatch lists optional replacements for a slide's mutable fields.
// A nil field leaves the old value in place.
type SlidePatch struct {
	Title        *string
	Bullets      *[]string
	Images       *[]Image
	Video        **Video
	TextRegion   *geometry.Rect
	MediaRegion  *geometry.Rect
	SpeakerNotes *string
}

// TopicPatch lists optional replacements for a topic's mutable fields.
type TopicPatch struct {
	Title *string
}

// LayoutPatch carries one or both regions for UpdateLayout.
type LayoutPatch struct {
	Text  *geometry.Rect
	Media *geometry.Rect
}

// Slide converts the layout patch into a slide patch.
func (p LayoutPatch) Slide() SlidePatch {
	return SlidePatch{TextRegion: p.Text, MediaRegion: p.Media}
}

// ForRegion builds a LayoutPatch that sets only the given region.
func ForRegion(r Region, rect geometry.Rect) LayoutPatch {
	if r == RegionMedia {
		return LayoutPatch{Media: &rect}
	}
	return LayoutPatch{Text: &rect}
}

// MergeSlide returns old with every non-nil field of p applied.
// The id never changes. Regions are clamped to the canvas.
// Setting images clears the video and setting a video clears the images.
func MergeSlide(old Slide, p SlidePatch) Slide {
	out := old.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Bullets != nil {
		out.Bullets = cloneStrings(*p.Bullets)
		if out.Bullets == nil {
			out.Bullets = []string{}
		}
	}
	if p.Images != nil {
		out.Images = nil
		if len(*p.Images) > 0 {
			out.Images = make([]Image, len(*p.Images))
			for i, im := range *p.Images {
				out.Images[i] = im.Clone()
			}
			out.Video = nil
		}
	}
	if p.Video != nil {
		if v := *p.Video; v != nil {
			c := *v
			c.Data = cloneBytes(v.Data)
			out.Video = &c
			out.Images = nil
		} else {
			out.Video = nil
		}
	}
	if p.TextRegion != nil {
		r := geometry.Clamp(*p.TextRegion)
		out.TextRegion = &r
	}
	if p.MediaRegion != nil {
		r := geometry.Clamp(*p.MediaRegion)
		out.MediaRegion = &r
	}
	if p.SpeakerNotes != nil {
		n := *p.SpeakerNotes
		out.SpeakerNotes = &n
	}
	return out
}

// MergeTopic returns old with every non-nil field of p applied.
func MergeTopic(old Topic, p TopicPatch) Topic {
	out := old.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	return out
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T { return &v }
