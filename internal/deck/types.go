/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package deck holds the slide deck document model: topics, slides, media and
// layout regions, plus the Store that owns a document and its selection.
package deck

import (
	"strings"

	"deckwriter/internal/geometry"
)

// Document is the whole deck as persisted in deck.json.
type Document struct {
	Title  string  `json:"title"`
	Topics []Topic `json:"topics"`
}

// Topic groups slides. Order is display and export order.
type Topic struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Slides []Slide `json:"slides"`
}

// Slide is the unit of content.
// Images and Video are mutually exclusive.
type Slide struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Bullets      []string       `json:"bullets"`
	Images       []Image        `json:"images,omitempty"`
	Video        *Video         `json:"video,omitempty"`
	TextRegion   *geometry.Rect `json:"textRegion,omitempty"`
	MediaRegion  *geometry.Rect `json:"mediaRegion,omitempty"`
	SpeakerNotes *string        `json:"speakerNotes,omitempty"`
}

// Image is one entry of a slide's image set. Data is base64 in JSON.
type Image struct {
	Data         []byte `json:"data"`
	MimeType     string `json:"mimeType"`
	Prompt       string `json:"prompt,omitempty"`
	OriginalData []byte `json:"originalData,omitempty"`
}

// Video is an embedded clip.
type Video struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mimeType"`
	Name     string `json:"name,omitempty"`
}

// Region identifies one of the two positioned areas of a slide.
type Region int

const (
	RegionText Region = iota
	RegionMedia
)

func (r Region) String() string {
	if r == RegionMedia {
		return "media"
	}
	return "text"
}

// ParseRegion accepts "text" or "media".
func ParseRegion(s string) (Region, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text":
		return RegionText, true
	case "media", "image", "video":
		return RegionMedia, true
	}
	return RegionText, false
}

// Region returns the explicit rect of the given region, if any.
func (s Slide) Region(r Region) *geometry.Rect {
	if r == RegionMedia {
		return s.MediaRegion
	}
	return s.TextRegion
}

// HasText reports whether the slide carries a title or any non-blank bullet.
func (s Slide) HasText() bool {
	if strings.TrimSpace(s.Title) != "" {
		return true
	}
	for _, b := range s.Bullets {
		if strings.TrimSpace(b) != "" {
			return true
		}
	}
	return false
}

// HasMedia reports whether the slide has images or a video.
func (s Slide) HasMedia() bool { return len(s.Images) > 0 || s.Video != nil }

// Notes returns the speaker notes or "".
func (s Slide) Notes() string {
	if s.SpeakerNotes == nil {
		return ""
	}
	return *s.SpeakerNotes
}

// SlideCount returns the number of slides across all topics.
func (d Document) SlideCount() int {
	n := 0
	for _, t := range d.Topics {
		n += len(t.Slides)
	}
	return n
}

// Clone returns a deep copy so callers cannot mutate Store internals.
func (d Document) Clone() Document {
	out := Document{Title: d.Title}
	if d.Topics != nil {
		out.Topics = make([]Topic, len(d.Topics))
		for i, t := range d.Topics {
			out.Topics[i] = t.Clone()
		}
	}
	return out
}

// Clone deep-copies a topic.
func (t Topic) Clone() Topic {
	out := Topic{ID: t.ID, Title: t.Title}
	if t.Slides != nil {
		out.Slides = make([]Slide, len(t.Slides))
		for i, s := range t.Slides {
			out.Slides[i] = s.Clone()
		}
	}
	return out
}

// Clone deep-copies a slide, including media bytes.
func (s Slide) Clone() Slide {
	out := s
	out.Bullets = cloneStrings(s.Bullets)
	if s.Images != nil {
		out.Images = make([]Image, len(s.Images))
		for i, im := range s.Images {
			out.Images[i] = im.Clone()
		}
	}
	if s.Video != nil {
		v := *s.Video
		v.Data = cloneBytes(s.Video.Data)
		out.Video = &v
	}
	out.TextRegion = cloneRect(s.TextRegion)
	out.MediaRegion = cloneRect(s.MediaRegion)
	if s.SpeakerNotes != nil {
		n := *s.SpeakerNotes
		out.SpeakerNotes = &n
	}
	return out
}

// Clone deep-copies an image.
func (im Image) Clone() Image {
	out := im
	out.Data = cloneBytes(im.Data)
	out.OriginalData = cloneBytes(im.OriginalData)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func cloneRect(r *geometry.Rect) *geometry.Rect {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
