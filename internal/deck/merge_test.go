/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package deck

import (
	"testing"

	"deckwriter/internal/geometry"
)

func TestMergeSlideLeavesUnsetFields(t *testing.T) {
	old := Slide{ID: "s", Title: "T", Bullets: []string{"a"}, SpeakerNotes: Ptr("n")}
	got := MergeSlide(old, SlidePatch{Title: Ptr("U")})
	if got.ID != "s" || got.Title != "U" || len(got.Bullets) != 1 || got.Notes() != "n" {
		t.Fatalf("merged = %+v", got)
	}
	// old is untouched
	if old.Title != "T" {
		t.Fatalf("old mutated")
	}
}

func TestMergeSlideEmptyBulletsAndImages(t *testing.T) {
	old := Slide{ID: "s", Bullets: []string{"a"}, Images: []Image{{Data: []byte{1}}}}
	var none []string
	got := MergeSlide(old, SlidePatch{Bullets: &none, Images: &[]Image{}})
	if got.Bullets == nil || len(got.Bullets) != 0 {
		t.Fatalf("bullets = %#v", got.Bullets)
	}
	if len(got.Images) != 0 {
		t.Fatalf("images = %#v", got.Images)
	}
}

func TestMergeSlideClampsRegions(t *testing.T) {
	got := MergeSlide(Slide{}, SlidePatch{MediaRegion: Ptr(geometry.R(90, 90, 50, 50))})
	if got.MediaRegion == nil || !got.MediaRegion.Valid() {
		t.Fatalf("media region = %+v", got.MediaRegion)
	}
	if got.TextRegion != nil {
		t.Fatalf("text region should stay nil")
	}
}

func TestMergeSlideVideoDelete(t *testing.T) {
	old := Slide{Video: &Video{Data: []byte{1}, MimeType: "video/mp4"}}
	var none *Video
	if got := MergeSlide(old, SlidePatch{Video: &none}); got.Video != nil {
		t.Fatalf("video not removed")
	}
}

func TestMergeTopic(t *testing.T) {
	got := MergeTopic(Topic{ID: "t", Title: "a", Slides: []Slide{{ID: "s"}}}, TopicPatch{Title: Ptr("b")})
	if got.Title != "b" || len(got.Slides) != 1 {
		t.Fatalf("topic = %+v", got)
	}
}

func TestParseRegion(t *testing.T) {
	if r, ok := ParseRegion("Image"); !ok || r != RegionMedia {
		t.Fatalf("ParseRegion(Image) = %v %v", r, ok)
	}
	if _, ok := ParseRegion("footer"); ok {
		t.Fatalf("footer should not parse")
	}
}
