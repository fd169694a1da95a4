/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"math"
	"testing"

	"deckwriter/internal/deck"
	"deckwriter/internal/geometry"
	"deckwriter/internal/gesture"
	"deckwriter/internal/projector"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestFitKeepsAspect(t *testing.T) {
	v := Fit(1000, 800, 20)
	if !near(v.Frame.Width, 960) || !near(v.Frame.Height, 540) {
		t.Fatalf("frame %vx%v", v.Frame.Width, v.Frame.Height)
	}
	if !near(v.X, 20) || !near(v.Y, 130) {
		t.Fatalf("origin %v,%v", v.X, v.Y)
	}
	// height bound
	v = Fit(2000, 400, 0)
	if !near(v.Frame.Height, 400) || !near(v.Frame.Width, 400*16.0/9) {
		t.Fatalf("frame %vx%v", v.Frame.Width, v.Frame.Height)
	}
}

func slideWithMedia() deck.Slide {
	return deck.Slide{
		ID:      "s1",
		Title:   "Roots",
		Bullets: []string{"deep"},
		Images:  []deck.Image{{Data: []byte{1}, MimeType: "image/png"}},
	}
}

func TestHitRegions(t *testing.T) {
	v := Viewport{X: 10, Y: 10, Frame: projector.Preview(1000, 500)}
	s := slideWithMedia()

	// text occupies 2.5..47.5 percent, media 52.5..97.5
	if r, m, ok := Hit(s, v, 0, false, 10+300, 10+250); !ok || r != deck.RegionText || m.Kind != geometry.Move {
		t.Fatalf("text hit = %v %v %v", r, m, ok)
	}
	if r, _, ok := Hit(s, v, 0, false, 10+700, 10+250); !ok || r != deck.RegionMedia {
		t.Fatalf("media hit = %v %v", r, ok)
	}
	if _, _, ok := Hit(s, v, 0, false, 10+500, 10+250); ok {
		t.Fatalf("gap between regions should miss")
	}

	// bottom-right grip of the focused media region
	x, y := 10+975.0, 10+500.0
	r, m, ok := Hit(s, v, deck.RegionMedia, true, x, y)
	if !ok || r != deck.RegionMedia || m.Kind != geometry.Resize || m.Handle != geometry.BottomRight {
		t.Fatalf("grip hit = %v %v %v", r, m, ok)
	}
}

func TestHitPlaceholderMisses(t *testing.T) {
	v := Fit(1280, 720, 0)
	if _, _, ok := Hit(deck.Slide{ID: "e"}, v, 0, false, 640, 360); ok {
		t.Fatalf("empty slide placeholder should not be draggable")
	}
}

func TestLocalFeedsGesture(t *testing.T) {
	s := deck.NewStore()
	tid := s.AddTopic("t")
	sid := s.AddSlide(tid, "Title")
	s.UpdateSlideContent(sid, []string{"a"})

	v := Fit(1000, 562.5, 0)
	c := gesture.New(s)
	if err := c.Begin(sid, deck.RegionText, geometry.ResizeMode(geometry.Bottom), v.Local(100, 100), v.Container()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	c.Move(v.Local(100, 100-56.25))
	if _, ok := c.End(); !ok {
		t.Fatalf("end should commit")
	}
	got, _ := s.Slide(sid)
	if got.TextRegion == nil || !near(got.TextRegion.Y, 0) || !near(got.TextRegion.Height, 90) {
		t.Fatalf("text region %+v", got.TextRegion)
	}
}
