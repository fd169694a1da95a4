/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package gesture

import (
	"errors"
	"testing"

	"deckwriter/internal/deck"
	"deckwriter/internal/geometry"
)

var canvas = geometry.Size{Width: 800, Height: 450}

func newStore(t *testing.T) *deck.Store {
	t.Helper()
	s := deck.NewStore()
	s.SetDocument([]deck.Topic{{ID: "t", Slides: []deck.Slide{{ID: "s", Title: "Hello", TextRegion: deck.Ptr(geometry.R(10, 10, 20, 20))}}}})
	return s
}

func TestDeltasUseOriginalRect(t *testing.T) {
	s := newStore(t)
	c := New(s)
	if err := c.Begin("s", deck.RegionText, geometry.MoveMode(), Point{100, 100}, canvas); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	// many small frames then one far away and back: no drift
	for i := 1; i <= 50; i++ {
		c.Move(Point{100 + float64(i), 100})
	}
	c.Move(Point{10000, 100})
	got := c.Move(Point{180, 145})
	if got != geometry.R(20, 20, 20, 20) {
		t.Fatalf("live = %+v", got)
	}
	// nothing committed yet
	if sl, _ := s.Slide("s"); *sl.TextRegion != geometry.R(10, 10, 20, 20) {
		t.Fatalf("store changed during gesture: %+v", sl.TextRegion)
	}
	rect, ok := c.End()
	if !ok || rect != geometry.R(20, 20, 20, 20) {
		t.Fatalf("End = %+v %v", rect, ok)
	}
	if sl, _ := s.Slide("s"); *sl.TextRegion != rect {
		t.Fatalf("committed = %+v", sl.TextRegion)
	}
	if c.State() != Idle {
		t.Fatalf("state = %v", c.State())
	}
}

func TestCancelDiscards(t *testing.T) {
	s := newStore(t)
	c := New(s)
	_ = c.Begin("s", deck.RegionText, geometry.ResizeMode(geometry.BottomRight), Point{}, canvas)
	c.Move(Point{400, 200})
	c.Cancel()
	if sl, _ := s.Slide("s"); *sl.TextRegion != geometry.R(10, 10, 20, 20) {
		t.Fatalf("cancel committed: %+v", sl.TextRegion)
	}
	if _, ok := c.End(); ok {
		t.Fatalf("End after Cancel should report false")
	}
}

func TestBeginErrors(t *testing.T) {
	s := newStore(t)
	c := New(s)
	if err := c.Begin("missing", deck.RegionText, geometry.MoveMode(), Point{}, canvas); !errors.Is(err, ErrUnknownSlide) {
		t.Fatalf("err = %v", err)
	}
	if c.State() != Idle {
		t.Fatalf("state should stay idle")
	}
	_ = c.Begin("s", deck.RegionText, geometry.MoveMode(), Point{}, canvas)
	c.Move(Point{80, 0})
	if err := c.Begin("s", deck.RegionMedia, geometry.MoveMode(), Point{}, canvas); !errors.Is(err, ErrActive) {
		t.Fatalf("err = %v", err)
	}
	if r, ok := c.Live("s", deck.RegionText); !ok || r.X != 20 {
		t.Fatalf("running gesture disturbed: %+v %v", r, ok)
	}
}

func TestEndWithoutMoveKeepsDefault(t *testing.T) {
	s := deck.NewStore()
	s.SetDocument([]deck.Topic{{ID: "t", Slides: []deck.Slide{{ID: "s", Title: "x"}}}})
	c := New(s)
	_ = c.Begin("s", deck.RegionText, geometry.MoveMode(), Point{5, 5}, canvas)
	if _, ok := c.End(); ok {
		t.Fatalf("click without move should not commit")
	}
	if sl, _ := s.Slide("s"); sl.TextRegion != nil {
		t.Fatalf("default was persisted: %+v", sl.TextRegion)
	}
}

func TestFirstDragPersistsDefault(t *testing.T) {
	s := deck.NewStore()
	s.SetDocument([]deck.Topic{{ID: "t", Slides: []deck.Slide{{ID: "s", Title: "x", Images: []deck.Image{{Data: []byte{1}}}}}}})
	var previews []Preview
	c := New(s, WithPreview(func(p Preview) { previews = append(previews, p) }))
	_ = c.Begin("s", deck.RegionMedia, geometry.MoveMode(), Point{}, canvas)
	c.Move(Point{-8, 0})
	c.Move(Point{-16, 0})
	rect, ok := c.End()
	if !ok {
		t.Fatalf("expected commit")
	}
	if len(previews) != 2 || previews[1].Rect != rect {
		t.Fatalf("previews = %+v", previews)
	}
	sl, _ := s.Slide("s")
	if sl.MediaRegion == nil || *sl.MediaRegion != geometry.R(50.5, 0, 45, 100) {
		t.Fatalf("media region = %+v", sl.MediaRegion)
	}
	if sl.TextRegion != nil {
		t.Fatalf("text region should stay computed")
	}
}

func TestMoveWhileIdle(t *testing.T) {
	c := New(newStore(t))
	if r := c.Move(Point{1, 1}); r != (geometry.Rect{}) {
		t.Fatalf("Move while idle = %+v", r)
	}
}
