/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geometry

import (
	"math"
	"testing"
)

var canvas = Size{Width: 800, Height: 450}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func rectNear(a, b Rect) bool {
	return near(a.X, b.X) && near(a.Y, b.Y) && near(a.Width, b.Width) && near(a.Height, b.Height)
}

func TestMoveSaturatesAtRightEdge(t *testing.T) {
	start := R(80, 10, 15, 15)
	// +50% of the container width
	got := Apply(start, MoveMode(), Delta{DX: 400}, canvas)
	if !near(got.X, 85) {
		t.Fatalf("X = %v, want 85", got.X)
	}
	if !near(got.Width, 15) || !near(got.Height, 15) || !near(got.Y, 10) {
		t.Fatalf("unexpected rect: %+v", got)
	}
}

func TestMoveConvertsPixelsPerAxis(t *testing.T) {
	start := R(10, 10, 20, 20)
	got := Apply(start, MoveMode(), Delta{DX: 80, DY: 45}, canvas)
	if !rectNear(got, R(20, 20, 20, 20)) {
		t.Fatalf("got %+v", got)
	}
}

func TestZeroDeltaIsIdentityForEveryHandle(t *testing.T) {
	start := R(12.5, 30, 40, 25)
	for _, h := range Handles() {
		got := Apply(start, ResizeMode(h), Delta{}, canvas)
		if !rectNear(got, start) {
			t.Fatalf("handle %s: got %+v, want %+v", h, got, start)
		}
	}
	if got := Apply(start, MoveMode(), Delta{}, canvas); !rectNear(got, start) {
		t.Fatalf("move: got %+v", got)
	}
}

func TestResizeRightGrowsWidthOnly(t *testing.T) {
	start := R(10, 10, 30, 30)
	got := Apply(start, ResizeMode(Right), Delta{DX: 80, DY: 90}, canvas)
	if !rectNear(got, R(10, 10, 40, 30)) {
		t.Fatalf("got %+v", got)
	}
}

func TestResizeLeftKeepsRightEdge(t *testing.T) {
	start := R(20, 10, 30, 30)
	got := Apply(start, ResizeMode(Left), Delta{DX: 80}, canvas)
	if !rectNear(got, R(30, 10, 20, 30)) {
		t.Fatalf("got %+v", got)
	}
	if !near(got.Right(), start.Right()) {
		t.Fatalf("right edge moved: %v -> %v", start.Right(), got.Right())
	}
}

func TestResizeTopLeftShiftsOrigin(t *testing.T) {
	start := R(20, 20, 40, 40)
	got := Apply(start, ResizeMode(TopLeft), Delta{DX: -80, DY: -45}, canvas)
	if !rectNear(got, R(10, 10, 50, 50)) {
		t.Fatalf("got %+v", got)
	}
}

func TestResizeHonoursMinSize(t *testing.T) {
	start := R(10, 10, 30, 30)
	got := Apply(start, ResizeMode(BottomRight), Delta{DX: -10000, DY: -10000}, canvas)
	if !near(got.Width, MinSize) || !near(got.Height, MinSize) {
		t.Fatalf("got %+v, want min size", got)
	}
}

func TestResizeBottomRightStopsAtCanvas(t *testing.T) {
	start := R(60, 60, 30, 30)
	got := Apply(start, ResizeMode(BottomRight), Delta{DX: 10000, DY: 10000}, canvas)
	// position clamp wins first, then size shrinks to fit
	if !got.Valid() {
		t.Fatalf("invalid rect: %+v", got)
	}
	if got.Right() > 100 || got.Bottom() > 100 {
		t.Fatalf("overflow: %+v", got)
	}
}

func TestApplyNeverLeavesCanvas(t *testing.T) {
	starts := []Rect{R(0, 0, 10, 10), R(45, 45, 10, 10), R(0, 0, 100, 100), R(80, 10, 15, 15), R(5, 70, 60, 30)}
	deltas := []Delta{{10000, 10000}, {-10000, -10000}, {10000, -10000}, {-10000, 10000}, {1, -1}, {333.3, 17.7}}
	modes := []Mode{MoveMode()}
	for _, h := range Handles() {
		modes = append(modes, ResizeMode(h))
	}
	for _, s := range starts {
		for _, m := range modes {
			for _, d := range deltas {
				got := Apply(s, m, d, canvas)
				if got.X < 0 || got.Y < 0 || got.Right() > 100+1e-9 || got.Bottom() > 100+1e-9 {
					t.Fatalf("start=%+v mode=%s delta=%+v -> %+v escapes canvas", s, m, d, got)
				}
				if got.Width < MinSize-1e-9 || got.Height < MinSize-1e-9 {
					t.Fatalf("start=%+v mode=%s delta=%+v -> %+v below min size", s, m, d, got)
				}
			}
		}
	}
}

func TestApplyIsDeterministic(t *testing.T) {
	start := R(33.3, 21.7, 18, 44)
	d := Delta{DX: 123.4, DY: -56.7}
	a := Apply(start, ResizeMode(TopRight), d, canvas)
	b := Apply(start, ResizeMode(TopRight), d, canvas)
	if a != b {
		t.Fatalf("non deterministic: %+v vs %+v", a, b)
	}
}

func TestDegenerateContainerAndNaN(t *testing.T) {
	start := R(10, 10, 20, 20)
	if got := Apply(start, MoveMode(), Delta{DX: 50, DY: 50}, Size{}); !rectNear(got, start) {
		t.Fatalf("zero container should not move: %+v", got)
	}
	if got := Apply(start, MoveMode(), Delta{DX: math.NaN(), DY: math.Inf(1)}, canvas); !rectNear(got, start) {
		t.Fatalf("non-finite delta should not move: %+v", got)
	}
}

func TestClampRepairsOutOfRangeRect(t *testing.T) {
	got := Clamp(R(-5, 95, 120, 20))
	if !got.Valid() {
		t.Fatalf("clamped rect invalid: %+v", got)
	}
	if !rectNear(got, R(0, 80, 100, 20)) {
		t.Fatalf("got %+v", got)
	}
}

func TestClampRaisesSizeToMinimum(t *testing.T) {
	cases := map[Rect]Rect{
		R(0, 0, 2, -5):     R(0, 0, MinSize, MinSize),
		R(50, 50, 0, 0):    R(50, 50, MinSize, MinSize),
		R(95, 98, 3, 1):    R(90, 90, MinSize, MinSize),
		R(-20, 40, -1, 30): R(0, 40, MinSize, 30),
	}
	for in, want := range cases {
		got := Clamp(in)
		if !got.Valid() || !rectNear(got, want) {
			t.Errorf("Clamp(%+v) = %+v, want %+v", in, got, want)
		}
	}
}

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{
		"move":      MoveMode(),
		"resize:br": ResizeMode(BottomRight),
		"tl":        ResizeMode(TopLeft),
		" T ":       ResizeMode(Top),
	}
	for in, want := range cases {
		got, err := ParseMode(in)
		if err != nil {
			t.Fatalf("ParseMode(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseMode(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseMode("resize:zz"); err == nil {
		t.Fatalf("expected error for unknown handle")
	}
	if s := ResizeMode(BottomLeft).String(); s != "resize:bl" {
		t.Fatalf("String() = %q", s)
	}
}

func TestRound(t *testing.T) {
	r := R(1.23456, 2.34567, 10.00001, 20.99999).Round(2)
	if r != R(1.23, 2.35, 10, 21) {
		t.Fatalf("Round = %+v", r)
	}
}
