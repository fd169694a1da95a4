/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package geometry computes slide regions from pointer gestures.
// Regions are percentage rectangles relative to the slide canvas; every function
// here is pure and deterministic so that gestures can be replayed in tests.
package geometry

import "math"

// MinSize is the smallest width or height (in percent) a region may have.
const MinSize = 10.0

// epsilon absorbs float noise when checking the invariant.
const epsilon = 1e-9

// Rect is a region in canvas percent: 0..100 on both axes.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// R is shorthand for Rect{X: x, Y: y, Width: w, Height: h}.
func R(x, y, w, h float64) Rect { return Rect{X: x, Y: y, Width: w, Height: h} }

// Full covers the whole canvas.
func Full() Rect { return Rect{Width: 100, Height: 100} }

// Right returns x + width.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns y + height.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Valid reports whether r lies inside the canvas and respects MinSize.
func (r Rect) Valid() bool {
	if math.IsNaN(r.X) || math.IsNaN(r.Y) || math.IsNaN(r.Width) || math.IsNaN(r.Height) {
		return false
	}
	return r.X >= -epsilon && r.Y >= -epsilon &&
		r.Right() <= 100+epsilon && r.Bottom() <= 100+epsilon &&
		r.Width >= MinSize-epsilon && r.Height >= MinSize-epsilon
}

// Round rounds all fields to the given number of decimal places.
func (r Rect) Round(places int) Rect {
	return Rect{
		X:      FloatRound(r.X, places),
		Y:      FloatRound(r.Y, places),
		Width:  FloatRound(r.Width, places),
		Height: FloatRound(r.Height, places),
	}
}

// Size is a container size in pixels.
type Size struct {
	Width  float64
	Height float64
}

// Delta is a pointer displacement in pixels.
type Delta struct {
	DX float64
	DY float64
}

// Apply computes the region produced by dragging start by d inside a container of the given size.
// Move shifts the region. Resize moves the edges named by the mode's handle and keeps the
// opposite edges fixed. The result is always clamped to the canvas.
func Apply(start Rect, mode Mode, d Delta, container Size) Rect {
	dx := toPercent(d.DX, container.Width)
	dy := toPercent(d.DY, container.Height)

	next := start
	switch mode.Kind {
	case Move:
		next.X = start.X + dx
		next.Y = start.Y + dy
	case Resize:
		e := mode.Handle.edges()
		if e.right {
			next.Width = math.Max(MinSize, start.Width+dx)
		}
		if e.left {
			next.Width = math.Max(MinSize, start.Width-dx)
			next.X = start.X + dx
		}
		if e.bottom {
			next.Height = math.Max(MinSize, start.Height+dy)
		}
		if e.top {
			next.Height = math.Max(MinSize, start.Height-dy)
			next.Y = start.Y + dy
		}
	}
	return Clamp(next)
}

// Clamp pulls r inside the canvas. Sizes are forced into [MinSize, 100]
// first, then the position is clamped so the rect fits.
func Clamp(r Rect) Rect {
	r.Width = clamp(finiteOr(r.Width, MinSize), MinSize, 100)
	r.Height = clamp(finiteOr(r.Height, MinSize), MinSize, 100)
	r.X = finiteOr(r.X, 0)
	r.Y = finiteOr(r.Y, 0)

	r.X = clamp(r.X, 0, 100-r.Width)
	r.Y = clamp(r.Y, 0, 100-r.Height)
	r.Width = math.Min(r.Width, 100-r.X)
	r.Height = math.Min(r.Height, 100-r.Y)
	return r
}

// toPercent converts a pixel delta along an axis of the given length.
// A degenerate axis or a non-finite delta contributes nothing.
func toPercent(px, length float64) float64 {
	if length <= 0 || math.IsNaN(length) || math.IsInf(length, 0) {
		return 0
	}
	if math.IsNaN(px) || math.IsInf(px, 0) {
		return 0
	}
	return px / length * 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finiteOr(v, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

// FloatRound rounds v to n decimal places deterministically.
func FloatRound(v float64, places int) float64 {
	if places < 0 {
		return v
	}
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
