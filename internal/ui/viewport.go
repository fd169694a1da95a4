/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"deckwriter/internal/deck"
	"deckwriter/internal/geometry"
	"deckwriter/internal/gesture"
	"deckwriter/internal/projector"
)

// handleSize is the edge length of a resize grip in pixels.
const handleSize = 10

// Viewport places a 16:9 slide inside a widget of the given size.
type Viewport struct {
	X, Y  float64 // slide origin inside the widget
	Frame projector.Frame
}

// Fit centres the largest 16:9 slide that fits w x h with margin pixels around it.
func Fit(w, h, margin float64) Viewport {
	aw, ah := w-2*margin, h-2*margin
	if aw < 1 {
		aw = 1
	}
	if ah < 1 {
		ah = 1
	}
	sw, sh := aw, aw*9/16
	if sh > ah {
		sh = ah
		sw = ah * 16 / 9
	}
	return Viewport{
		X:     (w - sw) / 2,
		Y:     (h - sh) / 2,
		Frame: projector.Preview(sw, sh),
	}
}

// Container is the slide size handed to gesture.Controller.Begin.
func (v Viewport) Container() geometry.Size {
	return geometry.Size{Width: v.Frame.Width, Height: v.Frame.Height}
}

// Local converts widget coordinates to slide-relative pixels.
func (v Viewport) Local(x, y float64) gesture.Point {
	return gesture.Point{X: x - v.X, Y: y - v.Y}
}

// Abs projects r and offsets it into widget coordinates.
func (v Viewport) Abs(r geometry.Rect) projector.Abs {
	a := projector.Project(r, v.Frame)
	a.X += v.X
	a.Y += v.Y
	return a
}

// HandleRect returns the grip square for h on a, in the same coordinates as a.
func HandleRect(a projector.Abs, h geometry.Handle) projector.Abs {
	cx, cy := a.X+a.Width/2, a.Y+a.Height/2
	switch h {
	case geometry.TopLeft, geometry.Left, geometry.BottomLeft:
		cx = a.X
	case geometry.TopRight, geometry.Right, geometry.BottomRight:
		cx = a.X + a.Width
	}
	switch h {
	case geometry.TopLeft, geometry.Top, geometry.TopRight:
		cy = a.Y
	case geometry.BottomLeft, geometry.Bottom, geometry.BottomRight:
		cy = a.Y + a.Height
	}
	return projector.Abs{X: cx - handleSize/2, Y: cy - handleSize/2, Width: handleSize, Height: handleSize}
}

// Hit finds what a pointer at widget position (x, y) grabs on slide s.
// Grips of the focused region win, then the media region, then the text region.
func Hit(s deck.Slide, v Viewport, focus deck.Region, focused bool, x, y float64) (deck.Region, geometry.Mode, bool) {
	l := projector.Effective(s)
	if focused {
		if r := l.Region(focus); r != nil {
			a := v.Abs(*r)
			for _, h := range geometry.Handles() {
				if HandleRect(a, h).Contains(x, y) {
					return focus, geometry.ResizeMode(h), true
				}
			}
		}
	}
	if l.Media != nil && v.Abs(*l.Media).Contains(x, y) {
		return deck.RegionMedia, geometry.MoveMode(), true
	}
	if l.Text != nil && !l.Placeholder && v.Abs(*l.Text).Contains(x, y) {
		return deck.RegionText, geometry.MoveMode(), true
	}
	return 0, geometry.Mode{}, false
}
