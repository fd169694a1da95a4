/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package projector maps percentage rects onto concrete frames (a preview surface
// in pixels or an export page in points) and computes the default slide layout.
package projector

import (
	"math"

	"deckwriter/internal/deck"
	"deckwriter/internal/geometry"
)

// Frame is a target surface. Units are whatever the target uses.
type Frame struct {
	Name   string
	Width  float64
	Height float64
}

// Preview builds a pixel frame for an on-screen container.
func Preview(w, h float64) Frame { return Frame{Name: "preview", Width: w, Height: h} }

// Export builds a page frame in the exporter's unit.
func Export(w, h float64) Frame { return Frame{Name: "export", Width: w, Height: h} }

var (
	// Slide16x9Points is a 10in x 5.625in page.
	Slide16x9Points = Export(720, 405)
	Preview1280     = Preview(1280, 720)
)

// Abs is a rect in frame units.
type Abs struct {
	X, Y, Width, Height float64
}

// Project scales r into f. No clamping is applied.
func Project(r geometry.Rect, f Frame) Abs {
	return Abs{
		X:      r.X / 100 * f.Width,
		Y:      r.Y / 100 * f.Height,
		Width:  r.Width / 100 * f.Width,
		Height: r.Height / 100 * f.Height,
	}
}

// Unproject maps an absolute rect back into percent space. A zero-sized frame axis yields 0.
func Unproject(a Abs, f Frame) geometry.Rect {
	px := func(v, total float64) float64 {
		if total <= 0 {
			return 0
		}
		return v / total * 100
	}
	return geometry.Rect{
		X:      px(a.X, f.Width),
		Y:      px(a.Y, f.Height),
		Width:  px(a.Width, f.Width),
		Height: px(a.Height, f.Height),
	}
}

// Contains reports whether point (x, y) lies inside a.
func (a Abs) Contains(x, y float64) bool {
	return x >= a.X && x <= a.X+a.Width && y >= a.Y && y <= a.Y+a.Height
}

// Contain fits a srcW x srcH image into box keeping its aspect ratio, centred.
func Contain(srcW, srcH int, box Abs) Abs {
	if srcW <= 0 || srcH <= 0 || box.Width <= 0 || box.Height <= 0 {
		return box
	}
	scale := math.Min(box.Width/float64(srcW), box.Height/float64(srcH))
	w := float64(srcW) * scale
	h := float64(srcH) * scale
	return Abs{
		X:      box.X + (box.Width-w)/2,
		Y:      box.Y + (box.Height-h)/2,
		Width:  w,
		Height: h,
	}
}

// Layout holds the regions a slide is drawn with. A nil region is not drawn.
type Layout struct {
	Text  *geometry.Rect
	Media *geometry.Rect
	// Placeholder is set for slides with neither text nor media.
	Placeholder bool
}

// Region returns the rect for r.
func (l Layout) Region(r deck.Region) *geometry.Rect {
	if r == deck.RegionMedia {
		return l.Media
	}
	return l.Text
}

var (
	sideText  = geometry.R(2.5, 0, 45, 100)
	sideMedia = geometry.R(52.5, 0, 45, 100)
)

// DefaultLayout derives regions from slide content alone.
// Text and media side by side, otherwise whichever exists fills the canvas.
func DefaultLayout(s deck.Slide) Layout {
	text, media := s.HasText(), s.HasMedia()
	switch {
	case text && media:
		t, m := sideText, sideMedia
		return Layout{Text: &t, Media: &m}
	case text:
		t := geometry.Full()
		return Layout{Text: &t}
	case media:
		m := geometry.Full()
		return Layout{Media: &m}
	}
	t := geometry.Full()
	return Layout{Text: &t, Placeholder: true}
}

// Effective uses the slide's explicit regions where present and defaults elsewhere.
// An explicit region always wins, even when its content is currently empty.
func Effective(s deck.Slide) Layout {
	l := DefaultLayout(s)
	if s.TextRegion != nil {
		r := *s.TextRegion
		l.Text = &r
	}
	if s.MediaRegion != nil && s.HasMedia() {
		r := *s.MediaRegion
		l.Media = &r
	}
	return l
}

// RegionRect returns the effective rect for one region, falling back to the full canvas.
func RegionRect(s deck.Slide, r deck.Region) geometry.Rect {
	if explicit := s.Region(r); explicit != nil {
		return *explicit
	}
	if d := DefaultLayout(s).Region(r); d != nil {
		return *d
	}
	return geometry.Full()
}

// Projected is a Layout in frame units.
type Projected struct {
	Frame       Frame
	Text        *Abs
	Media       *Abs
	Placeholder bool
}

// ProjectLayout projects the effective layout of s into f.
func ProjectLayout(s deck.Slide, f Frame) Projected {
	l := Effective(s)
	p := Projected{Frame: f, Placeholder: l.Placeholder}
	if l.Text != nil {
		a := Project(*l.Text, f)
		p.Text = &a
	}
	if l.Media != nil {
		a := Project(*l.Media, f)
		p.Media = &a
	}
	return p
}
