//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	_ "golang.org/x/image/webp"

	"deckwriter/internal/deck"
	"deckwriter/internal/geometry"
	"deckwriter/internal/gesture"
	applog "deckwriter/internal/log"
	"deckwriter/internal/projector"
)

const canvasMargin = 16

var (
	colBackground = color.RGBA{R: 30, G: 30, B: 34, A: 255}
	colRegion     = color.RGBA{R: 0, G: 112, B: 192, A: 60}
	colFocus      = color.RGBA{R: 0, G: 170, B: 255, A: 255}
	colTitle      = color.RGBA{R: 20, G: 20, B: 20, A: 255}
	colBody       = color.RGBA{R: 60, G: 60, B: 60, A: 255}
	colVideo      = color.RGBA{R: 40, G: 40, B: 40, A: 255}
)

// SlideCanvas shows the selected slide and lets the user drag or resize its
// text and media regions. Drags run through a gesture.Controller so only the
// final rect reaches the store.
type SlideCanvas struct {
	widget.BaseWidget

	store *deck.Store
	ctrl  *gesture.Controller
	log   *slog.Logger

	focus    deck.Region
	focused  bool
	dragging bool

	// decoded image cache keyed by slide, index and data length
	images map[string]image.Image

	// OnFocus runs when a region is tapped or dragged.
	OnFocus func(r deck.Region)
}

// NewSlideCanvas builds a canvas editing store.
func NewSlideCanvas(store *deck.Store) *SlideCanvas {
	sc := &SlideCanvas{
		store:  store,
		log:    applog.WithComponent("ui.canvas"),
		images: map[string]image.Image{},
	}
	sc.ctrl = gesture.New(store)
	sc.ExtendBaseWidget(sc)
	return sc
}

// PreferredSize is the default canvas size.
func (sc *SlideCanvas) PreferredSize() fyne.Size { return fyne.NewSize(800, 450) }

func (sc *SlideCanvas) viewport() Viewport {
	sz := sc.Size()
	return Fit(float64(sz.Width), float64(sz.Height), canvasMargin)
}

// Cancel drops a running drag and restores the committed layout.
func (sc *SlideCanvas) Cancel() {
	sc.ctrl.Cancel()
	sc.dragging = false
	sc.Refresh()
}

// Focused returns the region last tapped, if any.
func (sc *SlideCanvas) Focused() (deck.Region, bool) { return sc.focus, sc.focused }

func (sc *SlideCanvas) setFocus(r deck.Region, ok bool) {
	sc.focus, sc.focused = r, ok
	if ok && sc.OnFocus != nil {
		sc.OnFocus(r)
	}
}

// Tapped focuses the region under the pointer.
func (sc *SlideCanvas) Tapped(e *fyne.PointEvent) {
	s, ok := sc.store.CurrentSlide()
	if !ok {
		return
	}
	r, _, hit := Hit(s, sc.viewport(), sc.focus, sc.focused, float64(e.Position.X), float64(e.Position.Y))
	sc.setFocus(r, hit)
	sc.Refresh()
}

// Dragged starts a gesture on the first event and moves it afterwards.
func (sc *SlideCanvas) Dragged(e *fyne.DragEvent) {
	v := sc.viewport()
	if !sc.dragging {
		s, ok := sc.store.CurrentSlide()
		if !ok {
			return
		}
		start := e.Position.Subtract(e.Dragged)
		r, mode, hit := Hit(s, v, sc.focus, sc.focused, float64(start.X), float64(start.Y))
		if !hit {
			return
		}
		if err := sc.ctrl.Begin(s.ID, r, mode, v.Local(float64(start.X), float64(start.Y)), v.Container()); err != nil {
			sc.log.Warn("gesture not started", slog.Any("err", err))
			return
		}
		sc.dragging = true
		sc.setFocus(r, true)
	}
	sc.ctrl.Move(v.Local(float64(e.Position.X), float64(e.Position.Y)))
	sc.Refresh()
}

// DragEnd commits the gesture.
func (sc *SlideCanvas) DragEnd() {
	if !sc.dragging {
		return
	}
	sc.dragging = false
	sc.ctrl.End()
	sc.Refresh()
}

// layout returns the regions to draw, with any live gesture candidate applied.
func (sc *SlideCanvas) layout(s deck.Slide) projector.Layout {
	l := projector.Effective(s)
	if r, ok := sc.ctrl.Live(s.ID, deck.RegionText); ok {
		l.Text = &r
	}
	if r, ok := sc.ctrl.Live(s.ID, deck.RegionMedia); ok {
		l.Media = &r
	}
	return l
}

func (sc *SlideCanvas) image(s deck.Slide, i int) image.Image {
	im := s.Images[i]
	key := fmt.Sprintf("%s/%d/%d", s.ID, i, len(im.Data))
	if img, ok := sc.images[key]; ok {
		return img
	}
	img, _, err := image.Decode(bytes.NewReader(im.Data))
	if err != nil {
		sc.log.Warn("image not decodable", slog.String("slide", s.ID), slog.Int("index", i), slog.Any("err", err))
		img = nil
	}
	sc.images[key] = img
	return img
}

// CreateRenderer builds the drawable objects; their positions are set in Layout.
func (sc *SlideCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(colBackground)
	slide := canvas.NewRectangle(color.White)
	slide.StrokeColor = colTitle
	slide.StrokeWidth = 1

	textBox := canvas.NewRectangle(color.Transparent)
	mediaBox := canvas.NewRectangle(color.Transparent)
	title := canvas.NewText("", colTitle)
	title.TextStyle = fyne.TextStyle{Bold: true}
	placeholder := canvas.NewText("Empty slide", colBody)
	placeholder.Alignment = fyne.TextAlignCenter
	img := canvas.NewImageFromImage(nil)
	img.FillMode = canvas.ImageFillContain
	video := canvas.NewRectangle(colVideo)
	videoLabel := canvas.NewText("", color.White)
	videoLabel.Alignment = fyne.TextAlignCenter

	handles := make([]*canvas.Rectangle, len(geometry.Handles()))
	for i := range handles {
		handles[i] = canvas.NewRectangle(colFocus)
	}
	r := &slideCanvasRenderer{
		sc: sc, bg: bg, slide: slide, textBox: textBox, mediaBox: mediaBox,
		title: title, placeholder: placeholder, img: img, video: video, videoLabel: videoLabel,
		handles: handles,
	}
	r.rebuild()
	return r
}

type slideCanvasRenderer struct {
	sc          *SlideCanvas
	bg, slide   *canvas.Rectangle
	textBox     *canvas.Rectangle
	mediaBox    *canvas.Rectangle
	title       *canvas.Text
	bullets     []*canvas.Text
	placeholder *canvas.Text
	img         *canvas.Image
	video       *canvas.Rectangle
	videoLabel  *canvas.Text
	handles     []*canvas.Rectangle
	objects     []fyne.CanvasObject
}

func (r *slideCanvasRenderer) Destroy()                     {}
func (r *slideCanvasRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *slideCanvasRenderer) MinSize() fyne.Size           { return fyne.NewSize(320, 180) }

func (r *slideCanvasRenderer) Refresh() {
	r.rebuild()
	r.Layout(r.sc.Size())
	canvas.Refresh(r.sc)
}

// rebuild syncs the bullet text objects with the current slide.
func (r *slideCanvasRenderer) rebuild() {
	s, _ := r.sc.store.CurrentSlide()
	for len(r.bullets) < len(s.Bullets) {
		r.bullets = append(r.bullets, canvas.NewText("", colBody))
	}
	r.bullets = r.bullets[:len(s.Bullets)]
	for i, b := range s.Bullets {
		r.bullets[i].Text = "• " + b
	}
	r.objects = []fyne.CanvasObject{r.bg, r.slide, r.textBox, r.mediaBox, r.img, r.video, r.videoLabel, r.title, r.placeholder}
	for _, b := range r.bullets {
		r.objects = append(r.objects, b)
	}
	for _, h := range r.handles {
		r.objects = append(r.objects, h)
	}
}

func place(o fyne.CanvasObject, a projector.Abs) {
	o.Move(fyne.NewPos(float32(a.X), float32(a.Y)))
	o.Resize(fyne.NewSize(float32(a.Width), float32(a.Height)))
}

func (r *slideCanvasRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.bg.Move(fyne.NewPos(0, 0))

	v := Fit(float64(size.Width), float64(size.Height), canvasMargin)
	place(r.slide, projector.Abs{X: v.X, Y: v.Y, Width: v.Frame.Width, Height: v.Frame.Height})

	for _, o := range []fyne.CanvasObject{r.textBox, r.mediaBox, r.img, r.video, r.videoLabel, r.title, r.placeholder} {
		o.Hide()
	}
	for _, b := range r.bullets {
		b.Hide()
	}
	for _, h := range r.handles {
		h.Hide()
	}

	s, ok := r.sc.store.CurrentSlide()
	if !ok {
		r.placeholder.Text = "No slide selected"
		place(r.placeholder, projector.Abs{X: v.X, Y: v.Y + v.Frame.Height/2, Width: v.Frame.Width})
		r.placeholder.Show()
		return
	}
	l := r.sc.layout(s)
	titleSize := float32(v.Frame.Height * 0.06)
	bodySize := float32(v.Frame.Height * 0.035)

	if l.Placeholder {
		r.placeholder.Text = "Empty slide"
		r.placeholder.TextSize = bodySize
		place(r.placeholder, projector.Abs{X: v.X, Y: v.Y + v.Frame.Height/2, Width: v.Frame.Width})
		r.placeholder.Show()
	} else if l.Text != nil {
		a := v.Abs(*l.Text)
		place(r.textBox, a)
		r.textBox.FillColor = colRegion
		r.textBox.Show()
		r.title.Text = s.Title
		r.title.TextSize = titleSize
		pad := float32(a.Height * 0.04)
		y := float32(a.Y) + pad
		r.title.Move(fyne.NewPos(float32(a.X)+pad, y))
		r.title.Show()
		y += titleSize * 1.6
		for _, b := range r.bullets {
			if y+bodySize > float32(a.Y+a.Height) {
				break
			}
			b.TextSize = bodySize
			b.Move(fyne.NewPos(float32(a.X)+pad, y))
			b.Show()
			y += bodySize * 1.5
		}
	}

	if l.Media != nil {
		a := v.Abs(*l.Media)
		place(r.mediaBox, a)
		r.mediaBox.FillColor = colRegion
		r.mediaBox.Show()
		switch {
		case len(s.Images) > 0:
			if img := r.sc.image(s, 0); img != nil {
				r.img.Image = img
				place(r.img, a)
				r.img.Refresh()
				r.img.Show()
			}
		case s.Video != nil:
			place(r.video, a)
			r.video.Show()
			r.videoLabel.Text = "▶ " + s.Video.Name
			r.videoLabel.TextSize = bodySize
			place(r.videoLabel, projector.Abs{X: a.X, Y: a.Y + a.Height/2, Width: a.Width})
			r.videoLabel.Show()
		}
	}

	if focus, ok := r.sc.Focused(); ok {
		if reg := l.Region(focus); reg != nil {
			a := v.Abs(*reg)
			for i, h := range geometry.Handles() {
				place(r.handles[i], HandleRect(a, h))
				r.handles[i].Show()
			}
		}
	}
}
