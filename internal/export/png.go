/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"

	"deckwriter/internal/deck"
	applog "deckwriter/internal/log"
	"deckwriter/internal/projector"
)

// PNGOptions controls PNG preview export. Units are pixels.
type PNGOptions struct {
	Frame projector.Frame
}

// DefaultPNGOptions renders 1280x720 previews.
func DefaultPNGOptions() PNGOptions { return PNGOptions{Frame: projector.Preview1280} }

type fontStyle int

const (
	regular fontStyle = iota
	bold
	italic
)

var (
	fontsOnce sync.Once
	fonts     map[fontStyle]*truetype.Font
	fontsErr  error
)

func loadFonts() (map[fontStyle]*truetype.Font, error) {
	fontsOnce.Do(func() {
		fonts = map[fontStyle]*truetype.Font{}
		for st, data := range map[fontStyle][]byte{regular: goregular.TTF, bold: gobold.TTF, italic: goitalic.TTF} {
			f, err := truetype.Parse(data)
			if err != nil {
				fontsErr = fmt.Errorf("failed to parse font: %w", err)
				return
			}
			fonts[st] = f
		}
	})
	return fonts, fontsErr
}

func face(st fontStyle, size float64) (font.Face, error) {
	fs, err := loadFonts()
	if err != nil {
		return nil, err
	}
	return truetype.NewFace(fs[st], &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingFull}), nil
}

type pngRenderer struct {
	dc *gg.Context
	f  projector.Frame
}

// px scales a point size given for a 405pt high page.
func (r *pngRenderer) px(v float64) float64 { return v * r.f.Height / 405 }

func (r *pngRenderer) setFont(st fontStyle, size float64) error {
	fc, err := face(st, r.px(size))
	if err != nil {
		return err
	}
	r.dc.SetFontFace(fc)
	return nil
}

func newPNGRenderer(f projector.Frame) (*pngRenderer, error) {
	if f.Width < 1 || f.Height < 1 {
		f = projector.Preview1280
	}
	dc := gg.NewContext(int(math.Round(f.Width)), int(math.Round(f.Height)))
	dc.SetColor(color.White)
	dc.Clear()
	return &pngRenderer{dc: dc, f: f}, nil
}

// RenderSlide draws one content slide the way the PDF page looks.
func RenderSlide(s deck.Slide, opt PNGOptions) (image.Image, error) {
	r, err := newPNGRenderer(opt.Frame)
	if err != nil {
		return nil, err
	}
	b := boxesFor(s, r.f)
	if b.Media != nil {
		if err := r.media(s, *b.Media); err != nil {
			return nil, err
		}
	}
	switch {
	case b.Text == nil:
	case b.Placeholder:
		if err := r.setFont(italic, 14); err != nil {
			return nil, err
		}
		r.dc.SetHexColor("#7f7f7f")
		r.dc.DrawStringAnchored("Empty slide", b.Text.X+b.Text.Width/2, b.Text.Y+b.Text.Height/2, 0.5, 0.5)
	default:
		if err := r.setFont(bold, 405*titleFrac); err != nil {
			return nil, err
		}
		r.dc.SetHexColor("#363636")
		r.dc.DrawStringAnchored(s.Title, b.Title.X, b.Title.Y+b.Title.Height/2, 0, 0.5)
		if err := r.bullets(s.Bullets, b.Body, s.HasMedia()); err != nil {
			return nil, err
		}
	}
	return r.dc.Image(), nil
}

// RenderTitle draws the deck title card.
func RenderTitle(title string, opt PNGOptions) (image.Image, error) {
	r, err := newPNGRenderer(opt.Frame)
	if err != nil {
		return nil, err
	}
	if err := r.setFont(bold, 48); err != nil {
		return nil, err
	}
	r.dc.SetHexColor("#363636")
	r.dc.DrawStringAnchored(title, r.f.Width/2, r.f.Height*0.54, 0.5, 0.5)
	if err := r.setFont(regular, 18); err != nil {
		return nil, err
	}
	r.dc.SetHexColor("#7f7f7f")
	r.dc.DrawStringAnchored(Subtitle, r.f.Width/2, r.f.Height*0.79, 0.5, 0.5)
	return r.dc.Image(), nil
}

func (r *pngRenderer) bullets(items []string, box projector.Abs, beside bool) error {
	size := 20.0
	if beside {
		size = 18
	}
	var lines []string
	for ; size >= 9; size-- {
		if err := r.setFont(regular, size); err != nil {
			return err
		}
		lines = lines[:0]
		for _, b := range items {
			if strings.TrimSpace(b) == "" {
				continue
			}
			for i, ln := range r.dc.WordWrap(b, box.Width-r.px(size)) {
				if i == 0 {
					ln = "• " + ln
				} else {
					ln = "   " + ln
				}
				lines = append(lines, ln)
			}
		}
		if float64(len(lines))*r.px(size)*1.3 <= box.Height {
			break
		}
	}
	r.dc.SetHexColor("#363636")
	lh := r.px(size) * 1.3
	y := box.Y
	for _, ln := range lines {
		if y+lh > box.Y+box.Height+0.5 {
			break
		}
		r.dc.DrawStringAnchored(ln, box.X, y+lh/2, 0, 0.5)
		y += lh
	}
	return nil
}

func (r *pngRenderer) media(s deck.Slide, box projector.Abs) error {
	if s.Video != nil {
		r.dc.SetHexColor("#222222")
		r.dc.DrawRectangle(box.X, box.Y, box.Width, box.Height)
		r.dc.Fill()
		label := "Video"
		if s.Video.Name != "" {
			label += ": " + s.Video.Name
		}
		if err := r.setFont(regular, 14); err != nil {
			return err
		}
		r.dc.SetColor(color.White)
		r.dc.DrawStringAnchored(label, box.X+box.Width/2, box.Y+box.Height/2, 0.5, 0.5)
		return nil
	}
	cells := mediaCells(box, len(s.Images))
	for i, im := range s.Images {
		src, err := decodeImage(im.Data)
		if err != nil {
			applog.WithComponent("export").Warn("image skipped", slog.String("slide", s.ID), slog.Int("index", i), slog.Any("err", err))
			r.dc.SetHexColor("#dddddd")
			r.dc.DrawRectangle(cells[i].X, cells[i].Y, cells[i].Width, cells[i].Height)
			r.dc.Stroke()
			continue
		}
		b := src.Bounds()
		fit := projector.Contain(b.Dx(), b.Dy(), cells[i])
		w, h := int(math.Round(fit.Width)), int(math.Round(fit.Height))
		if w < 1 || h < 1 {
			continue
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
		r.dc.DrawImage(dst, int(math.Round(fit.X)), int(math.Round(fit.Y)))
	}
	return nil
}

// ExportPNGs writes a title card and one preview per slide into outDir.
// Files are numbered in deck order: 000-title.png, 001-<slide>.png, ...
func ExportPNGs(doc deck.Document, outDir string, opt PNGOptions) ([]string, error) {
	if len(doc.Topics) == 0 {
		return nil, ErrEmptyDeck
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}
	var out []string
	img, err := RenderTitle(doc.Title, opt)
	if err != nil {
		return nil, err
	}
	name := filepath.Join(outDir, "000-title.png")
	if err := gg.SavePNG(name, img); err != nil {
		return nil, fmt.Errorf("write png: %w", err)
	}
	out = append(out, name)
	n := 0
	for _, t := range doc.Topics {
		for _, s := range t.Slides {
			n++
			img, err := RenderSlide(s, opt)
			if err != nil {
				return out, fmt.Errorf("slide %s: %w", s.ID, err)
			}
			name := filepath.Join(outDir, fmt.Sprintf("%03d-%s.png", n, Slug(s.Title)))
			if err := gg.SavePNG(name, img); err != nil {
				return out, fmt.Errorf("write png: %w", err)
			}
			out = append(out, name)
		}
	}
	applog.WithOperation(applog.WithComponent("export"), "png").Info("png previews rendered",
		slog.String("dir", outDir), slog.Int("files", len(out)))
	return out, nil
}
