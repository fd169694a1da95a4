/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package imageedit applies crop, rotation, tone and filter edits to slide images.
package imageedit

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"math"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"deckwriter/internal/deck"
	"deckwriter/internal/geometry"
	applog "deckwriter/internal/log"
)

// Filter names a colour filter.
type Filter string

const (
	FilterNone      Filter = "none"
	FilterGrayscale Filter = "grayscale"
	FilterSepia     Filter = "sepia"
)

// ParseFilter accepts none, grayscale (or greyscale) and sepia.
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return FilterNone, nil
	case "grayscale", "greyscale", "gray":
		return FilterGrayscale, nil
	case "sepia":
		return FilterSepia, nil
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

// Options describes one edit. Use Defaults for an identity edit.
type Options struct {
	// Crop is a percent rect of the source image; nil keeps the whole image.
	Crop *geometry.Rect
	// Rotate in degrees, a multiple of 90.
	Rotate int
	// Brightness and Contrast in percent, 100 leaves the image unchanged.
	// Zero counts as 100.
	Brightness int
	Contrast   int
	Filter     Filter
	// Zoom >= 1 keeps the centre 1/Zoom of the crop, scaled back to the crop size.
	Zoom float64
}

// Defaults returns options that change nothing.
func Defaults() Options {
	return Options{Brightness: 100, Contrast: 100, Filter: FilterNone, Zoom: 1}
}

var (
	ErrRotation = errors.New("rotation must be a multiple of 90 degrees")
	ErrCrop     = errors.New("crop area is empty")
)

// Edit applies opt to img. Edits always start from the first source so repeated
// edits do not compound; the result keeps that source in OriginalData.
func Edit(img deck.Image, opt Options) (deck.Image, error) {
	if opt.Rotate%90 != 0 {
		return deck.Image{}, ErrRotation
	}
	source := img.Data
	if len(img.OriginalData) > 0 {
		source = img.OriginalData
	}
	src, format, err := image.Decode(bytes.NewReader(source))
	if err != nil {
		return deck.Image{}, fmt.Errorf("decode image: %w", err)
	}

	out := toRGBA(src)
	if opt.Crop != nil {
		if out, err = crop(out, *opt.Crop); err != nil {
			return deck.Image{}, err
		}
	}
	if opt.Zoom > 1 {
		out = zoom(out, opt.Zoom)
	}
	out = rotate(out, opt.Rotate)
	tone(out, opt)

	var buf bytes.Buffer
	mime := "image/png"
	if format == "jpeg" {
		mime = "image/jpeg"
		err = jpeg.Encode(&buf, out, &jpeg.Options{Quality: 92})
	} else {
		err = png.Encode(&buf, out)
	}
	if err != nil {
		return deck.Image{}, fmt.Errorf("encode image: %w", err)
	}
	applog.WithComponent("imageedit").Debug("image edited",
		slog.String("format", format), slog.Int("rotate", opt.Rotate), slog.String("filter", string(opt.Filter)),
		slog.Int("w", out.Bounds().Dx()), slog.Int("h", out.Bounds().Dy()))

	orig := make([]byte, len(source))
	copy(orig, source)
	return deck.Image{Data: buf.Bytes(), MimeType: mime, Prompt: img.Prompt, OriginalData: orig}, nil
}

func toRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

func crop(src *image.RGBA, pct geometry.Rect) (*image.RGBA, error) {
	pct = geometry.Clamp(pct)
	w, h := float64(src.Bounds().Dx()), float64(src.Bounds().Dy())
	r := image.Rect(
		int(math.Round(pct.X/100*w)),
		int(math.Round(pct.Y/100*h)),
		int(math.Round(pct.Right()/100*w)),
		int(math.Round(pct.Bottom()/100*h)),
	).Intersect(src.Bounds())
	if r.Empty() {
		return nil, ErrCrop
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), src, r.Min, draw.Src)
	return dst, nil
}

func zoom(src *image.RGBA, z float64) *image.RGBA {
	b := src.Bounds()
	cw := int(math.Max(1, math.Round(float64(b.Dx())/z)))
	ch := int(math.Max(1, math.Round(float64(b.Dy())/z)))
	x0 := (b.Dx() - cw) / 2
	y0 := (b.Dy() - ch) / 2
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, image.Rect(x0, y0, x0+cw, y0+ch), draw.Src, nil)
	return dst
}

// rotate turns clockwise by deg (a multiple of 90).
func rotate(src *image.RGBA, deg int) *image.RGBA {
	turns := ((deg/90)%4 + 4) % 4
	if turns == 0 {
		return src
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	var dst *image.RGBA
	if turns == 2 {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.RGBAAt(x, y)
			switch turns {
			case 1:
				dst.SetRGBA(h-1-y, x, c)
			case 2:
				dst.SetRGBA(w-1-x, h-1-y, c)
			case 3:
				dst.SetRGBA(y, w-1-x, c)
			}
		}
	}
	return dst
}

// tone applies brightness, contrast and the colour filter in that order.
func tone(img *image.RGBA, opt Options) {
	br, ct := opt.Brightness, opt.Contrast
	if br == 0 {
		br = 100
	}
	if ct == 0 {
		ct = 100
	}
	bf, cf := float64(br)/100, float64(ct)/100
	identity := br == 100 && ct == 100 && (opt.Filter == "" || opt.Filter == FilterNone)
	if identity {
		return
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			r, g, bl := float64(c.R)/255, float64(c.G)/255, float64(c.B)/255
			r, g, bl = r*bf, g*bf, bl*bf
			r, g, bl = (r-0.5)*cf+0.5, (g-0.5)*cf+0.5, (bl-0.5)*cf+0.5
			r, g, bl = clamp01(r), clamp01(g), clamp01(bl)
			switch opt.Filter {
			case FilterGrayscale:
				l := 0.2126*r + 0.7152*g + 0.0722*bl
				r, g, bl = l, l, l
			case FilterSepia:
				r, g, bl = 0.393*r+0.769*g+0.189*bl, 0.349*r+0.686*g+0.168*bl, 0.272*r+0.534*g+0.131*bl
			}
			img.SetRGBA(x, y, color.RGBA{R: to8(r), G: to8(g), B: to8(bl), A: c.A})
		}
	}
}

func clamp01(v float64) float64 { return math.Max(0, math.Min(1, v)) }

func to8(v float64) uint8 { return uint8(math.Round(clamp01(v) * 255)) }
