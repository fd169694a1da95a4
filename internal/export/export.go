/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders decks to PDF pages and PNG previews.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"
	"strings"
	"unicode"

	_ "golang.org/x/image/webp"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"deckwriter/internal/deck"
	"deckwriter/internal/projector"
)

// Subtitle is printed under the deck title on the title slide.
const Subtitle = "Generated with deckwriter"

// ErrEmptyDeck is returned when a deck has no topics to render.
var ErrEmptyDeck = errors.New("deck has no topics")

// Slug turns a title into a lowercase ASCII file name stem.
func Slug(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, title)
	if err != nil {
		s = title
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "deck"
	}
	return out
}

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// pdfImage returns bytes gofpdf can read plus its type name.
// Formats gofpdf lacks (webp) are re-encoded to PNG.
func pdfImage(data []byte) ([]byte, string, image.Config, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", image.Config{}, fmt.Errorf("decode image config: %w", err)
	}
	switch format {
	case "png":
		return data, "PNG", cfg, nil
	case "jpeg":
		return data, "JPG", cfg, nil
	case "gif":
		return data, "GIF", cfg, nil
	}
	img, err := decodeImage(data)
	if err != nil {
		return nil, "", image.Config{}, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", image.Config{}, fmt.Errorf("re-encode %s: %w", format, err)
	}
	return buf.Bytes(), "PNG", cfg, nil
}

// mediaCells splits box into a near-square grid of n cells.
func mediaCells(box projector.Abs, n int) []projector.Abs {
	if n <= 1 {
		return []projector.Abs{box}
	}
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := int(math.Ceil(float64(n) / float64(cols)))
	gap := math.Min(box.Width, box.Height) * 0.02
	cw := (box.Width - gap*float64(cols-1)) / float64(cols)
	ch := (box.Height - gap*float64(rows-1)) / float64(rows)
	out := make([]projector.Abs, 0, n)
	for i := 0; i < n; i++ {
		c, r := i%cols, i/cols
		out = append(out, projector.Abs{
			X:      box.X + float64(c)*(cw+gap),
			Y:      box.Y + float64(r)*(ch+gap),
			Width:  cw,
			Height: ch,
		})
	}
	return out
}

// Title and padding proportions shared with the editor canvas.
const (
	titleFrac = 0.06 // title text size per frame height
	padFrac   = 0.04 // inner padding per text region height
)

// slideBoxes places a content slide's parts on a page. Regions are projected
// onto the whole frame; the title sits at the top of the text region.
type slideBoxes struct {
	Text, Media *projector.Abs
	Title, Body projector.Abs
	Placeholder bool
}

func boxesFor(s deck.Slide, f projector.Frame) slideBoxes {
	p := projector.ProjectLayout(s, f)
	b := slideBoxes{Text: p.Text, Media: p.Media, Placeholder: p.Placeholder}
	if p.Text == nil {
		return b
	}
	a := *p.Text
	pad := a.Height * padFrac
	inner := math.Max(a.Width-2*pad, 0)
	b.Title = projector.Abs{X: a.X + pad, Y: a.Y + pad, Width: inner, Height: math.Min(f.Height*titleFrac*1.6, math.Max(a.Height-2*pad, 0))}
	top := b.Title.Y + b.Title.Height
	b.Body = projector.Abs{X: a.X + pad, Y: top, Width: inner, Height: math.Max(a.Y+a.Height-pad-top, 0)}
	return b
}
