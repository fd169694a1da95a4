/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"deckwriter/internal/deck"
	"deckwriter/internal/geometry"
	"deckwriter/internal/projector"
	"deckwriter/internal/storage"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func sampleDeck(t *testing.T) deck.Document {
	notes := "Mention the greenhouse."
	region := geometry.R(10, 10, 50, 60)
	return deck.Document{
		Title: "Plants & Flowers",
		Topics: []deck.Topic{{
			ID:    "t1",
			Title: "Roses",
			Slides: []deck.Slide{
				{ID: "s1", Title: "Why roses", Bullets: []string{"Smell nice", "Thorny, but worth it for the long and wordy reasons we list here"}, SpeakerNotes: &notes},
				{ID: "s2", Title: "Pictures", Bullets: []string{"Red"}, Images: []deck.Image{
					{Data: pngBytes(t, 40, 20), MimeType: "image/png"},
					{Data: pngBytes(t, 10, 30), MimeType: "image/png"},
				}, MediaRegion: &region},
				{ID: "s3", Title: "Clip", Video: &deck.Video{Data: []byte{0, 1}, MimeType: "video/mp4", Name: "bloom.mp4"}},
				{ID: "s4"},
			},
		}},
	}
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	opt := DefaultPDFOptions()
	opt.SpeakerNotes = true
	if err := WritePDF(&buf, sampleDeck(t), opt); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("not a pdf: %q", buf.Bytes()[:8])
	}
	// title + section + 4 slides + 1 notes page
	if n := bytes.Count(buf.Bytes(), []byte("/Type /Page\n")); n != 7 {
		t.Fatalf("pages = %d, want 7", n)
	}
}

func TestWritePDFEmptyDeck(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePDF(&buf, deck.Document{Title: "x"}, DefaultPDFOptions()); err != ErrEmptyDeck {
		t.Fatalf("err = %v, want ErrEmptyDeck", err)
	}
}

func TestWritePDFSkipsBrokenImage(t *testing.T) {
	doc := deck.Document{Title: "t", Topics: []deck.Topic{{ID: "t", Title: "T", Slides: []deck.Slide{
		{ID: "s", Title: "S", Images: []deck.Image{{Data: []byte("not an image"), MimeType: "image/png"}}},
	}}}}
	var buf bytes.Buffer
	if err := WritePDF(&buf, doc, DefaultPDFOptions()); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
}

func TestRenderSlideSize(t *testing.T) {
	doc := sampleDeck(t)
	img, err := RenderSlide(doc.Topics[0].Slides[1], PNGOptions{Frame: projector.Preview(640, 360)})
	if err != nil {
		t.Fatalf("RenderSlide: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 640 || b.Dy() != 360 {
		t.Fatalf("bounds = %v", b)
	}
	// top-left corner stays background white
	if r, g, b, _ := img.At(0, 0).RGBA(); r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Fatalf("corner not white")
	}
}

func TestBatchExportPresets(t *testing.T) {
	root := t.TempDir()
	h, err := storage.InitDeck(root, sampleDeck(t))
	if err != nil {
		t.Fatalf("init deck: %v", err)
	}
	files, err := BatchExport(h, BatchOptions{Preset: PresetPrint})
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	want := filepath.Join(root, "exports", "print", "plants-flowers.pdf")
	if len(files) != 1 || files[0] != want {
		t.Fatalf("files = %v, want %s", files, want)
	}
	files, err = BatchExport(h, BatchOptions{Preset: PresetWeb})
	if err != nil {
		t.Fatalf("web: %v", err)
	}
	// title card + 4 slides
	if len(files) != 5 {
		t.Fatalf("files = %v", files)
	}
	for _, p := range files {
		st, err := os.Stat(p)
		if err != nil || st.Size() == 0 {
			t.Fatalf("missing or empty %s: %v", p, err)
		}
	}
	if !strings.HasSuffix(files[1], "001-why-roses.png") {
		t.Fatalf("unexpected name %s", files[1])
	}
	if _, err := BatchExport(h, BatchOptions{Formats: []string{"pptx"}}); err == nil {
		t.Fatalf("expected unknown format error")
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Plants & Flowers":  "plants-flowers",
		"Crème brûlée 101!": "creme-brulee-101",
		"  ":                "deck",
		"日本":                "deck",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Fatalf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMediaCells(t *testing.T) {
	box := projector.Abs{X: 10, Y: 20, Width: 100, Height: 50}
	if c := mediaCells(box, 1); len(c) != 1 || c[0] != box {
		t.Fatalf("single cell = %v", c)
	}
	cells := mediaCells(box, 3)
	if len(cells) != 3 {
		t.Fatalf("cells = %v", cells)
	}
	for _, c := range cells {
		if c.X < box.X || c.Y < box.Y || c.X+c.Width > box.X+box.Width+1e-9 || c.Y+c.Height > box.Y+box.Height+1e-9 {
			t.Fatalf("cell %v outside %v", c, box)
		}
	}
}

func TestBoxesMatchEditorProjection(t *testing.T) {
	text, media := geometry.R(0, 0, 40, 100), geometry.R(0, 0, 50, 50)
	s := deck.Slide{Title: "Beds", Bullets: []string{"Raised"}, TextRegion: &text, MediaRegion: &media,
		Images: []deck.Image{{Data: pngBytes(t, 4, 4), MimeType: "image/png"}}}
	for _, f := range []projector.Frame{projector.Slide16x9Points, projector.Preview1280} {
		b := boxesFor(s, f)
		if b.Media == nil || *b.Media != projector.Project(media, f) {
			t.Fatalf("%s media = %+v, want %+v", f.Name, b.Media, projector.Project(media, f))
		}
		if b.Text == nil || *b.Text != projector.Project(text, f) {
			t.Fatalf("%s text = %+v", f.Name, b.Text)
		}
		// Title and body stay inside the text region, title first.
		if b.Title.X < b.Text.X || b.Title.Y < b.Text.Y || b.Body.Y < b.Title.Y+b.Title.Height ||
			b.Body.Y+b.Body.Height > b.Text.Y+b.Text.Height+1e-9 || b.Body.X+b.Body.Width > b.Text.X+b.Text.Width+1e-9 {
			t.Fatalf("%s title %+v body %+v outside %+v", f.Name, b.Title, b.Body, *b.Text)
		}
	}
	page := boxesFor(s, projector.Slide16x9Points)
	if want := (projector.Abs{X: 0, Y: 0, Width: 360, Height: 202.5}); *page.Media != want {
		t.Fatalf("media on page = %+v", *page.Media)
	}
}

func TestBoxesPlaceholderFillsFrame(t *testing.T) {
	b := boxesFor(deck.Slide{ID: "empty"}, projector.Slide16x9Points)
	if !b.Placeholder || b.Text == nil || b.Media != nil {
		t.Fatalf("boxes = %+v", b)
	}
	if *b.Text != (projector.Abs{Width: 720, Height: 405}) {
		t.Fatalf("placeholder box = %+v", *b.Text)
	}
}
