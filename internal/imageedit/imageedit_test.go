/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package imageedit

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"deckwriter/internal/deck"
	"deckwriter/internal/geometry"
)

// quad is 40x20: left half red, right half blue.
func quad(t *testing.T) deck.Image {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			c := color.RGBA{R: 200, A: 255}
			if x >= 20 {
				c = color.RGBA{B: 200, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return deck.Image{Data: buf.Bytes(), MimeType: "image/png", Prompt: "flag"}
}

func decode(t *testing.T, im deck.Image) image.Image {
	t.Helper()
	out, _, err := image.Decode(bytes.NewReader(im.Data))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return out
}

func TestCropAndRotate(t *testing.T) {
	src := quad(t)
	opt := Defaults()
	opt.Crop = &geometry.Rect{X: 50, Y: 0, Width: 50, Height: 100}
	opt.Rotate = 90
	got, err := Edit(src, opt)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	img := decode(t, got)
	// right half is 20x20, rotation keeps it square
	if b := img.Bounds(); b.Dx() != 20 || b.Dy() != 20 {
		t.Fatalf("bounds = %v", b)
	}
	if _, _, b, _ := img.At(5, 5).RGBA(); b>>8 != 200 {
		t.Fatalf("expected blue pixel")
	}
	if !bytes.Equal(got.OriginalData, src.Data) || got.Prompt != "flag" {
		t.Fatalf("original or prompt lost")
	}
}

func TestRotateSwapsDimensions(t *testing.T) {
	opt := Defaults()
	opt.Rotate = -90
	got, err := Edit(quad(t), opt)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	img := decode(t, got)
	if b := img.Bounds(); b.Dx() != 20 || b.Dy() != 40 {
		t.Fatalf("bounds = %v", b)
	}
	// counter-clockwise: the right (blue) half ends up on top
	if _, _, b, _ := img.At(10, 5).RGBA(); b>>8 != 200 {
		t.Fatalf("expected blue on top")
	}
}

func TestReEditStartsFromOriginal(t *testing.T) {
	src := quad(t)
	opt := Defaults()
	opt.Crop = &geometry.Rect{X: 0, Y: 0, Width: 50, Height: 50}
	first, err := Edit(src, opt)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	second, err := Edit(first, Defaults())
	if err != nil {
		t.Fatalf("re-edit: %v", err)
	}
	if b := decode(t, second).Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Fatalf("re-edit should start from the original, got %v", b)
	}
	if !bytes.Equal(second.OriginalData, src.Data) {
		t.Fatalf("original replaced")
	}
}

func TestFilters(t *testing.T) {
	opt := Defaults()
	opt.Filter = FilterGrayscale
	got, err := Edit(quad(t), opt)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	r, g, b, _ := decode(t, got).At(1, 1).RGBA()
	if r != g || g != b {
		t.Fatalf("not gray: %d %d %d", r>>8, g>>8, b>>8)
	}

	opt = Defaults()
	opt.Brightness = 0
	opt.Contrast = 100
	opt.Filter = FilterSepia
	if _, err := Edit(quad(t), opt); err != nil {
		t.Fatalf("sepia: %v", err)
	}
	if _, err := ParseFilter("blur"); err == nil {
		t.Fatalf("expected unknown filter error")
	}
}

func TestBrightnessDarkens(t *testing.T) {
	opt := Defaults()
	opt.Brightness = 50
	got, err := Edit(quad(t), opt)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if r, _, _, _ := decode(t, got).At(1, 1).RGBA(); r>>8 != 100 {
		t.Fatalf("red = %d, want 100", r>>8)
	}
}

func TestZoomKeepsSize(t *testing.T) {
	opt := Defaults()
	opt.Zoom = 2
	got, err := Edit(quad(t), opt)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if b := decode(t, got).Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Fatalf("bounds = %v", b)
	}
}

func TestInvalidInput(t *testing.T) {
	opt := Defaults()
	opt.Rotate = 45
	if _, err := Edit(quad(t), opt); !errors.Is(err, ErrRotation) {
		t.Fatalf("err = %v", err)
	}
	if _, err := Edit(deck.Image{Data: []byte("nope")}, Defaults()); err == nil {
		t.Fatalf("expected decode error")
	}
}
