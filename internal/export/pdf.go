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
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"deckwriter/internal/deck"
	applog "deckwriter/internal/log"
	"deckwriter/internal/projector"
)

// PDFOptions controls PDF export. Units are points.
// Built-in Helvetica keeps text vector without font embedding.
type PDFOptions struct {
	Frame        projector.Frame
	SpeakerNotes bool // append a notes page after every slide that has notes
	Author       string
}

// DefaultPDFOptions renders 16:9 pages at 720x405 pt without notes.
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{Frame: projector.Slide16x9Points, Author: "deckwriter"}
}

type rgb struct{ r, g, b int }

var (
	colDark    = rgb{0x36, 0x36, 0x36}
	colMuted   = rgb{0x7f, 0x7f, 0x7f}
	colSection = rgb{0x00, 0x70, 0xc0}
	colFrame   = rgb{0xdd, 0xdd, 0xdd}
	colVideo   = rgb{0x22, 0x22, 0x22}
)

// ExportPDF writes doc to outPath, creating parent directories.
func ExportPDF(doc deck.Document, outPath string, opt PDFOptions) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	var buf bytes.Buffer
	if err := WritePDF(&buf, doc, opt); err != nil {
		return err
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// WritePDF renders a title page, one section page per topic and one page per slide.
func WritePDF(w io.Writer, doc deck.Document, opt PDFOptions) error {
	if len(doc.Topics) == 0 {
		return ErrEmptyDeck
	}
	f := opt.Frame
	if f.Width <= 0 || f.Height <= 0 {
		f = projector.Slide16x9Points
	}
	l := applog.WithOperation(applog.WithComponent("export"), "pdf")

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: f.Width, Ht: f.Height},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(doc.Title, true)
	if opt.Author != "" {
		pdf.SetAuthor(opt.Author, true)
	}
	r := &pdfRenderer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor(""), f: f, log: l}

	r.titlePage(doc.Title)
	pages := 1
	for _, t := range doc.Topics {
		r.sectionPage(t.Title)
		pages++
		for _, s := range t.Slides {
			r.slidePage(s)
			pages++
			if opt.SpeakerNotes && strings.TrimSpace(s.Notes()) != "" {
				r.notesPage(s)
				pages++
			}
		}
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	l.Info("pdf rendered", slog.String("title", doc.Title), slog.Int("pages", pages))
	return nil
}

type pdfRenderer struct {
	pdf    *gofpdf.Fpdf
	tr     func(string) string
	f      projector.Frame
	log    *slog.Logger
	images int
}

func (r *pdfRenderer) color(c rgb) { r.pdf.SetTextColor(c.r, c.g, c.b) }

// pt scales a size given for a 405pt high page.
func (r *pdfRenderer) pt(v float64) float64 { return v * r.f.Height / 405 }

func (r *pdfRenderer) centred(text string, y, h, size float64, style string, c rgb) {
	r.pdf.SetFont("Helvetica", style, r.pt(size))
	r.color(c)
	mx := r.f.Width * 0.05
	r.pdf.SetXY(mx, y)
	r.pdf.CellFormat(r.f.Width-2*mx, h, r.tr(text), "", 0, "CM", false, 0, "")
}

func (r *pdfRenderer) titlePage(title string) {
	r.pdf.AddPage()
	r.centred(title, r.f.Height*0.44, r.f.Height*0.2, 48, "B", colDark)
	r.centred(Subtitle, r.f.Height*0.74, r.f.Height*0.1, 18, "", colMuted)
}

func (r *pdfRenderer) sectionPage(title string) {
	r.pdf.AddPage()
	r.centred(title, r.f.Height*0.42, r.f.Height*0.16, 36, "B", colSection)
}

func (r *pdfRenderer) slidePage(s deck.Slide) {
	r.pdf.AddPage()
	b := boxesFor(s, r.f)
	if b.Media != nil {
		r.media(s, *b.Media)
	}
	if b.Text == nil {
		return
	}
	if b.Placeholder {
		r.pdf.SetFont("Helvetica", "I", r.pt(14))
		r.color(colMuted)
		r.pdf.SetXY(b.Text.X, b.Text.Y)
		r.pdf.CellFormat(b.Text.Width, b.Text.Height, "Empty slide", "", 0, "CM", false, 0, "")
		return
	}
	r.pdf.SetFont("Helvetica", "B", r.f.Height*titleFrac)
	r.color(colDark)
	r.pdf.SetXY(b.Title.X, b.Title.Y)
	r.pdf.CellFormat(b.Title.Width, b.Title.Height, r.tr(s.Title), "", 0, "LM", false, 0, "")
	r.bullets(s.Bullets, b.Body, s.HasMedia())
}

// bullets shrinks the font until the wrapped lines fit the box.
func (r *pdfRenderer) bullets(items []string, box projector.Abs, beside bool) {
	size := 20.0
	if beside {
		size = 18
	}
	var lines []string
	for ; size >= 9; size-- {
		r.pdf.SetFont("Helvetica", "", r.pt(size))
		lines = lines[:0]
		for _, b := range items {
			if strings.TrimSpace(b) == "" {
				continue
			}
			for i, ln := range r.pdf.SplitLines([]byte(r.tr(b)), box.Width-r.pt(size)) {
				prefix := "    "
				if i == 0 {
					prefix = r.tr("• ")
				}
				lines = append(lines, prefix+string(ln))
			}
		}
		if float64(len(lines))*r.pt(size)*1.3 <= box.Height {
			break
		}
	}
	r.color(colDark)
	lh := r.pt(size) * 1.3
	y := box.Y
	for _, ln := range lines {
		if y+lh > box.Y+box.Height+0.5 {
			break
		}
		r.pdf.SetXY(box.X, y)
		r.pdf.CellFormat(box.Width, lh, ln, "", 0, "LM", false, 0, "")
		y += lh
	}
}

func (r *pdfRenderer) media(s deck.Slide, box projector.Abs) {
	if s.Video != nil {
		r.pdf.SetFillColor(colVideo.r, colVideo.g, colVideo.b)
		r.pdf.Rect(box.X, box.Y, box.Width, box.Height, "F")
		label := "Video"
		if s.Video.Name != "" {
			label += ": " + s.Video.Name
		}
		r.pdf.SetFont("Helvetica", "", r.pt(14))
		r.pdf.SetTextColor(255, 255, 255)
		r.pdf.SetXY(box.X, box.Y)
		r.pdf.CellFormat(box.Width, box.Height, r.tr(label), "", 0, "CM", false, 0, "")
		return
	}
	cells := mediaCells(box, len(s.Images))
	for i, im := range s.Images {
		if err := r.image(im, cells[i]); err != nil {
			r.log.Warn("image skipped", slog.String("slide", s.ID), slog.Int("index", i), slog.Any("err", err))
			r.pdf.SetDrawColor(colFrame.r, colFrame.g, colFrame.b)
			r.pdf.Rect(cells[i].X, cells[i].Y, cells[i].Width, cells[i].Height, "D")
		}
	}
}

func (r *pdfRenderer) image(im deck.Image, cell projector.Abs) error {
	data, kind, cfg, err := pdfImage(im.Data)
	if err != nil {
		return err
	}
	r.images++
	name := fmt.Sprintf("img%d", r.images)
	opts := gofpdf.ImageOptions{ImageType: kind}
	r.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if err := r.pdf.Error(); err != nil {
		r.pdf.ClearError()
		return err
	}
	fit := projector.Contain(cfg.Width, cfg.Height, cell)
	r.pdf.ImageOptions(name, fit.X, fit.Y, fit.Width, fit.Height, false, opts, 0, "")
	return nil
}

func (r *pdfRenderer) notesPage(s deck.Slide) {
	r.pdf.AddPage()
	mx := r.f.Width * 0.05
	r.pdf.SetFont("Helvetica", "B", r.pt(20))
	r.color(colMuted)
	r.pdf.SetXY(mx, r.f.Height*0.05)
	r.pdf.CellFormat(r.f.Width-2*mx, r.f.Height*0.15, r.tr("Notes: "+s.Title), "", 0, "LM", false, 0, "")
	r.pdf.SetFont("Helvetica", "", r.pt(14))
	r.color(colDark)
	r.pdf.SetXY(mx, r.f.Height*0.25)
	r.pdf.MultiCell(r.f.Width-2*mx, r.pt(14)*1.4, r.tr(s.Notes()), "", "L", false)
}
