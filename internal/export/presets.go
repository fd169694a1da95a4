/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"deckwriter/internal/projector"
	"deckwriter/internal/storage"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// ParsePreset accepts web or print.
func ParsePreset(s string) (PresetName, error) {
	switch p := PresetName(strings.ToLower(strings.TrimSpace(s))); p {
	case PresetWeb, PresetPrint:
		return p, nil
	}
	return "", fmt.Errorf("unknown export preset %q", s)
}

// BatchOptions controls batch export.
//
// Path semantics:
//   - If OutDir is empty or relative, it is created under <deck>/exports/<preset>/.
//   - PDF goes to <OutDir>/<slug>.pdf, PNG previews into <OutDir>/png/.
type BatchOptions struct {
	Preset       PresetName
	Formats      []string // pdf, png; empty means preset defaults
	SpeakerNotes bool
	OutDir       string
}

// BatchExport runs exports according to the given preset and returns the written files.
func BatchExport(h *storage.Handle, opt BatchOptions) ([]string, error) {
	if h == nil {
		return nil, errors.New("deck handle is nil")
	}
	if len(h.Doc.Topics) == 0 {
		return nil, ErrEmptyDeck
	}
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}

	baseOut := opt.OutDir
	if baseOut == "" {
		baseOut = string(opt.Preset)
		if baseOut == "" {
			baseOut = "default"
		}
	}
	if !filepath.IsAbs(baseOut) {
		baseOut = filepath.Join(h.Root, storage.ExportsDirName, baseOut)
	}

	var written []string
	for _, f := range formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "pdf":
			out := filepath.Join(baseOut, Slug(h.Doc.Title)+".pdf")
			po := DefaultPDFOptions()
			po.SpeakerNotes = opt.SpeakerNotes
			if err := ExportPDF(h.Doc, out, po); err != nil {
				return written, fmt.Errorf("pdf: %w", err)
			}
			written = append(written, out)
		case "png":
			files, err := ExportPNGs(h.Doc, filepath.Join(baseOut, "png"), presetPNG(opt.Preset))
			written = append(written, files...)
			if err != nil {
				return written, fmt.Errorf("png: %w", err)
			}
		default:
			return written, fmt.Errorf("unknown format: %s", f)
		}
	}
	return written, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{"png"}
	case PresetPrint:
		return []string{"pdf"}
	default:
		return []string{"pdf", "png"}
	}
}

func presetPNG(p PresetName) PNGOptions {
	if p == PresetWeb {
		return PNGOptions{Frame: projector.Preview1280}
	}
	return PNGOptions{Frame: projector.Preview(960, 540)}
}
