/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"deckwriter/internal/deck"
	"deckwriter/internal/geometry"
)

func sampleDeck() deck.Document {
	return deck.Document{
		Title: "Quarterly Review",
		Topics: []deck.Topic{{
			ID:    "t1",
			Title: "Numbers",
			Slides: []deck.Slide{{
				ID:          "s1",
				Title:       "Revenue",
				Bullets:     []string{"up 12%"},
				Images:      []deck.Image{{Data: []byte{0x89, 'P', 'N', 'G'}, MimeType: "image/png"}},
				MediaRegion: &geometry.Rect{X: 50, Y: 10, Width: 40, Height: 60},
			}},
		}},
	}
}

func TestInitDeckCreatesStructureAndManifest(t *testing.T) {
	root := t.TempDir()
	h, err := InitDeck(root, sampleDeck())
	if err != nil {
		t.Fatalf("InitDeck error: %v", err)
	}
	b, err := os.ReadFile(h.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var got deck.Document
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if got.Title != "Quarterly Review" || string(got.Topics[0].Slides[0].Images[0].Data) != "\x89PNG" {
		t.Fatalf("manifest mismatch: %+v", got)
	}
	for _, d := range []string{AssetsDirName, ExportsDirName, BackupsDirName} {
		if fi, err := os.Stat(filepath.Join(root, d)); err != nil || !fi.IsDir() {
			t.Fatalf("expected directory %s to exist", d)
		}
	}
	if err := ValidateManifest(b); err != nil {
		t.Fatalf("written manifest fails schema: %v", err)
	}
}

func TestSaveCreatesTimestampedBackup(t *testing.T) {
	root := t.TempDir()
	h, err := InitDeck(root, sampleDeck())
	if err != nil {
		t.Fatalf("InitDeck error: %v", err)
	}
	h.Doc.Title = "changed"
	if err := Save(h); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	cands, err := backupCandidates(root)
	if err != nil || len(cands) == 0 {
		t.Fatalf("expected a backup, got %v err=%v", cands, err)
	}
}

func TestOpenFallsBackToLatestBackupOnCorruption(t *testing.T) {
	root := t.TempDir()
	h, err := InitDeck(root, sampleDeck())
	if err != nil {
		t.Fatalf("InitDeck error: %v", err)
	}
	if err := Save(h); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := os.WriteFile(h.ManifestPath, []byte("{ this is not json"), 0o644); err != nil {
		t.Fatalf("corrupt manifest: %v", err)
	}
	opened, err := Open(root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if !opened.Recovered || opened.Doc.Title != "Quarterly Review" {
		t.Fatalf("opened = %+v", opened)
	}
}

func TestOpenRejectsSchemaViolation(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ManifestFileName), []byte(`{"title": 3, "topics": []}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(root); err == nil {
		t.Fatalf("expected error for invalid manifest without backups")
	}
	bad := `{"title":"x","topics":[{"id":"t","title":"t","slides":[{"id":"s","title":"s","bullets":[],"textRegion":{"x":-1,"y":0,"width":10,"height":10}}]}]}`
	if err := ValidateManifest([]byte(bad)); !errors.Is(err, ErrInvalidManifest) {
		t.Fatalf("err = %v", err)
	}
}

func TestSaveAsAndOutlineIO(t *testing.T) {
	root := t.TempDir()
	h, err := InitDeck(root, deck.Document{Title: "Orig"})
	if err != nil {
		t.Fatalf("InitDeck: %v", err)
	}
	h.Doc.Title = "Renamed"
	newRoot := filepath.Join(root, "copy")
	if err := SaveAs(h, newRoot); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	if h.Root != newRoot || h.ManifestPath != filepath.Join(newRoot, ManifestFileName) {
		t.Fatalf("handle paths not updated: %+v", h)
	}
	reopened, err := Open(newRoot)
	if err != nil || reopened.Doc.Title != "Renamed" {
		t.Fatalf("reopen: %+v err=%v", reopened, err)
	}

	txt, err := ReadOutline(h)
	if err != nil || txt != "" {
		t.Fatalf("expected empty outline, got %q err=%v", txt, err)
	}
	content := "# Intro\n- Welcome\n"
	if err := WriteOutline(h, content); err != nil {
		t.Fatalf("WriteOutline: %v", err)
	}
	if txt, err = ReadOutline(h); err != nil || txt != content {
		t.Fatalf("ReadOutline mismatch: %q err=%v", txt, err)
	}
}

func TestAutosaveCrashSnapshotWritesFile(t *testing.T) {
	root := t.TempDir()
	h, err := InitDeck(root, sampleDeck())
	if err != nil {
		t.Fatalf("InitDeck error: %v", err)
	}
	h.Doc.Title = "unsaved edit"
	path, err := AutosaveCrashSnapshot(h)
	if err != nil {
		t.Fatalf("AutosaveCrashSnapshot error: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if !strings.Contains(string(b), "unsaved edit") {
		t.Fatalf("snapshot missing in-memory state")
	}
	// the manifest itself is untouched
	if d, _ := readManifest(h.ManifestPath); d.Title != "Quarterly Review" {
		t.Fatalf("manifest overwritten: %q", d.Title)
	}
}

func TestPruneBackups(t *testing.T) {
	root := t.TempDir()
	h, err := InitDeck(root, sampleDeck())
	if err != nil {
		t.Fatal(err)
	}
	bdir := filepath.Join(root, BackupsDirName)
	for _, stamp := range []string{"20240101-000000", "20240102-000000", "20240103-000000"} {
		_ = os.WriteFile(filepath.Join(bdir, ManifestFileName+"."+stamp+".bak"), []byte("{}"), 0o644)
	}
	n, err := PruneBackups(h, 1)
	if err != nil || n != 2 {
		t.Fatalf("PruneBackups = %d, %v", n, err)
	}
	left, _ := backupCandidates(root)
	if len(left) != 1 || !strings.Contains(left[0], "20240103") {
		t.Fatalf("left = %v", left)
	}
}
