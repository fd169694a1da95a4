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
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"deckwriter/internal/deck"
	applog "deckwriter/internal/log"
)

const (
	ManifestFileName = "deck.json"
	OutlineFileName  = "outline.md"
	BackupsDirName   = "backups"
	AssetsDirName    = "assets"
	ExportsDirName   = "exports"
)

// Standard subfolders of a deck folder.
var standardSubDirs = []string{
	AssetsDirName,
	ExportsDirName,
	BackupsDirName,
}

// Handle keeps track of a deck folder loaded/saved from disk.
// Root is the directory containing deck.json and subfolders.
// Doc holds the in-memory representation of the manifest.
type Handle struct {
	Root         string
	ManifestPath string
	Doc          deck.Document
	// Recovered is set when Open had to fall back to a backup.
	Recovered bool
}

// InitDeck creates a new deck directory at root (creating it if it doesn't exist),
// scaffolds the standard subfolders, and writes the given manifest file transactionally.
func InitDeck(root string, doc deck.Document) (*Handle, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := scaffold(root); err != nil {
		return nil, err
	}
	h := &Handle{
		Root:         root,
		ManifestPath: filepath.Join(root, ManifestFileName),
		Doc:          doc,
	}
	if err := Save(h); err != nil {
		return nil, err
	}
	applog.WithComponent("storage").Info("deck initialised", slog.String("root", root))
	return h, nil
}

func scaffold(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create deck root: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	return nil
}

// Open loads an existing deck from the given root directory.
// If the current manifest cannot be read, parsed or validated, it will attempt the latest backup.
func Open(root string) (*Handle, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(slog.String("root", root))
	mpath := filepath.Join(root, ManifestFileName)
	doc, err := readManifest(mpath)
	if err == nil {
		return &Handle{Root: root, ManifestPath: mpath, Doc: doc}, nil
	}
	l.Warn("manifest unusable, trying backup", slog.Any("err", err))
	bdoc, berr := openFromLatestBackup(root)
	if berr != nil {
		return nil, fmt.Errorf("open manifest: %w; backup attempt: %v", err, berr)
	}
	l.Info("recovered from backup")
	return &Handle{Root: root, ManifestPath: mpath, Doc: *bdoc, Recovered: true}, nil
}

func readManifest(path string) (deck.Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return deck.Document{}, err
	}
	return decodeManifest(b)
}

func decodeManifest(b []byte) (deck.Document, error) {
	if err := ValidateManifest(b); err != nil {
		return deck.Document{}, err
	}
	var d deck.Document
	if err := json.Unmarshal(b, &d); err != nil {
		return deck.Document{}, fmt.Errorf("parse manifest: %w", err)
	}
	return d, nil
}

// Save writes h.Doc to disk with transactional semantics
// and a timestamped backup of the previous manifest (if present).
func Save(h *Handle) error {
	if h == nil {
		return errors.New("nil Handle")
	}
	if h.Root == "" || h.ManifestPath == "" {
		return errors.New("invalid Handle: missing paths")
	}
	doc := h.Doc
	if doc.Topics == nil {
		doc.Topics = []deck.Topic{}
	}
	// Marshal in human-readable form
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')

	bdir := filepath.Join(h.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}

	// If a current manifest exists, copy it to a timestamped backup before replacing
	if _, statErr := os.Stat(h.ManifestPath); statErr == nil {
		bpath := filepath.Join(bdir, backupName(time.Now()))
		if cerr := copyFile(h.ManifestPath, bpath); cerr != nil {
			return fmt.Errorf("backup current manifest: %w", cerr)
		}
	}
	return replaceFile(h.ManifestPath, data)
}

func backupName(ts time.Time) string {
	return fmt.Sprintf("%s.%s.bak", ManifestFileName, ts.Format("20060102-150405"))
}

// replaceFile writes to a temp file in the same directory, then renames over target.
func replaceFile(target string, data []byte) error {
	dir := filepath.Dir(target)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(target), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp file: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(target); err == nil {
		_ = os.Remove(target)
	}
	if rerr := os.Rename(temp, target); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace %s: %w", filepath.Base(target), rerr)
	}
	return nil
}

// SaveAs writes the manifest to a new root folder, scaffolding structure if needed, and updates the handle.
func SaveAs(h *Handle, newRoot string) error {
	if h == nil {
		return errors.New("nil Handle")
	}
	if newRoot == "" {
		return errors.New("new root is empty")
	}
	if err := scaffold(newRoot); err != nil {
		return err
	}
	h.Root = newRoot
	h.ManifestPath = filepath.Join(newRoot, ManifestFileName)
	return Save(h)
}

// PruneBackups keeps the newest keep manifest backups and removes the rest.
func PruneBackups(h *Handle, keep int) (int, error) {
	if h == nil {
		return 0, errors.New("nil Handle")
	}
	cands, err := backupCandidates(h.Root)
	if err != nil || len(cands) <= keep {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	removed := 0
	for _, p := range cands[:len(cands)-keep] {
		if err := os.Remove(p); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// OutlinePath returns the location of the deck's plain-text outline.
func OutlinePath(h *Handle) string { return filepath.Join(h.Root, OutlineFileName) }

// ReadOutline returns the outline text, or "" when none was written yet.
func ReadOutline(h *Handle) (string, error) {
	b, err := os.ReadFile(OutlinePath(h))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteOutline replaces the outline text transactionally.
func WriteOutline(h *Handle, text string) error {
	return replaceFile(OutlinePath(h), []byte(text))
}

// AutosaveCrashSnapshot writes the in-memory deck next to the backups without touching deck.json.
func AutosaveCrashSnapshot(h *Handle) (string, error) {
	if h == nil || h.Root == "" {
		return "", errors.New("nil Handle")
	}
	bdir := filepath.Join(h.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	data, err := json.MarshalIndent(h.Doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	p := filepath.Join(bdir, fmt.Sprintf("%s.crash-%s.json", ManifestFileName, time.Now().Format("20060102-150405")))
	if err := writeFileSync(p, append(data, '\n')); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return p, nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

func backupCandidates(root string) ([]string, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, ManifestFileName+".") && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out, nil
}

// openFromLatestBackup walks backups newest first and returns the first usable one.
func openFromLatestBackup(root string) (*deck.Document, error) {
	cands, err := backupCandidates(root)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return nil, errors.New("no backups found")
	}
	var lastErr error
	for i := len(cands) - 1; i >= 0; i-- {
		d, err := readManifest(cands[i])
		if err == nil {
			return &d, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no usable backup: %w", lastErr)
}
