/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"deckwriter/internal/deck"
	applog "deckwriter/internal/log"
	"deckwriter/internal/storage"
)

const entryFileName = "entry.json"

// Files keeps one deck folder per project under Root: <root>/<id>/deck.json plus entry.json.
type Files struct {
	Root string

	mu  sync.Mutex
	now func() time.Time
	log *slog.Logger
}

// NewFiles creates the library directory if needed.
func NewFiles(root string) (*Files, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("library root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create library: %w", err)
	}
	return &Files{Root: root, now: time.Now, log: applog.WithComponent("repository").With(slog.String("driver", "files"))}, nil
}

func (f *Files) Save(ctx context.Context, name string, doc deck.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.scan()
	if err != nil {
		return "", err
	}
	id := ""
	for _, e := range entries {
		if e.Name == name {
			id = e.ID
			break
		}
	}
	dir := ""
	if id == "" {
		id = uuid.NewString()
		dir = filepath.Join(f.Root, id)
		if _, err := storage.InitDeck(dir, doc); err != nil {
			return "", err
		}
	} else {
		dir = filepath.Join(f.Root, id)
		h := &storage.Handle{Root: dir, ManifestPath: filepath.Join(dir, storage.ManifestFileName), Doc: doc}
		if err := storage.Save(h); err != nil {
			return "", err
		}
		// keep a short history per project
		if _, err := storage.PruneBackups(h, 5); err != nil {
			f.log.Warn("prune backups failed", slog.String("id", id), slog.Any("err", err))
		}
	}
	e := Entry{ID: id, Name: name, SavedAt: f.now().UTC()}
	b, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, entryFileName), b, 0o644); err != nil {
		return "", fmt.Errorf("write entry: %w", err)
	}
	f.log.Info("project saved", slog.String("id", id), slog.String("name", name))
	return id, nil
}

func (f *Files) Load(ctx context.Context, id string) (deck.Document, error) {
	if err := ctx.Err(); err != nil {
		return deck.Document{}, err
	}
	dir, err := f.dir(id)
	if err != nil {
		return deck.Document{}, err
	}
	h, err := storage.Open(dir)
	if err != nil {
		return deck.Document{}, err
	}
	return h.Doc, nil
}

func (f *Files) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out, err := f.scan()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SavedAt.After(out[j].SavedAt) })
	return out, nil
}

func (f *Files) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	dir, err := f.dir(id)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

func (f *Files) Close() error { return nil }

// dir resolves an id to its folder. Ids are uuids; anything with a path separator is rejected.
func (f *Files) dir(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\.`) {
		return "", ErrNotFound
	}
	d := filepath.Join(f.Root, id)
	if _, err := os.Stat(filepath.Join(d, entryFileName)); err != nil {
		return "", ErrNotFound
	}
	return d, nil
}

func (f *Files) scan() ([]Entry, error) {
	ents, err := os.ReadDir(f.Root)
	if err != nil {
		return nil, fmt.Errorf("read library: %w", err)
	}
	out := make([]Entry, 0, len(ents))
	for _, de := range ents {
		if !de.IsDir() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(f.Root, de.Name(), entryFileName))
		if err != nil {
			continue
		}
		var e Entry
		if err := json.Unmarshal(b, &e); err != nil || e.ID == "" {
			f.log.Warn("skipping unreadable entry", slog.String("dir", de.Name()))
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
