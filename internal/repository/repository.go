/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package repository stores named decks in a library: a folder tree, an embedded
// SQLite database, a Postgres database or a remote deckwriter server.
package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"deckwriter/internal/config"
	"deckwriter/internal/deck"
)

// ErrNotFound is returned for ids that are not in the library.
var ErrNotFound = errors.New("project not found")

// Entry describes one saved project.
type Entry struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	SavedAt time.Time `json:"savedAt"`
}

// Repository persists whole documents under a name.
// Saving a name that already exists replaces that project and keeps its id.
type Repository interface {
	Save(ctx context.Context, name string, doc deck.Document) (string, error)
	Load(ctx context.Context, id string) (deck.Document, error)
	// List returns entries newest first.
	List(ctx context.Context) ([]Entry, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Hit is one full-text match.
type Hit struct {
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	Snippet   string `json:"snippet"`
}

// Searcher is implemented by repositories with a text index.
type Searcher interface {
	Search(ctx context.Context, text string, limit int) ([]Hit, error)
}

// Open builds the repository selected by cfg.Driver.
func Open(ctx context.Context, cfg config.RepositoryConfig, token string) (Repository, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "files":
		p, err := pathOrDefault(cfg.Path, "library")
		if err != nil {
			return nil, err
		}
		return NewFiles(p)
	case "sqlite":
		p, err := pathOrDefault(cfg.Path, "library.db")
		if err != nil {
			return nil, err
		}
		return OpenSQLite(ctx, p)
	case "postgres", "pg":
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, errors.New("postgres repository needs a dsn")
		}
		return OpenPostgres(ctx, cfg.DSN)
	case "remote", "http":
		return NewRemote(cfg.BaseURL, token, RemoteOptions{
			Timeout:     config.Timeout(cfg.TimeoutMs, 15*time.Second),
			TLSInsecure: cfg.TLSInsecure,
		})
	}
	return nil, fmt.Errorf("unknown repository driver %q", cfg.Driver)
}

func pathOrDefault(p, name string) (string, error) {
	if s := strings.TrimSpace(p); s != "" {
		return s, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve library dir: %w", err)
	}
	return filepath.Join(dir, "deckwriter", name), nil
}

// searchRows flattens a document into (path, text) pairs for indexing.
func searchRows(doc deck.Document) [][2]string {
	rows := make([][2]string, 0, 16)
	add := func(path, text string) {
		if t := strings.TrimSpace(text); t != "" {
			rows = append(rows, [2]string{path, t})
		}
	}
	add("deck:title", doc.Title)
	for ti, t := range doc.Topics {
		tp := fmt.Sprintf("topic:%d", ti+1)
		add(tp+"/title", t.Title)
		for si, s := range t.Slides {
			sp := fmt.Sprintf("%s/slide:%d", tp, si+1)
			add(sp+"/title", s.Title)
			add(sp+"/bullets", strings.Join(s.Bullets, "\n"))
			add(sp+"/notes", s.Notes())
		}
	}
	return rows
}
