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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"deckwriter/internal/deck"
	applog "deckwriter/internal/log"
	"deckwriter/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

// schemaVersion tracks the library schema. Bump it together with a new migration step.
const schemaVersion = 2

// tsLayout is fixed width so saved_at sorts lexicographically.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

const upsertProjectSQL = `INSERT INTO projects(id, name, saved_at, payload) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, saved_at = excluded.saved_at, payload = excluded.payload`

const selectProjectByNameSQL = `SELECT id FROM projects WHERE name = ?`

const selectPayloadSQL = `SELECT payload FROM projects WHERE id = ?`

const listProjectsSQL = `SELECT id, name, saved_at FROM projects ORDER BY saved_at DESC, name`

const deleteDocumentsSQL = `DELETE FROM documents WHERE project_id = ?`

const deleteProjectSQL = `DELETE FROM projects WHERE id = ?`

const insertDocumentSQL = `INSERT INTO documents(project_id, path, text) VALUES (?, ?, ?)`

const searchSQL = `SELECT d.project_id, p.name, d.path, COALESCE(snippet(fts_documents, 0, '[', ']', '…', 10), '')
FROM fts_documents
JOIN documents d ON fts_documents.rowid = d.doc_id
JOIN projects p ON p.id = d.project_id
WHERE fts_documents MATCH ?
ORDER BY rank
LIMIT ?`

// SQLite keeps the library in one database file with an FTS5 index over slide text.
type SQLite struct {
	Path string
	db   *sql.DB
	now  func() time.Time
	log  *slog.Logger
}

// OpenSQLite opens or creates the library database, enables WAL mode and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	l := applog.WithOperation(applog.WithComponent("repository"), "sqlite_open").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// embedded usage: one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureLibrarySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	l.Info("library ready")
	return &SQLite{Path: path, db: db, now: time.Now, log: applog.WithComponent("repository").With(slog.String("driver", "sqlite"))}, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fresh database starts at schema 1 and migrates forward
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureLibrarySchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id       TEXT PRIMARY KEY,
			name     TEXT NOT NULL UNIQUE,
			saved_at TEXT NOT NULL,
			payload  BLOB NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS documents (
			doc_id     INTEGER PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			path       TEXT NOT NULL,
			text       TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project_id);`,
		// External-content FTS5 so snippet() can read the text back.
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_documents USING fts5(
			text,
			content='documents',
			content_rowid='doc_id',
			tokenize = 'unicode61 remove_diacritics 2'
		);`,
		`CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
			INSERT INTO fts_documents(rowid, text) VALUES (new.doc_id, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
			INSERT INTO fts_documents(fts_documents, rowid, text) VALUES ('delete', old.doc_id, old.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE OF text ON documents BEGIN
			INSERT INTO fts_documents(fts_documents, rowid, text) VALUES ('delete', old.doc_id, old.text);
			INSERT INTO fts_documents(rowid, text) VALUES (new.doc_id, new.text);
		END;`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure library schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{`CREATE INDEX IF NOT EXISTS idx_projects_saved_at ON projects(saved_at);`}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// SchemaVersion reports the schema recorded in the version table.
func (s *SQLite) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v)
	return v, err
}

func (s *SQLite) Save(ctx context.Context, name string, doc deck.Document) (string, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal deck: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	switch err := tx.QueryRowContext(ctx, selectProjectByNameSQL, name).Scan(&id); {
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.NewString()
	case err != nil:
		return "", fmt.Errorf("lookup project: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsertProjectSQL, id, name, s.now().UTC().Format(tsLayout), payload); err != nil {
		return "", fmt.Errorf("upsert project: %w", err)
	}
	if _, err := tx.ExecContext(ctx, deleteDocumentsSQL, id); err != nil {
		return "", fmt.Errorf("clear documents: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, insertDocumentSQL)
	if err != nil {
		return "", fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for _, r := range searchRows(doc) {
		if _, err := ins.ExecContext(ctx, id, r[0], r[1]); err != nil {
			return "", fmt.Errorf("insert document: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	s.log.Info("project saved", slog.String("id", id), slog.String("name", name))
	return id, nil
}

func (s *SQLite) Load(ctx context.Context, id string) (deck.Document, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, selectPayloadSQL, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return deck.Document{}, ErrNotFound
	}
	if err != nil {
		return deck.Document{}, fmt.Errorf("load project: %w", err)
	}
	var d deck.Document
	if err := json.Unmarshal(payload, &d); err != nil {
		return deck.Document{}, fmt.Errorf("decode project: %w", err)
	}
	return d, nil
}

func (s *SQLite) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, listProjectsSQL)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	out := []Entry{}
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&e.ID, &e.Name, &ts); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.SavedAt, _ = time.Parse(tsLayout, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, deleteDocumentsSQL, id); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	res, err := tx.ExecContext(ctx, deleteProjectSQL, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// Search runs an FTS5 query (terms, "phrases", AND/OR/NOT) over titles, bullets and notes.
func (s *SQLite) Search(ctx context.Context, text string, limit int) ([]Hit, error) {
	if strings.TrimSpace(text) == "" {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, searchSQL, text, limit)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	out := []Hit{}
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ProjectID, &h.Name, &h.Path, &h.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error { return s.db.Close() }
