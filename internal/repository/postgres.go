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
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"deckwriter/internal/deck"
	applog "deckwriter/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Postgres stores decks as JSONB with a tsvector index over their text.
type Postgres struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenPostgres connects through pgx, pings and applies embedded migrations.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	l := applog.WithComponent("repository").With(slog.String("driver", "postgres"))
	if err := applyMigrations(pctx, db, l); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Postgres{db: db, log: l}, nil
}

// DB exposes the pool for readiness probes.
func (p *Postgres) DB() *sql.DB { return p.db }

// applyMigrations applies embedded SQL migrations in filename order.
func applyMigrations(ctx context.Context, db *sql.DB, l *slog.Logger) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(b)) == "" {
			continue
		}
		l.Info("applying migration", slog.String("file", fname))
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES (, )`, version, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", fname, err)
		}
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	parts := strings.SplitN(base, "_", 2)
	if len(parts) < 2 {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}

func (p *Postgres) Save(ctx context.Context, name string, doc deck.Document) (string, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal deck: %w", err)
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()
	var id string
	err = tx.QueryRowContext(ctx, `INSERT INTO decks(id, name, saved_at, payload) VALUES (, , now(), )
		ON CONFLICT (name) DO UPDATE SET saved_at = now(), payload = EXCLUDED.payload
		RETURNING id::text`, uuid.NewString(), name, string(payload)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert deck: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM deck_documents WHERE deck_id = `, id); err != nil {
		return "", fmt.Errorf("clear documents: %w", err)
	}
	for _, r := range searchRows(doc) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO deck_documents(deck_id, path, raw_text) VALUES (, , )`, id, r[0], r[1]); err != nil {
			return "", fmt.Errorf("insert document: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	p.log.Info("project saved", slog.String("id", id), slog.String("name", name))
	return id, nil
}

func (p *Postgres) Load(ctx context.Context, id string) (deck.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return deck.Document{}, ErrNotFound
	}
	var payload []byte
	err := p.db.QueryRowContext(ctx, `SELECT payload FROM decks WHERE id = `, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return deck.Document{}, ErrNotFound
	}
	if err != nil {
		return deck.Document{}, fmt.Errorf("load deck: %w", err)
	}
	var d deck.Document
	if err := json.Unmarshal(payload, &d); err != nil {
		return deck.Document{}, fmt.Errorf("decode deck: %w", err)
	}
	return d, nil
}

func (p *Postgres) List(ctx context.Context) ([]Entry, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, name, saved_at FROM decks ORDER BY saved_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Name, &e.SavedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM decks WHERE id = `, id)
	if err != nil {
		return fmt.Errorf("delete deck: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Search matches plain terms with plainto_tsquery and highlights with ts_headline.
func (p *Postgres) Search(ctx context.Context, text string, limit int) ([]Hit, error) {
	if strings.TrimSpace(text) == "" {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `SELECT d.deck_id::text, k.name, d.path,
			COALESCE(ts_headline('simple', d.raw_text, plainto_tsquery('simple', ), 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=12'), '')
		FROM deck_documents d JOIN decks k ON k.id = d.deck_id
		WHERE d.search_vector @@ plainto_tsquery('simple', )
		ORDER BY ts_rank(d.search_vector, plainto_tsquery('simple', )) DESC, d.id
		LIMIT `, text, limit)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
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

func (p *Postgres) Close() error { return p.db.Close() }
