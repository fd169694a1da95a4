/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package server exposes a project library over HTTP for remote repositories.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"deckwriter/internal/export"
	applog "deckwriter/internal/log"
	"deckwriter/internal/repository"
	"deckwriter/internal/version"
)

const devSecret = "dev-secret-change-me"

// Options configures a Server.
type Options struct {
	// Secret signs bearer tokens. Empty falls back to an insecure development secret.
	Secret   string
	TokenTTL time.Duration
	// AdminKey must be sent as X-Admin-Key to obtain a token. When empty, tokens
	// are only issued in dev mode, i.e. without a Secret.
	AdminKey string
	// MaxBody bounds request bodies; decks carry media so the default is generous.
	MaxBody int64
}

// Server serves one repository.
type Server struct {
	repo    repository.Repository
	secret  string
	admin   string
	devMode bool
	ttl     time.Duration
	maxBody int64
	router  *mux.Router
	log     *slog.Logger
	now     func() time.Time
}

// New builds the router. The repository stays owned by the caller.
func New(repo repository.Repository, opts Options) *Server {
	s := &Server{
		repo:    repo,
		secret:  opts.Secret,
		admin:   opts.AdminKey,
		ttl:     opts.TokenTTL,
		maxBody: opts.MaxBody,
		log:     applog.WithComponent("server"),
		now:     time.Now,
	}
	if s.secret == "" {
		s.secret = devSecret
		s.devMode = true
		s.log.Warn("DKW_AUTH_SECRET not set; using insecure dev secret")
	}
	switch {
	case s.admin != "":
	case s.devMode:
		s.log.Warn("DKW_ADMIN_KEY not set; dev mode issues tokens to anyone")
	default:
		s.log.Warn("DKW_ADMIN_KEY not set; token issuance disabled")
	}
	if s.ttl <= 0 {
		s.ttl = time.Hour
	}
	if s.maxBody <= 0 {
		s.maxBody = 64 << 20
	}
	s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/token", s.handleToken).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requireAuth)
	api.HandleFunc("/projects", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("/projects", s.handleSave).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}", s.handleLoad).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}", s.handleDelete).Methods(http.MethodDelete)
	api.HandleFunc("/projects/{id}/export.pdf", s.handleExportPDF).Methods(http.MethodGet)
	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	s.router = r
}

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(sctx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := applog.WithAttrs(r.Context(), slog.String("req", id))
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))
		s.log.DebugContext(ctx, "request", slog.String("method", r.Method), slog.String("path", r.URL.Path),
			slog.Int("status", sw.status), slog.Duration("took", time.Since(start)))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := s.repo.List(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("repository not ready"))
		return
	}
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(version.String()))
}

// POST /api/auth/token with optional { "subject": "name", "ttl_seconds": 3600 }.
// Requires X-Admin-Key unless the server runs in dev mode without an admin key.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := s.checkAdmin(r); err != nil {
		s.log.WarnContext(r.Context(), "token refused", slog.Any("err", err))
		status := http.StatusUnauthorized
		if errors.Is(err, errIssuanceDisabled) {
			status = http.StatusForbidden
		}
		writeError(w, status, err)
		return
	}
	var req struct {
		Subject    string `json:"subject"`
		TTLSeconds int64  `json:"ttl_seconds"`
	}
	b, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	_ = json.Unmarshal(b, &req)
	if req.Subject == "" {
		req.Subject = "dev"
	}
	ttl := time.Duration(req.TTLSeconds) * time.Second
	if ttl <= 0 || ttl > s.ttl {
		ttl = s.ttl
	}
	exp := s.now().Add(ttl)
	tok, err := signToken(s.secret, req.Subject, exp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, repository.TokenResponse{Token: tok, ExpiresAt: exp.UTC().Format(time.RFC3339)})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.repo.List(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req repository.SaveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}
	id, err := s.repo.Save(r.Context(), req.Name, req.Document)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.log.InfoContext(r.Context(), "project saved", slog.String("id", id), slog.String("by", Subject(r.Context())))
	writeJSON(w, http.StatusCreated, repository.SaveResponse{ID: id})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	doc, err := s.repo.Load(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, repository.Record{ID: id, Document: doc})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	doc, err := s.repo.Load(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	opts := export.DefaultPDFOptions()
	opts.SpeakerNotes = r.URL.Query().Get("notes") == "1"
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Slug(doc.Title)+".pdf"))
	if err := export.WritePDF(w, doc, opts); err != nil {
		// headers are gone; log only
		s.log.Error("pdf export failed", slog.String("id", id), slog.Any("err", err))
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sr, ok := s.repo.(repository.Searcher)
	if !ok {
		writeError(w, http.StatusNotImplemented, errors.New("repository has no search index"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := sr.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	s.log.Error("repository error", slog.Any("err", err))
	writeError(w, http.StatusInternalServerError, err)
}
