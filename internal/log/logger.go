/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log sets up the process logger: a short console line for people and
// an optional rotated JSON file for tooling. Attributes put on a context with
// WithAttrs are added to every record logged through the *Context methods.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	lj "gopkg.in/natefinch/lumberjack.v2"

	"deckwriter/internal/version"
)

// Options configures Init. FromEnv reads the DKW_LOG_* variables.
type Options struct {
	Level     string // debug, info, warn, error
	Format    string // console or json
	AddSource bool
	File      string // rotated JSON log; empty disables
	// Console receives the human-facing stream. Nil means stderr.
	Console io.Writer
}

var (
	mu      sync.RWMutex
	current *slog.Logger
	active  Options
)

// L returns the process logger. The first call without Init reads the environment.
func L() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l == nil {
		Init(FromEnv())
		mu.RLock()
		l = current
		mu.RUnlock()
	}
	return l
}

// Init installs a logger built from opts as both L() and slog.Default.
func Init(opts Options) {
	l := New(opts)
	mu.Lock()
	current, active = l, opts
	mu.Unlock()
	slog.SetDefault(l)
}

// SetConsole swaps the console writer of the installed logger and returns a
// function that puts the previous one back. The terminal UI passes io.Discard.
func SetConsole(w io.Writer) (restore func()) {
	mu.RLock()
	prev := active
	mu.RUnlock()
	next := prev
	next.Console = w
	Init(next)
	return func() { Init(prev) }
}

// New builds a logger without installing it.
func New(opts Options) *slog.Logger {
	lvl := parseLevel(opts.Level)
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource}

	var sinks []slog.Handler
	if console != io.Discard {
		if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
			sinks = append(sinks, slog.NewJSONHandler(console, hopts))
		} else {
			sinks = append(sinks, newConsoleHandler(console, lvl, opts.AddSource))
		}
	}
	if f := strings.TrimSpace(opts.File); f != "" {
		rot := &lj.Logger{Filename: f, MaxSize: 10, MaxBackups: 3, MaxAge: 28, Compress: true}
		sinks = append(sinks, slog.NewJSONHandler(rot, hopts))
	}

	var h slog.Handler
	switch len(sinks) {
	case 0:
		h = slog.NewTextHandler(io.Discard, hopts)
	case 1:
		h = sinks[0]
	default:
		h = fanout(sinks)
	}
	return slog.New(contextHandler{h}).With(
		slog.String("app", "deckwriter"),
		slog.String("ver", version.Version),
	)
}

// FromEnv reads DKW_LOG_LEVEL, DKW_LOG_FORMAT, DKW_LOG_FILE and DKW_LOG_SOURCE.
func FromEnv() Options {
	o := Options{Level: "info", Format: "console", File: os.Getenv("DKW_LOG_FILE")}
	if v := os.Getenv("DKW_LOG_LEVEL"); v != "" {
		o.Level = v
	}
	if v := os.Getenv("DKW_LOG_FORMAT"); v != "" {
		o.Format = v
	}
	switch strings.ToLower(os.Getenv("DKW_LOG_SOURCE")) {
	case "1", "true", "yes", "on":
		o.AddSource = true
	}
	return o
}

// WithComponent returns L() tagged with component=name.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation tags l with op.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

type ctxAttrsKey struct{}

// WithAttrs returns a context carrying attrs in addition to any already present.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	prev := AttrsFromContext(ctx)
	all := make([]slog.Attr, 0, len(prev)+len(attrs))
	all = append(append(all, prev...), attrs...)
	return context.WithValue(ctx, ctxAttrsKey{}, all)
}

// AttrsFromContext returns the attributes stored by WithAttrs.
func AttrsFromContext(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	a, _ := ctx.Value(ctxAttrsKey{}).([]slog.Attr)
	return a
}

// ContextWithDeck tags records with the deck folder being worked on.
func ContextWithDeck(ctx context.Context, dir string) context.Context {
	return WithAttrs(ctx, slog.String("deck", dir))
}

func parseLevel(s string) slog.Level {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// contextHandler copies context attributes onto each record.
type contextHandler struct{ slog.Handler }

func (c contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if extra := AttrsFromContext(ctx); len(extra) > 0 {
		r = r.Clone()
		r.AddAttrs(extra...)
	}
	return c.Handler.Handle(ctx, r)
}

func (c contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{c.Handler.WithAttrs(attrs)}
}

func (c contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{c.Handler.WithGroup(name)}
}

// fanout sends each record to every sink that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
