/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestConsoleLineLayout(t *testing.T) {
	var buf bytes.Buffer
	h := newConsoleHandler(&buf, slog.LevelWarn, false)
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info passes a warn handler")
	}

	l := slog.New(h).With(slog.String("app", "deckwriter"), slog.String("component", "server"))
	l.WithGroup("req").Error("failed", slog.Int("status", 500), slog.String("path", "/api/x y"),
		slog.Any("err", errors.New("boom")))

	out := strings.TrimSuffix(buf.String(), "\n")
	parts := strings.SplitN(out, " ", 2)
	if _, err := time.Parse("15:04:05.000", parts[0]); err != nil {
		t.Fatalf("timestamp %q: %v", parts[0], err)
	}
	want := `ERR [server] failed req.status=500 req.path="/api/x y" req.err=boom`
	if parts[1] != want {
		t.Fatalf("line\n got %q\nwant %q", parts[1], want)
	}
	if strings.Contains(out, "app=") {
		t.Fatalf("app should stay off the console: %q", out)
	}
}

func TestConsoleValuesAndSource(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(newConsoleHandler(&buf, slog.LevelDebug, true))
	l.Debug("tick", slog.Float64("pi", 3.14), slog.Bool("ok", true), slog.String("empty", ""),
		slog.Group("size", slog.Int("w", 1280), slog.Int("h", 720)))

	out := buf.String()
	for _, s := range []string{" DBG tick", "pi=3.14", "ok=true", `empty=""`, "size.w=1280", "size.h=720", "src=console_test.go:"} {
		if !strings.Contains(out, s) {
			t.Fatalf("missing %q in %q", s, out)
		}
	}
}

func TestLevelTag(t *testing.T) {
	if levelTag(slog.LevelDebug-4) != "DBG" || levelTag(slog.LevelInfo+2) != "INF" || levelTag(slog.LevelError+4) != "ERR" {
		t.Fatal("level tags")
	}
}
