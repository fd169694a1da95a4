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
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func lastJSONLine(t *testing.T, path string) map[string]any {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &m); err != nil {
		t.Fatalf("decode %q: %v", lines[len(lines)-1], err)
	}
	return m
}

func TestFileSinkCarriesStaticAndLoggerAttrs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dkw.log")
	var console bytes.Buffer
	Init(Options{Level: "debug", File: path, Console: &console})
	t.Cleanup(func() { Init(Options{}) })

	WithOperation(WithComponent("export"), "pdf").Debug("wrote page", slog.Int("page", 3))

	m := lastJSONLine(t, path)
	if m["app"] != "deckwriter" || m["component"] != "export" || m["op"] != "pdf" {
		t.Fatalf("attrs: %v", m)
	}
	if _, ok := m["ver"].(string); !ok {
		t.Fatalf("ver missing: %v", m)
	}
	if m["page"] != float64(3) || m["msg"] != "wrote page" {
		t.Fatalf("record: %v", m)
	}
	if !strings.Contains(console.String(), "[export] wrote page") {
		t.Fatalf("console: %q", console.String())
	}
}

func TestContextAttrsAccumulate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctx.log")
	Init(Options{Format: "json", File: path, Console: io.Discard})
	t.Cleanup(func() { Init(Options{}) })

	ctx := ContextWithDeck(context.Background(), "/tmp/talk")
	ctx = WithAttrs(ctx, slog.String("req", "r-1"))
	L().InfoContext(ctx, "saved")

	m := lastJSONLine(t, path)
	if m["deck"] != "/tmp/talk" || m["req"] != "r-1" {
		t.Fatalf("context attrs: %v", m)
	}
	if got := AttrsFromContext(context.Background()); got != nil {
		t.Fatalf("bare context attrs = %v", got)
	}
	// The parent context is not modified by a later WithAttrs.
	if n := len(AttrsFromContext(ContextWithDeck(context.Background(), "x"))); n != 1 {
		t.Fatalf("attrs = %d", n)
	}
}

func TestSetConsoleRestores(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Console: &buf})
	t.Cleanup(func() { Init(Options{}) })

	restore := SetConsole(io.Discard)
	L().Info("hidden")
	restore()
	L().Info("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("console: %q", out)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("DKW_LOG_LEVEL", "warn")
	t.Setenv("DKW_LOG_FORMAT", "json")
	t.Setenv("DKW_LOG_SOURCE", "yes")
	t.Setenv("DKW_LOG_FILE", "")
	o := FromEnv()
	if o.Level != "warn" || o.Format != "json" || !o.AddSource || o.File != "" {
		t.Fatalf("FromEnv = %+v", o)
	}

	t.Setenv("DKW_LOG_LEVEL", "")
	t.Setenv("DKW_LOG_FORMAT", "")
	t.Setenv("DKW_LOG_SOURCE", "")
	o = FromEnv()
	if o.Level != "info" || o.Format != "console" || o.AddSource {
		t.Fatalf("defaults = %+v", o)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"loud":    slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
