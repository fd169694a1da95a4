/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a crash report plus an autosave of the open deck.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"deckwriter/internal/deck"
	applog "deckwriter/internal/log"
	"deckwriter/internal/storage"
	"deckwriter/internal/telemetry"
	"deckwriter/internal/version"
)

// exitFn is swapped in tests.
var exitFn = os.Exit

// Target is what Recover saves. Both fields are optional.
type Target struct {
	Handle *storage.Handle
	// Live returns the current in-memory document, usually Store.Document.
	Live func() deck.Document
}

// Recover captures a panic, logs it with the stack, writes a report next to the
// deck backups, autosaves the live deck and exits with code 2.
//
// Usage: defer crash.Recover(crash.Target{Handle: h, Live: store.Document})
func Recover(t Target) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, report, err := writeReport(t.Handle, r, stack)
	if err != nil {
		l.Error("crash report not written", slog.Any("err", err))
	}
	if path, ok := autosave(t, l); ok {
		l.Info("autosave crash snapshot written", slog.String("path", path))
	}
	telemetry.Default().UploadCrash(report)

	_, _ = fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
	_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

func autosave(t Target, l *slog.Logger) (path string, ok bool) {
	if t.Handle == nil {
		return "", false
	}
	// the live document may be what panicked
	defer func() {
		if r := recover(); r != nil {
			l.Error("autosave crash snapshot panicked", slog.Any("panic", r))
			ok = false
		}
	}()
	if t.Live != nil {
		t.Handle.Doc = t.Live()
	}
	path, err := storage.AutosaveCrashSnapshot(t.Handle)
	if err != nil {
		l.Error("autosave crash snapshot failed", slog.Any("err", err))
		return "", false
	}
	return path, true
}

func writeReport(h *storage.Handle, panicVal any, stack []byte) (string, []byte, error) {
	dir := os.TempDir()
	if h != nil && h.Root != "" {
		dir = filepath.Join(h.Root, storage.BackupsDirName)
		_ = os.MkdirAll(dir, 0o755)
	}
	now := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", now.Format("20060102-150405")))

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "deckwriter crash report\n")
	fmt.Fprintf(&buf, "Timestamp: %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&buf, "Version: %s\n", version.String())
	fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if h != nil {
		fmt.Fprintf(&buf, "Deck: %s\n", h.Root)
		fmt.Fprintf(&buf, "Manifest: %s\n", h.ManifestPath)
		fmt.Fprintf(&buf, "Slides: %d\n", h.Doc.SlideCount())
	}
	fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	fmt.Fprintf(&buf, "Stack:\n%s\n", stack)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, buf.Bytes(), err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return path, buf.Bytes(), err
	}
	_ = f.Sync()
	return path, buf.Bytes(), f.Close()
}
