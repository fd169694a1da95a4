/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"deckwriter/internal/deck"
	"deckwriter/internal/storage"
)

func TestWriteReportInTemp(t *testing.T) {
	path, report, err := writeReport(nil, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport: %v", err)
	}
	defer os.Remove(path)
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if string(b) != string(report) {
		t.Fatalf("returned report differs from file")
	}
	if !strings.Contains(string(b), "deckwriter crash report") || !strings.Contains(string(b), "Panic: boom") {
		t.Fatalf("report content: %s", b)
	}
}

func TestRecoverWritesReportAndLiveSnapshot(t *testing.T) {
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	defer func() {
		_ = w.Close()
		os.Stderr = oldStderr
		_, _ = io.Copy(io.Discard, r)
	}()

	code := 0
	oldExit := exitFn
	exitFn = func(c int) { code = c }
	defer func() { exitFn = oldExit }()

	root := t.TempDir()
	h, err := storage.InitDeck(root, deck.Document{Title: "On disk"})
	if err != nil {
		t.Fatalf("InitDeck: %v", err)
	}
	store := deck.NewStore()
	store.SetTitle("In memory")

	func() {
		defer Recover(Target{Handle: h, Live: store.Document})
		panic("boom")
	}()

	if code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	reports, _ := filepath.Glob(filepath.Join(root, storage.BackupsDirName, "crash-*.log"))
	if len(reports) != 1 {
		t.Fatalf("reports = %v", reports)
	}
	snaps, _ := filepath.Glob(filepath.Join(root, storage.BackupsDirName, storage.ManifestFileName+".crash-*.json"))
	if len(snaps) != 1 {
		t.Fatalf("snapshots = %v", snaps)
	}
	b, _ := os.ReadFile(snaps[0])
	if !strings.Contains(string(b), "In memory") {
		t.Fatalf("snapshot does not hold the live deck: %s", b)
	}
}

func TestRecoverWithoutPanicIsNoop(t *testing.T) {
	called := false
	oldExit := exitFn
	exitFn = func(int) { called = true }
	defer func() { exitFn = oldExit }()
	func() {
		defer Recover(Target{})
	}()
	if called {
		t.Fatalf("exit called without panic")
	}
}
