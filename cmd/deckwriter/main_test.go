/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"deckwriter/internal/config"
	"deckwriter/internal/generate"
	applog "deckwriter/internal/log"
	"deckwriter/internal/storage"
)

func newTestCLI(t *testing.T) (*cli, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	cfg := config.Defaults()
	cfg.Repository.Driver = "sqlite"
	cfg.Repository.Path = filepath.Join(t.TempDir(), "library.db")
	c := &cli{
		cfg:          cfg,
		out:          &out,
		log:          applog.WithComponent("cli"),
		handle:       &storage.Handle{},
		newGenerator: func() (generate.Generator, error) { return generate.NewOffline(), nil },
	}
	return c, &out
}

func mustRun(t *testing.T, c *cli, args ...string) {
	t.Helper()
	if err := c.run(context.Background(), args); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
}

func TestDeckWorkflow(t *testing.T) {
	c, out := newTestCLI(t)
	dir := filepath.Join(t.TempDir(), "plants")

	mustRun(t, c, "init", dir, "Plants")
	mustRun(t, c, "outline", dir, "# Soil\n- Compost\n- Mulch\n# Water\n- Rain")

	h, err := storage.Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if h.Doc.Title != "Plants" || len(h.Doc.Topics) != 2 || h.Doc.SlideCount() != 3 {
		t.Fatalf("outline not saved: %+v", h.Doc)
	}
	compost := h.Doc.Topics[0].Slides[0].ID

	mustRun(t, c, "draft", dir, compost)
	mustRun(t, c, "notes", dir, compost)
	mustRun(t, c, "image", dir, compost, "compost heap")
	mustRun(t, c, "edit-image", dir, compost, "0", "90", "grayscale")

	out.Reset()
	mustRun(t, c, "gesture", dir, compost, "media", "resize:br", "-128", "-72")
	if got := strings.TrimSpace(out.String()); got != "media: x=52.5 y=0 w=35 h=90" {
		t.Fatalf("gesture output %q", got)
	}

	h, _ = storage.Open(dir)
	sl := h.Doc.Topics[0].Slides[0]
	if len(sl.Bullets) != 3 || sl.Notes() == "" || len(sl.Images) != 1 || sl.Images[0].OriginalData == nil {
		t.Fatalf("slide content not saved: bullets=%d notes=%q images=%d", len(sl.Bullets), sl.Notes(), len(sl.Images))
	}
	if sl.MediaRegion == nil || math.Abs(sl.MediaRegion.Width-35) > 1e-6 {
		t.Fatalf("media region %+v", sl.MediaRegion)
	}

	out.Reset()
	mustRun(t, c, "open", dir)
	if !strings.Contains(out.String(), "Compost (3 bullets) [1 image(s)]") {
		t.Fatalf("open output:\n%s", out.String())
	}

	out.Reset()
	mustRun(t, c, "export", dir, "pdf")
	pdf := strings.TrimSpace(out.String())
	if filepath.Base(pdf) != "plants.pdf" {
		t.Fatalf("export wrote %q", pdf)
	}
	if _, err := os.Stat(pdf); err != nil {
		t.Fatalf("pdf missing: %v", err)
	}
}

func TestTopicAndSlideCommands(t *testing.T) {
	c, out := newTestCLI(t)
	dir := filepath.Join(t.TempDir(), "d")
	mustRun(t, c, "init", dir, "D")
	out.Reset()
	mustRun(t, c, "add-topic", dir, "Intro")
	topic := strings.TrimSpace(out.String())
	out.Reset()
	mustRun(t, c, "add-slide", dir, topic, "Hello")
	slide := strings.TrimSpace(out.String())

	if err := c.run(context.Background(), []string{"add-slide", dir, "missing", "x"}); err == nil {
		t.Fatalf("adding to an unknown topic should fail")
	}
	mustRun(t, c, "delete-slide", dir, topic, slide)
	h, _ := storage.Open(dir)
	if h.Doc.SlideCount() != 0 {
		t.Fatalf("slide not deleted")
	}
	if err := c.run(context.Background(), []string{"delete-slide", dir, topic, slide}); err == nil {
		t.Fatalf("deleting twice should fail")
	}
}

func TestRepoCommands(t *testing.T) {
	c, out := newTestCLI(t)
	dir := filepath.Join(t.TempDir(), "garden")
	mustRun(t, c, "init", dir, "Garden")
	mustRun(t, c, "outline", dir, "# Soil\n- Compost")

	out.Reset()
	mustRun(t, c, "repo", "save", dir)
	id := strings.TrimSpace(out.String())
	if id == "" {
		t.Fatalf("no id printed")
	}

	out.Reset()
	mustRun(t, c, "repo", "list")
	if !strings.Contains(out.String(), id) || !strings.Contains(out.String(), "Garden") {
		t.Fatalf("list output %q", out.String())
	}

	out.Reset()
	mustRun(t, c, "search", "compost")
	if !strings.Contains(out.String(), id) {
		t.Fatalf("search output %q", out.String())
	}

	copyDir := filepath.Join(t.TempDir(), "copy")
	mustRun(t, c, "repo", "load", id, copyDir)
	h, err := storage.Open(copyDir)
	if err != nil || h.Doc.Title != "Garden" {
		t.Fatalf("loaded copy: %v %+v", err, h)
	}

	mustRun(t, c, "repo", "delete", id)
	out.Reset()
	mustRun(t, c, "repo", "list")
	if strings.Contains(out.String(), id) {
		t.Fatalf("deleted project still listed")
	}
}

func TestUsageErrors(t *testing.T) {
	c, _ := newTestCLI(t)
	for _, args := range [][]string{nil, {"nope"}, {"init"}, {"gesture", "d", "s"}, {"repo", "frobnicate"}} {
		if err := c.run(context.Background(), args); !errors.Is(err, errUsage) {
			t.Fatalf("%v: err = %v, want usage", args, err)
		}
	}
}
