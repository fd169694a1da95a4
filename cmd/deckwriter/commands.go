/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"deckwriter/internal/config"
	"deckwriter/internal/deck"
	"deckwriter/internal/export"
	"deckwriter/internal/generate"
	"deckwriter/internal/geometry"
	"deckwriter/internal/gesture"
	"deckwriter/internal/imageedit"
	applog "deckwriter/internal/log"
	"deckwriter/internal/projector"
	"deckwriter/internal/repository"
	"deckwriter/internal/server"
	"deckwriter/internal/storage"
	"deckwriter/internal/telemetry"
	"deckwriter/internal/tui"
	"deckwriter/internal/ui"
	"deckwriter/internal/version"
)

// cli carries what every command needs.
type cli struct {
	cfg    config.AppConfig
	sec    config.Secrets
	out    io.Writer
	log    *slog.Logger
	handle *storage.Handle // shared with crash.Recover

	// newGenerator is swapped in tests.
	newGenerator func() (generate.Generator, error)
}

func need(args []string, n int, what string) error {
	if len(args) < n {
		return fmt.Errorf("%w: %s", errUsage, what)
	}
	return nil
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "version", "--version", "-v":
		fmt.Fprintln(c.out, "deckwriter", version.String())
		return nil
	case "init":
		if err := need(rest, 2, "init <dir> <title>"); err != nil {
			return err
		}
		return c.initDeck(rest[0], rest[1])
	case "open":
		if err := need(rest, 1, "open <dir>"); err != nil {
			return err
		}
		return c.open(rest[0])
	case "outline":
		if err := need(rest, 2, "outline <dir> <prompt> [ref files...]"); err != nil {
			return err
		}
		return c.outline(ctx, rest[0], rest[1], rest[2:])
	case "draft":
		if err := need(rest, 2, "draft <dir> <slideID>"); err != nil {
			return err
		}
		return c.draft(ctx, rest[0], rest[1])
	case "notes":
		if err := need(rest, 2, "notes <dir> <slideID>"); err != nil {
			return err
		}
		return c.notes(ctx, rest[0], rest[1])
	case "image":
		if err := need(rest, 3, "image <dir> <slideID> <prompt>"); err != nil {
			return err
		}
		return c.image(ctx, rest[0], rest[1], rest[2])
	case "add-topic":
		if err := need(rest, 2, "add-topic <dir> <title>"); err != nil {
			return err
		}
		return c.edit(rest[0], func(s *deck.Store) error {
			fmt.Fprintln(c.out, s.AddTopic(rest[1]))
			return nil
		})
	case "add-slide":
		if err := need(rest, 3, "add-slide <dir> <topicID> <title>"); err != nil {
			return err
		}
		return c.edit(rest[0], func(s *deck.Store) error {
			id := s.AddSlide(rest[1], rest[2])
			if id == "" {
				return fmt.Errorf("topic %q not found", rest[1])
			}
			fmt.Fprintln(c.out, id)
			return nil
		})
	case "delete-slide":
		if err := need(rest, 3, "delete-slide <dir> <topicID> <slideID>"); err != nil {
			return err
		}
		return c.edit(rest[0], func(s *deck.Store) error {
			if _, ok := s.Slide(rest[2]); !ok {
				return fmt.Errorf("slide %q not found", rest[2])
			}
			s.DeleteSlide(rest[1], rest[2])
			return nil
		})
	case "gesture":
		if err := need(rest, 6, "gesture <dir> <slideID> <text|media> <move|resize:HANDLE> <dx> <dy> [<w> <h>]"); err != nil {
			return err
		}
		return c.gesture(rest)
	case "edit-image":
		if err := need(rest, 5, "edit-image <dir> <slideID> <index> <rotate> <filter>"); err != nil {
			return err
		}
		return c.editImage(rest)
	case "export":
		if err := need(rest, 2, "export <dir> <pdf|png|web|print> [out]"); err != nil {
			return err
		}
		out := ""
		if len(rest) > 2 {
			out = rest[2]
		}
		return c.export(rest[0], rest[1], out)
	case "repo":
		if err := need(rest, 1, "repo save|list|load|delete|search"); err != nil {
			return err
		}
		return c.repo(ctx, rest[0], rest[1:])
	case "search":
		return c.repo(ctx, "search", rest)
	case "serve":
		return c.serve(ctx)
	case "tui":
		if err := need(rest, 1, "tui <dir>"); err != nil {
			return err
		}
		return c.tui(ctx, rest[0])
	case "ui":
		dir := ""
		if len(rest) > 0 {
			dir = rest[0]
		}
		gen, _ := c.generator()
		return ui.Run(ui.Options{DeckDir: dir, Generator: gen, Provider: c.provider()})
	}
	return errUsage
}

// load opens a deck folder and hands its handle to crash recovery.
func (c *cli) load(dir string) (*deck.Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	h, err := storage.Open(abs)
	if err != nil {
		return nil, err
	}
	*c.handle = *h
	if h.Recovered {
		c.log.Warn("deck recovered from backup", slog.String("root", abs))
	}
	return deck.NewStore(deck.WithDocument(h.Doc)), nil
}

func (c *cli) persist(s *deck.Store) error {
	c.handle.Doc = s.Document()
	return storage.Save(c.handle)
}

// edit loads a deck, applies fn and saves when fn succeeds.
func (c *cli) edit(dir string, fn func(*deck.Store) error) error {
	s, err := c.load(dir)
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	return c.persist(s)
}

func (c *cli) provider() string {
	if p := strings.TrimSpace(c.cfg.Generation.Provider); p != "" {
		return p
	}
	return "gemini"
}

func (c *cli) generator() (generate.Generator, error) {
	if c.newGenerator != nil {
		return c.newGenerator()
	}
	return generate.New(c.cfg.Generation, c.sec.GeminiAPIKey)
}

// generate runs fn with the configured provider and reports a telemetry event.
func (c *cli) generate(ctx context.Context, op string, fn func(generate.Generator) error) error {
	gen, err := c.generator()
	if err != nil {
		return err
	}
	start := time.Now()
	err = fn(gen)
	telemetry.Default().Generate(c.provider(), op, err, time.Since(start))
	if errors.Is(err, generate.ErrAuth) {
		return fmt.Errorf("%w (set %s or store the key in the keyring)", err, config.EnvGeminiAPIKey)
	}
	return err
}

func (c *cli) initDeck(dir, title string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	c.log.Info("init deck", slog.String("root", abs), slog.String("title", title))
	h, err := storage.InitDeck(abs, deck.Document{Title: title, Topics: []deck.Topic{}})
	if err != nil {
		return err
	}
	*c.handle = *h
	fmt.Fprintln(c.out, "Created deck at", abs)
	return nil
}

func (c *cli) open(dir string) error {
	s, err := c.load(dir)
	if err != nil {
		return err
	}
	doc, sel := s.Snapshot()
	fmt.Fprintf(c.out, "Deck: %s\n", doc.Title)
	fmt.Fprintf(c.out, "Root: %s\n", c.handle.Root)
	if c.handle.Recovered {
		fmt.Fprintln(c.out, "(recovered from backup)")
	}
	fmt.Fprintf(c.out, "Topics: %d, slides: %d\n", len(doc.Topics), doc.SlideCount())
	for _, t := range doc.Topics {
		fmt.Fprintf(c.out, "%s  %s\n", t.ID, t.Title)
		for _, sl := range t.Slides {
			mark := " "
			if sl.ID == sel.SlideID {
				mark = "*"
			}
			media := ""
			switch {
			case len(sl.Images) > 0:
				media = fmt.Sprintf(" [%d image(s)]", len(sl.Images))
			case sl.Video != nil:
				media = " [video]"
			}
			fmt.Fprintf(c.out, "  %s %s  %s (%d bullets)%s\n", mark, sl.ID, sl.Title, len(sl.Bullets), media)
		}
	}
	return nil
}

func (c *cli) outline(ctx context.Context, dir, prompt string, refFiles []string) error {
	s, err := c.load(dir)
	if err != nil {
		return err
	}
	refs := make([]generate.Reference, 0, len(refFiles))
	for _, p := range refFiles {
		b, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read reference: %w", err)
		}
		refs = append(refs, generate.Reference{Name: filepath.Base(p), Content: string(b)})
	}
	var topics []deck.Topic
	err = c.generate(ctx, "outline", func(g generate.Generator) error {
		var err error
		topics, err = g.Outline(ctx, prompt, refs)
		return err
	})
	if err != nil {
		return err
	}
	s.SetDocument(topics)
	if strings.TrimSpace(s.Title()) == "" {
		s.SetTitle(prompt)
	}
	doc := s.Document()
	fmt.Fprintf(c.out, "Generated %d topics, %d slides\n", len(doc.Topics), doc.SlideCount())
	return c.persist(s)
}

func (c *cli) draft(ctx context.Context, dir, slideID string) error {
	s, err := c.load(dir)
	if err != nil {
		return err
	}
	sl, ok := s.Slide(slideID)
	if !ok {
		return fmt.Errorf("slide %q not found", slideID)
	}
	var bullets []string
	err = c.generate(ctx, "bullets", func(g generate.Generator) error {
		var err error
		bullets, err = g.Bullets(ctx, sl.Title, s.Title())
		return err
	})
	if err != nil {
		return err
	}
	s.UpdateSlideContent(slideID, bullets)
	for _, b := range bullets {
		fmt.Fprintln(c.out, "-", b)
	}
	return c.persist(s)
}

func (c *cli) notes(ctx context.Context, dir, slideID string) error {
	s, err := c.load(dir)
	if err != nil {
		return err
	}
	sl, ok := s.Slide(slideID)
	if !ok {
		return fmt.Errorf("slide %q not found", slideID)
	}
	var notes string
	err = c.generate(ctx, "notes", func(g generate.Generator) error {
		var err error
		notes, err = g.Notes(ctx, sl.Title, sl.Bullets, s.Title())
		return err
	})
	if err != nil {
		return err
	}
	s.SetSpeakerNotes(slideID, notes)
	fmt.Fprintln(c.out, notes)
	return c.persist(s)
}

func (c *cli) image(ctx context.Context, dir, slideID, prompt string) error {
	s, err := c.load(dir)
	if err != nil {
		return err
	}
	if _, ok := s.Slide(slideID); !ok {
		return fmt.Errorf("slide %q not found", slideID)
	}
	var img deck.Image
	err = c.generate(ctx, "image", func(g generate.Generator) error {
		var err error
		img, err = g.Image(ctx, prompt)
		return err
	})
	if err != nil {
		return err
	}
	s.AddImage(slideID, img)
	fmt.Fprintf(c.out, "Added %s image (%d bytes)\n", img.MimeType, len(img.Data))
	return c.persist(s)
}

// gesture replays one drag against a container of w x h pixels (default 1280x720).
func (c *cli) gesture(args []string) error {
	dir, slideID := args[0], args[1]
	region, ok := deck.ParseRegion(args[2])
	if !ok {
		return fmt.Errorf("unknown region %q", args[2])
	}
	mode, err := geometry.ParseMode(args[3])
	if err != nil {
		return err
	}
	nums := make([]float64, 0, 4)
	for _, a := range args[4:] {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return fmt.Errorf("bad number %q: %w", a, err)
		}
		nums = append(nums, v)
	}
	container := geometry.Size{Width: projector.Preview1280.Width, Height: projector.Preview1280.Height}
	if len(nums) >= 4 {
		container = geometry.Size{Width: nums[2], Height: nums[3]}
	}
	return c.edit(dir, func(s *deck.Store) error {
		g := gesture.New(s)
		if err := g.Begin(slideID, region, mode, gesture.Point{}, container); err != nil {
			return err
		}
		g.Move(gesture.Point{X: nums[0], Y: nums[1]})
		r, _ := g.End()
		r = r.Round(2)
		fmt.Fprintf(c.out, "%s: x=%g y=%g w=%g h=%g\n", region, r.X, r.Y, r.Width, r.Height)
		return nil
	})
}

func (c *cli) editImage(args []string) error {
	dir, slideID := args[0], args[1]
	idx, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("bad image index %q", args[2])
	}
	rot, err := strconv.Atoi(args[3])
	if err != nil {
		return fmt.Errorf("bad rotation %q", args[3])
	}
	filter, err := imageedit.ParseFilter(args[4])
	if err != nil {
		return err
	}
	return c.edit(dir, func(s *deck.Store) error {
		sl, ok := s.Slide(slideID)
		if !ok {
			return fmt.Errorf("slide %q not found", slideID)
		}
		if idx < 0 || idx >= len(sl.Images) {
			return fmt.Errorf("slide has %d image(s), index %d out of range", len(sl.Images), idx)
		}
		opt := imageedit.Defaults()
		opt.Rotate = rot
		opt.Filter = filter
		out, err := imageedit.Edit(sl.Images[idx], opt)
		if err != nil {
			return err
		}
		s.UpdateImage(slideID, idx, out)
		return nil
	})
}

func (c *cli) export(dir, format, out string) error {
	if _, err := c.load(dir); err != nil {
		return err
	}
	opt := export.BatchOptions{OutDir: out, SpeakerNotes: c.cfg.Export.SpeakerNotes}
	switch strings.ToLower(format) {
	case "pdf", "png":
		opt.Formats = []string{strings.ToLower(format)}
	default:
		p, err := export.ParsePreset(format)
		if err != nil {
			return err
		}
		opt.Preset = p
	}
	start := time.Now()
	files, err := export.BatchExport(c.handle, opt)
	for _, f := range files {
		fmt.Fprintln(c.out, f)
	}
	if err != nil {
		return err
	}
	telemetry.Default().Export(format, c.handle.Doc.SlideCount(), time.Since(start))
	return nil
}

func (c *cli) openRepo(ctx context.Context) (repository.Repository, error) {
	return repository.Open(ctx, c.cfg.Repository, c.sec.BackendToken)
}

func (c *cli) repo(ctx context.Context, sub string, args []string) error {
	r, err := c.openRepo(ctx)
	if err != nil {
		return err
	}
	defer r.Close()
	switch sub {
	case "save":
		if err := need(args, 1, "repo save <dir> [name]"); err != nil {
			return err
		}
		s, err := c.load(args[0])
		if err != nil {
			return err
		}
		name := s.Title()
		if len(args) > 1 {
			name = args[1]
		}
		id, err := r.Save(ctx, name, s.Document())
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, id)
	case "list":
		list, err := r.List(ctx)
		if err != nil {
			return err
		}
		for _, e := range list {
			fmt.Fprintf(c.out, "%s  %s  %s\n", e.ID, e.SavedAt.Local().Format(time.DateTime), e.Name)
		}
	case "load":
		if err := need(args, 2, "repo load <id> <dir>"); err != nil {
			return err
		}
		doc, err := r.Load(ctx, args[0])
		if err != nil {
			return err
		}
		abs, err := filepath.Abs(args[1])
		if err != nil {
			return err
		}
		h, err := storage.InitDeck(abs, doc)
		if err != nil {
			return err
		}
		*c.handle = *h
		fmt.Fprintln(c.out, "Loaded into", abs)
	case "delete":
		if err := need(args, 1, "repo delete <id>"); err != nil {
			return err
		}
		return r.Delete(ctx, args[0])
	case "search":
		if err := need(args, 1, "search <text>"); err != nil {
			return err
		}
		sr, ok := r.(repository.Searcher)
		if !ok {
			return fmt.Errorf("repository driver %q has no search index", c.cfg.Repository.Driver)
		}
		hits, err := sr.Search(ctx, strings.Join(args, " "), 20)
		if err != nil {
			return err
		}
		for _, h := range hits {
			fmt.Fprintf(c.out, "%s  %s  %s: %s\n", h.ProjectID, h.Name, h.Path, h.Snippet)
		}
	default:
		return errUsage
	}
	return nil
}

func (c *cli) serve(ctx context.Context) error {
	r, err := c.openRepo(ctx)
	if err != nil {
		return err
	}
	defer r.Close()
	srv := server.New(r, server.Options{Secret: c.sec.AuthSecret, AdminKey: c.sec.AdminKey, TokenTTL: c.cfg.Server.TTL()})
	return srv.ListenAndServe(ctx, c.cfg.Server.Addr)
}

func (c *cli) tui(ctx context.Context, dir string) error {
	s, err := c.load(dir)
	if err != nil {
		return err
	}
	gen, err := c.generator()
	if err != nil {
		c.log.Warn("generation disabled", slog.Any("err", err))
	}
	defer applog.SetConsole(io.Discard)()
	return tui.Run(ctx, s, tui.Options{
		Generator: gen,
		Save: func(doc deck.Document) error {
			c.handle.Doc = doc
			return storage.Save(c.handle)
		},
	})
}
