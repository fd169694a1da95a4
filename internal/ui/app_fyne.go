//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"deckwriter/internal/crash"
	"deckwriter/internal/deck"
	"deckwriter/internal/export"
	"deckwriter/internal/imageedit"
	applog "deckwriter/internal/log"
	"deckwriter/internal/storage"
	"deckwriter/internal/telemetry"
	"deckwriter/internal/version"
)

// outlineRow is one entry of the outline list.
type outlineRow struct {
	topicID, slideID, label string
}

func outlineRows(doc deck.Document) []outlineRow {
	var rows []outlineRow
	for _, t := range doc.Topics {
		rows = append(rows, outlineRow{topicID: t.ID, label: t.Title})
		for _, s := range t.Slides {
			rows = append(rows, outlineRow{topicID: t.ID, slideID: s.ID, label: "    " + s.Title})
		}
	}
	return rows
}

// editor holds the window state.
type editor struct {
	opts  Options
	log   *slog.Logger
	app   fyne.App
	win   fyne.Window
	store *deck.Store
	h     *storage.Handle

	canvas  *SlideCanvas
	rows    []outlineRow
	list    *widget.List
	title   *widget.Entry
	bullets *widget.Entry
	notes   *widget.Entry
	filter  *widget.Select
	status  *widget.Label
	syncing bool
	dirty   bool
}

// Run opens the desktop editor and blocks until the window closes.
func Run(opts Options) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI")

	e := &editor{opts: opts, log: l, store: deck.NewStore(), h: &storage.Handle{}}
	defer crash.Recover(crash.Target{Handle: e.h, Live: e.store.Document})

	e.app = app.NewWithID("deckwriter")
	e.win = e.app.NewWindow("deckwriter " + version.String())
	prefs := e.app.Preferences()
	w := max(prefs.IntWithFallback("window.width", 1280), 800)
	h := max(prefs.IntWithFallback("window.height", 800), 600)
	e.win.Resize(fyne.NewSize(float32(w), float32(h)))

	e.build()
	if strings.TrimSpace(opts.DeckDir) != "" {
		if err := e.open(opts.DeckDir); err != nil {
			dialog.ShowError(err, e.win)
		}
	}
	e.store.Subscribe(func(ev deck.Event) {
		e.dirty = true
		e.refresh(ev.Op != "updateSlideTitle" && ev.Op != "updateSlideContent" && ev.Op != "setSpeakerNotes")
	})

	e.win.SetCloseIntercept(func() {
		sz := e.win.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		if !e.dirty {
			e.win.Close()
			return
		}
		dialog.ShowConfirm("Unsaved changes", "Close without saving?", func(ok bool) {
			if ok {
				e.win.Close()
			}
		}, e.win)
	})
	e.win.ShowAndRun()
	l.Info("UI closed")
	return nil
}

func (e *editor) build() {
	e.status = widget.NewLabel("Ready")
	e.canvas = NewSlideCanvas(e.store)
	e.canvas.OnFocus = func(r deck.Region) { e.setStatus("editing " + r.String() + " region") }

	e.list = widget.NewList(
		func() int { return len(e.rows) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			if i >= 0 && i < len(e.rows) {
				o.(*widget.Label).SetText(e.rows[i].label)
			}
		},
	)
	e.list.OnSelected = func(i widget.ListItemID) {
		if e.syncing || i < 0 || i >= len(e.rows) {
			return
		}
		if r := e.rows[i]; r.slideID != "" {
			e.store.SelectSlide(r.topicID, r.slideID)
		}
	}

	e.title = widget.NewEntry()
	e.title.SetPlaceHolder("Slide title")
	e.title.OnChanged = func(s string) {
		if sl, ok := e.current(); ok {
			e.store.UpdateSlideTitle(sl.ID, s)
		}
	}
	e.bullets = widget.NewMultiLineEntry()
	e.bullets.SetPlaceHolder("One bullet per line")
	e.bullets.OnChanged = func(s string) {
		if sl, ok := e.current(); ok {
			e.store.UpdateSlideContent(sl.ID, splitBullets(s))
		}
	}
	e.notes = widget.NewMultiLineEntry()
	e.notes.SetPlaceHolder("Speaker notes")
	e.notes.Wrapping = fyne.TextWrapWord
	e.notes.OnChanged = func(s string) {
		if sl, ok := e.current(); ok {
			e.store.SetSpeakerNotes(sl.ID, s)
		}
	}
	e.filter = widget.NewSelect([]string{"none", "grayscale", "sepia"}, nil)
	e.filter.SetSelected("none")

	inspector := container.NewVBox(
		widget.NewLabel("Title"), e.title,
		widget.NewLabel("Bullets"), e.bullets,
		widget.NewLabel("Notes"), e.notes,
		widget.NewSeparator(),
		widget.NewLabel("Media"),
		container.NewGridWithColumns(2,
			widget.NewButton("Add image…", e.addImage),
			widget.NewButton("Add video…", e.addVideo),
			widget.NewButton("Rotate image", func() { e.editImage(imageedit.Options{Rotate: 90}) }),
			widget.NewButton("Remove media", e.removeMedia),
		),
		container.NewBorder(nil, nil, widget.NewLabel("Filter"), widget.NewButton("Apply", func() {
			f, err := imageedit.ParseFilter(e.filter.Selected)
			if err != nil {
				dialog.ShowError(err, e.win)
				return
			}
			e.editImage(imageedit.Options{Filter: f})
		}), e.filter),
	)
	if e.opts.Generator != nil {
		inspector.Add(widget.NewSeparator())
		inspector.Add(container.NewGridWithColumns(3,
			widget.NewButton("Draft bullets", e.draftBullets),
			widget.NewButton("Draft notes", e.draftNotes),
			widget.NewButton("Generate image", e.generateImage),
		))
	}

	toolbar := widget.NewToolbar(
		widget.NewToolbarAction(theme.FolderOpenIcon(), e.openDialog),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), e.save),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ContentAddIcon(), e.addSlide),
		widget.NewToolbarAction(theme.FolderNewIcon(), e.addTopic),
		widget.NewToolbarAction(theme.DeleteIcon(), e.deleteSlide),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.DocumentPrintIcon(), func() { e.export(export.PresetPrint) }),
	)

	left := container.NewBorder(widget.NewLabel("Outline"), nil, nil, nil, e.list)
	right := container.NewVScroll(inspector)
	center := container.NewHSplit(e.canvas, right)
	center.Offset = 0.7
	main := container.NewHSplit(left, center)
	main.Offset = 0.2
	e.win.SetContent(container.NewBorder(toolbar, e.status, nil, nil, main))
	e.win.SetMainMenu(e.menu())
	e.shortcuts()
	e.refresh(true)
}

func (e *editor) menu() *fyne.MainMenu {
	recent := fyne.NewMenuItem("Open Recent", nil)
	var items []*fyne.MenuItem
	for _, p := range loadRecentDecks(e.app.Preferences()) {
		p := p
		items = append(items, fyne.NewMenuItem(p, func() {
			if err := e.open(p); err != nil {
				dialog.ShowError(err, e.win)
			}
		}))
	}
	recent.ChildMenu = fyne.NewMenu("", items...)
	recent.Disabled = len(items) == 0

	file := fyne.NewMenu("File",
		fyne.NewMenuItem("New Deck…", e.newDeckDialog),
		fyne.NewMenuItem("Open Deck…", e.openDialog),
		recent,
		fyne.NewMenuItem("Save", e.save),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Export PDF (print)", func() { e.export(export.PresetPrint) }),
		fyne.NewMenuItem("Export PNG (web)", func() { e.export(export.PresetWeb) }),
	)
	edit := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Add Topic…", e.addTopic),
		fyne.NewMenuItem("Add Slide…", e.addSlide),
		fyne.NewMenuItem("Delete Slide", e.deleteSlide),
	)
	return fyne.NewMainMenu(file, edit)
}

func (e *editor) shortcuts() {
	c := e.win.Canvas()
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { e.save() })
	c.SetOnTypedKey(func(ev *fyne.KeyEvent) {
		if ev.Name == fyne.KeyEscape {
			e.canvas.Cancel()
		}
	})
}

func (e *editor) setStatus(s string) { e.status.SetText(s) }

func (e *editor) current() (deck.Slide, bool) {
	if e.syncing {
		return deck.Slide{}, false
	}
	return e.store.CurrentSlide()
}

// refresh redraws the outline and canvas. Inspector fields are only rewritten
// when full is set so that typing does not reset the cursor.
func (e *editor) refresh(full bool) {
	doc, sel := e.store.Snapshot()
	e.rows = outlineRows(doc)
	e.syncing = true
	defer func() { e.syncing = false }()
	e.list.Refresh()
	for i, r := range e.rows {
		if r.slideID != "" && r.slideID == sel.SlideID {
			e.list.Select(i)
		}
	}
	title := "deckwriter"
	if doc.Title != "" {
		title = doc.Title + " - deckwriter"
	}
	if e.dirty {
		title = "* " + title
	}
	e.win.SetTitle(title)
	e.canvas.Refresh()
	if !full {
		return
	}
	s, ok := e.store.CurrentSlide()
	setIfChanged(e.title, s.Title)
	setIfChanged(e.bullets, strings.Join(s.Bullets, "\n"))
	setIfChanged(e.notes, s.Notes())
	for _, w := range []*widget.Entry{e.title, e.bullets, e.notes} {
		if ok {
			w.Enable()
		} else {
			w.Disable()
		}
	}
}

func setIfChanged(w *widget.Entry, s string) {
	if w.Text != s {
		w.SetText(s)
	}
}

// splitBullets turns the bullets entry into slide bullets. A trailing empty
// line is kept so the user can start the next bullet.
func splitBullets(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}

func (e *editor) open(dir string) error {
	h, err := storage.Open(dir)
	if err != nil {
		return fmt.Errorf("open deck: %w", err)
	}
	*e.h = *h
	e.store.Load(h.Doc)
	e.dirty = h.Recovered
	addRecentDeck(e.app.Preferences(), dir)
	e.win.SetMainMenu(e.menu())
	e.refresh(true)
	if h.Recovered {
		e.setStatus("Recovered from backup: " + dir)
	} else {
		e.setStatus("Opened " + dir)
	}
	e.log.Info("deck opened", slog.String("root", dir), slog.Bool("recovered", h.Recovered))
	return nil
}

func (e *editor) openDialog() {
	dialog.ShowFolderOpen(func(u fyne.ListableURI, err error) {
		if err != nil || u == nil {
			return
		}
		if err := e.open(u.Path()); err != nil {
			dialog.ShowError(err, e.win)
		}
	}, e.win)
}

func (e *editor) newDeckDialog() {
	name := widget.NewEntry()
	name.SetPlaceHolder("Deck title")
	dialog.ShowForm("New deck", "Choose folder…", "Cancel", []*widget.FormItem{widget.NewFormItem("Title", name)}, func(ok bool) {
		if !ok {
			return
		}
		dialog.ShowFolderOpen(func(u fyne.ListableURI, err error) {
			if err != nil || u == nil {
				return
			}
			root := filepath.Join(u.Path(), export.Slug(name.Text))
			h, err := storage.InitDeck(root, deck.Document{Title: strings.TrimSpace(name.Text), Topics: []deck.Topic{}})
			if err != nil {
				dialog.ShowError(err, e.win)
				return
			}
			if err := e.open(h.Root); err != nil {
				dialog.ShowError(err, e.win)
			}
		}, e.win)
	}, e.win)
}

func (e *editor) save() {
	if e.h.Root == "" {
		dialog.ShowInformation("Save", "Open or create a deck folder first.", e.win)
		return
	}
	e.h.Doc = e.store.Document()
	if err := storage.Save(e.h); err != nil {
		dialog.ShowError(err, e.win)
		return
	}
	e.dirty = false
	e.refresh(false)
	e.setStatus("Saved " + e.h.ManifestPath)
}

func (e *editor) export(preset export.PresetName) {
	if e.h.Root == "" {
		dialog.ShowInformation("Export", "Open or create a deck folder first.", e.win)
		return
	}
	e.h.Doc = e.store.Document()
	start := time.Now()
	files, err := export.BatchExport(e.h, export.BatchOptions{Preset: preset})
	if err != nil {
		dialog.ShowError(err, e.win)
		return
	}
	telemetry.Default().Export(string(preset), e.h.Doc.SlideCount(), time.Since(start))
	e.setStatus(fmt.Sprintf("Exported %d file(s) to %s", len(files), filepath.Dir(files[0])))
}

func (e *editor) addTopic() {
	name := widget.NewEntry()
	dialog.ShowForm("Add topic", "Add", "Cancel", []*widget.FormItem{widget.NewFormItem("Title", name)}, func(ok bool) {
		if ok {
			e.store.AddTopic(strings.TrimSpace(name.Text))
		}
	}, e.win)
}

func (e *editor) addSlide() {
	topicID := e.store.Selection().TopicID
	if topicID == "" {
		doc := e.store.Document()
		if len(doc.Topics) == 0 {
			e.setStatus("Add a topic first")
			return
		}
		topicID = doc.Topics[len(doc.Topics)-1].ID
	}
	name := widget.NewEntry()
	dialog.ShowForm("Add slide", "Add", "Cancel", []*widget.FormItem{widget.NewFormItem("Title", name)}, func(ok bool) {
		if ok {
			e.store.AddSlide(topicID, strings.TrimSpace(name.Text))
		}
	}, e.win)
}

func (e *editor) deleteSlide() {
	sel := e.store.Selection()
	if sel.IsEmpty() {
		return
	}
	e.store.DeleteSlide(sel.TopicID, sel.SlideID)
}

func (e *editor) addImage() {
	s, ok := e.store.CurrentSlide()
	if !ok {
		return
	}
	d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil || rc == nil {
			return
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			dialog.ShowError(err, e.win)
			return
		}
		e.store.AddImage(s.ID, deck.Image{Data: data, MimeType: rc.URI().MimeType()})
	}, e.win)
	d.SetFilter(fstorage.NewExtensionFileFilter([]string{".png", ".jpg", ".jpeg", ".gif", ".webp"}))
	d.Show()
}

func (e *editor) addVideo() {
	s, ok := e.store.CurrentSlide()
	if !ok {
		return
	}
	d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil || rc == nil {
			return
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			dialog.ShowError(err, e.win)
			return
		}
		e.store.SetVideo(s.ID, deck.Video{Data: data, MimeType: rc.URI().MimeType(), Name: rc.URI().Name()})
	}, e.win)
	d.SetFilter(fstorage.NewExtensionFileFilter([]string{".mp4", ".webm", ".mov"}))
	d.Show()
}

func (e *editor) removeMedia() {
	s, ok := e.store.CurrentSlide()
	if !ok {
		return
	}
	if s.Video != nil {
		e.store.DeleteVideo(s.ID)
		return
	}
	if len(s.Images) > 0 {
		e.store.DeleteImage(s.ID, len(s.Images)-1)
	}
}

// editImage applies opt to the first image of the current slide.
func (e *editor) editImage(opt imageedit.Options) {
	s, ok := e.store.CurrentSlide()
	if !ok || len(s.Images) == 0 {
		e.setStatus("The slide has no image")
		return
	}
	out, err := imageedit.Edit(s.Images[0], opt)
	if err != nil {
		dialog.ShowError(err, e.win)
		return
	}
	e.store.UpdateImage(s.ID, 0, out)
}

// async runs fn off the UI goroutine and applies the result back on it.
func (e *editor) async(op string, fn func(ctx context.Context) (func(), error)) {
	e.setStatus(op + "…")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		start := time.Now()
		apply, err := fn(ctx)
		telemetry.Default().Generate(e.opts.Provider, op, err, time.Since(start))
		fyne.Do(func() {
			if err != nil {
				e.log.Warn("generation failed", slog.String("op", op), slog.Any("err", err))
				dialog.ShowError(err, e.win)
				e.setStatus(op + " failed")
				return
			}
			apply()
			e.setStatus(op + " done")
		})
	}()
}

func (e *editor) draftBullets() {
	s, ok := e.store.CurrentSlide()
	if !ok {
		return
	}
	doc := e.store.Title()
	e.async("bullets", func(ctx context.Context) (func(), error) {
		b, err := e.opts.Generator.Bullets(ctx, s.Title, doc)
		return func() { e.store.UpdateSlideContent(s.ID, b); e.refresh(true) }, err
	})
}

func (e *editor) draftNotes() {
	s, ok := e.store.CurrentSlide()
	if !ok {
		return
	}
	doc := e.store.Title()
	e.async("notes", func(ctx context.Context) (func(), error) {
		n, err := e.opts.Generator.Notes(ctx, s.Title, s.Bullets, doc)
		return func() { e.store.SetSpeakerNotes(s.ID, n); e.refresh(true) }, err
	})
}

func (e *editor) generateImage() {
	s, ok := e.store.CurrentSlide()
	if !ok {
		return
	}
	if strings.TrimSpace(s.Title) == "" {
		dialog.ShowError(errors.New("give the slide a title first"), e.win)
		return
	}
	prompt := fmt.Sprintf("An illustration for a presentation slide titled %q", s.Title)
	e.async("image", func(ctx context.Context) (func(), error) {
		img, err := e.opts.Generator.Image(ctx, prompt)
		return func() { e.store.AddImage(s.ID, img) }, err
	})
}

const recentPrefsKey = "recent.decks"
const recentMax = 10

func loadRecentDecks(p fyne.Preferences) []string {
	var items []string
	if raw := p.StringWithFallback(recentPrefsKey, ""); strings.TrimSpace(raw) != "" {
		_ = json.Unmarshal([]byte(raw), &items)
	}
	out := make([]string, 0, len(items))
	for _, s := range items {
		if _, err := os.Stat(filepath.Join(s, storage.ManifestFileName)); err == nil {
			out = append(out, s)
		}
	}
	return out
}

func addRecentDeck(p fyne.Preferences, path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	out := []string{abs}
	for _, s := range loadRecentDecks(p) {
		if !strings.EqualFold(s, abs) {
			out = append(out, s)
		}
	}
	if len(out) > recentMax {
		out = out[:recentMax]
	}
	b, _ := json.Marshal(out)
	p.SetString(recentPrefsKey, string(b))
}
