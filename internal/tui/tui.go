/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package tui is a terminal outline editor for a deck.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"deckwriter/internal/deck"
	"deckwriter/internal/generate"
	applog "deckwriter/internal/log"
	"deckwriter/internal/projector"
)

// copyText is swapped in tests.
var copyText = clipboard.WriteAll

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF9F1C"))
	topicStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4EA8DE"))
	cursorStyle   = lipgloss.NewStyle().Reverse(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF9F1C"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7F7F7F"))
	paneStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7F7F7F")).Italic(true)
)

type mode int

const (
	modeBrowse mode = iota
	modeRename
	modeAddTopic
	modeAddSlide
	modeHelp
)

// row is one line of the outline list.
type row struct {
	topicID string
	slideID string // empty for topic rows
	label   string
}

// Options wires optional collaborators.
type Options struct {
	// Generator drafts bullets and notes; nil disables those keys.
	Generator generate.Generator
	// Save persists the store; nil disables the save key.
	Save func(deck.Document) error
}

// Model is the bubbletea model.
type Model struct {
	store  *deck.Store
	opts   Options
	log    *slog.Logger
	rows   []row
	cursor int
	mode   mode
	input  string
	status string
	dirty  bool
	busy   bool
	width  int
	height int
}

// New builds a model over store.
func New(store *deck.Store, opts Options) *Model {
	m := &Model{
		store: store,
		opts:  opts,
		log:   applog.WithComponent("tui"),
	}
	m.refresh()
	m.cursorToSelection()
	return m
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, store *deck.Store, opts Options) error {
	m := New(store, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m *Model) refresh() {
	doc := m.store.Document()
	m.rows = m.rows[:0]
	for _, t := range doc.Topics {
		m.rows = append(m.rows, row{topicID: t.ID, label: t.Title})
		for _, s := range t.Slides {
			m.rows = append(m.rows, row{topicID: t.ID, slideID: s.ID, label: s.Title})
		}
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) cursorToSelection() {
	sel := m.store.Selection()
	for i, r := range m.rows {
		if r.slideID != "" && r.slideID == sel.SlideID {
			m.cursor = i
			return
		}
	}
}

func (m *Model) current() (row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return row{}, false
	}
	return m.rows[m.cursor], true
}

// selectCursor makes the slide under the cursor the store selection.
func (m *Model) selectCursor() {
	if r, ok := m.current(); ok && r.slideID != "" {
		m.store.SelectSlide(r.topicID, r.slideID)
	}
}

type draftedMsg struct {
	slideID string
	bullets []string
	notes   string
	kind    string
	err     error
}

type savedMsg struct{ err error }

func (m *Model) Init() tea.Cmd { return nil }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case draftedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "generation failed: " + msg.err.Error()
			return m, nil
		}
		if msg.kind == "notes" {
			m.store.SetSpeakerNotes(msg.slideID, msg.notes)
		} else {
			m.store.UpdateSlideContent(msg.slideID, msg.bullets)
		}
		m.dirty = true
		m.status = msg.kind + " drafted"
		return m, nil
	case savedMsg:
		if msg.err != nil {
			m.status = "save failed: " + msg.err.Error()
		} else {
			m.dirty = false
			m.status = "saved"
		}
		return m, nil
	case tea.KeyMsg:
		if m.mode != modeBrowse && m.mode != modeHelp {
			return m.updateInput(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m *Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode, m.input = modeBrowse, ""
	case tea.KeyEnter:
		m.commitInput()
		m.mode, m.input = modeBrowse, ""
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
	return m, nil
}

func (m *Model) commitInput() {
	text := strings.TrimSpace(m.input)
	r, ok := m.current()
	switch m.mode {
	case modeRename:
		if !ok {
			return
		}
		if r.slideID != "" {
			m.store.UpdateSlideTitle(r.slideID, text)
		} else {
			m.store.UpdateTopicTitle(r.topicID, text)
		}
	case modeAddTopic:
		m.store.AddTopic(text)
	case modeAddSlide:
		if !ok {
			return
		}
		if id := m.store.AddSlide(r.topicID, text); id != "" {
			m.refresh()
			m.cursorToSelection()
		}
	}
	m.dirty = true
	m.refresh()
}

func (m *Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode == modeHelp {
		m.mode = modeBrowse
		return m, nil
	}
	m.status = ""
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "?":
		m.mode = modeHelp
	case "j", "down":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
		m.selectCursor()
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
		m.selectCursor()
	case "enter":
		m.selectCursor()
	case "e":
		if r, ok := m.current(); ok {
			m.mode, m.input = modeRename, r.label
		}
	case "T":
		m.mode, m.input = modeAddTopic, ""
	case "a":
		if _, ok := m.current(); ok {
			m.mode, m.input = modeAddSlide, ""
		}
	case "d":
		if r, ok := m.current(); ok {
			if r.slideID != "" {
				m.store.DeleteSlide(r.topicID, r.slideID)
			} else {
				m.store.DeleteTopic(r.topicID)
			}
			m.dirty = true
			m.refresh()
			m.cursorToSelection()
		}
	case "y":
		m.copyCurrent()
	case "g":
		return m, m.draft("bullets")
	case "n":
		return m, m.draft("notes")
	case "s":
		if m.opts.Save == nil {
			m.status = "saving is not available"
			return m, nil
		}
		doc := m.store.Document()
		save := m.opts.Save
		return m, func() tea.Msg { return savedMsg{err: save(doc)} }
	}
	return m, nil
}

func (m *Model) copyCurrent() {
	r, ok := m.current()
	if !ok || r.slideID == "" {
		m.status = "select a slide to copy"
		return
	}
	s, _ := m.store.Slide(r.slideID)
	var b strings.Builder
	b.WriteString(s.Title + "\n")
	for _, p := range s.Bullets {
		b.WriteString("- " + p + "\n")
	}
	if n := s.Notes(); n != "" {
		b.WriteString("\n" + n + "\n")
	}
	if err := copyText(b.String()); err != nil {
		m.log.Warn("clipboard write failed", slog.Any("err", err))
		m.status = "clipboard unavailable"
		return
	}
	m.status = "copied slide to clipboard"
}

func (m *Model) draft(kind string) tea.Cmd {
	r, ok := m.current()
	if !ok || r.slideID == "" || m.opts.Generator == nil || m.busy {
		m.status = "nothing to draft"
		return nil
	}
	s, _ := m.store.Slide(r.slideID)
	title := m.store.Title()
	gen := m.opts.Generator
	m.busy = true
	m.status = "drafting " + kind + "..."
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		out := draftedMsg{slideID: s.ID, kind: kind}
		if kind == "notes" {
			out.notes, out.err = gen.Notes(ctx, s.Title, s.Bullets, title)
		} else {
			out.bullets, out.err = gen.Bullets(ctx, s.Title, title)
		}
		return out
	}
}

func (m *Model) View() string {
	if m.mode == modeHelp {
		return helpText
	}
	doc, sel := m.store.Snapshot()
	header := titleStyle.Render(doc.Title)
	if m.dirty {
		header += mutedStyle.Render(" (modified)")
	}

	var list strings.Builder
	for i, r := range m.rows {
		line := r.label
		if line == "" {
			line = mutedStyle.Render("(untitled)")
		}
		if r.slideID == "" {
			line = topicStyle.Render(line)
		} else {
			line = "  " + line
			if r.slideID == sel.SlideID {
				line = selectedStyle.Render(line)
			}
		}
		if i == m.cursor {
			line = cursorStyle.Render(line)
		}
		list.WriteString(line + "\n")
	}
	if len(m.rows) == 0 {
		list.WriteString(mutedStyle.Render("empty deck, press T to add a topic"))
	}

	detail := m.detail(sel)
	left := paneStyle.Width(m.paneWidth()).Render(strings.TrimRight(list.String(), "\n"))
	right := paneStyle.Width(m.paneWidth()).Render(detail)
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	footer := statusStyle.Render(m.status)
	switch m.mode {
	case modeRename:
		footer = "Rename: " + m.input + "_"
	case modeAddTopic:
		footer = "New topic: " + m.input + "_"
	case modeAddSlide:
		footer = "New slide: " + m.input + "_"
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *Model) paneWidth() int {
	w := (m.width - 6) / 2
	if w < 20 {
		w = 36
	}
	return w
}

func (m *Model) detail(sel deck.Selection) string {
	s, ok := m.store.Slide(sel.SlideID)
	if !ok {
		return mutedStyle.Render("no slide selected")
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(s.Title) + "\n")
	for _, p := range s.Bullets {
		b.WriteString("• " + p + "\n")
	}
	if len(s.Images) > 0 {
		fmt.Fprintf(&b, "%s\n", mutedStyle.Render(fmt.Sprintf("[%d image(s)]", len(s.Images))))
	}
	if s.Video != nil {
		b.WriteString(mutedStyle.Render("[video "+s.Video.Name+"]") + "\n")
	}
	l := projector.Effective(s)
	if l.Text != nil {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("text  %v", l.Text.Round(1))) + "\n")
	}
	if l.Media != nil {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("media %v", l.Media.Round(1))) + "\n")
	}
	if n := s.Notes(); n != "" {
		b.WriteString("\n" + mutedStyle.Render(n))
	}
	return strings.TrimRight(b.String(), "\n")
}

const helpText = `deckwriter outline editor

  j/k, arrows   move
  enter         select slide
  e             rename topic or slide
  T             add topic
  a             add slide to the topic under the cursor
  d             delete slide or topic
  g             draft bullets for the slide
  n             draft speaker notes
  y             copy slide text to the clipboard
  s             save
  q             quit

press any key to return`
