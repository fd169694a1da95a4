/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"deckwriter/internal/deck"
	"deckwriter/internal/generate"
)

func keys(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func press(t *testing.T, m *Model, msgs ...tea.Msg) tea.Cmd {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		_, cmd = m.Update(msg)
	}
	return cmd
}

func sample() *deck.Store {
	s := deck.NewStore()
	s.SetTitle("Garden")
	tid := s.AddTopic("Soil")
	s.AddSlide(tid, "Compost")
	s.AddSlide(tid, "Mulch")
	return s
}

type fakeGen struct{}

func (fakeGen) Outline(context.Context, string, []generate.Reference) ([]deck.Topic, error) {
	return nil, nil
}
func (fakeGen) Bullets(_ context.Context, title, _ string) ([]string, error) {
	return []string{"about " + title}, nil
}
func (fakeGen) Image(context.Context, string) (deck.Image, error) { return deck.Image{}, nil }
func (fakeGen) Notes(context.Context, string, []string, string) (string, error) {
	return "", errors.New("quota")
}

func TestNavigateSelectsSlides(t *testing.T) {
	s := sample()
	m := New(s, Options{})
	// cursor starts on the selected slide (Mulch, the last added)
	if r, _ := m.current(); r.label != "Mulch" {
		t.Fatalf("cursor on %q", r.label)
	}
	press(t, m, keys("k"))
	cur, _ := s.CurrentSlide()
	if cur.Title != "Compost" {
		t.Fatalf("selected %q, want Compost", cur.Title)
	}
	// moving onto the topic row keeps the slide selection
	press(t, m, keys("k"))
	cur, _ = s.CurrentSlide()
	if cur.Title != "Compost" {
		t.Fatalf("topic row changed selection to %q", cur.Title)
	}
}

func TestRenameSlide(t *testing.T) {
	s := sample()
	m := New(s, Options{})
	press(t, m, keys("e"), tea.KeyMsg{Type: tea.KeyBackspace})
	for _, r := range "hed" {
		press(t, m, keys(string(r)))
	}
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	cur, _ := s.CurrentSlide()
	if cur.Title != "Mulched" {
		t.Fatalf("title %q", cur.Title)
	}
	if !strings.Contains(m.View(), "(modified)") {
		t.Fatal("rename did not mark the deck modified")
	}
}

func TestAddTopicAndSlide(t *testing.T) {
	s := sample()
	m := New(s, Options{})
	press(t, m, keys("T"), keys("Water"), tea.KeyMsg{Type: tea.KeyEnter})
	doc := s.Document()
	if len(doc.Topics) != 2 || doc.Topics[1].Title != "Water" {
		t.Fatalf("topics %+v", doc.Topics)
	}
	// move to the new topic row and add a slide there
	for i := 0; i < 5; i++ {
		press(t, m, keys("j"))
	}
	press(t, m, keys("a"), keys("Rain"), tea.KeyMsg{Type: tea.KeySpace}, keys("barrels"), tea.KeyMsg{Type: tea.KeyEnter})
	cur, _ := s.CurrentSlide()
	if cur.Title != "Rain barrels" {
		t.Fatalf("current %q", cur.Title)
	}
	if r, _ := m.current(); r.slideID != cur.ID {
		t.Fatalf("cursor not on new slide")
	}
}

func TestDeleteSlide(t *testing.T) {
	s := sample()
	m := New(s, Options{})
	press(t, m, keys("d"))
	doc := s.Document()
	if len(doc.Topics[0].Slides) != 1 {
		t.Fatalf("slides %d", len(doc.Topics[0].Slides))
	}
	if !strings.Contains(m.View(), "(modified)") {
		t.Fatalf("view should mark the deck modified")
	}
}

func TestCopyToClipboard(t *testing.T) {
	var got string
	orig := copyText
	t.Cleanup(func() { copyText = orig })
	copyText = func(s string) error { got = s; return nil }
	s := sample()
	cur, _ := s.CurrentSlide()
	s.UpdateSlideContent(cur.ID, []string{"keeps roots cool"})
	s.SetSpeakerNotes(cur.ID, "mention straw")
	m := New(s, Options{})
	press(t, m, keys("y"))
	want := "Mulch\n- keeps roots cool\n\nmention straw\n"
	if got != want {
		t.Fatalf("clipboard %q, want %q", got, want)
	}

	copyText = func(string) error { return errors.New("no display") }
	press(t, m, keys("y"))
	if m.status != "clipboard unavailable" {
		t.Fatalf("status %q", m.status)
	}
}

func TestDraftBulletsAndNotes(t *testing.T) {
	s := sample()
	m := New(s, Options{Generator: fakeGen{}})
	cmd := press(t, m, keys("g"))
	if cmd == nil {
		t.Fatalf("expected a command")
	}
	press(t, m, cmd())
	cur, _ := s.CurrentSlide()
	if len(cur.Bullets) != 1 || cur.Bullets[0] != "about Mulch" {
		t.Fatalf("bullets %v", cur.Bullets)
	}
	cmd = press(t, m, keys("n"))
	press(t, m, cmd())
	if !strings.Contains(m.status, "quota") {
		t.Fatalf("status %q", m.status)
	}
}

func TestSave(t *testing.T) {
	s := sample()
	var saved deck.Document
	m := New(s, Options{Save: func(d deck.Document) error { saved = d; return nil }})
	press(t, m, keys("d"))
	cmd := press(t, m, keys("s"))
	press(t, m, cmd())
	if saved.Title != "Garden" || m.dirty {
		t.Fatalf("saved %q dirty=%v", saved.Title, m.dirty)
	}
}
