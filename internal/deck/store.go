/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package deck

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	applog "deckwriter/internal/log"
)

// Selection points at the slide being edited.
// Either both ids are set and name an existing topic/slide pair, or both are empty.
// Topics without slides are never selected.
type Selection struct {
	TopicID string `json:"topicId,omitempty"`
	SlideID string `json:"slideId,omitempty"`
}

// IsEmpty reports whether nothing is selected.
func (s Selection) IsEmpty() bool { return s.TopicID == "" || s.SlideID == "" }

// Event describes a completed mutation.
type Event struct {
	Op      string
	TopicID string
	SlideID string
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the uuid generator, mostly for deterministic tests.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithDocument seeds the store with doc, as Load would.
func WithDocument(doc Document) Option {
	return func(s *Store) { s.seed = &doc }
}

// Store owns one document and its selection. Construct it once per open deck and
// pass it to whatever needs it. Every mutation is synchronous and total: ids that
// do not exist make the call a no-op.
type Store struct {
	mu        sync.Mutex
	doc       Document
	sel       Selection
	newID     func() string
	log       *slog.Logger
	seed      *Document
	listeners []listener
	nextL     int
}

type listener struct {
	id int
	fn func(Event)
}

// NewStore builds an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		doc:   Document{Topics: []Topic{}},
		newID: uuid.NewString,
		log:   applog.WithComponent("deck"),
	}
	for _, o := range opts {
		o(s)
	}
	if s.seed != nil {
		s.doc = s.normalize(s.seed.Clone())
		s.sel = firstSelectable(s.doc.Topics)
		s.seed = nil
	}
	return s
}

// Subscribe registers fn to run after every mutation. The returned func removes it.
// Listeners run outside the store lock and may read from the store.
func (s *Store) Subscribe(fn func(Event)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextL++
	id := s.nextL
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// mutate runs fn under the lock and notifies listeners when fn reports a change.
func (s *Store) mutate(ev Event, fn func() bool) bool {
	s.mu.Lock()
	changed := fn()
	var ls []listener
	if changed {
		ls = append(ls, s.listeners...)
	}
	sel := s.sel
	s.mu.Unlock()

	if !changed {
		s.log.Debug("no-op", slog.String("op", ev.Op), slog.String("slide", ev.SlideID), slog.String("topic", ev.TopicID))
		return false
	}
	s.log.Debug("mutation", slog.String("op", ev.Op), slog.String("slide", ev.SlideID), slog.String("topic", ev.TopicID),
		slog.String("sel_topic", sel.TopicID), slog.String("sel_slide", sel.SlideID))
	for _, l := range ls {
		l.fn(ev)
	}
	return true
}

// --- queries ---

// Document returns a deep copy of the current document.
func (s *Store) Document() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Title returns the document title.
func (s *Store) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Title
}

// Selection returns the current selection.
func (s *Store) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel
}

// Snapshot returns document and selection read under one lock.
func (s *Store) Snapshot() (Document, Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone(), s.sel
}

// Slide looks a slide up by id across all topics.
func (s *Store) Slide(slideID string) (Slide, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ti, si := s.findSlide(slideID)
	if ti < 0 {
		return Slide{}, false
	}
	return s.doc.Topics[ti].Slides[si].Clone(), true
}

// TopicOf returns the id of the topic holding slideID.
func (s *Store) TopicOf(slideID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ti, _ := s.findSlide(slideID)
	if ti < 0 {
		return "", false
	}
	return s.doc.Topics[ti].ID, true
}

// CurrentSlide returns the selected slide, if the selection resolves.
func (s *Store) CurrentSlide() (Slide, bool) {
	sel := s.Selection()
	if sel.IsEmpty() {
		return Slide{}, false
	}
	return s.Slide(sel.SlideID)
}

// --- whole-document operations ---

// SetDocument replaces all topics and selects the first slide in document order.
func (s *Store) SetDocument(topics []Topic) {
	s.mutate(Event{Op: "setDocument"}, func() bool {
		d := Document{Title: s.doc.Title, Topics: cloneTopics(topics)}
		s.doc = s.normalize(d)
		s.sel = firstSelectable(s.doc.Topics)
		return true
	})
}

// Load replaces the document, title included, as when opening a saved project.
func (s *Store) Load(doc Document) {
	s.mutate(Event{Op: "load"}, func() bool {
		s.doc = s.normalize(doc.Clone())
		s.sel = firstSelectable(s.doc.Topics)
		return true
	})
}

// Reset clears the document and the selection.
func (s *Store) Reset() {
	s.mutate(Event{Op: "reset"}, func() bool {
		s.doc = Document{Topics: []Topic{}}
		s.sel = Selection{}
		return true
	})
}

// SetTitle renames the document.
func (s *Store) SetTitle(title string) {
	s.mutate(Event{Op: "setTitle"}, func() bool {
		s.doc.Title = title
		return true
	})
}

// SelectSlide sets the selection without checking that the ids exist.
// A pair with only one id set collapses to the empty selection.
func (s *Store) SelectSlide(topicID, slideID string) {
	s.mutate(Event{Op: "selectSlide", TopicID: topicID, SlideID: slideID}, func() bool {
		if topicID == "" || slideID == "" {
			s.sel = Selection{}
		} else {
			s.sel = Selection{TopicID: topicID, SlideID: slideID}
		}
		return true
	})
}

// --- topics ---

// AddTopic appends an empty topic and returns its id. The selection is unchanged.
func (s *Store) AddTopic(title string) string {
	var id string
	s.mutate(Event{Op: "addTopic"}, func() bool {
		id = s.newID()
		s.doc.Topics = append(s.doc.Topics, Topic{ID: id, Title: title, Slides: []Slide{}})
		return true
	})
	return id
}

// DeleteTopic removes a topic. When it held the selection, the first slide of the
// first remaining topic with slides is selected, else nothing.
func (s *Store) DeleteTopic(topicID string) {
	s.mutate(Event{Op: "deleteTopic", TopicID: topicID}, func() bool {
		idx := s.findTopic(topicID)
		if idx < 0 {
			return false
		}
		s.doc.Topics = append(s.doc.Topics[:idx], s.doc.Topics[idx+1:]...)
		if s.sel.TopicID == topicID {
			s.sel = firstSelectable(s.doc.Topics)
		}
		return true
	})
}

// UpdateTopicTitle renames a topic.
func (s *Store) UpdateTopicTitle(topicID, title string) {
	s.UpdateTopic(topicID, TopicPatch{Title: &title})
}

// UpdateTopic merges p into the topic.
func (s *Store) UpdateTopic(topicID string, p TopicPatch) {
	s.mutate(Event{Op: "updateTopic", TopicID: topicID}, func() bool {
		idx := s.findTopic(topicID)
		if idx < 0 {
			return false
		}
		s.doc.Topics[idx] = MergeTopic(s.doc.Topics[idx], p)
		return true
	})
}

// --- slides ---

// AddSlide appends a slide to the topic, selects it and returns its id.
// It returns "" when the topic does not exist.
func (s *Store) AddSlide(topicID, title string) string {
	var id string
	s.mutate(Event{Op: "addSlide", TopicID: topicID}, func() bool {
		idx := s.findTopic(topicID)
		if idx < 0 {
			return false
		}
		id = s.newID()
		t := &s.doc.Topics[idx]
		t.Slides = append(t.Slides, Slide{ID: id, Title: title, Bullets: []string{}})
		s.sel = Selection{TopicID: topicID, SlideID: id}
		return true
	})
	return id
}

// DeleteSlide removes a slide from its topic. When it was selected, the previous
// sibling (or the new first slide) of the same topic is selected; failing that the
// first slide of the first topic that still has slides; failing that nothing.
func (s *Store) DeleteSlide(topicID, slideID string) {
	s.mutate(Event{Op: "deleteSlide", TopicID: topicID, SlideID: slideID}, func() bool {
		ti := s.findTopic(topicID)
		if ti < 0 {
			return false
		}
		t := &s.doc.Topics[ti]
		si := -1
		for i, sl := range t.Slides {
			if sl.ID == slideID {
				si = i
				break
			}
		}
		if si < 0 {
			return false
		}
		t.Slides = append(t.Slides[:si], t.Slides[si+1:]...)
		if s.sel.SlideID != slideID {
			return true
		}
		if len(t.Slides) > 0 {
			prev := si - 1
			if prev < 0 {
				prev = 0
			}
			s.sel = Selection{TopicID: t.ID, SlideID: t.Slides[prev].ID}
			return true
		}
		s.sel = firstSelectable(s.doc.Topics)
		return true
	})
}

// UpdateSlide merges p into the slide with the given id, wherever it lives.
func (s *Store) UpdateSlide(slideID string, p SlidePatch) {
	s.updateSlide("updateSlide", slideID, func(sl Slide) (Slide, bool) { return MergeSlide(sl, p), true })
}

// UpdateSlideTitle sets a slide title.
func (s *Store) UpdateSlideTitle(slideID, title string) {
	s.updateSlide("updateSlideTitle", slideID, func(sl Slide) (Slide, bool) {
		return MergeSlide(sl, SlidePatch{Title: &title}), true
	})
}

// UpdateSlideContent replaces the bullets of a slide.
func (s *Store) UpdateSlideContent(slideID string, bullets []string) {
	s.updateSlide("updateSlideContent", slideID, func(sl Slide) (Slide, bool) {
		return MergeSlide(sl, SlidePatch{Bullets: &bullets}), true
	})
}

// AddImage appends an image and clears any video.
func (s *Store) AddImage(slideID string, img Image) {
	s.updateSlide("addImage", slideID, func(sl Slide) (Slide, bool) {
		imgs := append(sl.Images, img)
		return MergeSlide(sl, SlidePatch{Images: &imgs}), true
	})
}

// UpdateImage replaces the image at index. Out-of-range indexes are ignored.
func (s *Store) UpdateImage(slideID string, index int, img Image) {
	s.updateSlide("updateImage", slideID, func(sl Slide) (Slide, bool) {
		if index < 0 || index >= len(sl.Images) {
			return sl, false
		}
		imgs := append([]Image(nil), sl.Images...)
		imgs[index] = img
		return MergeSlide(sl, SlidePatch{Images: &imgs}), true
	})
}

// DeleteImage removes the image at index. Out-of-range indexes are ignored.
func (s *Store) DeleteImage(slideID string, index int) {
	s.updateSlide("deleteImage", slideID, func(sl Slide) (Slide, bool) {
		if index < 0 || index >= len(sl.Images) {
			return sl, false
		}
		imgs := make([]Image, 0, len(sl.Images)-1)
		imgs = append(imgs, sl.Images[:index]...)
		imgs = append(imgs, sl.Images[index+1:]...)
		return MergeSlide(sl, SlidePatch{Images: &imgs}), true
	})
}

// SetVideo attaches a video and clears any images.
func (s *Store) SetVideo(slideID string, v Video) {
	s.updateSlide("setVideo", slideID, func(sl Slide) (Slide, bool) {
		vp := &v
		return MergeSlide(sl, SlidePatch{Video: &vp}), true
	})
}

// DeleteVideo removes the video of a slide.
func (s *Store) DeleteVideo(slideID string) {
	s.updateSlide("deleteVideo", slideID, func(sl Slide) (Slide, bool) {
		if sl.Video == nil {
			return sl, false
		}
		var none *Video
		return MergeSlide(sl, SlidePatch{Video: &none}), true
	})
}

// UpdateLayout merges the supplied regions. An omitted region is left as is.
func (s *Store) UpdateLayout(slideID string, p LayoutPatch) {
	s.updateSlide("updateLayout", slideID, func(sl Slide) (Slide, bool) {
		if p.Text == nil && p.Media == nil {
			return sl, false
		}
		return MergeSlide(sl, p.Slide()), true
	})
}

// SetSpeakerNotes sets the notes of a slide.
func (s *Store) SetSpeakerNotes(slideID, text string) {
	s.updateSlide("setSpeakerNotes", slideID, func(sl Slide) (Slide, bool) {
		return MergeSlide(sl, SlidePatch{SpeakerNotes: &text}), true
	})
}

func (s *Store) updateSlide(op, slideID string, fn func(Slide) (Slide, bool)) {
	s.mutate(Event{Op: op, SlideID: slideID}, func() bool {
		ti, si := s.findSlide(slideID)
		if ti < 0 {
			return false
		}
		next, ok := fn(s.doc.Topics[ti].Slides[si])
		if !ok {
			return false
		}
		s.doc.Topics[ti].Slides[si] = next
		return true
	})
}

// --- helpers (callers hold the lock) ---

func (s *Store) findTopic(topicID string) int {
	if topicID == "" {
		return -1
	}
	for i, t := range s.doc.Topics {
		if t.ID == topicID {
			return i
		}
	}
	return -1
}

func (s *Store) findSlide(slideID string) (int, int) {
	if slideID == "" {
		return -1, -1
	}
	for ti, t := range s.doc.Topics {
		for si, sl := range t.Slides {
			if sl.ID == slideID {
				return ti, si
			}
		}
	}
	return -1, -1
}

// normalize gives every topic and slide a unique id, replaces nil slices and
// repairs regions and media exclusivity in documents coming from outside.
func (s *Store) normalize(d Document) Document {
	seen := map[string]bool{}
	fresh := func(id string) string {
		if id == "" || seen[id] {
			id = s.newID()
		}
		seen[id] = true
		return id
	}
	if d.Topics == nil {
		d.Topics = []Topic{}
	}
	for ti := range d.Topics {
		t := &d.Topics[ti]
		t.ID = fresh(t.ID)
		if t.Slides == nil {
			t.Slides = []Slide{}
		}
		for si := range t.Slides {
			sl := &t.Slides[si]
			sl.ID = fresh(sl.ID)
			if sl.Bullets == nil {
				sl.Bullets = []string{}
			}
			if len(sl.Images) > 0 && sl.Video != nil {
				s.log.Warn("slide has images and video; dropping video", slog.String("slide", sl.ID))
				sl.Video = nil
			}
			*sl = MergeSlide(*sl, SlidePatch{TextRegion: sl.TextRegion, MediaRegion: sl.MediaRegion})
		}
	}
	return d
}

func firstSelectable(topics []Topic) Selection {
	for _, t := range topics {
		if len(t.Slides) > 0 {
			return Selection{TopicID: t.ID, SlideID: t.Slides[0].ID}
		}
	}
	return Selection{}
}

func cloneTopics(in []Topic) []Topic {
	if in == nil {
		return nil
	}
	out := make([]Topic, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}
