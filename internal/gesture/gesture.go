/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package gesture turns a pointer press, moves and release into one layout commit.
package gesture

import (
	"errors"
	"log/slog"
	"sync"

	"deckwriter/internal/deck"
	"deckwriter/internal/geometry"
	applog "deckwriter/internal/log"
	"deckwriter/internal/projector"
)

var (
	// ErrActive is returned by Begin while another gesture is running.
	ErrActive = errors.New("gesture already active")
	// ErrUnknownSlide is returned by Begin when the slide does not exist.
	ErrUnknownSlide = errors.New("unknown slide")
)

// State of the controller.
type State int

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// Point is a pointer position in container pixels.
type Point struct{ X, Y float64 }

// Preview describes the live candidate after a pointer move.
type Preview struct {
	SlideID string
	Region  deck.Region
	Rect    geometry.Rect
}

// Option configures a Controller.
type Option func(*Controller)

// WithPreview registers a callback run after each Move with the live candidate.
func WithPreview(fn func(Preview)) Option { return func(c *Controller) { c.onPreview = fn } }

// Controller owns at most one running gesture.
type Controller struct {
	store     *deck.Store
	onPreview func(Preview)
	log       *slog.Logger

	mu        sync.Mutex
	state     State
	slideID   string
	region    deck.Region
	mode      geometry.Mode
	start     geometry.Rect
	origin    Point
	container geometry.Size
	live      geometry.Rect
	moved     bool
}

// New returns an idle controller committing into store.
func New(store *deck.Store, opts ...Option) *Controller {
	c := &Controller{store: store, log: applog.WithComponent("gesture")}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State reports Idle or Active.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Begin starts a gesture on one region of a slide. The region's current rect,
// explicit or default, becomes the fixed basis for every Move.
func (c *Controller) Begin(slideID string, region deck.Region, mode geometry.Mode, at Point, container geometry.Size) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Active {
		return ErrActive
	}
	sl, ok := c.store.Slide(slideID)
	if !ok {
		return ErrUnknownSlide
	}
	c.state = Active
	c.slideID = slideID
	c.region = region
	c.mode = mode
	c.start = projector.RegionRect(sl, region)
	c.live = c.start
	c.origin = at
	c.container = container
	c.moved = false
	c.log.Debug("begin", slog.String("slide", slideID), slog.String("region", region.String()), slog.String("mode", mode.String()))
	return nil
}

// Move recomputes the candidate from the original rect and the total pointer
// displacement. It returns the candidate; while Idle it returns the zero Rect.
func (c *Controller) Move(at Point) geometry.Rect {
	c.mu.Lock()
	if c.state != Active {
		c.mu.Unlock()
		return geometry.Rect{}
	}
	d := geometry.Delta{DX: at.X - c.origin.X, DY: at.Y - c.origin.Y}
	c.live = geometry.Apply(c.start, c.mode, d, c.container)
	c.moved = true
	p := Preview{SlideID: c.slideID, Region: c.region, Rect: c.live}
	fn := c.onPreview
	c.mu.Unlock()

	if fn != nil {
		fn(p)
	}
	return p.Rect
}

// End commits the last candidate and returns to Idle. A gesture without any
// Move commits nothing and reports false.
func (c *Controller) End() (geometry.Rect, bool) {
	c.mu.Lock()
	if c.state != Active {
		c.mu.Unlock()
		return geometry.Rect{}, false
	}
	slideID, region, rect, moved := c.slideID, c.region, c.live, c.moved
	c.reset()
	c.mu.Unlock()

	if !moved {
		return rect, false
	}
	c.store.UpdateLayout(slideID, deck.ForRegion(region, rect))
	c.log.Debug("commit", slog.String("slide", slideID), slog.String("region", region.String()),
		slog.Float64("x", rect.X), slog.Float64("y", rect.Y), slog.Float64("w", rect.Width), slog.Float64("h", rect.Height))
	return rect, true
}

// Cancel drops the running gesture. The committed layout is unchanged.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Active {
		c.log.Debug("cancel", slog.String("slide", c.slideID))
	}
	c.reset()
}

// Live returns the uncommitted candidate when a gesture on that region is running.
func (c *Controller) Live(slideID string, region deck.Region) (geometry.Rect, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Active || c.slideID != slideID || c.region != region {
		return geometry.Rect{}, false
	}
	return c.live, true
}

func (c *Controller) reset() {
	c.state = Idle
	c.slideID = ""
	c.moved = false
	c.live = geometry.Rect{}
	c.start = geometry.Rect{}
}
