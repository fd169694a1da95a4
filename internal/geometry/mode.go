/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geometry

import (
	"fmt"
	"strings"
)

// ModeKind selects between moving and resizing a region.
type ModeKind int

const (
	Move ModeKind = iota
	Resize
)

// Handle names the grip used for a resize.
type Handle int

const (
	TopLeft Handle = iota
	Top
	TopRight
	Left
	Right
	BottomLeft
	Bottom
	BottomRight
)

var handleCodes = [...]string{"tl", "t", "tr", "l", "r", "bl", "b", "br"}

// Handles lists every handle in display order.
func Handles() []Handle {
	return []Handle{TopLeft, Top, TopRight, Left, Right, BottomLeft, Bottom, BottomRight}
}

// String returns the short code (tl, t, tr, l, r, bl, b, br).
func (h Handle) String() string {
	if h < 0 || int(h) >= len(handleCodes) {
		return fmt.Sprintf("handle(%d)", int(h))
	}
	return handleCodes[h]
}

// ParseHandle parses a short code as returned by Handle.String.
func ParseHandle(s string) (Handle, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, c := range handleCodes {
		if c == s {
			return Handle(i), nil
		}
	}
	return 0, fmt.Errorf("unknown resize handle %q", s)
}

type edgeSet struct{ top, left, bottom, right bool }

func (h Handle) edges() edgeSet {
	switch h {
	case TopLeft:
		return edgeSet{top: true, left: true}
	case Top:
		return edgeSet{top: true}
	case TopRight:
		return edgeSet{top: true, right: true}
	case Left:
		return edgeSet{left: true}
	case Right:
		return edgeSet{right: true}
	case BottomLeft:
		return edgeSet{bottom: true, left: true}
	case Bottom:
		return edgeSet{bottom: true}
	case BottomRight:
		return edgeSet{bottom: true, right: true}
	}
	return edgeSet{}
}

// Mode is the edit applied by a gesture.
type Mode struct {
	Kind   ModeKind
	Handle Handle // only meaningful for Resize
}

// MoveMode returns the mode for dragging a whole region.
func MoveMode() Mode { return Mode{Kind: Move} }

// ResizeMode returns the mode for dragging the given handle.
func ResizeMode(h Handle) Mode { return Mode{Kind: Resize, Handle: h} }

// String renders "move" or "resize:<handle>".
func (m Mode) String() string {
	if m.Kind == Move {
		return "move"
	}
	return "resize:" + m.Handle.String()
}

// ParseMode accepts "move", "resize:<handle>" or a bare handle code.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "move" || s == "drag" {
		return MoveMode(), nil
	}
	s = strings.TrimPrefix(s, "resize:")
	h, err := ParseHandle(s)
	if err != nil {
		return Mode{}, err
	}
	return ResizeMode(h), nil
}
