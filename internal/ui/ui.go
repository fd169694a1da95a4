/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package ui is the desktop slide editor. The Fyne front end is only compiled
// with -tags fyne; the viewport maths is shared with headless builds.
package ui

import "deckwriter/internal/generate"

// Options configures Run.
type Options struct {
	// DeckDir is opened at start; empty shows an empty deck until one is opened.
	DeckDir string
	// Generator drafts content; nil hides the draft actions.
	Generator generate.Generator
	// Provider names the generator in telemetry events.
	Provider string
}
