/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package generate drafts outlines, bullets, speaker notes and images through a
// text generation provider (Gemini, Ollama) or an offline fallback.
//
// Generators never touch a deck.Store; callers apply results through Store
// operations once a call has fully succeeded.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"deckwriter/internal/config"
	"deckwriter/internal/deck"
)

// Generator is implemented by every provider.
type Generator interface {
	// Outline returns topics with slide titles and no content.
	Outline(ctx context.Context, prompt string, refs []Reference) ([]deck.Topic, error)
	// Bullets drafts three to five bullet points for one slide.
	Bullets(ctx context.Context, slideTitle, docTitle string) ([]string, error)
	Image(ctx context.Context, prompt string) (deck.Image, error)
	Notes(ctx context.Context, slideTitle string, bullets []string, docTitle string) (string, error)
}

// Reference is user supplied material that steers the outline.
type Reference struct {
	Name    string
	Content string
}

const (
	// ReferenceCharLimit caps each reference before it is added to a prompt.
	ReferenceCharLimit = 20000
	truncatedSuffix    = "... [Content Truncated]"
)

// Truncated returns Content cut to ReferenceCharLimit characters with a marker.
func (r Reference) Truncated() string {
	runes := []rune(r.Content)
	if len(runes) <= ReferenceCharLimit {
		return r.Content
	}
	return string(runes[:ReferenceCharLimit]) + truncatedSuffix
}

var (
	ErrAuth        = errors.New("invalid API key")
	ErrMalformed   = errors.New("invalid format")
	ErrNoImage     = errors.New("no image was generated")
	ErrUnsupported = errors.New("operation not supported by provider")
)

// Error wraps a provider failure.
type Error struct {
	Provider string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return err
	}
	return &Error{Provider: provider, Op: op, Err: err}
}

// New builds the generator named by cfg.Provider.
func New(cfg config.GenerationConfig, apiKey string) (Generator, error) {
	timeout := config.Timeout(cfg.TimeoutMs, 60*time.Second)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "gemini":
		if strings.TrimSpace(apiKey) == "" {
			return nil, &Error{Provider: "gemini", Op: "init", Err: fmt.Errorf("%w: Gemini API key is not set", ErrAuth)}
		}
		return NewGemini(apiKey, GeminiOptions{Model: cfg.Model, ImageModel: cfg.ImageModel, Timeout: timeout}), nil
	case "ollama":
		return NewOllama(cfg.OllamaEndpoint, cfg.OllamaModel, timeout), nil
	case "offline":
		return NewOffline(), nil
	}
	return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
}

func outlinePrompt(prompt string, refs []Reference) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are an expert presentation creator. Generate a structured outline for a presentation about "%s". The outline should consist of several main topics, and each main topic should have a few subtopics. Each subtopic will become a slide.

The response must be a JSON array of topics. Each topic object has a "title" (string) and "subtopics" (an array of objects with a "title" string). Do not include any other properties.

Example response format:
[{"title": "Introduction to Topic", "subtopics": [{"title": "What is Topic?"}, {"title": "Importance of Topic"}]}]`, prompt)
	if len(refs) > 0 {
		b.WriteString("\n\nUse the following reference material to inform the outline:\n")
		for _, r := range refs {
			fmt.Fprintf(&b, "\n--- Reference: %s ---\n%s\n--- End Reference ---", r.Name, r.Truncated())
		}
	}
	return b.String()
}

func bulletsPrompt(slideTitle, docTitle string) string {
	return fmt.Sprintf(`For a presentation titled "%s", generate 3-5 concise bullet points for a slide with the title "%s". The bullet points should be short and to the point.

Return the response as a JSON array of strings. Each string is one bullet point. Do not use markdown formatting.`, docTitle, slideTitle)
}

func notesPrompt(slideTitle string, bullets []string, docTitle string) string {
	lines := make([]string, len(bullets))
	for i, b := range bullets {
		lines[i] = "- " + b
	}
	return fmt.Sprintf(`You are a presentation coach. For a presentation titled "%s", write speaker notes for a slide titled "%s".

The content on the slide consists of these bullet points:
%s

The speaker notes should elaborate on the bullet points, provide context, and perhaps suggest a transition to the next slide. Use a conversational and engaging tone. Write a few paragraphs. Return only the notes as plain text, without any markdown or titles.`, docTitle, slideTitle, strings.Join(lines, "\n"))
}

// CleanBullet strips a leading markdown list marker.
func CleanBullet(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "- ") {
		s = strings.TrimSpace(s[2:])
	}
	return s
}

func cleanBullets(in []string) []string {
	out := make([]string, 0, len(in))
	for _, b := range in {
		if c := CleanBullet(b); c != "" {
			out = append(out, c)
		}
	}
	return out
}
