/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package generate

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"deckwriter/internal/deck"
)

// ParseError reports an outline line that could not be classified.
type ParseError struct {
	Line    int
	Message string
}

func (e ParseError) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Message) }

var (
	reTopic  = regexp.MustCompile(`^#+\s*(.*)$`)
	reSlide  = regexp.MustCompile(`^[-+]\s+(.+)$`)
	reBullet = regexp.MustCompile(`^[*\-•]\s*(.+)$`)
	reNotes  = regexp.MustCompile(`^>\s?(.*)$`)
)

// ParseOutline reads a plain-text outline:
//
//	# Topic title
//	- Slide title
//	  * bullet (indented)
//	  > speaker notes (indented, joined with newlines)
//	; comment
//
// Lines before the first heading go into an implicit "Untitled" topic.
// Unknown lines are reported and kept as bullets of the current slide.
func ParseOutline(input string) ([]deck.Topic, []ParseError) {
	var (
		topics []deck.Topic
		errs   []ParseError
		cur    *deck.Topic
		slide  *deck.Slide
	)
	flushSlide := func() {
		if slide != nil && cur != nil {
			cur.Slides = append(cur.Slides, *slide)
		}
		slide = nil
	}
	flushTopic := func() {
		flushSlide()
		if cur != nil {
			topics = append(topics, *cur)
		}
		cur = nil
	}
	ensureTopic := func() {
		if cur == nil {
			cur = &deck.Topic{ID: uuid.NewString(), Title: "Untitled", Slides: []deck.Slide{}}
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(input))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimRight(scanner.Text(), "\r\n")
		indented := strings.HasPrefix(raw, "  ") || strings.HasPrefix(raw, "\t")
		trim := strings.TrimSpace(raw)
		if trim == "" || strings.HasPrefix(trim, ";") {
			continue
		}

		if m := reTopic.FindStringSubmatch(trim); m != nil && !indented {
			flushTopic()
			cur = &deck.Topic{ID: uuid.NewString(), Title: strings.TrimSpace(m[1]), Slides: []deck.Slide{}}
			continue
		}
		if !indented {
			if m := reSlide.FindStringSubmatch(trim); m != nil {
				ensureTopic()
				flushSlide()
				slide = &deck.Slide{ID: uuid.NewString(), Title: strings.TrimSpace(m[1]), Bullets: []string{}}
				continue
			}
		}
		if slide == nil {
			errs = append(errs, ParseError{Line: lineNo, Message: fmt.Sprintf("content outside a slide: %q", trim)})
			continue
		}
		if m := reNotes.FindStringSubmatch(trim); m != nil {
			n := strings.TrimSpace(m[1])
			if prev := slide.Notes(); prev != "" {
				n = prev + "\n" + n
			}
			slide.SpeakerNotes = &n
			continue
		}
		if m := reBullet.FindStringSubmatch(trim); m != nil {
			slide.Bullets = append(slide.Bullets, strings.TrimSpace(m[1]))
			continue
		}
		errs = append(errs, ParseError{Line: lineNo, Message: "unmarked line kept as bullet"})
		slide.Bullets = append(slide.Bullets, trim)
	}
	flushTopic()
	if err := scanner.Err(); err != nil {
		errs = append(errs, ParseError{Line: lineNo, Message: err.Error()})
	}
	return topics, errs
}

// Offline produces deterministic content without any network access.
type Offline struct{}

// NewOffline returns the offline generator.
func NewOffline() *Offline { return &Offline{} }

// Outline parses prompt when it already is an outline, otherwise it returns a
// generic talk structure around the prompt as subject.
func (Offline) Outline(_ context.Context, prompt string, refs []Reference) ([]deck.Topic, error) {
	if strings.Contains(prompt, "\n") || strings.HasPrefix(strings.TrimSpace(prompt), "#") {
		if topics, _ := ParseOutline(prompt); len(topics) > 0 {
			return topics, nil
		}
	}
	for _, r := range refs {
		if topics, errs := ParseOutline(r.Truncated()); len(topics) > 0 && len(errs) == 0 {
			return topics, nil
		}
	}
	subject := strings.TrimSpace(prompt)
	if subject == "" {
		return nil, &Error{Provider: "offline", Op: "outline", Err: fmt.Errorf("%w: empty prompt", ErrMalformed)}
	}
	titles := []string{
		"Introduction to " + subject,
		"Key Features of " + subject,
		"Applications of " + subject,
		"Future of " + subject,
		"Conclusion and Q&A",
	}
	out := make([]deck.Topic, 0, len(titles))
	for _, t := range titles {
		out = append(out, deck.Topic{ID: uuid.NewString(), Title: t, Slides: []deck.Slide{
			{ID: uuid.NewString(), Title: "Overview", Bullets: []string{}},
			{ID: uuid.NewString(), Title: "Key takeaways", Bullets: []string{}},
		}})
	}
	return out, nil
}

func (Offline) Bullets(_ context.Context, slideTitle, docTitle string) ([]string, error) {
	return cleanBullets([]string{
		fmt.Sprintf("What %s means", slideTitle),
		fmt.Sprintf("Why it matters for %s", docTitle),
		"One concrete example",
	}), nil
}

func (Offline) Notes(_ context.Context, slideTitle string, bullets []string, docTitle string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "This slide, %q, is part of %q.", slideTitle, docTitle)
	for _, p := range bullets {
		fmt.Fprintf(&b, "\nTalk through: %s.", strings.TrimSuffix(p, "."))
	}
	b.WriteString("\nThen hand over to the next slide.")
	return b.String(), nil
}

// Image renders a gradient whose colours derive from the prompt.
func (Offline) Image(_ context.Context, prompt string) (deck.Image, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(prompt))
	sum := h.Sum32()
	from := color.RGBA{R: uint8(sum), G: uint8(sum >> 8), B: uint8(sum >> 16), A: 255}
	to := color.RGBA{R: 255 - from.R, G: 255 - from.G, B: 255 - from.B, A: 255}
	const w, hgt = 320, 180
	img := image.NewRGBA(image.Rect(0, 0, w, hgt))
	for x := 0; x < w; x++ {
		t := float64(x) / (w - 1)
		c := color.RGBA{
			R: uint8(float64(from.R)*(1-t) + float64(to.R)*t),
			G: uint8(float64(from.G)*(1-t) + float64(to.G)*t),
			B: uint8(float64(from.B)*(1-t) + float64(to.B)*t),
			A: 255,
		}
		for y := 0; y < hgt; y++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return deck.Image{}, wrap("offline", "image", err)
	}
	return deck.Image{Data: buf.Bytes(), MimeType: "image/png", Prompt: prompt}, nil
}

var _ Generator = Offline{}
