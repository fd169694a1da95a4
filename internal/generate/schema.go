/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package generate

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"deckwriter/internal/deck"
)

//go:embed outline.schema.json
var outlineSchemaJSON []byte

//go:embed bullets.schema.json
var bulletsSchemaJSON []byte

var (
	schemaOnce    sync.Once
	outlineSchema *gojsonschema.Schema
	bulletsSchema *gojsonschema.Schema
	schemaErr     error
)

func schemas() (*gojsonschema.Schema, *gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		outlineSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(outlineSchemaJSON))
		if schemaErr != nil {
			return
		}
		bulletsSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(bulletsSchemaJSON))
	})
	return outlineSchema, bulletsSchema, schemaErr
}

type outlineTopic struct {
	Title     string `json:"title"`
	Subtopics []struct {
		Title string `json:"title"`
	} `json:"subtopics"`
}

// unwrapArray accepts a bare array or an object carrying the array under key.
// Local models in JSON mode often answer with an object.
func unwrapArray(raw []byte, key string) []byte {
	raw = bytes.TrimSpace(stripFence(raw))
	if len(raw) == 0 || raw[0] != '{' {
		return raw
	}
	var obj map[string]json.RawMessage
	if json.Unmarshal(raw, &obj) != nil {
		return raw
	}
	if v, ok := obj[key]; ok {
		return v
	}
	return raw
}

// stripFence removes a surrounding markdown code fence.
func stripFence(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(s, "```") {
		return raw
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return []byte(s)
}

func validate(s *gojsonschema.Schema, raw []byte) error {
	res, err := s.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !res.Valid() {
		var msgs []string
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrMalformed, strings.Join(msgs, "; "))
	}
	return nil
}

// ParseOutlineJSON validates a provider answer and maps it to topics with fresh ids.
func ParseOutlineJSON(raw []byte) ([]deck.Topic, error) {
	ol, _, err := schemas()
	if err != nil {
		return nil, err
	}
	raw = unwrapArray(raw, "topics")
	if err := validate(ol, raw); err != nil {
		return nil, err
	}
	var in []outlineTopic
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	out := make([]deck.Topic, 0, len(in))
	for _, t := range in {
		topic := deck.Topic{ID: uuid.NewString(), Title: strings.TrimSpace(t.Title), Slides: []deck.Slide{}}
		for _, s := range t.Subtopics {
			topic.Slides = append(topic.Slides, deck.Slide{ID: uuid.NewString(), Title: strings.TrimSpace(s.Title), Bullets: []string{}})
		}
		out = append(out, topic)
	}
	return out, nil
}

// ParseBulletsJSON validates a bullet list answer and strips list markers.
func ParseBulletsJSON(raw []byte) ([]string, error) {
	_, bs, err := schemas()
	if err != nil {
		return nil, err
	}
	raw = unwrapArray(raw, "bullets")
	if err := validate(bs, raw); err != nil {
		return nil, err
	}
	var in []string
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return cleanBullets(in), nil
}
