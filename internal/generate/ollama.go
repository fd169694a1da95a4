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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"deckwriter/internal/deck"
	applog "deckwriter/internal/log"
)

const (
	DefaultOllamaEndpoint = "http://localhost:11434"
	DefaultOllamaModel    = "llama3.1"
)

// Ollama talks to a local Ollama server.
type Ollama struct {
	endpoint string
	model    string
	client   *http.Client
	log      *slog.Logger
}

// NewOllama creates a client. Empty values fall back to the defaults.
func NewOllama(endpoint, model string, timeout time.Duration) *Ollama {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		endpoint = DefaultOllamaEndpoint
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Ollama{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: timeout},
		log:      applog.WithComponent("generate").With(slog.String("provider", "ollama")),
	}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

func (o *Ollama) generate(ctx context.Context, prompt, format string) (string, error) {
	body, err := json.Marshal(ollamaRequest{Model: o.model, Prompt: prompt, Format: format})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var or ollamaResponse
	decodeErr := json.Unmarshal(raw, &or)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && or.Error != "" {
			msg = or.Error
		}
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, decodeErr)
	}
	o.log.Debug("generate", slog.String("model", o.model), slog.Int("bytes", len(or.Response)))
	return or.Response, nil
}

func (o *Ollama) Outline(ctx context.Context, prompt string, refs []Reference) ([]deck.Topic, error) {
	out, err := o.generate(ctx, outlinePrompt(prompt, refs), "json")
	if err != nil {
		return nil, wrap("ollama", "outline", err)
	}
	topics, err := ParseOutlineJSON([]byte(out))
	return topics, wrap("ollama", "outline", err)
}

func (o *Ollama) Bullets(ctx context.Context, slideTitle, docTitle string) ([]string, error) {
	out, err := o.generate(ctx, bulletsPrompt(slideTitle, docTitle), "json")
	if err != nil {
		return nil, wrap("ollama", "bullets", err)
	}
	bullets, err := ParseBulletsJSON([]byte(out))
	return bullets, wrap("ollama", "bullets", err)
}

func (o *Ollama) Notes(ctx context.Context, slideTitle string, bullets []string, docTitle string) (string, error) {
	out, err := o.generate(ctx, notesPrompt(slideTitle, bullets, docTitle), "")
	if err != nil {
		return "", wrap("ollama", "notes", err)
	}
	return strings.TrimSpace(out), nil
}

// Image is not available from Ollama text models.
func (o *Ollama) Image(context.Context, string) (deck.Image, error) {
	return deck.Image{}, wrap("ollama", "image", ErrUnsupported)
}

// Ping checks that the endpoint answers.
func (o *Ollama) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return wrap("ollama", "ping", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return wrap("ollama", "ping", fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

var _ Generator = (*Ollama)(nil)
