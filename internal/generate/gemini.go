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
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"deckwriter/internal/deck"
	applog "deckwriter/internal/log"
)

const (
	DefaultGeminiBaseURL    = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel      = "gemini-2.5-flash"
	DefaultGeminiImageModel = "gemini-2.5-flash-image"
)

// GeminiOptions tunes the Gemini client. Zero values use the defaults.
type GeminiOptions struct {
	BaseURL    string
	Model      string
	ImageModel string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Gemini calls the generateContent REST endpoint.
type Gemini struct {
	baseURL    string
	model      string
	imageModel string
	key        string
	client     *http.Client
	log        *slog.Logger
}

// NewGemini creates a client for the given API key.
func NewGemini(apiKey string, opts GeminiOptions) *Gemini {
	g := &Gemini{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		model:      opts.Model,
		imageModel: opts.ImageModel,
		key:        apiKey,
		client:     opts.HTTPClient,
		log:        applog.WithComponent("generate").With(slog.String("provider", "gemini")),
	}
	if g.baseURL == "" {
		g.baseURL = DefaultGeminiBaseURL
	}
	if g.model == "" {
		g.model = DefaultGeminiModel
	}
	if g.imageModel == "" {
		g.imageModel = DefaultGeminiImageModel
	}
	if g.client == nil {
		to := opts.Timeout
		if to <= 0 {
			to = 60 * time.Second
		}
		g.client = &http.Client{Timeout: to}
	}
	return g
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMimeType   string   `json:"responseMimeType,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (g *Gemini) generate(ctx context.Context, model, op, prompt string, gc *geminiGenerationConfig) ([]geminiPart, error) {
	body, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: gc,
	})
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, url.PathEscape(model), url.QueryEscape(g.key))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var gr geminiResponse
	decodeErr := json.Unmarshal(raw, &gr)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && gr.Error != nil {
			msg = gr.Error.Message
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden ||
			strings.Contains(msg, "API key not valid") {
			return nil, fmt.Errorf("%w: %s", ErrAuth, msg)
		}
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, decodeErr)
	}
	if len(gr.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates", ErrMalformed)
	}
	g.log.Debug("generateContent", slog.String("op", op), slog.String("model", model), slog.Duration("took", time.Since(start)))
	return gr.Candidates[0].Content.Parts, nil
}

func joinText(parts []geminiPart) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

func (g *Gemini) Outline(ctx context.Context, prompt string, refs []Reference) ([]deck.Topic, error) {
	parts, err := g.generate(ctx, g.model, "outline", outlinePrompt(prompt, refs), &geminiGenerationConfig{ResponseMimeType: "application/json"})
	if err != nil {
		return nil, wrap("gemini", "outline", err)
	}
	topics, err := ParseOutlineJSON([]byte(joinText(parts)))
	return topics, wrap("gemini", "outline", err)
}

func (g *Gemini) Bullets(ctx context.Context, slideTitle, docTitle string) ([]string, error) {
	parts, err := g.generate(ctx, g.model, "bullets", bulletsPrompt(slideTitle, docTitle), &geminiGenerationConfig{ResponseMimeType: "application/json"})
	if err != nil {
		return nil, wrap("gemini", "bullets", err)
	}
	bullets, err := ParseBulletsJSON([]byte(joinText(parts)))
	return bullets, wrap("gemini", "bullets", err)
}

func (g *Gemini) Notes(ctx context.Context, slideTitle string, bullets []string, docTitle string) (string, error) {
	parts, err := g.generate(ctx, g.model, "notes", notesPrompt(slideTitle, bullets, docTitle), nil)
	if err != nil {
		return "", wrap("gemini", "notes", err)
	}
	return strings.TrimSpace(joinText(parts)), nil
}

func (g *Gemini) Image(ctx context.Context, prompt string) (deck.Image, error) {
	parts, err := g.generate(ctx, g.imageModel, "image", prompt, &geminiGenerationConfig{ResponseModalities: []string{"IMAGE"}})
	if err != nil {
		return deck.Image{}, wrap("gemini", "image", err)
	}
	for _, p := range parts {
		if p.InlineData == nil || p.InlineData.Data == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
		if err != nil {
			return deck.Image{}, wrap("gemini", "image", fmt.Errorf("%w: %v", ErrMalformed, err))
		}
		return deck.Image{Data: data, MimeType: p.InlineData.MimeType, Prompt: prompt}, nil
	}
	return deck.Image{}, wrap("gemini", "image", ErrNoImage)
}

var _ Generator = (*Gemini)(nil)

// Ping sends a tiny request to check the key.
func (g *Gemini) Ping(ctx context.Context) error {
	_, err := g.generate(ctx, g.model, "ping", "hello", nil)
	if err != nil && !errors.Is(err, ErrMalformed) {
		return wrap("gemini", "ping", err)
	}
	return nil
}
