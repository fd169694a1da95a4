/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package repository

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"deckwriter/internal/deck"
)

// SaveRequest is the body of POST /api/projects.
type SaveRequest struct {
	Name     string        `json:"name"`
	Document deck.Document `json:"document"`
}

// SaveResponse is returned by POST /api/projects.
type SaveResponse struct {
	ID string `json:"id"`
}

// Record is returned by GET /api/projects/{id}.
type Record struct {
	ID       string        `json:"id"`
	Document deck.Document `json:"document"`
}

// TokenResponse is returned by POST /api/auth/token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// AdminKeyHeader carries the server's admin key on token requests.
const AdminKeyHeader = "X-Admin-Key"

// RemoteOptions tunes the HTTP client.
type RemoteOptions struct {
	Timeout     time.Duration
	TLSInsecure bool
	HTTPClient  *http.Client
	// AdminKey is sent with RequestToken.
	AdminKey string
}

// Remote talks to a deckwriter server.
type Remote struct {
	BaseURL  string
	Token    string // bearer token
	adminKey string
	client   *http.Client
}

// NewRemote creates a client. baseURL may include a trailing slash; it will be normalized.
func NewRemote(baseURL, token string, opts RemoteOptions) (*Remote, error) {
	b := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if _, err := url.ParseRequestURI(b); err != nil || b == "" {
		return nil, fmt.Errorf("invalid server url %q", baseURL)
	}
	hc := opts.HTTPClient
	if hc == nil {
		to := opts.Timeout
		if to <= 0 {
			to = 10 * time.Second
		}
		hc = &http.Client{Timeout: to}
		if opts.TLSInsecure {
			hc.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
		}
	}
	return &Remote{BaseURL: b, Token: token, adminKey: opts.AdminKey, client: hc}, nil
}

// statusError carries a non-2xx response.
type statusError struct {
	Method, Path string
	Status       int
	Msg          string
}

func (e *statusError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("server %s %s: %d %s", e.Method, e.Path, e.Status, e.Msg)
	}
	return fmt.Sprintf("server %s %s: %d", e.Method, e.Path, e.Status)
}

func (c *Remote) doJSON(ctx context.Context, method, p string, body, dest any) error {
	return c.do(ctx, method, p, nil, body, dest)
}

func (c *Remote) do(ctx context.Context, method, p string, hdr http.Header, body, dest any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+p, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	for k, v := range hdr {
		req.Header[k] = v
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(b, &e) != nil {
			e.Error = strings.TrimSpace(string(b))
		}
		return &statusError{Method: method, Path: p, Status: resp.StatusCode, Msg: e.Error}
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func (c *Remote) Save(ctx context.Context, name string, doc deck.Document) (string, error) {
	var out SaveResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/projects", SaveRequest{Name: name, Document: doc}, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Remote) Load(ctx context.Context, id string) (deck.Document, error) {
	var rec Record
	if err := c.doJSON(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(id), nil, &rec); err != nil {
		return deck.Document{}, err
	}
	return rec.Document, nil
}

func (c *Remote) List(ctx context.Context) ([]Entry, error) {
	var list []Entry
	if err := c.doJSON(ctx, http.MethodGet, "/api/projects", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Remote) Delete(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/projects/"+url.PathEscape(id), nil, nil)
}

// Search uses the server's search endpoint; servers without an index answer 501.
func (c *Remote) Search(ctx context.Context, text string, limit int) ([]Hit, error) {
	q := url.Values{"q": {text}}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	var hits []Hit
	if err := c.doJSON(ctx, http.MethodGet, "/api/search?"+q.Encode(), nil, &hits); err != nil {
		return nil, err
	}
	return hits, nil
}

// RequestToken asks the server for a bearer token and stores it on the client.
func (c *Remote) RequestToken(ctx context.Context, subject string) (TokenResponse, error) {
	var tr TokenResponse
	body := map[string]any{"subject": subject}
	var hdr http.Header
	if c.adminKey != "" {
		hdr = http.Header{AdminKeyHeader: {c.adminKey}}
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/token", hdr, body, &tr); err != nil {
		return tr, err
	}
	if tr.Token == "" {
		return tr, errors.New("server returned an empty token")
	}
	c.Token = tr.Token
	return tr, nil
}

func (c *Remote) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
