/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"inkwell/internal/domain"
)

// Client is a minimal HTTP client for the sync API. The desktop app uses it
// under a feature flag to push note snapshots and list what the server holds.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new sync client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	b := strings.TrimRight(baseURL, "/")
	return &Client{
		BaseURL: b,
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server %s %s: %s", method, u.Path, resp.Status)
	}
	if dest == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(dest)
}

// ListNotes returns the note snapshots the server holds for this token's subject.
func (c *Client) ListNotes(ctx context.Context) ([]Note, error) {
	var list []Note
	if err := c.doJSON(ctx, http.MethodGet, "/api/notes", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// PushDocument uploads one local document as a note snapshot. The local id
// becomes the client_id on the server, so repeated pushes overwrite.
func (c *Client) PushDocument(ctx context.Context, doc domain.Document) error {
	n := Note{
		ClientID: doc.ID,
		Path:     doc.Path,
		Title:    doc.Title,
		Content:  doc.Content,
		Archived: doc.Archived,
		Modified: doc.Modified,
	}
	return c.doJSON(ctx, http.MethodPut, "/api/notes", n, nil)
}

// GetNote fetches one note snapshot by its client id.
func (c *Client) GetNote(ctx context.Context, clientID int64) (*Note, error) {
	var n Note
	path := fmt.Sprintf("/api/notes/%d", clientID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}
