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
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inkwell/internal/domain"
)

func TestTokenSignAndVerify(t *testing.T) {
	secret := "test-secret"
	tok, err := signToken(secret, "alice", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}
	sub, err := verifyToken(secret, tok)
	if err != nil {
		t.Fatalf("verifyToken: %v", err)
	}
	if sub != "alice" {
		t.Fatalf("subject = %q, want alice", sub)
	}
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	secret := "test-secret"
	tok, err := signToken(secret, "alice", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}
	if _, err := verifyToken(secret, tok); err == nil {
		t.Fatalf("expired token verified")
	}
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	tok, err := signToken("secret-a", "alice", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}
	if _, err := verifyToken("secret-b", tok); err == nil {
		t.Fatalf("token signed with another secret verified")
	}
	if _, err := verifyToken("secret-a", "not.a.token.at.all"); err == nil {
		t.Fatalf("malformed token verified")
	}
}

func TestWithAuthRequiresBearer(t *testing.T) {
	secret := "test-secret"
	var gotSub string
	h := withAuth(secret, func(w http.ResponseWriter, r *http.Request, sub string) {
		gotSub = sub
		w.WriteHeader(http.StatusNoContent)
	})

	// No header
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/notes", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status %d", rec.Code)
	}

	// Valid header
	tok, _ := signToken(secret, "bob", time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h(rec, req)
	if rec.Code != http.StatusNoContent || gotSub != "bob" {
		t.Fatalf("valid token rejected: status %d sub %q", rec.Code, gotSub)
	}
}

// fakeSyncServer implements the wire API in memory so Client can be tested
// without Postgres.
func fakeSyncServer(t *testing.T) (*httptest.Server, map[int64]Note) {
	t.Helper()
	notes := map[int64]Note{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/notes", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			list := make([]Note, 0, len(notes))
			for _, n := range notes {
				list = append(list, n)
			}
			writeJSON(w, http.StatusOK, list)
		case http.MethodPut, http.MethodPost:
			b, _ := io.ReadAll(r.Body)
			var n Note
			if err := json.Unmarshal(b, &n); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			notes[n.ClientID] = n
			writeJSON(w, http.StatusOK, map[string]any{"client_id": n.ClientID})
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, notes
}

func TestClientPushAndList(t *testing.T) {
	srv, notes := fakeSyncServer(t)
	c := NewClient(srv.URL+"/", "tok")

	doc := domain.Document{ID: 7, Title: "Synced", Content: "body", Path: "/Work", Modified: time.Now()}
	if err := c.PushDocument(context.Background(), doc); err != nil {
		t.Fatalf("PushDocument: %v", err)
	}
	if n, ok := notes[7]; !ok || n.Title != "Synced" || n.Path != "/Work" {
		t.Fatalf("server state wrong: %+v", notes)
	}

	list, err := c.ListNotes(context.Background())
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if len(list) != 1 || list[0].ClientID != 7 {
		t.Fatalf("list wrong: %+v", list)
	}
}

func TestClientErrorOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "")
	if _, err := c.ListNotes(context.Background()); err == nil {
		t.Fatalf("expected error on 500")
	}
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("001_create_notes.sql")
	if err != nil || v != 1 {
		t.Fatalf("parseVersion: v=%d err=%v", v, err)
	}
	if _, err := parseVersion("bogus.sql"); err == nil {
		t.Fatalf("expected error for unversioned name")
	}
}
