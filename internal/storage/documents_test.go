/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"testing"

	"inkwell/internal/domain"
)

func testDoc(title string) domain.Document {
	return domain.Document{Title: title, Content: "body of " + title}
}

func TestAddThenGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	id, err := s.Add(ctx, testDoc("First"), "/Work")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "First" || got.Content != "body of First" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Archived {
		t.Fatalf("new document must not be archived")
	}
	if got.Path != "/Work" {
		t.Fatalf("path mismatch: %q", got.Path)
	}
	if got.Created.IsZero() || got.Modified.IsZero() {
		t.Fatalf("timestamps not set: %+v", got)
	}
}

func TestAddPrefersDocumentOwnPath(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	doc := testDoc("Pinned")
	doc.Path = "/Own"
	id, err := s.Add(ctx, doc, "/Elsewhere")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Path != "/Own" {
		t.Fatalf("document's own folder should win, got %q", got.Path)
	}
}

func TestAddRejectsEmptyTitle(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	if _, err := s.Add(ctx, domain.Document{Title: "   "}, "/"); !errors.Is(err, ErrConstraint) {
		t.Fatalf("expected ErrConstraint, got %v", err)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	if _, err := s.Get(ctx, 4242); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateArchivedRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	id, err := s.Add(ctx, testDoc("Flip"), "/")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	yes, no := true, false
	if err := s.Update(ctx, id, domain.DocumentPatch{Archived: &yes}); err != nil {
		t.Fatalf("Update archive: %v", err)
	}
	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Archived {
		t.Fatalf("expected archived=true")
	}
	if err := s.Update(ctx, id, domain.DocumentPatch{Archived: &no}); err != nil {
		t.Fatalf("Update unarchive: %v", err)
	}
	got, err = s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Archived {
		t.Fatalf("expected archived=false after round trip")
	}
}

func TestUpdateRefreshesModified(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	id, err := s.Add(ctx, testDoc("Touch"), "/")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	before, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	title := "Touched"
	if err := s.Update(ctx, id, domain.DocumentPatch{Title: &title}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	after, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if after.Title != "Touched" {
		t.Fatalf("title not updated: %+v", after)
	}
	if after.Modified.Before(before.Modified) {
		t.Fatalf("modified went backwards: %v -> %v", before.Modified, after.Modified)
	}
	if !after.Created.Equal(before.Created) {
		t.Fatalf("created must never change: %v -> %v", before.Created, after.Created)
	}
}

func TestUpdateMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	title := "nope"
	if err := s.Update(ctx, 99, domain.DocumentPatch{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveOverwritesCoreFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	id, err := s.Add(ctx, testDoc("Draft"), "/")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	doc, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	doc.Title = "Final"
	doc.Content = "rewritten"
	doc.Archived = true
	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Final" || got.Content != "rewritten" || !got.Archived {
		t.Fatalf("save did not overwrite: %+v", got)
	}
}

func TestDeleteIsPermanent(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	id, err := s.Add(ctx, testDoc("Gone"), "/")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete should be ErrNotFound, got %v", err)
	}
}

func TestAllMatchesExactPathOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	if _, err := s.Add(ctx, testDoc("InA"), "/A"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	// /AB is a string prefix collision, /A/sub is a genuine descendant;
	// neither is a direct child of /A.
	if _, err := s.Add(ctx, testDoc("InAB"), "/AB"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add(ctx, testDoc("Deep"), "/A/sub"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	docs, err := s.All(ctx, "/A", true, false)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(docs) != 1 || docs[0].Title != "InA" {
		t.Fatalf("exact-path listing wrong: %+v", docs)
	}

	n, err := s.CountDocuments(ctx, "/A", true)
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if n != 1 {
		t.Fatalf("count at /A should be 1, got %d", n)
	}
}

func TestAllArchivedFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	a, err := s.Add(ctx, testDoc("One"), "/")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	b, err := s.Add(ctx, testDoc("Two"), "/")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	yes := true
	if err := s.Update(ctx, b, domain.DocumentPatch{Archived: &yes}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	live, err := s.All(ctx, "/", false, false)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(live) != 1 || live[0].ID != a {
		t.Fatalf("archived doc leaked into listing: %+v", live)
	}

	all, err := s.All(ctx, "/", true, true)
	if err != nil {
		t.Fatalf("All desc: %v", err)
	}
	if len(all) != 2 || all[0].ID != b || all[1].ID != a {
		t.Fatalf("descending id order wrong: %+v", all)
	}

	archived, err := s.Archived(ctx, false)
	if err != nil {
		t.Fatalf("Archived: %v", err)
	}
	if len(archived) != 1 || archived[0].ID != b {
		t.Fatalf("Archived listing wrong: %+v", archived)
	}
}

func TestMoveDocument(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	id, err := s.Add(ctx, testDoc("Mover"), "/")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Move(ctx, id, "/Target"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Path != "/Target" {
		t.Fatalf("move did not relocate: %q", got.Path)
	}
}

func TestDeleteDocumentsRemovesSubtreeOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	if _, err := s.Add(ctx, testDoc("Direct"), "/A"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add(ctx, testDoc("Nested"), "/A/deep"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	keep, err := s.Add(ctx, testDoc("Collision"), "/AB")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := s.DeleteDocuments(ctx, "/A"); err != nil {
		t.Fatalf("DeleteDocuments: %v", err)
	}

	if n, _ := s.CountDocuments(ctx, "/A", true); n != 0 {
		t.Fatalf("documents left at /A: %d", n)
	}
	if n, _ := s.CountDocuments(ctx, "/A/deep", true); n != 0 {
		t.Fatalf("documents left at /A/deep: %d", n)
	}
	if _, err := s.Get(ctx, keep); err != nil {
		t.Fatalf("document at /AB must survive: %v", err)
	}
}

func TestFindMatchesTitleCaseInsensitively(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	id, err := s.Add(ctx, testDoc("My Document"), "/Work")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add(ctx, testDoc("Other"), "/"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	for _, q := range []string{"doc", "Doc", "DOC"} {
		got, err := s.Find(ctx, q)
		if err != nil {
			t.Fatalf("Find(%q): %v", q, err)
		}
		if len(got) != 1 || got[0].ID != id {
			t.Fatalf("Find(%q) = %+v, want the single matching doc", q, got)
		}
	}
}

func TestFindSortsArchivedLast(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	first, err := s.Add(ctx, testDoc("note alpha"), "/")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	second, err := s.Add(ctx, testDoc("note beta"), "/")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	yes := true
	if err := s.Update(ctx, first, domain.DocumentPatch{Archived: &yes}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := s.Find(ctx, "note")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 2 || got[0].ID != second || got[1].ID != first {
		t.Fatalf("archived should sort last: %+v", got)
	}
}

func TestFindEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	id, err := s.Add(ctx, testDoc("100% done"), "/")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add(ctx, testDoc("100 of them"), "/"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, err := s.Find(ctx, "100%")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 1 || got[0].ID != id {
		t.Fatalf("%% must match literally: %+v", got)
	}
}

func TestFindHandlesNonASCIITitles(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	id, err := s.Add(ctx, testDoc("ÜBER Plan"), "/")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	// ASCII letters fold case on both sides; the non-ASCII rune is compared
	// byte-exact, matching SQLite's ASCII-only lower().
	got, err := s.Find(ctx, "Über PLAN")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 1 || got[0].ID != id {
		t.Fatalf("non-ASCII title not found: %+v", got)
	}
}

func TestASCIILower(t *testing.T) {
	cases := []struct{ in, want string }{
		{"ABC def", "abc def"},
		{"MÜLLER", "mÜller"},
		{"", ""},
		{"100% DONE", "100% done"},
	}
	for _, c := range cases {
		if got := asciiLower(c.in); got != c.want {
			t.Errorf("asciiLower(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
