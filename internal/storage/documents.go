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
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"inkwell/internal/domain"
)

// language=SQL
// dialect=SQLite
const documentColumns = `id, title, content, archived, created, modified, tags, "order", path, encrypted`

const selectDocumentSQL = `SELECT ` + documentColumns + ` FROM documents`

// Add inserts a new document and returns its id. The stored path is the
// document's own Path when set, otherwise the supplied path; an empty path
// means the root. Created and modified are both set to now.
func (s *Storage) Add(ctx context.Context, doc domain.Document, path string) (int64, error) {
	title := strings.TrimSpace(doc.Title)
	if title == "" {
		return 0, fmt.Errorf("%w: document title is required", ErrConstraint)
	}
	target := doc.Path
	if target == "" {
		target = path
	}
	target = domain.NormalizePath(target)
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (title, content, archived, created, modified, tags, "order", path, encrypted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		title, doc.Content, doc.Archived, now, now, doc.Tags, doc.Order, target, doc.Encrypted)
	if err != nil {
		s.log.Error("add document failed", slog.String("title", title), slog.Any("err", err))
		return 0, classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, classify(err)
	}
	s.changed()
	return id, nil
}

// All returns the documents stored directly at the given path (exact match,
// not a subtree), ordered by id. Archived documents are excluded unless
// withArchived is set.
func (s *Storage) All(ctx context.Context, path string, withArchived, desc bool) ([]domain.Document, error) {
	q := selectDocumentSQL + ` WHERE path = ?`
	if !withArchived {
		q += ` AND archived = 0`
	}
	q += ` ORDER BY id ` + sortDirection(desc)
	rows, err := s.db.QueryContext(ctx, q, domain.NormalizePath(path))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// Archived returns every archived document across all paths.
func (s *Storage) Archived(ctx context.Context, desc bool) ([]domain.Document, error) {
	q := selectDocumentSQL + ` WHERE archived = 1 ORDER BY id ` + sortDirection(desc)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// Documents returns every document in the database ordered by path then id.
// The backup service walks this list to mirror the tree onto a filesystem.
func (s *Storage) Documents(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, selectDocumentSQL+` ORDER BY path, id`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// Get returns the document with the given id, or ErrNotFound.
func (s *Storage) Get(ctx context.Context, id int64) (domain.Document, error) {
	row := s.db.QueryRowContext(ctx, selectDocumentSQL+` WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err != nil {
		return domain.Document{}, classify(err)
	}
	return doc, nil
}

// Save overwrites title, content and archived state of the document matching
// doc.ID and refreshes the modified timestamp.
func (s *Storage) Save(ctx context.Context, doc domain.Document) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET title = ?, content = ?, archived = ?, modified = ? WHERE id = ?`,
		doc.Title, doc.Content, doc.Archived, formatTime(time.Now()), doc.ID)
	if err != nil {
		s.log.Error("save document failed", slog.Int64("id", doc.ID), slog.Any("err", err))
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.changed()
	return nil
}

// Update applies a partial update to the document. Only non-nil patch fields
// are written; modified is always refreshed. Use Move to relocate a
// document between folders.
func (s *Storage) Update(ctx context.Context, id int64, patch domain.DocumentPatch) error {
	sets := []string{"modified = ?"}
	args := []any{formatTime(time.Now())}
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *patch.Content)
	}
	if patch.Archived != nil {
		sets = append(sets, "archived = ?")
		args = append(args, *patch.Archived)
	}
	if patch.Tags != nil {
		sets = append(sets, "tags = ?")
		args = append(args, *patch.Tags)
	}
	if patch.Path != nil {
		sets = append(sets, "path = ?")
		args = append(args, domain.NormalizePath(*patch.Path))
	}
	if patch.Encrypted != nil {
		sets = append(sets, "encrypted = ?")
		args = append(args, *patch.Encrypted)
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		s.log.Error("update document failed", slog.Int64("id", id), slog.Any("err", err))
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.changed()
	return nil
}

// Delete removes a single document. The deletion is hard and ids are never
// reused within a session.
func (s *Storage) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		s.log.Error("delete document failed", slog.Int64("id", id), slog.Any("err", err))
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.changed()
	return nil
}

// DeleteDocuments removes every document at or below the given path. Used
// when a folder subtree is removed.
func (s *Storage) DeleteDocuments(ctx context.Context, path string) error {
	abs := domain.NormalizePath(path)
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE path = ? OR path LIKE ? ESCAPE '\'`,
		abs, subtreePattern(abs))
	if err != nil {
		s.log.Error("delete documents failed", slog.String("path", abs), slog.Any("err", err))
		return classify(err)
	}
	s.changed()
	return nil
}

// Move places a single document into the folder at the destination path.
func (s *Storage) Move(ctx context.Context, id int64, path string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET path = ?, modified = ? WHERE id = ?`,
		domain.NormalizePath(path), formatTime(time.Now()), id)
	if err != nil {
		s.log.Error("move document failed", slog.Int64("id", id), slog.Any("err", err))
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.changed()
	return nil
}

// Find returns documents whose title contains the search text, case
// insensitively (ASCII), across all paths. Archived matches sort after live
// ones. The pattern is lowercased with the same ASCII-only rules as SQLite's
// lower(), so non-ASCII letters compare byte-exact on both sides.
func (s *Storage) Find(ctx context.Context, text string) ([]domain.Document, error) {
	pattern := "%" + escapeLike(asciiLower(text)) + "%"
	q := selectDocumentSQL + ` WHERE lower(title) LIKE ? ESCAPE '\' ORDER BY archived ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, q, pattern)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// CountDocuments returns the number of documents stored directly at path.
func (s *Storage) CountDocuments(ctx context.Context, path string, withArchived bool) (int, error) {
	q := `SELECT COUNT(*) FROM documents WHERE path = ?`
	if !withArchived {
		q += ` AND archived = 0`
	}
	var n int
	if err := s.db.QueryRowContext(ctx, q, domain.NormalizePath(path)).Scan(&n); err != nil {
		return 0, classify(err)
	}
	return n, nil
}

func sortDirection(desc bool) string {
	if desc {
		return "DESC"
	}
	return "ASC"
}

// rowScanner lets scanDocument work for both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(r rowScanner) (domain.Document, error) {
	var (
		d        domain.Document
		content  sql.NullString
		created  sql.NullString
		modified sql.NullString
		tags     sql.NullString
	)
	err := r.Scan(&d.ID, &d.Title, &content, &d.Archived, &created, &modified, &tags, &d.Order, &d.Path, &d.Encrypted)
	if err != nil {
		return domain.Document{}, err
	}
	d.Content = content.String
	d.Tags = tags.String
	d.Created = parseTime(created.String)
	d.Modified = parseTime(modified.String)
	return d, nil
}

func scanDocuments(rows *sql.Rows) ([]domain.Document, error) {
	var out []domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
