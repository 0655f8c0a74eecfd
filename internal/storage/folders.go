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

const folderColumns = `id, path, title, created, modified`

const selectFolderSQL = `SELECT ` + folderColumns + ` FROM folders`

// language=SQL
// dialect=SQLite
// rewriteFolderPathsSQL substitutes the old absolute-path prefix with the new
// one on every descendant folder in a single statement. substr/length count
// characters on both sides, so multi-byte titles rewrite correctly.
const rewriteFolderPathsSQL = `UPDATE folders SET path = ? || substr(path, length(?) + 1)
	WHERE path = ? OR path LIKE ? ESCAPE '\'`

// language=SQL
// dialect=SQLite
const rewriteDocumentPathsSQL = `UPDATE documents SET path = ? || substr(path, length(?) + 1)
	WHERE path = ? OR path LIKE ? ESCAPE '\'`

// AddFolder creates a folder under the given parent path and returns its
// internal id. The title ".." is reserved and rejected, as is a duplicate
// (path, title) pair.
func (s *Storage) AddFolder(ctx context.Context, title, path string) (int64, error) {
	title = strings.TrimSpace(title)
	if err := validateFolderTitle(title); err != nil {
		return 0, err
	}
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO folders (path, title, created, modified) VALUES (?, ?, ?, ?)`,
		domain.NormalizePath(path), title, now, now)
	if err != nil {
		s.log.Error("add folder failed", slog.String("title", title), slog.Any("err", err))
		return 0, classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, classify(err)
	}
	s.changed()
	return id, nil
}

// RenameFolder changes a folder's title and rewrites the path prefix of
// every descendant document and folder. The folder row, descendant folders
// and descendant documents are updated inside one transaction, so a failed
// cascade leaves nothing half-renamed.
func (s *Storage) RenameFolder(ctx context.Context, f domain.Folder, newTitle string) error {
	newTitle = strings.TrimSpace(newTitle)
	if err := validateFolderTitle(newTitle); err != nil {
		return err
	}
	parent := domain.NormalizePath(f.Path)
	oldAbs := domain.JoinPath(parent, f.Title)
	newAbs := domain.JoinPath(parent, newTitle)
	err := s.cascade(ctx, oldAbs, newAbs, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE folders SET title = ?, modified = ? WHERE path = ? AND title = ?`,
			newTitle, formatTime(time.Now()), parent, f.Title)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		s.log.Error("rename folder failed",
			slog.String("path", oldAbs), slog.String("title", newTitle), slog.Any("err", err))
		return err
	}
	s.changed()
	return nil
}

// MoveFolder reparents a folder and rewrites descendant paths, all in one
// transaction. Moving a folder into its own subtree is rejected.
func (s *Storage) MoveFolder(ctx context.Context, f domain.Folder, newParent string) error {
	oldParent := domain.NormalizePath(f.Path)
	newParent = domain.NormalizePath(newParent)
	oldAbs := domain.JoinPath(oldParent, f.Title)
	if domain.IsDescendantPath(newParent, oldAbs) {
		return fmt.Errorf("%w: cannot move folder %s into its own subtree", ErrConstraint, oldAbs)
	}
	newAbs := domain.JoinPath(newParent, f.Title)
	err := s.cascade(ctx, oldAbs, newAbs, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE folders SET path = ?, modified = ? WHERE path = ? AND title = ?`,
			newParent, formatTime(time.Now()), oldParent, f.Title)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		s.log.Error("move folder failed",
			slog.String("path", oldAbs), slog.String("to", newParent), slog.Any("err", err))
		return err
	}
	s.changed()
	return nil
}

// cascade runs the own-row update followed by the two descendant prefix
// rewrites (folders first, then documents) in a single transaction.
func (s *Storage) cascade(ctx context.Context, oldAbs, newAbs string, ownRow func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	if err := ownRow(tx); err != nil {
		_ = tx.Rollback()
		return classify(err)
	}
	pattern := subtreePattern(oldAbs)
	if _, err := tx.ExecContext(ctx, rewriteFolderPathsSQL, newAbs, oldAbs, oldAbs, pattern); err != nil {
		_ = tx.Rollback()
		return classify(err)
	}
	if _, err := tx.ExecContext(ctx, rewriteDocumentPathsSQL, newAbs, oldAbs, oldAbs, pattern); err != nil {
		_ = tx.Rollback()
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

// DeleteFolder removes the folder row, then every descendant document and
// folder under its absolute path, in one transaction.
func (s *Storage) DeleteFolder(ctx context.Context, f domain.Folder) error {
	parent := domain.NormalizePath(f.Path)
	abs := domain.JoinPath(parent, f.Title)
	pattern := subtreePattern(abs)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM folders WHERE path = ? AND title = ?`, parent, f.Title)
	if err != nil {
		_ = tx.Rollback()
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_ = tx.Rollback()
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE path = ? OR path LIKE ? ESCAPE '\'`, abs, pattern); err != nil {
		_ = tx.Rollback()
		return classify(err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM folders WHERE path = ? OR path LIKE ? ESCAPE '\'`, abs, pattern); err != nil {
		_ = tx.Rollback()
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		s.log.Error("delete folder failed", slog.String("path", abs), slog.Any("err", err))
		return classify(err)
	}
	s.changed()
	return nil
}

// DeleteFolders removes every folder at or below the given path.
func (s *Storage) DeleteFolders(ctx context.Context, path string) error {
	abs := domain.NormalizePath(path)
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM folders WHERE path = ? OR path LIKE ? ESCAPE '\'`,
		abs, subtreePattern(abs))
	if err != nil {
		s.log.Error("delete folders failed", slog.String("path", abs), slog.Any("err", err))
		return classify(err)
	}
	s.changed()
	return nil
}

// GetFolder returns the folder with the given internal id, or ErrNotFound.
func (s *Storage) GetFolder(ctx context.Context, id int64) (domain.Folder, error) {
	row := s.db.QueryRowContext(ctx, selectFolderSQL+` WHERE id = ?`, id)
	f, err := scanFolder(row)
	if err != nil {
		return domain.Folder{}, classify(err)
	}
	return f, nil
}

// GetFolders returns the direct child folders of the given parent path
// (exact match), sorted by title.
func (s *Storage) GetFolders(ctx context.Context, path string, desc bool) ([]domain.Folder, error) {
	q := selectFolderSQL + ` WHERE path = ? ORDER BY title ` + sortDirection(desc)
	rows, err := s.db.QueryContext(ctx, q, domain.NormalizePath(path))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	return scanFolders(rows)
}

// Folders returns every folder in the database, sorted by absolute path so
// parents precede their children. The backup service uses this to recreate
// the tree on a real filesystem.
func (s *Storage) Folders(ctx context.Context) ([]domain.Folder, error) {
	rows, err := s.db.QueryContext(ctx, selectFolderSQL+` ORDER BY path, title`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	return scanFolders(rows)
}

// CountFolders returns the number of direct child folders at path.
func (s *Storage) CountFolders(ctx context.Context, path string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM folders WHERE path = ?`, domain.NormalizePath(path)).Scan(&n)
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// CountAll returns the combined number of direct child folders and
// documents at path.
func (s *Storage) CountAll(ctx context.Context, path string, withArchived bool) (int, error) {
	folders, err := s.CountFolders(ctx, path)
	if err != nil {
		return 0, err
	}
	docs, err := s.CountDocuments(ctx, path, withArchived)
	if err != nil {
		return 0, err
	}
	return folders + docs, nil
}

func validateFolderTitle(title string) error {
	if title == "" {
		return fmt.Errorf("%w: folder title is required", ErrConstraint)
	}
	if title == domain.ReservedFolderTitle {
		return fmt.Errorf("%w: folder title %q is reserved", ErrConstraint, domain.ReservedFolderTitle)
	}
	if strings.Contains(title, "/") {
		return fmt.Errorf("%w: folder title must not contain '/'", ErrConstraint)
	}
	return nil
}

func scanFolder(r rowScanner) (domain.Folder, error) {
	var (
		f        domain.Folder
		created  sql.NullString
		modified sql.NullString
	)
	if err := r.Scan(&f.ID, &f.Path, &f.Title, &created, &modified); err != nil {
		return domain.Folder{}, err
	}
	f.Created = parseTime(created.String)
	f.Modified = parseTime(modified.String)
	return f, nil
}

func scanFolders(rows *sql.Rows) ([]domain.Folder, error) {
	var out []domain.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
