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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "inkwell/internal/log"
	"inkwell/internal/telemetry"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

// schemaVersion is the newest migration step. Bump when adding a step to
// migrations below.
const schemaVersion = 3

// timeFormat is how timestamps are stored in TIMESTAMP columns.
const timeFormat = time.RFC3339Nano

// Storage owns the embedded database file. It holds exactly one connection
// for the lifetime of the process; all operations are synchronous. Construct
// with Open and inject the instance where it is needed.
type Storage struct {
	db       *sql.DB
	path     string
	notifier *Notifier
	log      *slog.Logger
}

// Open ensures the containing directory exists, opens the database, creates
// the base tables if absent, and runs any pending migrations in strictly
// increasing order. Any failure here is fatal to application startup and is
// propagated to the caller.
func Open(dbPath string) (*Storage, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(
		slog.String("path", dbPath),
	)
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		l.Error("create database dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(dbPath))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single-connection model: no pooling, single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &Storage{db: db, path: dbPath, notifier: NewNotifier(), log: applog.WithComponent("storage")}
	if err := s.ensureBaseSchema(ctx); err != nil {
		_ = db.Close()
		l.Error("ensure base schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := s.runMigrations(ctx); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Info("storage ready")
	return s, nil
}

// Close releases the database connection.
func (s *Storage) Close() error { return s.db.Close() }

// Path returns the database file path the storage was opened with.
func (s *Storage) Path() string { return s.path }

// Notifier returns the change-notification hub for this storage instance.
func (s *Storage) Notifier() *Notifier { return s.notifier }

// changed publishes the generic items-changed event.
func (s *Storage) changed() { s.notifier.broadcast() }

// ensureBaseSchema creates the pre-migration tables: the original documents
// table and the version log. All later columns and the folders table are
// added by migrations so that old database files upgrade along the same
// path as fresh ones.
func (s *Storage) ensureBaseSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			title    TEXT NOT NULL,
			content  TEXT,
			archived INTEGER NOT NULL DEFAULT 0
		);`,
		// Append-only migration log; the current schema version is the
		// version value of the newest row.
		`CREATE TABLE IF NOT EXISTS version (
			version   INTEGER   NOT NULL,
			timestamp TIMESTAMP NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// currentVersion reads the schema version from the version log. A database
// without any recorded migration is at version 0. Migrations apply in
// strictly increasing order, so the newest row is the one with the highest
// version; timestamps are RFC3339Nano strings whose lexicographic order is
// not reliable across varying fractional precision, so they only tie-break.
func (s *Storage) currentVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx,
		`SELECT version FROM version ORDER BY version DESC, timestamp DESC LIMIT 1`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// migration is a single schema step. Statements run inside one transaction
// together with the version-log insert, so a failed step leaves the schema
// and the log untouched.
type migration struct {
	version int
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		stmts: []string{
			`ALTER TABLE documents ADD COLUMN created TIMESTAMP;`,
			`ALTER TABLE documents ADD COLUMN modified TIMESTAMP;`,
			`ALTER TABLE documents ADD COLUMN tags TEXT;`,
			`ALTER TABLE documents ADD COLUMN "order" INTEGER NOT NULL DEFAULT 0;`,
		},
	},
	{
		version: 2,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS folders (
				id       INTEGER PRIMARY KEY AUTOINCREMENT,
				path     TEXT NOT NULL DEFAULT '/',
				title    TEXT NOT NULL,
				archived INTEGER NOT NULL DEFAULT 0,
				created  TIMESTAMP,
				modified TIMESTAMP,
				UNIQUE(path, title)
			);`,
			`ALTER TABLE documents ADD COLUMN path TEXT NOT NULL DEFAULT '/';`,
			`ALTER TABLE documents ADD COLUMN encrypted BOOLEAN NOT NULL DEFAULT FALSE;`,
		},
	},
	{
		// Rebuild both tables with proper TIMESTAMP typing for the columns
		// added by ALTER in earlier versions. No semantic column change.
		version: 3,
		stmts: []string{
			`CREATE TABLE documents_new (
				id        INTEGER PRIMARY KEY AUTOINCREMENT,
				title     TEXT NOT NULL,
				content   TEXT,
				archived  INTEGER NOT NULL DEFAULT 0,
				created   TIMESTAMP,
				modified  TIMESTAMP,
				tags      TEXT,
				"order"   INTEGER NOT NULL DEFAULT 0,
				path      TEXT NOT NULL DEFAULT '/',
				encrypted BOOLEAN NOT NULL DEFAULT FALSE
			);`,
			`INSERT INTO documents_new (id, title, content, archived, created, modified, tags, "order", path, encrypted)
				SELECT id, title, content, archived, created, modified, tags, "order", path, encrypted FROM documents;`,
			`DROP TABLE documents;`,
			`ALTER TABLE documents_new RENAME TO documents;`,
			`CREATE TABLE folders_new (
				id       INTEGER PRIMARY KEY AUTOINCREMENT,
				path     TEXT NOT NULL DEFAULT '/',
				title    TEXT NOT NULL,
				archived INTEGER NOT NULL DEFAULT 0,
				created  TIMESTAMP,
				modified TIMESTAMP,
				UNIQUE(path, title)
			);`,
			`INSERT INTO folders_new (id, path, title, archived, created, modified)
				SELECT id, path, title, archived, created, modified FROM folders;`,
			`DROP TABLE folders;`,
			`ALTER TABLE folders_new RENAME TO folders;`,
		},
	},
}

// runMigrations applies pending steps in strictly increasing order. Each
// step commits atomically together with its version-log row; the log, not
// column probing, decides whether a step already ran.
func (s *Storage) runMigrations(ctx context.Context) error {
	cur, err := s.currentVersion(ctx)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= cur {
			continue
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		for _, q := range m.stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", m.version, err)
			}
		}
		now := time.Now().UTC().Format(timeFormat)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO version (version, timestamp) VALUES (?, ?)`, m.version, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d record version: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", m.version, err)
		}
		s.log.Info("migration applied", slog.Int("version", m.version))
		telemetry.MigrationApplied(m.version)
		cur = m.version
	}
	return nil
}

// escapeLike escapes LIKE wildcards so folder titles containing % or _
// cannot widen a prefix match. Patterns built from it must use ESCAPE '\'.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// subtreePattern matches strictly-below descendants of abs. Together with an
// exact `path = abs` check this guards the prefix boundary: /AB never
// matches the subtree of /A.
func subtreePattern(abs string) string { return escapeLike(abs) + "/%" }

// asciiLower lowercases A-Z only, mirroring SQLite's lower(). Unicode-aware
// lowering on the Go side would disagree with the SQL side for letters like
// 'Ü' and make such titles unfindable.
func asciiLower(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}

func formatTime(t time.Time) string { return t.UTC().Format(timeFormat) }

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
