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
	"database/sql"
	"errors"
	"fmt"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Sentinel error kinds for storage operations. Callers discriminate with
// errors.Is; the wrapped chain keeps the underlying driver error.
var (
	// ErrNotFound is returned when a document or folder does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrConstraint is returned on constraint violations: a duplicate
	// (path, title) folder pair, an empty document title, or the reserved
	// ".." folder title.
	ErrConstraint = errors.New("storage: constraint violation")
	// ErrUnavailable is returned when the database file cannot be used
	// (locked, corrupt, or closed).
	ErrUnavailable = errors.New("storage: database unavailable")
)

// classify maps a driver error onto one of the sentinel kinds, preserving
// the original error in the chain. nil stays nil; unknown errors pass
// through wrapped.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_CONSTRAINT:
			return fmt.Errorf("%w: %v", ErrConstraint, err)
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CANTOPEN:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
