/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backup mirrors the note tree onto a real filesystem: one directory
// per folder, one markdown file per document, plus a backup.json manifest
// describing the run. The manifest is validated against a JSON schema before
// it is written.
package backup

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	ilog "inkwell/internal/log"
	"inkwell/internal/storage"
	"inkwell/internal/telemetry"
)

//go:embed backup.schema.json
var schemaBytes []byte

// ManifestEntry describes one document written during a backup run.
type ManifestEntry struct {
	ID       int64  `json:"id"`
	Path     string `json:"path"`
	File     string `json:"file"`
	Title    string `json:"title"`
	Archived bool   `json:"archived"`
}

// Manifest is the machine-readable record of a backup run.
type Manifest struct {
	GeneratedAt string          `json:"generated_at"`
	Database    string          `json:"database"`
	Folders     int             `json:"folders"`
	Documents   int             `json:"documents"`
	Entries     []ManifestEntry `json:"entries"`
}

const manifestName = "backup.json"

// Run writes a full backup of the storage into dir and returns the manifest.
// Existing files in dir are overwritten; files from earlier runs are not
// removed.
func Run(ctx context.Context, s *storage.Storage, dir string) (Manifest, error) {
	log := ilog.WithComponent("backup")
	start := time.Now()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("create backup dir: %w", err)
	}

	folders, err := s.Folders(ctx)
	if err != nil {
		return Manifest{}, fmt.Errorf("list folders: %w", err)
	}
	// Folders() orders by path, so parents are created before children.
	for _, f := range folders {
		target := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(f.AbsolutePath(), "/")))
		if err := os.MkdirAll(target, 0o755); err != nil {
			return Manifest{}, fmt.Errorf("create folder %s: %w", f.AbsolutePath(), err)
		}
	}

	docs, err := s.Documents(ctx)
	if err != nil {
		return Manifest{}, fmt.Errorf("list documents: %w", err)
	}

	m := Manifest{
		GeneratedAt: start.UTC().Format(time.RFC3339),
		Database:    s.Path(),
		Folders:     len(folders),
	}
	used := make(map[string]struct{})
	for _, d := range docs {
		relDir := filepath.FromSlash(strings.TrimPrefix(d.Path, "/"))
		rel := filepath.Join(relDir, fileName(relDir, d.Title, d.ID, used))
		target := filepath.Join(dir, rel)
		// A document can sit at a path with no matching folder row; create
		// the directory anyway so the note is not lost.
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return Manifest{}, fmt.Errorf("create document dir: %w", err)
		}
		if err := os.WriteFile(target, []byte(d.Content), 0o644); err != nil {
			return Manifest{}, fmt.Errorf("write document %d: %w", d.ID, err)
		}
		m.Entries = append(m.Entries, ManifestEntry{
			ID:       d.ID,
			Path:     d.Path,
			File:     filepath.ToSlash(rel),
			Title:    d.Title,
			Archived: d.Archived,
		})
	}
	m.Documents = len(m.Entries)
	if m.Entries == nil {
		m.Entries = []ManifestEntry{}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return Manifest{}, err
	}
	if err := validateManifest(data); err != nil {
		return Manifest{}, err
	}
	if err := os.WriteFile(filepath.Join(dir, manifestName), data, 0o644); err != nil {
		return Manifest{}, fmt.Errorf("write manifest: %w", err)
	}

	log.Info("backup finished",
		slog.String("dir", dir),
		slog.Int("folders", m.Folders),
		slog.Int("documents", m.Documents),
		slog.Duration("took", time.Since(start)))
	telemetry.BackupCompleted(m.Folders, m.Documents, time.Since(start))
	return m, nil
}

// validateManifest checks the manifest bytes against the embedded schema.
func validateManifest(data []byte) error {
	schemaLoader := gojsonschema.NewBytesLoader(schemaBytes)
	docLoader := gojsonschema.NewBytesLoader(data)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("schema validate: %w", err)
	}
	if !result.Valid() {
		var sb strings.Builder
		for _, e := range result.Errors() {
			sb.WriteString(e.String())
			sb.WriteString("; ")
		}
		return fmt.Errorf("manifest does not conform to schema: %s", sb.String())
	}
	return nil
}

// fileName turns a document title into a markdown file name unique within
// its directory. The id disambiguates duplicate titles.
func fileName(dir, title string, id int64, used map[string]struct{}) string {
	name := sanitizeTitle(title)
	if name == "" {
		name = fmt.Sprintf("note-%d", id)
	}
	candidate := name + ".md"
	if _, taken := used[filepath.Join(dir, candidate)]; taken {
		candidate = fmt.Sprintf("%s-%d.md", name, id)
	}
	used[filepath.Join(dir, candidate)] = struct{}{}
	return candidate
}

func sanitizeTitle(title string) string {
	var sb strings.Builder
	for _, r := range strings.TrimSpace(title) {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			sb.WriteRune('_')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
