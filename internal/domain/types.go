/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package domain defines the core data model for notes and virtual folders.
// The hierarchy is encoded as string paths (e.g. /Work/Notes) rather than a
// foreign-key tree; folders and documents carry the path of their parent.
package domain

import "time"

// RootPath is the virtual root every document and folder lives under by default.
const RootPath = "/"

// ReservedFolderTitle is the "go up" entry in the UI tree. It can never be
// the title of a real folder.
const ReservedFolderTitle = ".."

// Document is a single note. ID is the storage key; the virtual location is
// Path (its containing folder) plus Title for display purposes only.
type Document struct {
	ID        int64
	Title     string
	Content   string
	Archived  bool
	Created   time.Time
	Modified  time.Time
	Path      string
	Encrypted bool
	Tags      string
	Order     int
}

// AbsolutePath returns the display location of the document, composed of the
// containing folder path and the title.
func (d Document) AbsolutePath() string { return JoinPath(d.Path, d.Title) }

// Folder is a virtual folder. Callers identify a folder by the (Path, Title)
// pair; the numeric ID is internal to storage.
type Folder struct {
	ID       int64
	Path     string
	Title    string
	Created  time.Time
	Modified time.Time
}

// AbsolutePath returns the path value used by any document or sub-folder
// stored inside this folder.
func (f Folder) AbsolutePath() string { return JoinPath(f.Path, f.Title) }

// DocumentPatch is a partial update for a document. Nil fields are left
// untouched; the modified timestamp is always refreshed by storage.
type DocumentPatch struct {
	Title     *string
	Content   *string
	Archived  *bool
	Tags      *string
	Path      *string
	Encrypted *bool
}

// IsZero reports whether the patch carries no field at all.
func (p DocumentPatch) IsZero() bool {
	return p.Title == nil && p.Content == nil && p.Archived == nil &&
		p.Tags == nil && p.Path == nil && p.Encrypted == nil
}
