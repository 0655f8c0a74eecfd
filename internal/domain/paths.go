/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

import "strings"

// JoinPath composes a child path from a parent path and a title.
// The root "/" does not double its separator: JoinPath("/", "A") is "/A",
// JoinPath("/A", "B") is "/A/B".
func JoinPath(parent, title string) string {
	parent = NormalizePath(parent)
	if parent == RootPath {
		return RootPath + title
	}
	return parent + "/" + title
}

// NormalizePath trims trailing separators and maps the empty string to the
// root. Virtual paths always start with "/".
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return RootPath
	}
	if p != RootPath {
		p = strings.TrimRight(p, "/")
		if p == "" {
			return RootPath
		}
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// IsDescendantPath reports whether path lies at or below the folder with the
// given absolute path. The comparison guards the prefix with a separator so
// that /AB is never treated as a descendant of /A.
func IsDescendantPath(path, ancestorAbs string) bool {
	if path == ancestorAbs {
		return true
	}
	return strings.HasPrefix(path, ancestorAbs+"/")
}

// RewritePathPrefix substitutes the oldAbs prefix of path with newAbs,
// keeping the remainder intact. The caller must have established that path
// is a descendant of oldAbs.
func RewritePathPrefix(path, oldAbs, newAbs string) string {
	if path == oldAbs {
		return newAbs
	}
	return newAbs + strings.TrimPrefix(path, oldAbs)
}
