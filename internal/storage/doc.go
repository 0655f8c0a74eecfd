/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage implements note persistence over a single embedded SQLite
// database file. It owns the schema (documents, folders, version log),
// versioned migrations, all document/folder CRUD, and the hierarchical path
// operations: listing direct children, moving and renaming folders with a
// cascading prefix rewrite of every descendant path, and cascading deletes.
// Every successful mutation publishes a payload-free "items changed" event
// through the Notifier so views can re-query.
package storage
