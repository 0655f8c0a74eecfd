/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"inkwell/internal/backend"
	"inkwell/internal/backup"
	"inkwell/internal/config"
	"inkwell/internal/crash"
	"inkwell/internal/domain"
	applog "inkwell/internal/log"
	"inkwell/internal/storage"
	"inkwell/internal/telemetry"
	"inkwell/internal/ui"
	"inkwell/internal/version"
)

func usage() {
	fmt.Println("Inkwell — hierarchical note storage")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  inkwell version|-v|--version          Show version")
	fmt.Println("  inkwell init                          Create (or migrate) the notes database")
	fmt.Println("  inkwell add <title> [path]            Add a note; body is read from stdin if piped")
	fmt.Println("  inkwell list [path]                   List notes at a path (default /)")
	fmt.Println("  inkwell tree                          Print the folder tree")
	fmt.Println("  inkwell find <text>                   Search note titles")
	fmt.Println("  inkwell mkdir <title> [path]          Create a folder under path (default /)")
	fmt.Println("  inkwell mv <id> <path>                Move a note to a folder path")
	fmt.Println("  inkwell rm <id>                       Delete a note")
	fmt.Println("  inkwell backup [dir]                  Mirror the note tree to a directory")
	fmt.Println("  inkwell sync                          Push all notes to the configured sync server")
	fmt.Println("  inkwell serve                         Run the sync server (Postgres)")
	fmt.Println("  inkwell ui [dbPath]                   Launch desktop UI (build with -tags fyne)")
	fmt.Println()
	fmt.Println("The database location comes from the config file or IWL_DATABASE_PATH.")
}

func main() {
	// initialize structured logging using environment defaults
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")
	var st *storage.Storage
	defer func() { crash.Recover(st) }()

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) <= 1 {
		usage()
		return
	}

	ctx := context.Background()

	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("Inkwell — hierarchical note storage")
		fmt.Println(version.String())
		return
	case "serve":
		if err := backend.Start(); err != nil {
			l.Error("sync server failed", slog.Any("err", err))
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		return
	case "ui":
		var dbPath string
		if len(args) >= 3 {
			dbPath = args[2]
		}
		if err := ui.Run(dbPath); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		return
	}

	// Remaining commands operate on the local database.
	cfg, token, err := config.Load()
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	dbPath, err := cfg.Storage.DatabaseFile()
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	st, err = storage.Open(dbPath)
	if err != nil {
		l.Error("open database failed", slog.String("path", dbPath), slog.Any("err", err))
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	switch args[1] {
	case "init":
		// Open already created the file and ran migrations.
		fmt.Println("Database ready at", st.Path())
	case "add":
		if len(args) < 3 {
			fmt.Println("add requires <title>")
			usage()
			os.Exit(2)
		}
		path := domain.RootPath
		if len(args) >= 4 {
			path = args[3]
		}
		doc := domain.Document{Title: args[2], Content: readPipedStdin()}
		id, err := st.Add(ctx, doc, path)
		if err != nil {
			fail(l, "add note", err)
		}
		telemetry.NoteCreated()
		fmt.Printf("Added note %d at %s\n", id, domain.NormalizePath(path))
	case "list":
		path := domain.RootPath
		if len(args) >= 3 {
			path = args[2]
		}
		folders, err := st.GetFolders(ctx, path, false)
		if err != nil {
			fail(l, "list folders", err)
		}
		docs, err := st.All(ctx, path, cfg.General.ShowArchived, false)
		if err != nil {
			fail(l, "list notes", err)
		}
		for _, f := range folders {
			fmt.Printf("       %s/\n", f.Title)
		}
		for _, d := range docs {
			marker := " "
			if d.Archived {
				marker = "A"
			}
			fmt.Printf("%6d %s %s\n", d.ID, marker, d.Title)
		}
	case "tree":
		folders, err := st.Folders(ctx)
		if err != nil {
			fail(l, "list folders", err)
		}
		fmt.Println("/")
		for _, f := range folders {
			depth := strings.Count(f.AbsolutePath(), "/")
			fmt.Printf("%s%s/\n", strings.Repeat("  ", depth), f.Title)
		}
	case "find":
		if len(args) < 3 {
			fmt.Println("find requires <text>")
			usage()
			os.Exit(2)
		}
		docs, err := st.Find(ctx, args[2])
		if err != nil {
			fail(l, "find notes", err)
		}
		for _, d := range docs {
			marker := " "
			if d.Archived {
				marker = "A"
			}
			fmt.Printf("%6d %s %-30s %s\n", d.ID, marker, d.Title, d.Path)
		}
	case "mkdir":
		if len(args) < 3 {
			fmt.Println("mkdir requires <title>")
			usage()
			os.Exit(2)
		}
		path := domain.RootPath
		if len(args) >= 4 {
			path = args[3]
		}
		id, err := st.AddFolder(ctx, args[2], path)
		if err != nil {
			fail(l, "create folder", err)
		}
		fmt.Printf("Created folder %d at %s\n", id, domain.JoinPath(domain.NormalizePath(path), args[2]))
	case "mv":
		if len(args) < 4 {
			fmt.Println("mv requires <id> and <path>")
			usage()
			os.Exit(2)
		}
		id := parseID(args[2])
		if err := st.Move(ctx, id, args[3]); err != nil {
			fail(l, "move note", err)
		}
		fmt.Printf("Moved note %d to %s\n", id, domain.NormalizePath(args[3]))
	case "rm":
		if len(args) < 3 {
			fmt.Println("rm requires <id>")
			usage()
			os.Exit(2)
		}
		id := parseID(args[2])
		if err := st.Delete(ctx, id); err != nil {
			fail(l, "delete note", err)
		}
		telemetry.NoteDeleted()
		fmt.Printf("Deleted note %d\n", id)
	case "sync":
		client := backend.NewClient(cfg.Backend.BaseURL, token)
		docs, err := st.Documents(ctx)
		if err != nil {
			fail(l, "list notes", err)
		}
		pushed := 0
		for _, d := range docs {
			if err := client.PushDocument(ctx, d); err != nil {
				fail(l, fmt.Sprintf("push note %d", d.ID), err)
			}
			pushed++
		}
		fmt.Printf("Pushed %d notes to %s\n", pushed, cfg.Backend.BaseURL)
	case "backup":
		dir := ""
		if len(args) >= 3 {
			dir = args[2]
		} else {
			dir, err = cfg.Storage.BackupPath()
			if err != nil {
				fail(l, "resolve backup dir", err)
			}
		}
		m, err := backup.Run(ctx, st, dir)
		if err != nil {
			fail(l, "backup", err)
		}
		fmt.Printf("Backed up %d folders and %d notes to %s\n", m.Folders, m.Documents, dir)
	default:
		usage()
		os.Exit(2)
	}
	if telemetry.Enabled() {
		telemetry.Flush(ctx)
	}
}

func fail(l *slog.Logger, op string, err error) {
	l.Error(op+" failed", slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}

func parseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fmt.Println("invalid id:", s)
		os.Exit(2)
	}
	return id
}

// readPipedStdin returns stdin content when something is piped in, else "".
func readPipedStdin() string {
	fi, err := os.Stdin.Stat()
	if err != nil || fi.Mode()&os.ModeCharDevice != 0 {
		return ""
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return ""
	}
	return string(b)
}
