//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"inkwell/internal/config"
	"inkwell/internal/crash"
	"inkwell/internal/domain"
	applog "inkwell/internal/log"
	"inkwell/internal/storage"
)

// Run starts the Fyne-based desktop shell: folder tree on the left, note
// list in the middle, editor on the right. dbPath overrides the configured
// database location when non-empty.
func Run(dbPath string) error {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("ui")
	l.Info("starting UI")

	cfg, _, err := config.Load()
	if err != nil {
		return err
	}
	if dbPath == "" {
		dbPath, err = cfg.Storage.DatabaseFile()
		if err != nil {
			return err
		}
	}
	st, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = st.Close() }()
	defer func() { crash.Recover(st) }()

	ctx := context.Background()

	fyneApp := app.NewWithID("inkwell")
	w := fyneApp.NewWindow("Inkwell")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1100)
	winH := prefs.IntWithFallback("window.height", 720)
	if winW < 800 {
		winW = 800
	}
	if winH < 560 {
		winH = 560
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Ready")

	currentPath := domain.RootPath
	var notes []domain.Document
	var currentNote *domain.Document

	editor := widget.NewMultiLineEntry()
	editor.Wrapping = fyne.TextWrapWord
	editor.SetPlaceHolder("Select a note")

	noteList := widget.NewList(
		func() int { return len(notes) },
		func() fyne.CanvasObject { return widget.NewLabel("note") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			label := o.(*widget.Label)
			title := notes[i].Title
			if notes[i].Archived {
				title += " (archived)"
			}
			label.SetText(title)
		})

	folderTree := widget.NewTree(
		func(uid widget.TreeNodeID) []widget.TreeNodeID {
			path := uid
			if path == "" {
				path = domain.RootPath
			}
			children, err := st.GetFolders(ctx, path, false)
			if err != nil {
				l.Error("list folders failed", slog.Any("err", err))
				return nil
			}
			ids := make([]widget.TreeNodeID, 0, len(children))
			for _, f := range children {
				ids = append(ids, f.AbsolutePath())
			}
			return ids
		},
		func(uid widget.TreeNodeID) bool {
			path := uid
			if path == "" {
				path = domain.RootPath
			}
			n, err := st.CountFolders(ctx, path)
			return err == nil && n > 0
		},
		func(branch bool) fyne.CanvasObject { return widget.NewLabel("folder") },
		func(uid widget.TreeNodeID, branch bool, o fyne.CanvasObject) {
			name := uid
			if i := lastSlash(uid); i >= 0 {
				name = uid[i+1:]
			}
			if name == "" {
				name = "Notes"
			}
			o.(*widget.Label).SetText(name)
		})

	refreshNotes := func() {
		var err error
		notes, err = st.All(ctx, currentPath, cfg.General.ShowArchived, false)
		if err != nil {
			l.Error("list notes failed", slog.Any("err", err))
			status.SetText("Error: " + err.Error())
			return
		}
		noteList.Refresh()
		n, _ := st.CountAll(ctx, currentPath, cfg.General.ShowArchived)
		status.SetText(fmt.Sprintf("%s — %d items", currentPath, n))
	}

	saveCurrent := func() {
		if currentNote == nil {
			return
		}
		currentNote.Content = editor.Text
		if err := st.Save(ctx, *currentNote); err != nil {
			dialog.ShowError(err, w)
		}
	}

	folderTree.OnSelected = func(uid widget.TreeNodeID) {
		saveCurrent()
		currentNote = nil
		editor.SetText("")
		currentPath = uid
		if currentPath == "" {
			currentPath = domain.RootPath
		}
		refreshNotes()
	}

	noteList.OnSelected = func(i widget.ListItemID) {
		saveCurrent()
		if i < 0 || i >= len(notes) {
			return
		}
		n := notes[i]
		currentNote = &n
		editor.SetText(n.Content)
	}

	newNote := func() {
		entry := widget.NewEntry()
		dialog.ShowForm("New note", "Create", "Cancel",
			[]*widget.FormItem{widget.NewFormItem("Title", entry)},
			func(ok bool) {
				if !ok {
					return
				}
				if _, err := st.Add(ctx, domain.Document{Title: entry.Text}, currentPath); err != nil {
					dialog.ShowError(err, w)
				}
			}, w)
	}

	newFolder := func() {
		entry := widget.NewEntry()
		dialog.ShowForm("New folder", "Create", "Cancel",
			[]*widget.FormItem{widget.NewFormItem("Name", entry)},
			func(ok bool) {
				if !ok {
					return
				}
				if _, err := st.AddFolder(ctx, entry.Text, currentPath); err != nil {
					dialog.ShowError(err, w)
				}
			}, w)
	}

	archiveNote := func() {
		if currentNote == nil {
			return
		}
		archived := !currentNote.Archived
		if err := st.Update(ctx, currentNote.ID, domain.DocumentPatch{Archived: &archived}); err != nil {
			dialog.ShowError(err, w)
			return
		}
		currentNote.Archived = archived
	}

	deleteNote := func() {
		if currentNote == nil {
			return
		}
		id := currentNote.ID
		dialog.ShowConfirm("Delete note", "Delete "+currentNote.Title+"? This cannot be undone.",
			func(ok bool) {
				if !ok {
					return
				}
				if err := st.Delete(ctx, id); err != nil {
					dialog.ShowError(err, w)
					return
				}
				currentNote = nil
				editor.SetText("")
			}, w)
	}

	search := widget.NewEntry()
	search.SetPlaceHolder("Search titles…")
	search.OnSubmitted = func(text string) {
		saveCurrent()
		currentNote = nil
		editor.SetText("")
		if text == "" {
			refreshNotes()
			return
		}
		found, err := st.Find(ctx, text)
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		notes = found
		noteList.Refresh()
		status.SetText(fmt.Sprintf("%d matches for %q", len(found), text))
	}

	toolbar := widget.NewToolbar(
		widget.NewToolbarAction(theme.DocumentCreateIcon(), newNote),
		widget.NewToolbarAction(theme.FolderNewIcon(), newFolder),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), saveCurrent),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.VisibilityOffIcon(), archiveNote),
		widget.NewToolbarAction(theme.DeleteIcon(), deleteNote),
	)

	// Re-query on every change signal so external mutations (CLI, sync)
	// show up without a manual refresh.
	changes := st.Notifier().Subscribe()
	defer st.Notifier().Unsubscribe(changes)
	go func() {
		for range changes {
			fyne.Do(func() {
				refreshNotes()
				folderTree.Refresh()
			})
		}
	}()

	left := container.NewBorder(nil, nil, nil, nil, folderTree)
	middle := container.NewBorder(container.NewVBox(toolbar, search), nil, nil, nil, noteList)
	content := container.NewHSplit(left, container.NewHSplit(middle, editor))
	content.Offset = 0.2

	w.SetContent(container.NewBorder(nil, status, nil, nil, content))
	w.SetOnClosed(func() {
		saveCurrent()
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
	})

	refreshNotes()
	w.ShowAndRun()
	return nil
}

// lastSlash returns the index of the final '/' in s, or -1.
func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}
