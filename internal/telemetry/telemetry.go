/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry is the opt-in, anonymous usage channel for the note
// store: schema migrations, backup runs and note lifecycle counts, plus
// optional crash uploads. Disabled by default; events carry counts and
// durations only, never note content, titles or paths.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	applog "inkwell/internal/log"
	"inkwell/internal/version"
)

// Event names emitted by the application. A closed vocabulary so the
// receiving side can aggregate without guessing.
const (
	EventMigrationApplied = "migration_applied"
	EventBackupCompleted  = "backup_completed"
	EventNoteCreated      = "note_created"
	EventNoteDeleted      = "note_deleted"
)

// Config holds runtime configuration for telemetry and crash uploads.
// All telemetry is strictly opt-in and disabled by default.
//
// Environment variables (read by FromEnv):
// - IWL_TELEMETRY_OPT_IN: "1", "true", "yes" to enable metrics
// - IWL_TELEMETRY_URL: base URL to POST JSON events to
// - IWL_CRASH_UPLOAD_URL: URL to POST crash reports to
// - IWL_TELEMETRY_TIMEOUT_MS: optional request timeout, default 1500ms
// - IWL_TELEMETRY_DEBUG: if set, logs event send attempts
//
// If no URLs are set, events are dropped (no-ops), even if opt-in is true.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("IWL_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("IWL_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("IWL_CRASH_UPLOAD_URL")),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv("IWL_TELEMETRY_DEBUG") != "",
	}
	if ms := strings.TrimSpace(os.Getenv("IWL_TELEMETRY_TIMEOUT_MS")); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil {
			cfg.Timeout = v
		}
	}
	return cfg
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// event is one queued measurement. The envelope fields (version, os, arch)
// are attached at send time so queued events stay small.
type event struct {
	name  string
	at    time.Time
	props map[string]any
}

// Client is an async sender with a bounded queue. Emitting never blocks the
// caller: when the queue is full the event is dropped and counted.
type Client struct {
	cfg     Config
	log     *slog.Logger
	cli     *http.Client
	q       chan event
	dropped atomic.Int64
	once    sync.Once
	closed  chan struct{}
}

var defaultClient *Client
var defaultOnce sync.Once

// InitDefault initializes the package-level default client from env when first used.
func InitDefault() {
	defaultOnce.Do(func() {
		NewDefault(FromEnv())
	})
}

// NewDefault creates and installs the default client with cfg.
func NewDefault(cfg Config) {
	defaultClient = New(cfg)
}

// New constructs a client and starts its sender goroutine.
func New(cfg Config) *Client {
	c := &Client{
		cfg:    cfg,
		log:    applog.WithComponent("telemetry"),
		cli:    &http.Client{Timeout: cfg.Timeout},
		q:      make(chan event, 64),
		closed: make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether anonymous telemetry is enabled and an endpoint is configured.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Enabled reports whether anonymous telemetry is enabled using the default client.
func Enabled() bool {
	InitDefault()
	return defaultClient.Enabled()
}

// emit queues one event without blocking.
func (c *Client) emit(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	select {
	case c.q <- event{name: name, at: time.Now(), props: props}:
	default:
		c.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (c *Client) Dropped() int64 { return c.dropped.Load() }

// MigrationApplied records that a schema migration step committed.
func (c *Client) MigrationApplied(schemaVersion int) {
	c.emit(EventMigrationApplied, map[string]any{"schema_version": schemaVersion})
}

// BackupCompleted records a finished backup run with its sizes and duration.
func (c *Client) BackupCompleted(folders, documents int, took time.Duration) {
	c.emit(EventBackupCompleted, map[string]any{
		"folders":   folders,
		"documents": documents,
		"took_ms":   took.Milliseconds(),
	})
}

// NoteCreated records that a note was added.
func (c *Client) NoteCreated() { c.emit(EventNoteCreated, nil) }

// NoteDeleted records that a note was permanently removed.
func (c *Client) NoteDeleted() { c.emit(EventNoteDeleted, nil) }

// Package-level emitters using the default client.

func MigrationApplied(schemaVersion int) {
	InitDefault()
	defaultClient.MigrationApplied(schemaVersion)
}

func BackupCompleted(folders, documents int, took time.Duration) {
	InitDefault()
	defaultClient.BackupCompleted(folders, documents, took)
}

func NoteCreated() { InitDefault(); defaultClient.NoteCreated() }

func NoteDeleted() { InitDefault(); defaultClient.NoteDeleted() }

// Flush waits briefly for the queue to drain.
func (c *Client) Flush(ctx context.Context) {
	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		if len(c.q) == 0 || time.Now().After(deadline) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// Flush drains the default client's queue.
func Flush(ctx context.Context) { InitDefault(); defaultClient.Flush(ctx) }

// Close stops the sender goroutine.
func (c *Client) Close() { c.once.Do(func() { close(c.closed) }) }

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			return
		case e := <-c.q:
			c.send(e)
		}
	}
}

func (c *Client) send(e event) {
	payload := map[string]any{
		"name":    e.name,
		"ts":      e.at.UTC().Format(time.RFC3339Nano),
		"version": version.String(),
		"os":      runtime.GOOS,
		"arch":    runtime.GOARCH,
	}
	for k, v := range e.props {
		payload[k] = v
	}
	buf, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, c.cfg.EventsURL, bytes.NewReader(buf))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug("telemetry send failed", slog.String("event", e.name), slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug("telemetry event sent", slog.String("event", e.name))
	}
}

// UploadCrash posts an already-serialized crash report to the configured crash URL if opt-in.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	go func(b []byte) {
		req, err := http.NewRequest(http.MethodPost, c.cfg.CrashURL, bytes.NewReader(b))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
		resp, err := c.cli.Do(req)
		if err != nil {
			if c.cfg.DebugLogging {
				c.log.Debug("crash upload failed", slog.Any("err", err))
			}
			return
		}
		_ = resp.Body.Close()
		if c.cfg.DebugLogging {
			c.log.Debug("crash report uploaded")
		}
	}(append([]byte(nil), report...))
}

// UploadCrash using default client.
func UploadCrash(report []byte) { InitDefault(); defaultClient.UploadCrash(report) }
