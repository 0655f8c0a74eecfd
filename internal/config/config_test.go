/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeStore keeps tokens in memory so tests never touch the OS keychain.
type fakeStore struct {
	values map[string]string
}

func (f *fakeStore) Get(service, key string) (string, error) {
	v, ok := f.values[service+"/"+key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}
func (f *fakeStore) Set(service, key, value string) error {
	f.values[service+"/"+key] = value
	return nil
}
func (f *fakeStore) Delete(service, key string) error {
	delete(f.values, service+"/"+key)
	return nil
}

func useFakeStore(t *testing.T) *fakeStore {
	t.Helper()
	old := tokenStore
	fs := &fakeStore{values: map[string]string{}}
	tokenStore = fs
	t.Cleanup(func() { tokenStore = old })
	return fs
}

func TestEnvOverridesDatabasePath(t *testing.T) {
	useFakeStore(t)
	old := os.Getenv(EnvDatabasePath)
	_ = os.Setenv(EnvDatabasePath, "/tmp/elsewhere/notes.db")
	t.Cleanup(func() { _ = os.Setenv(EnvDatabasePath, old) })
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Storage.DatabasePath, "/tmp/elsewhere/notes.db"; got != want {
		t.Fatalf("Storage.DatabasePath = %q, want %q", got, want)
	}
}

func TestEnvOverridesBackendURL(t *testing.T) {
	useFakeStore(t)
	old := os.Getenv(EnvBackendURL)
	_ = os.Setenv(EnvBackendURL, "https://example.test:8443")
	t.Cleanup(func() { _ = os.Setenv(EnvBackendURL, old) })
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Backend.BaseURL, "https://example.test:8443"; got != want {
		t.Fatalf("Backend.BaseURL = %q, want %q", got, want)
	}
}

func TestEnvOverridesTelemetry(t *testing.T) {
	useFakeStore(t)
	old := os.Getenv(EnvTelemetryOptIn)
	_ = os.Setenv(EnvTelemetryOptIn, "true")
	t.Cleanup(func() { _ = os.Setenv(EnvTelemetryOptIn, old) })
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.General.TelemetryOptIn {
		t.Fatalf("General.TelemetryOptIn expected true from env override")
	}
}

func TestMergeIncludesStorage(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Storage.DatabasePath = "/data/notes.db"
	src.Storage.BackupDir = "/data/backups"
	mergeInto(&dst, &src)
	if dst.Storage.DatabasePath != "/data/notes.db" || dst.Storage.BackupDir != "/data/backups" {
		t.Fatalf("storage fields not merged: %#v", dst.Storage)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "debug"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/inkwell.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/inkwell.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	useFakeStore(t)
	oldLevel := os.Getenv(EnvLogLevel)
	oldFmt := os.Getenv(EnvLogFormat)
	oldSrc := os.Getenv(EnvLogSource)
	oldFile := os.Getenv(EnvLogFile)
	_ = os.Setenv(EnvLogLevel, "error")
	_ = os.Setenv(EnvLogFormat, "json")
	_ = os.Setenv(EnvLogSource, "1")
	_ = os.Setenv(EnvLogFile, "/tmp/iwl.log")
	t.Cleanup(func() {
		_ = os.Setenv(EnvLogLevel, oldLevel)
		_ = os.Setenv(EnvLogFormat, oldFmt)
		_ = os.Setenv(EnvLogSource, oldSrc)
		_ = os.Setenv(EnvLogFile, oldFile)
	})
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "/tmp/iwl.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestDatabaseFileDefaultsToDataDir(t *testing.T) {
	var s StorageConfig
	p, err := s.DatabaseFile()
	if err != nil {
		t.Fatalf("DatabaseFile: %v", err)
	}
	if filepath.Base(p) != "notes.db" {
		t.Fatalf("default database file name: %q", p)
	}
	if !strings.Contains(strings.ToLower(p), "inkwell") {
		t.Fatalf("default database not under the app data dir: %q", p)
	}
}

func TestBackupPathDefaultsNextToDatabase(t *testing.T) {
	s := StorageConfig{DatabasePath: "/data/app/notes.db"}
	p, err := s.BackupPath()
	if err != nil {
		t.Fatalf("BackupPath: %v", err)
	}
	if p != filepath.Join("/data/app", "backups") {
		t.Fatalf("BackupPath = %q", p)
	}
}

func TestTokenRoundTripThroughStore(t *testing.T) {
	fs := useFakeStore(t)
	if err := StoreToken("s3cret"); err != nil {
		t.Fatalf("StoreToken: %v", err)
	}
	if got := Token(); got != "s3cret" {
		t.Fatalf("Token() = %q", got)
	}
	if len(fs.values) != 1 {
		t.Fatalf("token not stored exactly once: %v", fs.values)
	}
}
