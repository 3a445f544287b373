package store

import (
	"os"
	"path/filepath"
	"testing"
)

// newTestStore creates a new Store in a temporary directory for testing.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	// Verify the database file doesn't exist yet
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatal("database file should not exist before creating store")
	}

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file should exist after creating store")
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	tables := []string{"recordings", "hook_runs", "settings"}
	for _, table := range tables {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q should exist after migrations: %v", table, err)
		}
	}

	indexes := []string{"idx_recordings_subject", "idx_hook_runs_recording_id"}
	for _, idx := range indexes {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='index' AND name=?",
			idx,
		).Scan(&name)
		if err != nil {
			t.Errorf("index %q should exist after migrations: %v", idx, err)
		}
	}
}

func TestNewStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := s.Settings().Set(SettingLastSubject, "p01"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	s.Close()

	// Migrations are idempotent and data survives.
	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s.Close()

	if v, err := s.Settings().Get(SettingLastSubject); err != nil || v != "p01" {
		t.Errorf("Get() = (%q, %v), want (p01, nil)", v, err)
	}
}

func TestStore_Close(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("close should not return error: %v", err)
	}

	// After closing, DB operations should fail
	if _, err := s.DB().Exec("SELECT 1"); err == nil {
		t.Error("DB operations should fail after close")
	}
}

func TestStore_ForeignKeysEnabled(t *testing.T) {
	s := newTestStore(t)

	var fkEnabled int
	if err := s.DB().QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("failed to check foreign keys pragma: %v", err)
	}
	if fkEnabled != 1 {
		t.Error("foreign keys should be enabled")
	}
}
