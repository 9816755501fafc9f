package storage

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"blendlink/internal/config"
	"blendlink/internal/logging"
)

func TestOpenCreatesDatabase(t *testing.T) {
	tmpDir := t.TempDir()

	db, err := Open(tmpDir, logging.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	wantPath := filepath.Join(tmpDir, config.DirName, DBName)
	if db.Path() != wantPath {
		t.Errorf("Path() = %q, want %q", db.Path(), wantPath)
	}
	if _, err := os.Stat(wantPath); err != nil {
		t.Errorf("database file should exist: %v", err)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	tmpDir := t.TempDir()
	key := Key{Path: "/p/a.blend", Size: 1, MtimeNs: 1}

	db, err := Open(tmpDir, logging.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := NewCache(db, true, logging.Nop()).Put(key, []byte("payload")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	db.Close()

	db, err = Open(tmpDir, logging.Nop())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer db.Close()

	got, ok := NewCache(db, true, logging.Nop()).Get(key)
	if !ok || string(got) != "payload" {
		t.Errorf("Get() after reopen = %q, %v, want %q, true", got, ok, "payload")
	}
}

func TestSchemaMismatchRebuildsCache(t *testing.T) {
	tmpDir := t.TempDir()
	key := Key{Path: "/p/a.blend", Size: 1, MtimeNs: 1}

	db, err := Open(tmpDir, logging.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := NewCache(db, true, logging.Nop()).Put(key, []byte("payload")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version=99"); err != nil {
		t.Fatalf("failed to fake schema version: %v", err)
	}
	db.Close()

	db, err = Open(tmpDir, logging.Nop())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer db.Close()

	if _, ok := NewCache(db, true, logging.Nop()).Get(key); ok {
		t.Error("cache written under another schema version should be dropped")
	}
}

func TestWithTxRollback(t *testing.T) {
	db := openTestDB(t)
	boom := errors.New("boom")

	err := db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO scan_cache (path, size, mtime_ns, payload, compression, created_at)
			VALUES ('/p/a.blend', 1, 1, x'00', 'none', 0)
		`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM scan_cache").Scan(&count); err != nil {
		t.Fatalf("count query error = %v", err)
	}
	if count != 0 {
		t.Errorf("row count = %d after rollback, want 0", count)
	}
}

func TestWithTxCommit(t *testing.T) {
	db := openTestDB(t)

	err := db.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO scan_cache (path, size, mtime_ns, payload, compression, created_at)
			VALUES ('/p/a.blend', 1, 1, x'00', 'none', 0)
		`)
		return err
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM scan_cache").Scan(&count); err != nil {
		t.Fatalf("count query error = %v", err)
	}
	if count != 1 {
		t.Errorf("row count = %d after commit, want 1", count)
	}
}
