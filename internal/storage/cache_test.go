package storage

import (
	"bytes"
	"testing"

	"blendlink/internal/logging"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir(), logging.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCachePutGet(t *testing.T) {
	db := openTestDB(t)
	cache := NewCache(db, true, logging.Nop())

	key := Key{Path: "/p/scenes/a.blend", Size: 1024, MtimeNs: 111}
	payload := []byte(`{"file":"/p/scenes/a.blend","references":[]}`)

	if _, ok := cache.Get(key); ok {
		t.Fatal("Get() before Put() should miss")
	}

	if err := cache.Put(key, payload); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok := cache.Get(key)
	if !ok {
		t.Fatal("Get() after Put() should hit")
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Get() = %q, want %q", got, payload)
	}
}

func TestCacheStaleEntries(t *testing.T) {
	db := openTestDB(t)
	cache := NewCache(db, true, logging.Nop())

	key := Key{Path: "/p/a.blend", Size: 100, MtimeNs: 1}
	if err := cache.Put(key, []byte("payload")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	sizeChanged := Key{Path: "/p/a.blend", Size: 200, MtimeNs: 1}
	if _, ok := cache.Get(sizeChanged); ok {
		t.Error("Get() should miss when size changed")
	}

	mtimeChanged := Key{Path: "/p/a.blend", Size: 100, MtimeNs: 2}
	if _, ok := cache.Get(mtimeChanged); ok {
		t.Error("Get() should miss when mtime changed")
	}
}

func TestCacheOverwrite(t *testing.T) {
	db := openTestDB(t)
	cache := NewCache(db, true, logging.Nop())

	old := Key{Path: "/p/a.blend", Size: 100, MtimeNs: 1}
	if err := cache.Put(old, []byte("old")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	updated := Key{Path: "/p/a.blend", Size: 150, MtimeNs: 2}
	if err := cache.Put(updated, []byte("new")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if _, ok := cache.Get(old); ok {
		t.Error("old key should miss after overwrite")
	}
	got, ok := cache.Get(updated)
	if !ok || string(got) != "new" {
		t.Errorf("Get() = %q, %v, want %q, true", got, ok, "new")
	}
}

func TestCacheCompression(t *testing.T) {
	db := openTestDB(t)
	cache := NewCache(db, true, logging.Nop())

	// Repetitive payload so zstd actually shrinks it.
	payload := bytes.Repeat([]byte(`{"kind":"image","rawPath":"//tex/wood.jpg"},`), 200)
	key := Key{Path: "/p/a.blend", Size: 1, MtimeNs: 1}

	if err := cache.Put(key, payload); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	stats, err := cache.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalBytes >= int64(len(payload)) {
		t.Errorf("stored %d bytes for %d byte payload, expected compression", stats.TotalBytes, len(payload))
	}

	got, ok := cache.Get(key)
	if !ok || !bytes.Equal(got, payload) {
		t.Error("compressed payload did not round-trip")
	}
}

func TestCacheCompressionSettingChange(t *testing.T) {
	db := openTestDB(t)

	key := Key{Path: "/p/a.blend", Size: 1, MtimeNs: 1}
	if err := NewCache(db, true, logging.Nop()).Put(key, []byte("payload")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// A cache opened without compression still reads zstd rows.
	got, ok := NewCache(db, false, logging.Nop()).Get(key)
	if !ok || string(got) != "payload" {
		t.Errorf("Get() = %q, %v, want %q, true", got, ok, "payload")
	}
}

func TestCachePrune(t *testing.T) {
	db := openTestDB(t)
	cache := NewCache(db, false, logging.Nop())

	for _, path := range []string{"/p/a.blend", "/p/b.blend", "/p/gone.blend"} {
		if err := cache.Put(Key{Path: path, Size: 1, MtimeNs: 1}, []byte("x")); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	removed, err := cache.Prune(map[string]bool{"/p/a.blend": true, "/p/b.blend": true})
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Prune() removed = %d, want 1", removed)
	}

	if _, ok := cache.Get(Key{Path: "/p/gone.blend", Size: 1, MtimeNs: 1}); ok {
		t.Error("pruned entry should miss")
	}
	if _, ok := cache.Get(Key{Path: "/p/a.blend", Size: 1, MtimeNs: 1}); !ok {
		t.Error("live entry should survive pruning")
	}
}

func TestCacheClear(t *testing.T) {
	db := openTestDB(t)
	cache := NewCache(db, false, logging.Nop())

	if err := cache.Put(Key{Path: "/p/a.blend", Size: 1, MtimeNs: 1}, []byte("x")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := cache.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	stats, err := cache.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Entries != 0 {
		t.Errorf("Entries = %d after Clear(), want 0", stats.Entries)
	}
}
