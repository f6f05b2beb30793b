package sqldb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/tjfontaine/youtube-reviewer/internal/storage"
)

func TestSQLDBStore_SaveLoad(t *testing.T) {
	store, err := NewSQLite("file:memdb1?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Save(ctx, "abc123", []byte(`{"video_id":"abc123"}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx, "abc123")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(got) != `{"video_id":"abc123"}` {
		t.Errorf("Load() = %s, want saved record", got)
	}
}

func TestSQLDBStore_SaveOverwrites(t *testing.T) {
	store, err := NewSQLite("file:memdb2?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	for _, rec := range []string{"first", "second"} {
		if err := store.Save(ctx, "abc123", []byte(rec)); err != nil {
			t.Fatalf("Save(%s) error = %v", rec, err)
		}
	}

	got, err := store.Load(ctx, "abc123")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(got) != "second" {
		t.Errorf("Load() = %s, want second", got)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestSQLDBStore_LoadMissing(t *testing.T) {
	store, err := NewSQLite("file:memdb3?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer store.Close()

	_, err = store.Load(context.Background(), "zzz999")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestSQLDBStore_Delete(t *testing.T) {
	store, err := NewSQLite("file:memdb4?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Save(ctx, "abc123", []byte("x")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Delete(ctx, "abc123"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Load(ctx, "abc123"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Load() after Delete error = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "abc123"); err != nil {
		t.Errorf("Delete() of missing key error = %v", err)
	}
}

func TestNewSQLite_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")

	store, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer store.Close()

	if store.Dialect().Name() != "sqlite" {
		t.Errorf("Dialect().Name() = %v, want sqlite", store.Dialect().Name())
	}
}

func TestNew_UnsupportedDriver(t *testing.T) {
	if _, err := New(Config{Driver: "mysql", DSN: "x"}); err == nil {
		t.Error("New() error = nil, want unsupported driver error")
	}
}
