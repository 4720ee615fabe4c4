package kvstore_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"agrisync/internal/kvstore"
	"agrisync/internal/services"
)

func openStores(t *testing.T) map[string]kvstore.Store {
	t.Helper()
	sqlite, err := kvstore.Open(context.Background(), filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]kvstore.Store{
		"sqlite": sqlite,
		"memory": kvstore.NewMemory(),
	}
}

func TestStoreContract(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, ok, err := store.Get(ctx, "queue/missing"); err != nil || ok {
				t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
			}

			if err := store.Set(ctx, "", []byte("orphan")); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected ErrValidation for empty key, got %v", err)
			}
			if err := store.Set(ctx, "queue/a", []byte("one")); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := store.Set(ctx, "queue/a", []byte("two")); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			value, ok, err := store.Get(ctx, "queue/a")
			if err != nil || !ok {
				t.Fatalf("Get: ok=%v err=%v", ok, err)
			}
			if string(value) != "two" {
				t.Fatalf("expected overwritten value, got %q", value)
			}

			value[0] = 'X'
			again, _, _ := store.Get(ctx, "queue/a")
			if string(again) != "two" {
				t.Fatalf("mutating returned bytes changed stored value: %q", again)
			}

			if err := store.Delete(ctx, "queue/a"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := store.Delete(ctx, "queue/a"); err != nil {
				t.Fatalf("Delete missing key should succeed: %v", err)
			}
			if _, ok, _ := store.Get(ctx, "queue/a"); ok {
				t.Fatal("expected key removed")
			}
		})
	}
}

func TestStoreScanFiltersByPrefixInKeyOrder(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, key := range []string{"queue/c", "cache/prices", "queue/a", "queue/b", "queued"} {
				if err := store.Set(ctx, key, []byte(key)); err != nil {
					t.Fatalf("Set %s: %v", key, err)
				}
			}

			records, err := store.Scan(ctx, "queue/")
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			want := []string{"queue/a", "queue/b", "queue/c"}
			if len(records) != len(want) {
				t.Fatalf("expected %d records, got %d", len(want), len(records))
			}
			for i, rec := range records {
				if rec.Key != want[i] {
					t.Fatalf("record %d: got %q want %q", i, rec.Key, want[i])
				}
				if string(rec.Value) != want[i] {
					t.Fatalf("record %d: unexpected value %q", i, rec.Value)
				}
				if rec.UpdatedAt.IsZero() {
					t.Fatalf("record %d: expected updated_at", i)
				}
			}
		})
	}
}

func TestClosedStoreReturnsStorageError(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			err := store.Set(context.Background(), "queue/a", []byte("x"))
			if !errors.Is(err, services.ErrStorage) {
				t.Fatalf("expected storage error after close, got %v", err)
			}
		})
	}
}

func TestSQLiteValuesSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.db")

	store, err := kvstore.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, key := range []string{"queue/1", "queue/2", "queue/3"} {
		if err := store.Set(ctx, key, []byte("payload-"+key)); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := kvstore.Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	records, err := reopened.Scan(ctx, "queue/")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records after reopen, got %d", len(records))
	}
	if string(records[1].Value) != "payload-queue/2" {
		t.Fatalf("unexpected value after reopen: %q", records[1].Value)
	}

	count, err := reopened.Count(ctx, "queue/")
	if err != nil || count != 3 {
		t.Fatalf("Count: got %d err=%v", count, err)
	}
}

func TestSQLiteCheckHealth(t *testing.T) {
	ctx := context.Background()
	store, err := kvstore.Open(ctx, filepath.Join(t.TempDir(), "nested", "queue.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if err := store.Set(ctx, "queue/x", []byte("{}")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	health, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.Exists || !health.Readable || !health.IntegrityCheck {
		t.Fatalf("unexpected health: %+v", health)
	}
	if health.SchemaVersion != 1 || health.Records != 1 {
		t.Fatalf("unexpected health counts: %+v", health)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := kvstore.Open(context.Background(), " "); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
