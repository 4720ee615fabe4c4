package testsupport

import (
	"context"
	"testing"
	"time"

	"agrisync/internal/config"
	"agrisync/internal/kvstore"
	"agrisync/internal/logging"
	"agrisync/internal/queue"
)

// MustOpenStore opens the SQLite store at the config's database path and
// registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *kvstore.SQLite {
	t.Helper()

	store, err := kvstore.Open(context.Background(), cfg.DatabasePath())
	if err != nil {
		t.Fatalf("kvstore.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// NewQueue builds a queue manager over store with a stepping clock so items
// enqueued in sequence get strictly increasing timestamps.
func NewQueue(t testing.TB, store kvstore.Store) *queue.Manager {
	t.Helper()
	clock := NewStepClock(time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC), time.Second)
	return queue.NewManager(store, logging.NewNop(), queue.WithClock(clock.Now))
}

// MustEnqueue enqueues an item and fails the test on error.
func MustEnqueue(t testing.TB, mgr *queue.Manager, kind queue.Kind, payload string) string {
	t.Helper()

	id, err := mgr.Enqueue(context.Background(), kind, []byte(payload))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return id
}

// MustGet loads an item and fails the test when it is missing.
func MustGet(t testing.TB, mgr *queue.Manager, id string) *queue.Item {
	t.Helper()

	item, err := mgr.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get %s: %v", id, err)
	}
	if item == nil {
		t.Fatalf("item %s not found", id)
	}
	return item
}
