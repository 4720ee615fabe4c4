package testsupport

import (
	"context"
	"errors"
	"strings"
	"sync"

	"agrisync/internal/kvstore"
	"agrisync/internal/services"
)

// ErrInjected is the cause attached to injected store failures.
var ErrInjected = errors.New("injected failure")

// FaultyStore wraps a Store and fails selected operations.
type FaultyStore struct {
	kvstore.Store

	mu       sync.Mutex
	failSets map[string]bool
	failAll  bool
}

// NewFaultyStore wraps inner.
func NewFaultyStore(inner kvstore.Store) *FaultyStore {
	return &FaultyStore{Store: inner, failSets: make(map[string]bool)}
}

// FailSetsFor makes every Set on a key containing fragment fail.
func (f *FaultyStore) FailSetsFor(fragment string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSets[fragment] = true
}

// FailAll makes every operation fail until reset with FailAll(false).
func (f *FaultyStore) FailAll(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = fail
}

func (f *FaultyStore) shouldFail(key string, set bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return true
	}
	if !set {
		return false
	}
	for fragment := range f.failSets {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}

func (f *FaultyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.shouldFail(key, false) {
		return nil, false, services.Wrap(services.ErrStorage, "kvstore", "get", key, ErrInjected)
	}
	return f.Store.Get(ctx, key)
}

func (f *FaultyStore) Set(ctx context.Context, key string, value []byte) error {
	if f.shouldFail(key, true) {
		return services.Wrap(services.ErrStorage, "kvstore", "set", key, ErrInjected)
	}
	return f.Store.Set(ctx, key, value)
}

func (f *FaultyStore) Scan(ctx context.Context, prefix string) ([]kvstore.Record, error) {
	if f.shouldFail(prefix, false) {
		return nil, services.Wrap(services.ErrStorage, "kvstore", "scan", prefix, ErrInjected)
	}
	return f.Store.Scan(ctx, prefix)
}
