package offlinecache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"agrisync/internal/kvstore"
	"agrisync/internal/services"
)

const cachePrefix = "cache/"

// Entry is one cached snapshot with the time it was stored.
type Entry struct {
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Age returns how long ago the entry was stored.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.Timestamp)
}

// Cache stores timestamped JSON snapshots by key.
type Cache struct {
	store kvstore.Store
	now   func() time.Time
}

// NewCache returns a cache over store.
func NewCache(store kvstore.Store) *Cache {
	return &Cache{store: store, now: time.Now}
}

// Put replaces the entry for key.
func (c *Cache) Put(ctx context.Context, key string, data json.RawMessage) (Entry, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return Entry{}, err
	}
	if len(data) == 0 || !json.Valid(data) {
		return Entry{}, services.Wrap(services.ErrValidation, "offlinecache", "put", "data must be valid JSON", nil)
	}
	entry := Entry{Key: key, Data: append(json.RawMessage(nil), data...), Timestamp: c.now().UTC()}
	encoded, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, services.Wrap(services.ErrValidation, "offlinecache", "put", key, err)
	}
	if err := c.store.Set(ctx, cachePrefix+key, encoded); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Get returns the entry for key. The bool is false when nothing is cached.
func (c *Cache) Get(ctx context.Context, key string) (Entry, bool, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return Entry{}, false, err
	}
	data, ok, err := c.store.Get(ctx, cachePrefix+key)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, false, services.Wrap(services.ErrStorage, "offlinecache", "decode", key, err)
	}
	return entry, true, nil
}

// Delete removes key. Missing keys are not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	return c.store.Delete(ctx, cachePrefix+key)
}

// Keys lists cached keys in sorted order.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	records, err := c.store.Scan(ctx, cachePrefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(records))
	for _, rec := range records {
		keys = append(keys, strings.TrimPrefix(rec.Key, cachePrefix))
	}
	return keys, nil
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", services.Wrap(services.ErrValidation, "offlinecache", "key", "key required", nil)
	}
	if strings.ContainsAny(key, "\x00") {
		return "", services.Wrap(services.ErrValidation, "offlinecache", "key", fmt.Sprintf("invalid key %q", key), nil)
	}
	return key, nil
}
