package kvstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"agrisync/internal/services"
)

type memoryRecord struct {
	value     []byte
	updatedAt time.Time
}

// Memory is an in-process Store. Values are copied on the way in and out so
// callers cannot mutate stored bytes.
type Memory struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	closed  bool
	now     func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]memoryRecord), now: time.Now}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ensureContext(ctx).Err(); err != nil {
		return nil, false, services.Wrap(services.ErrStorage, "kvstore", "get", key, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, services.Wrap(services.ErrStorage, "kvstore", "get", key, ErrClosed)
	}
	rec, ok := m.records[key]
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(rec.value), true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return services.Wrap(services.ErrValidation, "kvstore", "set", "key is empty", nil)
	}
	if err := ensureContext(ctx).Err(); err != nil {
		return services.Wrap(services.ErrStorage, "kvstore", "set", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return services.Wrap(services.ErrStorage, "kvstore", "set", key, ErrClosed)
	}
	m.records[key] = memoryRecord{value: cloneBytes(value), updatedAt: m.now().UTC()}
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ensureContext(ctx).Err(); err != nil {
		return services.Wrap(services.ErrStorage, "kvstore", "delete", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return services.Wrap(services.ErrStorage, "kvstore", "delete", key, ErrClosed)
	}
	delete(m.records, key)
	return nil
}

func (m *Memory) Scan(ctx context.Context, prefix string) ([]Record, error) {
	if err := ensureContext(ctx).Err(); err != nil {
		return nil, services.Wrap(services.ErrStorage, "kvstore", "scan", prefix, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, services.Wrap(services.ErrStorage, "kvstore", "scan", prefix, ErrClosed)
	}
	out := make([]Record, 0, len(m.records))
	for key, rec := range m.records {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, Record{Key: key, Value: cloneBytes(rec.value), UpdatedAt: rec.updatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Close marks the store closed. Subsequent operations fail with ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
