package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// Record is a single key/value pair returned by Scan.
type Record struct {
	Key       string
	Value     []byte
	UpdatedAt time.Time
}

// Store is durable key-value persistence. Values are opaque bytes; callers own
// serialization.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set writes value under key. A nil return means the write is durable.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Scan returns all records whose key starts with prefix, ordered by key.
	Scan(ctx context.Context, prefix string) ([]Record, error)
	Close() error
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
