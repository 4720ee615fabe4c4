package offlinecache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"agrisync/internal/kvstore"
	"agrisync/internal/queue"
	"agrisync/internal/services"
)

const resultPrefix = "result/"

// Result is the backend answer for a delivered queue item.
type Result struct {
	ID         string          `json:"id"`
	Kind       queue.Kind      `json:"kind"`
	Result     json.RawMessage `json:"result"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Inbox holds delivery results until the app collects them.
type Inbox struct {
	store kvstore.Store
	now   func() time.Time
}

// NewInbox returns an inbox over store.
func NewInbox(store kvstore.Store) *Inbox {
	return &Inbox{store: store, now: time.Now}
}

// StoreResult saves the answer for item id.
func (i *Inbox) StoreResult(ctx context.Context, id string, kind queue.Kind, result json.RawMessage) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return services.Wrap(services.ErrValidation, "offlinecache", "store result", "id required", nil)
	}
	encoded, err := json.Marshal(Result{
		ID:         id,
		Kind:       kind,
		Result:     result,
		ReceivedAt: i.now().UTC(),
	})
	if err != nil {
		return services.Wrap(services.ErrValidation, "offlinecache", "store result", id, err)
	}
	return i.store.Set(ctx, resultPrefix+id, encoded)
}

// Get returns the result for id.
func (i *Inbox) Get(ctx context.Context, id string) (Result, bool, error) {
	data, ok, err := i.store.Get(ctx, resultPrefix+strings.TrimSpace(id))
	if err != nil || !ok {
		return Result{}, false, err
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, false, services.Wrap(services.ErrStorage, "offlinecache", "decode result", id, err)
	}
	return result, true, nil
}

// Acknowledge removes a result once the app has shown it.
func (i *Inbox) Acknowledge(ctx context.Context, id string) error {
	return i.store.Delete(ctx, resultPrefix+strings.TrimSpace(id))
}

// Count returns the number of uncollected results.
func (i *Inbox) Count(ctx context.Context) (int, error) {
	records, err := i.store.Scan(ctx, resultPrefix)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}
