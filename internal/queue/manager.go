package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"agrisync/internal/kvstore"
	"agrisync/internal/logging"
	"agrisync/internal/services"
)

// Manager owns queue items persisted in a kvstore.Store.
type Manager struct {
	store  kvstore.Store
	logger *slog.Logger
	locks  *keyedMutex
	now    func() time.Time
	newID  func() (string, error)
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for enqueued_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator overrides item id generation.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// NewManager constructs a queue manager around store.
func NewManager(store kvstore.Store, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		logger: logging.NewComponentLogger(logger, "queue"),
		locks:  newKeyedMutex(),
		now:    time.Now,
		newID:  newItemID,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func newItemID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Enqueue persists a new pending item and returns its id.
func (m *Manager) Enqueue(ctx context.Context, kind Kind, payload []byte) (string, error) {
	if !kind.Valid() {
		return "", services.Wrap(services.ErrUnknownKind, "queue", "enqueue", fmt.Sprintf("kind %q", kind), nil)
	}
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	if !json.Valid(payload) {
		return "", services.Wrap(services.ErrValidation, "queue", "enqueue", "payload must be valid JSON", nil)
	}
	id, err := m.newID()
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "queue", "enqueue", "generate id", err)
	}

	now := m.now().UTC()
	item := &Item{
		ID:         id,
		Kind:       kind,
		Payload:    append(json.RawMessage(nil), payload...),
		EnqueuedAt: now,
		Status:     StatusPending,
		UpdatedAt:  now,
	}
	if err := m.put(ctx, item); err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	m.logger.Debug("item enqueued",
		logging.String(logging.FieldItemID, id),
		logging.String(logging.FieldKind, string(kind)),
		logging.String(logging.FieldEventType, "queue_item_enqueued"),
	)
	return id, nil
}

// Get returns the item with id, or nil when it does not exist.
func (m *Manager) Get(ctx context.Context, id string) (*Item, error) {
	data, ok, err := m.store.Get(ctx, recordKey(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	item, err := decodeItem(data)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "queue", "get", id, err)
	}
	return item, nil
}

// List returns items with any of the given statuses (all items when none are
// given) ordered by enqueued_at, oldest first.
func (m *Manager) List(ctx context.Context, statuses ...Status) ([]Item, error) {
	records, err := m.store.Scan(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}
	filter := make(map[Status]struct{}, len(statuses))
	for _, status := range statuses {
		filter[status] = struct{}{}
	}

	items := make([]Item, 0, len(records))
	for _, rec := range records {
		item, err := decodeItem(rec.Value)
		if err != nil {
			logging.WarnWithContext(m.logger, "skipping unreadable queue record", "queue_record_corrupt",
				logging.String("key", rec.Key),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the record with 'agrisync queue remove'"),
				logging.String(logging.FieldImpact, "the record is not delivered until repaired"),
			)
			continue
		}
		if len(filter) > 0 {
			if _, ok := filter[item.Status]; !ok {
				continue
			}
		}
		items = append(items, *item)
	}
	sortByEnqueue(items)
	return items, nil
}

func sortByEnqueue(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].EnqueuedAt.Equal(items[j].EnqueuedAt) {
			return items[i].EnqueuedAt.Before(items[j].EnqueuedAt)
		}
		return items[i].ID < items[j].ID
	})
}

// Snapshot returns the deliverable items ordered by enqueued_at: every
// pending item and each failed item that is not parked.
func (m *Manager) Snapshot(ctx context.Context) ([]Item, error) {
	items, err := m.List(ctx, StatusPending, StatusFailed)
	if err != nil {
		return nil, err
	}
	deliverable := items[:0]
	for _, item := range items {
		if item.IsDeliverable() {
			deliverable = append(deliverable, item)
		}
	}
	return deliverable, nil
}

// ListPending returns the status-indicator view of every item not yet completed.
func (m *Manager) ListPending(ctx context.Context) ([]Summary, error) {
	items, err := m.List(ctx, StatusPending, StatusInFlight, StatusFailed)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(items))
	for _, item := range items {
		out = append(out, item.Summary())
	}
	return out, nil
}

// MarkInFlight records the start of a delivery attempt and increments
// attempt_count. A failed item passes through pending as an implicit retry.
func (m *Manager) MarkInFlight(ctx context.Context, id string) error {
	return m.transition(ctx, id, func(item *Item) (bool, error) {
		switch item.Status {
		case StatusInFlight:
			return false, nil
		case StatusPending, StatusFailed:
			item.Status = StatusInFlight
			item.LastError = ""
			item.Parked = false
			item.AttemptCount++
			return true, nil
		default:
			return false, invalidTransition(id, item.Status, StatusInFlight)
		}
	})
}

// MarkCompleted records a successful delivery.
func (m *Manager) MarkCompleted(ctx context.Context, id string) error {
	return m.transition(ctx, id, func(item *Item) (bool, error) {
		switch item.Status {
		case StatusCompleted:
			return false, nil
		case StatusInFlight:
			item.Status = StatusCompleted
			item.LastError = ""
			return true, nil
		default:
			return false, invalidTransition(id, item.Status, StatusCompleted)
		}
	})
}

// MarkFailed records a failed delivery attempt with its cause. A cause that
// services.Retryable rejects parks the item until RetryFailed.
func (m *Manager) MarkFailed(ctx context.Context, id string, cause error) error {
	message := failureMessage(cause)
	return m.transition(ctx, id, func(item *Item) (bool, error) {
		switch item.Status {
		case StatusFailed:
			return false, nil
		case StatusInFlight:
			item.Status = StatusFailed
			item.LastError = message
			item.Parked = cause != nil && !services.Retryable(cause)
			return true, nil
		default:
			return false, invalidTransition(id, item.Status, StatusFailed)
		}
	})
}

func failureMessage(cause error) string {
	if cause == nil {
		return "delivery failed"
	}
	msg := strings.TrimSpace(cause.Error())
	if code := services.Classify(cause); code != "" && !strings.HasPrefix(msg, code) {
		msg = code + ": " + msg
	}
	return msg
}

// RetryFailed moves failed items back to pending. With no ids every failed
// item is retried. It returns the number of items moved.
func (m *Manager) RetryFailed(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		failed, err := m.List(ctx, StatusFailed)
		if err != nil {
			return 0, err
		}
		for _, item := range failed {
			ids = append(ids, item.ID)
		}
	}
	return m.moveAll(ctx, ids, StatusFailed, StatusPending)
}

// RecoverInFlight returns items left in_flight by an interrupted process to
// pending. Run it before the first sync cycle.
func (m *Manager) RecoverInFlight(ctx context.Context) (int, error) {
	stuck, err := m.List(ctx, StatusInFlight)
	if err != nil {
		return 0, err
	}
	ids := make([]string, 0, len(stuck))
	for _, item := range stuck {
		ids = append(ids, item.ID)
	}
	return m.moveAll(ctx, ids, StatusInFlight, StatusPending)
}

func (m *Manager) moveAll(ctx context.Context, ids []string, from, to Status) (int, error) {
	moved := 0
	for _, id := range ids {
		changed := false
		err := m.transition(ctx, id, func(item *Item) (bool, error) {
			if item.Status != from {
				return false, nil
			}
			item.Status = to
			item.LastError = ""
			item.Parked = false
			changed = true
			return true, nil
		})
		if err != nil {
			return moved, err
		}
		if changed {
			moved++
		}
	}
	return moved, nil
}

// EvictCompleted removes every completed item and returns how many were removed.
func (m *Manager) EvictCompleted(ctx context.Context) (int, error) {
	completed, err := m.List(ctx, StatusCompleted)
	if err != nil {
		return 0, err
	}
	evicted := 0
	for _, item := range completed {
		removed, err := m.removeIf(ctx, item.ID, func(current *Item) bool {
			return current.Status == StatusCompleted
		})
		if err != nil {
			return evicted, err
		}
		if removed {
			evicted++
		}
	}
	return evicted, nil
}

// Remove deletes a single item regardless of status.
func (m *Manager) Remove(ctx context.Context, id string) (bool, error) {
	return m.removeIf(ctx, id, func(*Item) bool { return true })
}

// Clear deletes every queue item and returns how many were removed.
func (m *Manager) Clear(ctx context.Context) (int, error) {
	records, err := m.store.Scan(ctx, keyPrefix)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, rec := range records {
		id := strings.TrimPrefix(rec.Key, keyPrefix)
		unlock := m.locks.lock(id)
		err := m.store.Delete(ctx, rec.Key)
		unlock()
		if err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Stats returns a count of items grouped by status.
func (m *Manager) Stats(ctx context.Context) (map[Status]int, error) {
	items, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	stats := make(map[Status]int)
	for _, item := range items {
		stats[item.Status]++
	}
	return stats, nil
}

// Health aggregates queue state for diagnostic output.
func (m *Manager) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := m.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{
		Pending:   stats[StatusPending],
		InFlight:  stats[StatusInFlight],
		Failed:    stats[StatusFailed],
		Completed: stats[StatusCompleted],
	}
	health.Total = health.Pending + health.InFlight + health.Failed + health.Completed
	return health, nil
}

// transition applies fn to the current record under the item's lock and
// persists the result when fn reports a change. A missing id is a no-op.
func (m *Manager) transition(ctx context.Context, id string, fn func(*Item) (bool, error)) error {
	unlock := m.locks.lock(id)
	defer unlock()

	item, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if item == nil {
		return nil
	}
	before := item.Status
	changed, err := fn(item)
	if err != nil || !changed {
		return err
	}
	item.UpdatedAt = m.now().UTC()
	if err := m.put(ctx, item); err != nil {
		return err
	}
	m.logger.Debug("item status changed",
		logging.String(logging.FieldItemID, id),
		logging.String("from", string(before)),
		logging.String("to", string(item.Status)),
		logging.Int("attempt_count", item.AttemptCount),
	)
	return nil
}

func (m *Manager) removeIf(ctx context.Context, id string, match func(*Item) bool) (bool, error) {
	unlock := m.locks.lock(id)
	defer unlock()

	data, ok, err := m.store.Get(ctx, recordKey(id))
	if err != nil || !ok {
		return false, err
	}
	if item, decodeErr := decodeItem(data); decodeErr == nil && !match(item) {
		return false, nil
	}
	if err := m.store.Delete(ctx, recordKey(id)); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) put(ctx context.Context, item *Item) error {
	data, err := encodeItem(item)
	if err != nil {
		return services.Wrap(services.ErrStorage, "queue", "encode", item.ID, err)
	}
	return m.store.Set(ctx, recordKey(item.ID), data)
}
