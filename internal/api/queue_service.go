package api

import (
	"context"

	"agrisync/internal/queue"
)

// QueueReader abstracts queue interactions needed for API queries.
type QueueReader interface {
	List(ctx context.Context, statuses ...queue.Status) ([]queue.Item, error)
	ListPending(ctx context.Context) ([]queue.Summary, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	Get(ctx context.Context, id string) (*queue.Item, error)
}

// QueueService exposes read-only queue operations returning API DTOs.
type QueueService struct {
	store QueueReader
}

// NewQueueService constructs a QueueService around the provided reader.
func NewQueueService(store QueueReader) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store}
}

// List returns queue items filtered by status. Without statuses it returns
// the status-indicator view of every item not yet completed.
func (s *QueueService) List(ctx context.Context, statuses ...queue.Status) ([]QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	if len(statuses) == 0 {
		summaries, err := s.store.ListPending(ctx)
		if err != nil {
			return nil, err
		}
		return FromSummaries(summaries), nil
	}
	items, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromQueueItems(items), nil
}

// Stats returns queue summary counts keyed by status string.
func (s *QueueService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Describe fetches a single queue item including its payload.
func (s *QueueService) Describe(ctx context.Context, id string) (*QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	item, err := s.store.Get(ctx, id)
	if err != nil || item == nil {
		return nil, err
	}
	dto := FromQueueItem(item)
	return &dto, nil
}

// ParseStatuses converts raw status filters, rejecting unknown values.
func ParseStatuses(values []string) ([]queue.Status, []string) {
	var (
		statuses []queue.Status
		invalid  []string
	)
	for _, value := range values {
		if value == "" {
			continue
		}
		status, ok := queue.ParseStatus(value)
		if !ok {
			invalid = append(invalid, value)
			continue
		}
		statuses = append(statuses, status)
	}
	return statuses, invalid
}
