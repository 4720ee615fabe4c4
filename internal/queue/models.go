package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusInFlight  Status = "in_flight"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusInFlight,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[status]
	return status, ok
}

// Kind is the closed set of mutations the queue accepts.
type Kind string

const (
	KindDiagnosis     Kind = "diagnosis"
	KindMarketQuery   Kind = "market_query"
	KindAdvisoryQuery Kind = "advisory_query"
)

var allKinds = []Kind{KindDiagnosis, KindMarketQuery, KindAdvisoryQuery}

// AllKinds returns every accepted kind.
func AllKinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// ParseKind converts a string into a known Kind. The older voice_query
// spelling maps to KindAdvisoryQuery.
func ParseKind(value string) (Kind, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "voice_query" {
		return KindAdvisoryQuery, true
	}
	kind := Kind(normalized)
	for _, known := range allKinds {
		if kind == known {
			return kind, true
		}
	}
	return "", false
}

// Valid reports whether k is one of the accepted kinds.
func (k Kind) Valid() bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Item is one captured user mutation awaiting remote delivery. Its JSON form
// is the persisted record.
type Item struct {
	ID           string          `json:"id"`
	Kind         Kind            `json:"kind"`
	Payload      json.RawMessage `json:"payload"`
	EnqueuedAt   time.Time       `json:"enqueued_at"`
	Status       Status          `json:"status"`
	LastError    string          `json:"last_error,omitempty"`
	AttemptCount int             `json:"attempt_count"`
	// Parked marks a failed item whose failure a later cycle cannot fix.
	// Only an explicit retry makes it deliverable again.
	Parked    bool      `json:"parked,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary is the status-indicator view of an item.
type Summary struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	Status       Status    `json:"status"`
	AttemptCount int       `json:"attempt_count"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
	LastError    string    `json:"last_error,omitempty"`
	Parked       bool      `json:"parked,omitempty"`
}

// Summary returns the status-indicator view of the item.
func (i Item) Summary() Summary {
	return Summary{
		ID:           i.ID,
		Kind:         i.Kind,
		Status:       i.Status,
		AttemptCount: i.AttemptCount,
		EnqueuedAt:   i.EnqueuedAt,
		LastError:    i.LastError,
		Parked:       i.Parked,
	}
}

// IsDeliverable reports whether a sync cycle should attempt the item.
func (i Item) IsDeliverable() bool {
	switch i.Status {
	case StatusPending:
		return true
	case StatusFailed:
		return !i.Parked
	default:
		return false
	}
}

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	InFlight  int `json:"in_flight"`
	Failed    int `json:"failed"`
	Completed int `json:"completed"`
}

const keyPrefix = "queue/"

func recordKey(id string) string {
	return keyPrefix + id
}

func encodeItem(item *Item) ([]byte, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("encode queue item %s: %w", item.ID, err)
	}
	return data, nil
}

func decodeItem(data []byte) (*Item, error) {
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("decode queue item: %w", err)
	}
	if item.ID == "" {
		return nil, fmt.Errorf("decode queue item: missing id")
	}
	if _, ok := statusSet[item.Status]; !ok {
		return nil, fmt.Errorf("decode queue item %s: unknown status %q", item.ID, item.Status)
	}
	return &item, nil
}
