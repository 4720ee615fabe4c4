package api

import (
	"sort"
	"strings"
	"time"
)

// SortQueueItemsOldestFirst orders queue items by EnqueuedAt ascending,
// breaking ties by ID. This is the order a sync cycle delivers them in.
func SortQueueItemsOldestFirst(items []QueueItem) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	sorted := make([]QueueItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti := parseQueueTime(sorted[i].EnqueuedAt)
		tj := parseQueueTime(sorted[j].EnqueuedAt)
		if ti.Equal(tj) {
			return sorted[i].ID < sorted[j].ID
		}
		return ti.Before(tj)
	})
	return sorted
}

func parseQueueTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

// ParseQueueTime exposes queue timestamp parsing for consumers that need display formatting.
func ParseQueueTime(value string) time.Time {
	return parseQueueTime(value)
}

// ShortID trims an item id for table display.
func ShortID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}

// ErrorCode returns the classification prefix of a recorded last_error.
func ErrorCode(lastError string) string {
	code, _, found := strings.Cut(lastError, ":")
	if !found {
		return ""
	}
	return strings.TrimSpace(code)
}
