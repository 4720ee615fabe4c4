package api

import (
	"time"

	"agrisync/internal/kvstore"
	"agrisync/internal/offlinecache"
	"agrisync/internal/queue"
	"agrisync/internal/syncer"
)

// FromQueueItem converts a queue record to its API representation.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}
	dto := QueueItem{
		ID:           item.ID,
		Kind:         string(item.Kind),
		Status:       string(item.Status),
		AttemptCount: item.AttemptCount,
		LastError:    item.LastError,
		Parked:       item.Parked,
		EnqueuedAt:   FormatTime(item.EnqueuedAt),
		UpdatedAt:    FormatTime(item.UpdatedAt),
	}
	if len(item.Payload) > 0 {
		dto.Payload = append([]byte(nil), item.Payload...)
	}
	return dto
}

// FromQueueItems converts a batch of queue items.
func FromQueueItems(items []queue.Item) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]QueueItem, 0, len(items))
	for i := range items {
		out = append(out, FromQueueItem(&items[i]))
	}
	return out
}

// FromSummary converts the status-indicator view of an item. Payloads are
// not part of summaries.
func FromSummary(summary queue.Summary) QueueItem {
	return QueueItem{
		ID:           summary.ID,
		Kind:         string(summary.Kind),
		Status:       string(summary.Status),
		AttemptCount: summary.AttemptCount,
		LastError:    summary.LastError,
		Parked:       summary.Parked,
		EnqueuedAt:   FormatTime(summary.EnqueuedAt),
	}
}

// FromSummaries converts a batch of summaries, preserving order.
func FromSummaries(summaries []queue.Summary) []QueueItem {
	if len(summaries) == 0 {
		return nil
	}
	out := make([]QueueItem, 0, len(summaries))
	for _, summary := range summaries {
		out = append(out, FromSummary(summary))
	}
	return out
}

// FromReport converts a sync report.
func FromReport(report syncer.Report) SyncReport {
	return SyncReport{
		Reason:     report.Reason,
		StartedAt:  FormatTime(report.StartedAt),
		Attempted:  report.Attempted,
		Completed:  report.Completed,
		Failed:     report.Failed,
		Skipped:    report.Skipped,
		Aborted:    report.Aborted,
		Evicted:    report.Evicted,
		Remaining:  report.Remaining,
		DurationMS: report.Duration.Milliseconds(),
	}
}

// FromSyncStatus converts the engine status.
func FromSyncStatus(status syncer.Status) SyncStatus {
	out := SyncStatus{
		State:     string(status.State),
		Running:   status.Running,
		Schedule:  status.Schedule,
		LastError: status.LastError,
	}
	if status.LastReport != nil {
		report := FromReport(*status.LastReport)
		out.LastReport = &report
	}
	return out
}

// FromQueueHealth converts aggregated queue counts.
func FromQueueHealth(health queue.HealthSummary) QueueHealth {
	return QueueHealth{
		Total:     health.Total,
		Pending:   health.Pending,
		InFlight:  health.InFlight,
		Failed:    health.Failed,
		Completed: health.Completed,
	}
}

// FromDatabaseHealth converts store diagnostics.
func FromDatabaseHealth(health kvstore.Health) DatabaseHealth {
	return DatabaseHealth{
		Path:           health.Path,
		Exists:         health.Exists,
		Readable:       health.Readable,
		SchemaVersion:  health.SchemaVersion,
		IntegrityCheck: health.IntegrityCheck,
		Records:        health.Records,
		Error:          health.Error,
	}
}

// FromCacheEntry converts an offline cache entry, computing its age at now.
func FromCacheEntry(entry offlinecache.Entry, now time.Time) CacheEntry {
	return CacheEntry{
		Key:        entry.Key,
		Data:       entry.Data,
		Timestamp:  FormatTime(entry.Timestamp),
		AgeSeconds: int64(entry.Age(now) / time.Second),
	}
}

// FromResult converts a stored remote response.
func FromResult(result offlinecache.Result) ResultEntry {
	return ResultEntry{
		ID:         result.ID,
		Kind:       string(result.Kind),
		Result:     result.Result,
		ReceivedAt: FormatTime(result.ReceivedAt),
	}
}

// MergeQueueStats produces a string-keyed representation of queue stats.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
