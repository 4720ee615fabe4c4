package main

import (
	"fmt"
	"strings"
	"time"

	"agrisync/internal/api"
)

func buildQueueHealthRows(health api.QueueHealth) [][]string {
	if health.Total == 0 {
		return nil
	}
	rows := make([][]string, 0, 4)
	for _, entry := range []struct {
		status string
		count  int
	}{
		{"pending", health.Pending},
		{"in_flight", health.InFlight},
		{"failed", health.Failed},
		{"completed", health.Completed},
	} {
		if entry.count == 0 {
			continue
		}
		rows = append(rows, []string{formatStatusLabel(entry.status), fmt.Sprintf("%d", entry.count)})
	}
	return rows
}

var queueListHeaders = []string{"ID", "Kind", "Status", "Attempts", "Enqueued", "Error"}

var queueListAlign = []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}

// buildQueueListRows renders items in delivery order.
func buildQueueListRows(items []api.QueueItem) [][]string {
	if len(items) == 0 {
		return nil
	}
	sorted := api.SortQueueItemsOldestFirst(items)
	rows := make([][]string, 0, len(sorted))
	for _, item := range sorted {
		rows = append(rows, []string{
			api.ShortID(item.ID),
			formatStatusLabel(item.Kind),
			formatStatusLabel(item.Status),
			fmt.Sprintf("%d", item.AttemptCount),
			formatDisplayTime(item.EnqueuedAt),
			api.ErrorCode(item.LastError),
		})
	}
	return rows
}

func queueItemDetailLines(item api.QueueItem) []string {
	lines := []string{
		fmt.Sprintf("ID:        %s", item.ID),
		fmt.Sprintf("Kind:      %s", formatStatusLabel(item.Kind)),
		fmt.Sprintf("Status:    %s", formatStatusLabel(item.Status)),
		fmt.Sprintf("Attempts:  %d", item.AttemptCount),
		fmt.Sprintf("Enqueued:  %s", formatDisplayTime(item.EnqueuedAt)),
	}
	if item.UpdatedAt != "" {
		lines = append(lines, fmt.Sprintf("Updated:   %s", formatDisplayTime(item.UpdatedAt)))
	}
	if item.LastError != "" {
		lines = append(lines, fmt.Sprintf("Error:     %s", item.LastError))
	}
	if item.Parked {
		lines = append(lines, "Retry:     waiting for 'agrisync queue retry'")
	}
	if len(item.Payload) > 0 {
		lines = append(lines, fmt.Sprintf("Payload:   %s", strings.TrimSpace(string(item.Payload))))
	}
	return lines
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatDisplayTime(value string) string {
	t := api.ParseQueueTime(strings.TrimSpace(value))
	if t.IsZero() {
		return strings.TrimSpace(value)
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func formatAge(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return (time.Duration(seconds) * time.Second).String()
}
