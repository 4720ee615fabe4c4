package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a queue entry in a transport-friendly format.
type QueueItem struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	Status       string          `json:"status"`
	AttemptCount int             `json:"attemptCount"`
	LastError    string          `json:"lastError,omitempty"`
	Parked       bool            `json:"parked,omitempty"`
	EnqueuedAt   string          `json:"enqueuedAt,omitempty"`
	UpdatedAt    string          `json:"updatedAt,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueItemResponse wraps a single queue item.
type QueueItemResponse struct {
	Item QueueItem `json:"item"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// EnqueueRequest captures a user mutation submitted while possibly offline.
type EnqueueRequest struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// EnqueueResponse returns the id assigned to a new queue item.
type EnqueueResponse struct {
	ID string `json:"id"`
}

// RetryRequest selects failed items to reset. An empty list retries all.
type RetryRequest struct {
	IDs []string `json:"ids,omitempty"`
}

// CountResponse reports how many items an operation touched.
type CountResponse struct {
	Count int `json:"count"`
}

// SyncReport summarizes one drain of the queue.
type SyncReport struct {
	Reason     string `json:"reason"`
	StartedAt  string `json:"startedAt,omitempty"`
	Attempted  int    `json:"attempted"`
	Completed  int    `json:"completed"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	Aborted    bool   `json:"aborted"`
	Evicted    int    `json:"evicted"`
	Remaining  int    `json:"remaining"`
	DurationMS int64  `json:"durationMs"`
}

// SyncStatus mirrors the sync engine state.
type SyncStatus struct {
	State      string      `json:"state"`
	Running    bool        `json:"running"`
	Schedule   string      `json:"schedule,omitempty"`
	LastReport *SyncReport `json:"lastReport,omitempty"`
	LastError  string      `json:"lastError,omitempty"`
}

// NetworkStatus reports the current connectivity view.
type NetworkStatus struct {
	Online      bool   `json:"online"`
	ChangedAt   string `json:"changedAt,omitempty"`
	Subscribers int    `json:"subscribers"`
}

// NetworkUpdate is pushed by the app when the platform reports a change.
type NetworkUpdate struct {
	Online bool `json:"online"`
}

// QueueHealth describes aggregated queue counts per lifecycle state.
type QueueHealth struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	InFlight  int `json:"inFlight"`
	Failed    int `json:"failed"`
	Completed int `json:"completed"`
}

// DatabaseHealth captures diagnostics of the backing store file.
type DatabaseHealth struct {
	Path           string `json:"path"`
	Exists         bool   `json:"exists"`
	Readable       bool   `json:"readable"`
	SchemaVersion  int    `json:"schemaVersion"`
	IntegrityCheck bool   `json:"integrityOk"`
	Records        int    `json:"records"`
	Error          string `json:"error,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running         bool             `json:"running"`
	PID             int              `json:"pid"`
	DatabasePath    string           `json:"databasePath"`
	LockFilePath    string           `json:"lockFilePath"`
	Queue           QueueHealth      `json:"queue"`
	Network         NetworkStatus    `json:"network"`
	Sync            SyncStatus       `json:"sync"`
	Database        *DatabaseHealth  `json:"database,omitempty"`
	UnreadResults   int              `json:"unreadResults"`
	Metrics         map[string]int64 `json:"metrics,omitempty"`
	TelemetryActive bool             `json:"telemetryActive"`
}

// CacheEntry is a timestamped offline data record.
type CacheEntry struct {
	Key        string          `json:"key"`
	Data       json.RawMessage `json:"data"`
	Timestamp  string          `json:"timestamp"`
	AgeSeconds int64           `json:"ageSeconds"`
}

// CacheKeysResponse lists cached keys.
type CacheKeysResponse struct {
	Keys []string `json:"keys"`
}

// ResultEntry is a remote response stored for an item delivered while the
// app was not watching.
type ResultEntry struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Result     json.RawMessage `json:"result"`
	ReceivedAt string          `json:"receivedAt"`
}

// StatusLine is a labelled health line rendered by status views.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}
