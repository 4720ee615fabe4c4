package ipc

import (
	"encoding/json"

	"agrisync/internal/api"
)

// StartRequest triggers daemon startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops background processing.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// QueueItem mirrors the HTTP API queue DTO for internal IPC callers.
type QueueItem = api.QueueItem

// StatusResponse represents combined daemon status information.
type StatusResponse = api.DaemonStatus

// EnqueueRequest captures a mutation to queue.
type EnqueueRequest struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// EnqueueResponse returns the assigned id.
type EnqueueResponse struct {
	ID string `json:"id"`
}

// QueueListRequest filters queue listing by status. Empty means every item
// not yet completed.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueDescribeRequest fetches a single queue item by id.
type QueueDescribeRequest struct {
	ID string `json:"id"`
}

// QueueDescribeResponse returns a queue item.
type QueueDescribeResponse struct {
	Item QueueItem `json:"item"`
}

// QueueRetryRequest resets failed items. Empty IDs retries all.
type QueueRetryRequest struct {
	IDs []string `json:"ids"`
}

// QueueRetryResponse reports how many items were reset.
type QueueRetryResponse struct {
	Updated int `json:"updated"`
}

// QueueClearRequest removes every item.
type QueueClearRequest struct{}

// QueueClearResponse reports how many items were removed.
type QueueClearResponse struct {
	Removed int `json:"removed"`
}

// QueueRemoveRequest removes a single item.
type QueueRemoveRequest struct {
	ID string `json:"id"`
}

// QueueRemoveResponse reports whether the item existed.
type QueueRemoveResponse struct {
	Removed bool `json:"removed"`
}

// SyncRequest runs a drain immediately.
type SyncRequest struct{}

// SyncResponse carries the drain report. Busy is set when a drain was
// already running and nothing new was started.
type SyncResponse struct {
	Report api.SyncReport `json:"report"`
	Busy   bool           `json:"busy"`
}

// NetworkRequest pushes a connectivity change.
type NetworkRequest struct {
	Online bool `json:"online"`
}

// NetworkResponse returns the resulting connectivity view.
type NetworkResponse struct {
	Changed bool              `json:"changed"`
	Network api.NetworkStatus `json:"network"`
}

// CacheGetRequest loads a cached snapshot.
type CacheGetRequest struct {
	Key string `json:"key"`
}

// CacheGetResponse returns the snapshot when present.
type CacheGetResponse struct {
	Found bool           `json:"found"`
	Entry api.CacheEntry `json:"entry"`
}

// CachePutRequest stores a snapshot.
type CachePutRequest struct {
	Key  string          `json:"key"`
	Data json.RawMessage `json:"data"`
}

// CachePutResponse returns the stored entry.
type CachePutResponse struct {
	Entry api.CacheEntry `json:"entry"`
}

// CacheKeysRequest lists cached keys.
type CacheKeysRequest struct{}

// CacheKeysResponse contains cached keys.
type CacheKeysResponse struct {
	Keys []string `json:"keys"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse indicates whether the notification was sent.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
