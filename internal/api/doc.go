// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates internal queue, sync, and cache models into
// transport-friendly DTOs that the app and the CLI can render without coupling
// to internal types.
//
// # Key Types
//
// QueueItem: transport representation of a queue entry (status indicator view,
// optionally with the payload).
//
// SyncReport/SyncStatus: the outcome of a drain and the engine state.
//
// DaemonStatus: aggregated runtime information including queue counts,
// connectivity, store diagnostics, and metric totals.
//
// CacheEntry/ResultEntry: offline cache snapshots and delivered results.
//
// # Converters
//
// FromQueueItem, FromSummary, FromReport, FromSyncStatus, FromQueueHealth,
// FromDatabaseHealth, FromCacheEntry, FromResult.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Internal
// enums (queue.Status, queue.Kind, syncer.State) are exposed as lowercase
// strings. Timestamps use RFC3339 with milliseconds. Payloads and results are
// passed through as json.RawMessage to avoid double-encoding.
package api
