// Package queue owns the offline mutation queue: the ordered collection of
// user actions captured while disconnected, and the status transitions that
// move them toward delivery.
//
// A Manager is constructed once per process around an injected kvstore.Store.
// Every item is one record keyed by "queue/<id>"; enqueue only writes its own
// new key, and status changes are serialized per item so concurrent mark_*
// calls for the same id never lose an update.
//
// Lifecycle: pending → in_flight → completed | failed, and failed → pending on
// retry. Completed items are never moved again and are evicted after each sync
// cycle. The package is the single source of truth for these rules; the sync
// engine only calls the mark_* operations.
package queue
