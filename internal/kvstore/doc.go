// Package kvstore provides the durable key-value store the offline queue is
// persisted in.
//
// The SQLite implementation keeps one row per key in WAL mode with full
// synchronous commits, so a Set that returns nil survives a process crash and
// is visible to the next Open of the same file. Each Set is a single UPSERT;
// a record is either fully replaced or untouched. The Memory implementation
// satisfies the same contract for tests and embedding.
//
// Every failure is tagged with services.ErrStorage so callers can classify it
// with errors.Is.
package kvstore
