// Package services defines the shared error taxonomy and context helpers used
// by the queue, dispatcher and sync engine.
//
// Key responsibilities:
//   - Structured error markers (storage, network unavailable, remote failure,
//     unknown kind, timeout) plus the Wrap helper that tags failures so callers
//     can classify them with errors.Is.
//   - Context helpers that stamp queue item IDs, component names, and
//     correlation identifiers for logging.
//
// Use these helpers when adding new components so failure classification and
// observability stay uniform across the daemon.
package services
