// Package daemon coordinates the long-running agrisync process.
//
// It wires configuration, the durable store, the queue manager, the network
// monitor, the sync engine, and the offline cache into a single lifecycle with
// flock-based locking to prevent multiple instances. On start it returns any
// in_flight leftovers from a previous crash to pending before the sync engine
// subscribes to connectivity changes.
//
// The daemon also serves the local HTTP API the app talks to: enqueueing
// mutations, listing pending items, manual sync, connectivity pushes, and the
// offline data cache. An optional bearer token guards every route.
//
// Keep orchestration logic here: queue semantics live in internal/queue and
// delivery in internal/syncer and internal/dispatch, while the daemon focuses
// on startup, shutdown, and high level coordination.
package daemon
