// Package syncer drains the offline queue when connectivity allows.
//
// An Engine runs at most one drain at a time. Drains start when the network
// monitor reports an offline to online transition, on a cron schedule while
// online, or on demand through SyncNow. Items are delivered one at a time in
// enqueue order and connectivity is rechecked before each one; losing the
// network ends the drain and leaves the remaining items for the next cycle.
package syncer
