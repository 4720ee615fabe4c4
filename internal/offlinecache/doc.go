// Package offlinecache keeps data the app shows while disconnected: keyed
// snapshots (market prices, crop calendars) saved by the app, and the answers
// returned by the backend for queued requests.
package offlinecache
