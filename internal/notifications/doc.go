// Package notifications delivers sync events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Repeated
// identical alerts inside the configured dedup window are dropped so an item
// that keeps failing every cycle does not page the user each time.
package notifications
