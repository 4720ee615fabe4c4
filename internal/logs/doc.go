// Package logs reads daemon log files for the CLI.
//
// Tail returns the last N lines or everything past a byte offset, and can
// wait for new lines in follow mode. Filter narrows lines by level, component,
// or queue item and understands both the console and JSON log formats the
// daemon writes.
package logs
