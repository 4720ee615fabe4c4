// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Queue
// and status payloads reuse the api package types so the CLI renders the same
// shapes the HTTP API returns. A sync request that finds a drain already
// running reports Busy instead of failing.
//
// Reuse these types when adding new RPC endpoints to keep the protocol stable
// and compatible with existing command implementations.
package ipc
