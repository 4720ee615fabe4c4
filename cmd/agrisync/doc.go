// Package main hosts the agrisync CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC calls
// against the daemon. Queue and cache commands fall back to opening the
// durable store directly when no daemon is running, so mutations can be
// recorded while both the network and the daemon are down; the next daemon
// start delivers them.
package main
