// Package netmon tracks whether the remote service is reachable.
//
// A Monitor combines three sources: a Prober polled on a fixed interval,
// netlink uevents for network interfaces that force an immediate re-probe,
// and explicit Set calls from hosts that learn connectivity from the OS.
// Only transitions are published to subscribers.
package netmon
