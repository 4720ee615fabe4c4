package main

import (
	"context"
	"errors"
	"syscall"

	"agrisync/internal/ipc"
	"agrisync/internal/kvstore"
	"agrisync/internal/queueaccess"
)

// withAccess runs fn against the daemon when it answers on the socket and
// against the store otherwise, so requests can be queued while it is down.
func (c *commandContext) withAccess(ctx context.Context, fn func(queueaccess.Access) error) error {
	socket := c.socketPath()
	var dialErr error
	session, err := queueaccess.OpenWithFallback(
		func() (*ipc.Client, error) {
			client, err := ipc.Dial(socket)
			dialErr = err
			return client, err
		},
		func(err error) bool { return isDaemonUnavailable(err) || errors.Is(err, syscall.ECONNREFUSED) },
		func() (*kvstore.SQLite, error) {
			cfg, err := c.ensureConfig()
			if err != nil {
				return nil, err
			}
			return kvstore.Open(ctx, cfg.DatabasePath())
		},
	)
	if err != nil {
		if dialErr != nil && err == dialErr {
			return wrapDialError(err, socket)
		}
		return err
	}
	defer session.Close()
	return fn(session.Access)
}
