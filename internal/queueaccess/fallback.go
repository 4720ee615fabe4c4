package queueaccess

import (
	"fmt"

	"agrisync/internal/ipc"
	"agrisync/internal/kvstore"
)

// Session represents a queue access handle and its cleanup function.
type Session struct {
	Access Access
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback tries IPC-backed access first. When dial fails with an
// error fallback accepts, it opens the store directly instead; other dial
// errors are returned unchanged.
func OpenWithFallback(
	dial func() (*ipc.Client, error),
	fallback func(error) bool,
	openStore func() (*kvstore.SQLite, error),
) (Session, error) {
	if dial != nil {
		client, err := dial()
		if err == nil {
			return Session{
				Access: NewIPCAccess(client),
				close:  client.Close,
			}, nil
		}
		if fallback != nil && !fallback(err) {
			return Session{}, err
		}
	}

	if openStore == nil {
		return Session{}, fmt.Errorf("open queue store: no store opener configured")
	}
	store, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open queue store: %w", err)
	}
	return Session{
		Access: NewStoreAccess(store),
		close:  store.Close,
	}, nil
}
