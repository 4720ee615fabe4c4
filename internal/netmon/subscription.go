package netmon

import "sync"

// Subscription is a cancelable stream of connectivity transitions.
type Subscription struct {
	// Initial is the connectivity state when the subscription was created.
	Initial bool

	id      uint64
	ch      chan Event
	monitor *Monitor
	once    sync.Once
}

// Events returns the transition channel. It is closed by Cancel.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Cancel stops delivery and closes the channel. Safe to call repeatedly.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.monitor.unsubscribe(s.id)
	})
}

// deliver keeps only the newest undelivered transition. Callers hold the
// monitor lock, which is also required to close ch.
func (s *Subscription) deliver(event Event) {
	select {
	case s.ch <- event:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- event:
	default:
	}
}
