package netmon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"agrisync/internal/logging"
)

// Event is one connectivity transition.
type Event struct {
	Online bool      `json:"online"`
	At     time.Time `json:"at"`
}

// Monitor holds the last known connectivity state and fans transitions out
// to subscribers.
type Monitor struct {
	logger       *slog.Logger
	prober       Prober
	interval     time.Duration
	probeTimeout time.Duration
	netlink      bool
	now          func() time.Time

	mu      sync.Mutex
	online  bool
	changed time.Time
	subs    map[uint64]*Subscription
	nextID  uint64

	reprobe chan struct{}
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithInterval sets how often the prober is polled.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithProbeTimeout bounds each probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.probeTimeout = d
		}
	}
}

// WithNetlink enables the interface uevent watcher in Run.
func WithNetlink(enabled bool) Option {
	return func(m *Monitor) {
		m.netlink = enabled
	}
}

// WithInitialState seeds the state reported before the first probe.
func WithInitialState(online bool) Option {
	return func(m *Monitor) {
		m.online = online
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// New constructs a monitor. A nil prober leaves the state entirely to Set.
func New(prober Prober, logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		logger:       logging.NewComponentLogger(logger, "netmon"),
		prober:       prober,
		interval:     15 * time.Second,
		probeTimeout: 5 * time.Second,
		now:          time.Now,
		subs:         make(map[uint64]*Subscription),
		reprobe:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.changed = m.now()
	return m
}

// Online reports the last known state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Status reports the last known state and when it last changed.
func (m *Monitor) Status() (bool, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online, m.changed
}

// Subscribe registers for transitions. The returned handle's Initial field
// holds the state at subscribe time.
func (m *Monitor) Subscribe() *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	sub := &Subscription{
		Initial: m.online,
		id:      m.nextID,
		ch:      make(chan Event, 1),
		monitor: m,
	}
	m.subs[sub.id] = sub
	return sub
}

// Subscribers returns the number of live subscriptions.
func (m *Monitor) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Set records an externally observed state. It reports whether the state
// changed.
func (m *Monitor) Set(online bool) bool {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return false
	}
	m.online = online
	event := Event{Online: online, At: m.now().UTC()}
	m.changed = event.At
	for _, sub := range m.subs {
		sub.deliver(event)
	}
	m.mu.Unlock()

	m.logger.Info("connectivity changed",
		logging.Bool("online", online),
		logging.String(logging.FieldEventType, "network_transition"),
	)
	return true
}

// Reprobe asks Run to probe immediately. Requests coalesce.
func (m *Monitor) Reprobe() {
	select {
	case m.reprobe <- struct{}{}:
	default:
	}
}

// ProbeOnce runs the prober and records the result.
func (m *Monitor) ProbeOnce(ctx context.Context) bool {
	if m.prober == nil {
		return m.Online()
	}
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()
	online := m.prober.Probe(probeCtx)
	if ctx.Err() != nil {
		return m.Online()
	}
	m.Set(online)
	return online
}

// Run polls the prober until ctx is cancelled. It always returns nil; probe
// errors only ever mean offline.
func (m *Monitor) Run(ctx context.Context) error {
	if m.netlink {
		watcher := newInterfaceWatcher(m.logger, m.Reprobe)
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	m.ProbeOnce(ctx)
	if m.prober == nil {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.ProbeOnce(ctx)
		case <-m.reprobe:
			m.ProbeOnce(ctx)
		}
	}
}

func (m *Monitor) unsubscribe(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.subs[id]; ok {
		delete(m.subs, id)
		close(sub.ch)
	}
}
