package netmon

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"agrisync/internal/logging"
)

// interfaceWatcher listens for kernel uevents on the net subsystem and calls
// onChange whenever an interface is added, removed, or changes state.
type interfaceWatcher struct {
	logger   *slog.Logger
	onChange func()

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	done    chan struct{}
	running bool
}

func newInterfaceWatcher(logger *slog.Logger, onChange func()) *interfaceWatcher {
	return &interfaceWatcher{
		logger:   logging.NewComponentLogger(logger, "netlink-watcher"),
		onChange: onChange,
	}
}

// Start connects to the netlink socket. Failure is logged and the monitor
// falls back to interval polling.
func (w *interfaceWatcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.KernelEvent); err != nil {
		w.logger.Warn("netlink unavailable; connectivity changes detected by polling only",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "set network.netlink_enabled = false to silence this warning"),
			logging.String(logging.FieldImpact, "reconnects are noticed on the next probe interval"),
		)
		return
	}

	w.conn = conn
	w.quit = make(chan struct{})
	w.done = make(chan struct{})
	w.running = true
	go w.loop(ctx, conn, w.quit, w.done)

	w.logger.Debug("netlink watcher started",
		logging.String(logging.FieldEventType, "netlink_watcher_started"),
	)
}

// Stop closes the socket and waits for the loop to exit.
func (w *interfaceWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.quit)
	done := w.done
	conn := w.conn
	w.conn = nil
	w.running = false
	w.mu.Unlock()

	<-done
	_ = conn.Close()
}

// Running reports whether the watcher is connected.
func (w *interfaceWatcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *interfaceWatcher) loop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	events := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(events, errs, buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-events:
			w.handleEvent(uevent)
		case err := <-errs:
			w.logger.Debug("netlink read error", logging.Error(err))
		}
	}
}

// buildMatcher selects interface lifecycle events: SUBSYSTEM=net with ACTION
// add, remove, change, move, online or offline.
func buildMatcher() netlink.Matcher {
	action := "add|remove|change|move|online|offline"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "net",
		},
	})
	return rules
}

func (w *interfaceWatcher) handleEvent(uevent netlink.UEvent) {
	iface := uevent.Env["INTERFACE"]
	if iface == "lo" {
		return
	}
	w.logger.Debug("network interface event",
		logging.String("interface", iface),
		logging.String("action", string(uevent.Action)),
		logging.String(logging.FieldEventType, "netlink_interface_event"),
	)
	if w.onChange != nil {
		w.onChange()
	}
}
