package netmon

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pilebones/go-udev/netlink"
	"go.uber.org/goleak"

	"agrisync/internal/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case event, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription channel closed unexpectedly")
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transition")
	}
	return Event{}
}

func TestSubscribeReportsInitialState(t *testing.T) {
	m := New(nil, logging.NewNop(), WithInitialState(true))
	sub := m.Subscribe()
	defer sub.Cancel()
	if !sub.Initial {
		t.Fatal("expected initial online state")
	}
	if !m.Online() {
		t.Fatal("expected monitor online")
	}
}

func TestSetPublishesOnlyTransitions(t *testing.T) {
	m := New(nil, logging.NewNop())
	sub := m.Subscribe()
	defer sub.Cancel()

	if m.Set(false) {
		t.Fatal("repeating the current state must not publish")
	}
	if !m.Set(true) {
		t.Fatal("expected transition to online")
	}
	if event := receive(t, sub); !event.Online || event.At.IsZero() {
		t.Fatalf("unexpected event %+v", event)
	}
	if m.Set(true) {
		t.Fatal("repeated online must not publish")
	}
	select {
	case event := <-sub.Events():
		t.Fatalf("unexpected duplicate event %+v", event)
	default:
	}
}

func TestSlowSubscriberKeepsLatestTransition(t *testing.T) {
	m := New(nil, logging.NewNop())
	sub := m.Subscribe()
	defer sub.Cancel()

	m.Set(true)
	m.Set(false)
	m.Set(true)
	m.Set(false)

	if event := receive(t, sub); event.Online {
		t.Fatal("expected the newest (offline) transition")
	}
	select {
	case event := <-sub.Events():
		t.Fatalf("expected a single buffered event, got extra %+v", event)
	default:
	}
}

func TestCancelClosesChannelAndIsIdempotent(t *testing.T) {
	m := New(nil, logging.NewNop())
	sub := m.Subscribe()
	sub.Cancel()
	sub.Cancel()

	if _, ok := <-sub.Events(); ok {
		t.Fatal("expected closed channel after cancel")
	}
	if m.Subscribers() != 0 {
		t.Fatalf("expected no subscribers, got %d", m.Subscribers())
	}
	m.Set(true)

	again := m.Subscribe()
	defer again.Cancel()
	if !again.Initial {
		t.Fatal("fresh subscription should see current state")
	}
	m.Set(false)
	if event := receive(t, again); event.Online {
		t.Fatal("fresh subscription should receive new transitions")
	}
}

func TestRunPollsProberAndReprobes(t *testing.T) {
	var online atomic.Bool
	var calls atomic.Int32
	prober := ProberFunc(func(context.Context) bool {
		calls.Add(1)
		return online.Load()
	})
	m := New(prober, logging.NewNop(), WithInterval(time.Hour))
	sub := m.Subscribe()
	defer sub.Cancel()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if m.Online() {
		t.Fatal("expected offline after first probe")
	}

	online.Store(true)
	m.Reprobe()
	if event := receive(t, sub); !event.Online {
		t.Fatal("expected online transition after reprobe")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestHTTPProber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	prober := NewHTTPProber(server.URL)
	if !prober.Probe(context.Background()) {
		t.Fatal("any HTTP response should count as reachable")
	}
	server.Close()

	if prober.Probe(context.Background()) {
		t.Fatal("closed server should be unreachable")
	}
	if NewHTTPProber("").Probe(context.Background()) {
		t.Fatal("empty target should be unreachable")
	}
}

func TestHTTPProberFallsBackToTCP(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	prober := NewHTTPProber("http://" + listener.Addr().String())
	if !prober.Probe(context.Background()) {
		t.Fatal("expected TCP fallback to report reachable")
	}
}

func TestDialAddress(t *testing.T) {
	tests := map[string]string{
		"http://example.org":      "example.org:80",
		"https://example.org/api": "example.org:443",
		"http://10.0.0.5:8000/x":  "10.0.0.5:8000",
		"not a url":               "",
	}
	for in, want := range tests {
		if got := dialAddress(in); got != want {
			t.Fatalf("dialAddress(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildMatcher(t *testing.T) {
	matcher := buildMatcher()
	for _, action := range []netlink.KObjAction{netlink.ADD, netlink.REMOVE, netlink.CHANGE, netlink.ONLINE, netlink.OFFLINE} {
		event := netlink.UEvent{Action: action, Env: map[string]string{"SUBSYSTEM": "net", "INTERFACE": "wlan0"}}
		if !matcher.Evaluate(event) {
			t.Fatalf("expected matcher to accept %s", action)
		}
	}
	block := netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "block"}}
	if matcher.Evaluate(block) {
		t.Fatal("expected matcher to reject block subsystem")
	}
}

func TestInterfaceWatcherHandleEvent(t *testing.T) {
	var changes atomic.Int32
	w := newInterfaceWatcher(logging.NewNop(), func() { changes.Add(1) })

	w.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"INTERFACE": "lo"}})
	if changes.Load() != 0 {
		t.Fatal("loopback events must be ignored")
	}
	w.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"INTERFACE": "wlan0"}})
	if changes.Load() != 1 {
		t.Fatalf("expected one change callback, got %d", changes.Load())
	}
	if w.Running() {
		t.Fatal("unstarted watcher should not report running")
	}
	w.Stop()
}
