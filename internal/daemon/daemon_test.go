package daemon_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"agrisync/internal/config"
	"agrisync/internal/daemon"
	"agrisync/internal/logging"
	"agrisync/internal/netmon"
	"agrisync/internal/services"
	"agrisync/internal/syncer"
	"agrisync/internal/telemetry"
	"agrisync/internal/testsupport"
)

type remoteStub struct {
	mu    sync.Mutex
	paths []string
	fail  atomic.Bool
}

func (r *remoteStub) handler(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	r.paths = append(r.paths, req.URL.Path)
	r.mu.Unlock()
	if r.fail.Load() {
		http.Error(w, "upstream down", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"result":{"answer":"spray neem oil"}}`))
}

func (r *remoteStub) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

type harness struct {
	cfg    *config.Config
	daemon *daemon.Daemon
	remote *remoteStub
	online *atomic.Bool
}

func newHarness(t *testing.T, opts ...daemon.Option) *harness {
	t.Helper()
	remote := &remoteStub{}
	server := httptest.NewServer(http.HandlerFunc(remote.handler))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithRemoteURL(server.URL), testsupport.WithDispatchTimeout(5))
	store := testsupport.MustOpenStore(t, cfg)

	online := &atomic.Bool{}
	prober := netmon.ProberFunc(func(context.Context) bool { return online.Load() })
	opts = append([]daemon.Option{daemon.WithProber(prober)}, opts...)
	d, err := daemon.New(cfg, store, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
	})
	return &harness{cfg: cfg, daemon: d, remote: remote, online: online}
}

func TestDaemonStartStop(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := h.daemon.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath != h.cfg.LockPath() {
		t.Fatalf("unexpected lock path %q", status.LockFilePath)
	}
	if h.daemon.APIAddress() == "" {
		t.Fatal("expected api server to be listening")
	}

	// Second start should fail
	if err := h.daemon.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	h.daemon.Stop()
	if h.daemon.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if h.daemon.APIAddress() != "" {
		t.Fatal("expected api server to be closed")
	}

	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
}

func TestDaemonSingleInstanceLock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	store := testsupport.MustOpenStore(t, h.cfg)
	other, err := daemon.New(h.cfg, store, logging.NewNop(),
		daemon.WithProber(netmon.ProberFunc(func(context.Context) bool { return false })))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := other.Start(ctx); err == nil {
		other.Stop()
		t.Fatal("expected lock contention to prevent a second instance")
	}
}

func TestDaemonEnqueueValidates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.daemon.Enqueue(ctx, "weather_report", json.RawMessage(`{}`)); !errors.Is(err, services.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if _, err := h.daemon.Enqueue(ctx, "diagnosis", json.RawMessage(`{"crop":"tomato"}`)); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty diagnosis, got %v", err)
	}
	id, err := h.daemon.Enqueue(ctx, "voice_query", json.RawMessage(`{"transcript":"when to sow ragi"}`))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	pending, err := h.daemon.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != id || pending[0].Kind != "advisory_query" {
		t.Fatalf("unexpected pending list: %+v", pending)
	}
}

func TestDaemonSyncNowDeliversAndStoresResult(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id, err := h.daemon.Enqueue(ctx, "diagnosis", json.RawMessage(`{"prompt":"yellow leaves","language":"kn"}`))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	report, err := h.daemon.SyncNow(ctx)
	if err != nil {
		t.Fatalf("SyncNow offline: %v", err)
	}
	if report.Attempted != 0 || len(h.remote.calls()) != 0 {
		t.Fatalf("expected no delivery while offline, report %+v", report)
	}

	h.daemon.SetOnline(true)
	report, err = h.daemon.SyncNow(ctx)
	if err != nil {
		t.Fatalf("SyncNow: %v", err)
	}
	if report.Completed != 1 || report.Remaining != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if calls := h.remote.calls(); len(calls) != 1 || calls[0] != "/api/diagnose" {
		t.Fatalf("unexpected remote calls %v", calls)
	}

	result, ok, err := h.daemon.Result(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Result = %v, %v", ok, err)
	}
	if string(result.Result) != `{"answer":"spray neem oil"}` {
		t.Fatalf("unexpected stored result %s", result.Result)
	}
	if err := h.daemon.AcknowledgeResult(ctx, id); err != nil {
		t.Fatalf("AcknowledgeResult: %v", err)
	}
	if _, ok, _ := h.daemon.Result(ctx, id); ok {
		t.Fatal("expected result to be gone after acknowledge")
	}
}

func TestDaemonRetryFailedAfterRemoteError(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.remote.fail.Store(true)
	h.daemon.SetOnline(true)

	if _, err := h.daemon.Enqueue(ctx, "market_query", json.RawMessage(`{"commodity":"onion"}`)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	report, err := h.daemon.SyncNow(ctx)
	if err != nil {
		t.Fatalf("SyncNow: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("expected one failure, got %+v", report)
	}
	pending, _ := h.daemon.ListPending(ctx)
	if len(pending) != 1 || pending[0].Status != "failed" {
		t.Fatalf("expected failed item, got %+v", pending)
	}

	h.remote.fail.Store(false)
	count, err := h.daemon.RetryFailed(ctx, nil)
	if err != nil || count != 1 {
		t.Fatalf("RetryFailed = %d, %v", count, err)
	}
	if _, err := h.daemon.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow: %v", err)
	}
	pending, _ = h.daemon.ListPending(ctx)
	if len(pending) != 0 {
		t.Fatalf("expected queue drained, got %+v", pending)
	}
}

func TestDaemonReconnectTriggersDrain(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := h.daemon.Enqueue(ctx, "advisory_query", json.RawMessage(`{"question":"best time to irrigate"}`)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	h.online.Store(true)
	h.daemon.SetOnline(true)

	var report *syncer.Report
	waitFor(t, func() bool {
		report = h.daemon.Status(ctx).Sync.LastReport
		return report != nil && report.Completed == 1
	})
	if report.Reason != syncer.ReasonReconnect {
		t.Fatalf("expected reconnect drain, got %+v", report)
	}
	pending, err := h.daemon.ListPending(ctx)
	if err != nil || len(pending) != 0 {
		t.Fatalf("expected empty queue, got %+v, %v", pending, err)
	}
}

func TestDaemonFirstProbeOnlineTriggersDrain(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := h.daemon.Enqueue(ctx, "market_query", json.RawMessage(`{"commodity":"groundnut"}`)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	h.online.Store(true)
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var report *syncer.Report
	waitFor(t, func() bool {
		report = h.daemon.Status(ctx).Sync.LastReport
		return report != nil && report.Completed == 1
	})
	if report.Reason != syncer.ReasonReconnect {
		t.Fatalf("expected the startup probe edge to drain the queue, got %+v", report)
	}
}

func TestDaemonCacheRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.daemon.CachePut(ctx, "market/mysore", json.RawMessage(`{"onion":2400}`)); err != nil {
		t.Fatalf("CachePut: %v", err)
	}
	entry, ok, err := h.daemon.CacheGet(ctx, "market/mysore")
	if err != nil || !ok {
		t.Fatalf("CacheGet = %v, %v", ok, err)
	}
	if string(entry.Data) != `{"onion":2400}` {
		t.Fatalf("unexpected cached data %s", entry.Data)
	}
	keys, err := h.daemon.CacheKeys(ctx)
	if err != nil || len(keys) != 1 {
		t.Fatalf("CacheKeys = %v, %v", keys, err)
	}
	if err := h.daemon.CacheDelete(ctx, "market/mysore"); err != nil {
		t.Fatalf("CacheDelete: %v", err)
	}
	if _, ok, _ := h.daemon.CacheGet(ctx, "market/mysore"); ok {
		t.Fatal("expected cache entry to be deleted")
	}
}

func TestDaemonStatusIncludesMetrics(t *testing.T) {
	provider, err := telemetry.Init(context.Background(), telemetry.Config{Enabled: true})
	if err != nil {
		t.Fatalf("telemetry.Init: %v", err)
	}
	h := newHarness(t, daemon.WithTelemetry(provider))
	ctx := context.Background()
	h.daemon.SetOnline(true)

	if _, err := h.daemon.Enqueue(ctx, "diagnosis", json.RawMessage(`{"prompt":"wilting"}`)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := h.daemon.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow: %v", err)
	}

	status := h.daemon.Status(ctx)
	if !status.Telemetry {
		t.Fatal("expected telemetry to be active")
	}
	if status.Metrics[telemetry.MetricEnqueued] != 1 || status.Metrics[telemetry.MetricDispatches] != 1 {
		t.Fatalf("unexpected metrics %v", status.Metrics)
	}
	if status.Database == nil || !status.Database.Exists {
		t.Fatalf("expected database health, got %+v", status.Database)
	}
	if status.Results != 1 {
		t.Fatalf("expected one unread result, got %d", status.Results)
	}
	payload := status.Payload()
	if !payload.Network.Online || payload.Sync.LastReport == nil {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestDaemonTestNotificationWithoutTopic(t *testing.T) {
	h := newHarness(t)
	sent, message, err := h.daemon.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if sent || message == "" {
		t.Fatalf("expected skip without topic, got sent=%v message=%q", sent, message)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
