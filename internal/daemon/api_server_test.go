package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agrisync/internal/api"
	"agrisync/internal/logging"
	"agrisync/internal/netmon"
	"agrisync/internal/queue"
	"agrisync/internal/services"
	"agrisync/internal/syncer"
	"agrisync/internal/testsupport"
)

type dispatcherFunc func(ctx context.Context, item queue.Item) error

func (f dispatcherFunc) Dispatch(ctx context.Context, item queue.Item) error {
	return f(ctx, item)
}

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d, err := New(cfg, store, logging.NewNop(),
		WithProber(netmon.ProberFunc(func(context.Context) bool { return false })),
		WithDispatcher(dispatcherFunc(func(context.Context, queue.Item) error { return nil })),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func serve(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestAPIServerEnqueueAndList(t *testing.T) {
	d := newTestDaemon(t)
	h := d.api.routes("")

	w := serve(t, h, http.MethodPost, "/api/queue", `{"kind":"diagnosis","payload":{"prompt":"brown spots on leaves"}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decode[api.EnqueueResponse](t, w)
	if created.ID == "" {
		t.Fatal("expected an item id")
	}

	w = serve(t, h, http.MethodGet, "/api/queue", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	list := decode[api.QueueListResponse](t, w)
	if len(list.Items) != 1 || list.Items[0].ID != created.ID || list.Items[0].Status != "pending" {
		t.Fatalf("unexpected list: %+v", list.Items)
	}

	w = serve(t, h, http.MethodGet, "/api/queue/"+created.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK for item, got %d", w.Code)
	}
	item := decode[api.QueueItemResponse](t, w)
	if !strings.Contains(string(item.Item.Payload), "brown spots") {
		t.Fatalf("expected payload in item response, got %s", item.Item.Payload)
	}
}

func TestAPIServerEnqueueRejectsBadInput(t *testing.T) {
	d := newTestDaemon(t)
	h := d.api.routes("")

	cases := []struct {
		name string
		body string
	}{
		{"unknown kind", `{"kind":"weather","payload":{}}`},
		{"invalid payload", `{"kind":"market_query","payload":{}}`},
		{"malformed body", `{"kind":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(t, h, http.MethodPost, "/api/queue", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}

	w := serve(t, h, http.MethodGet, "/api/queue?status=archived", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status filter, got %d", w.Code)
	}
}

func TestAPIServerSyncAndNetwork(t *testing.T) {
	d := newTestDaemon(t)
	h := d.api.routes("")
	ctx := context.Background()

	if _, err := d.Enqueue(ctx, "advisory_query", json.RawMessage(`{"question":"pest control for cotton"}`)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	w := serve(t, h, http.MethodPost, "/api/sync", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if report := decode[api.SyncReport](t, w); report.Attempted != 0 || report.Remaining != 1 {
		t.Fatalf("expected offline sync to skip delivery, got %+v", report)
	}

	w = serve(t, h, http.MethodPut, "/api/network", `{"online":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if network := decode[api.NetworkStatus](t, w); !network.Online || network.ChangedAt == "" {
		t.Fatalf("unexpected network status %+v", network)
	}

	w = serve(t, h, http.MethodPost, "/api/sync", "")
	report := decode[api.SyncReport](t, w)
	if report.Completed != 1 || report.Reason != syncer.ReasonManual {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestAPIServerQueueMaintenance(t *testing.T) {
	d := newTestDaemon(t)
	h := d.api.routes("")
	ctx := context.Background()

	first, _ := d.Enqueue(ctx, "market_query", json.RawMessage(`{"commodity":"tur dal"}`))
	if _, err := d.Enqueue(ctx, "market_query", json.RawMessage(`{"commodity":"jowar"}`)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	w := serve(t, h, http.MethodDelete, "/api/queue/"+first, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on remove, got %d", w.Code)
	}
	w = serve(t, h, http.MethodDelete, "/api/queue/"+first, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second remove, got %d", w.Code)
	}

	w = serve(t, h, http.MethodPost, "/api/queue/retry", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on retry, got %d", w.Code)
	}
	if got := decode[api.CountResponse](t, w); got.Count != 0 {
		t.Fatalf("expected nothing to retry, got %d", got.Count)
	}

	w = serve(t, h, http.MethodDelete, "/api/queue", "")
	if got := decode[api.CountResponse](t, w); got.Count != 1 {
		t.Fatalf("expected one cleared item, got %d", got.Count)
	}
}

func TestAPIServerCacheRoutes(t *testing.T) {
	d := newTestDaemon(t)
	h := d.api.routes("")

	w := serve(t, h, http.MethodPut, "/api/cache/market/hubli", `{"cotton":7100}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on put, got %d: %s", w.Code, w.Body.String())
	}
	w = serve(t, h, http.MethodGet, "/api/cache/market/hubli", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on get, got %d", w.Code)
	}
	entry := decode[api.CacheEntry](t, w)
	if entry.Key != "market/hubli" || string(entry.Data) != `{"cotton":7100}` {
		t.Fatalf("unexpected entry %+v", entry)
	}

	w = serve(t, h, http.MethodPut, "/api/cache/market/hubli", `not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid JSON, got %d", w.Code)
	}

	w = serve(t, h, http.MethodGet, "/api/cache", "")
	if keys := decode[api.CacheKeysResponse](t, w); len(keys.Keys) != 1 {
		t.Fatalf("unexpected keys %v", keys.Keys)
	}

	w = serve(t, h, http.MethodDelete, "/api/cache/market/hubli", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	w = serve(t, h, http.MethodGet, "/api/cache/market/hubli", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
	w = serve(t, h, http.MethodGet, "/api/results/unknown", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing result, got %d", w.Code)
	}
}

func TestAPIServerStatus(t *testing.T) {
	d := newTestDaemon(t)
	h := d.api.routes("")

	w := serve(t, h, http.MethodGet, "/api/status", "", "X-Request-ID", "req-42")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
	status := decode[api.DaemonStatus](t, w)
	if status.Running || status.Sync.State != "idle" || status.DatabasePath == "" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestAPIServerAuth(t *testing.T) {
	d := newTestDaemon(t)
	h := d.api.routes("secret")

	w := serve(t, h, http.MethodGet, "/api/queue", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	w = serve(t, h, http.MethodGet, "/api/queue", "", "Authorization", "Bearer wrong")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}
	w = serve(t, h, http.MethodGet, "/api/queue", "", "Authorization", "Bearer secret")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected generated request id")
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.Wrap(services.ErrValidation, "x", "y", "", nil), http.StatusBadRequest},
		{services.Wrap(services.ErrUnknownKind, "x", "y", "", nil), http.StatusBadRequest},
		{services.Wrap(services.ErrNotFound, "x", "y", "", nil), http.StatusNotFound},
		{syncer.ErrCycleInProgress, http.StatusConflict},
		{services.Wrap(services.ErrStorage, "x", "y", "", nil), http.StatusServiceUnavailable},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusForError(tc.err); got != tc.want {
			t.Fatalf("statusForError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestAPIServerAuthRejectsOtherSchemes(t *testing.T) {
	d := newTestDaemon(t)
	h := d.api.routes("secret")

	w := serve(t, h, http.MethodGet, "/api/status", "", "Authorization", "Basic secret")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for basic auth, got %d", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate challenge")
	}
	if body := decode[map[string]string](t, w); body["error"] != "unauthorized" {
		t.Fatalf("unexpected body %v", body)
	}
	w = serve(t, h, http.MethodGet, "/api/status", "", "Authorization", "bearer secret")
	if w.Code != http.StatusOK {
		t.Fatalf("expected case-insensitive scheme to pass, got %d", w.Code)
	}
}

func TestAPIServerSyncOutlivesWriteTimeout(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d, err := New(cfg, store, logging.NewNop(),
		WithProber(netmon.ProberFunc(func(context.Context) bool { return true })),
		WithDispatcher(dispatcherFunc(func(ctx context.Context, _ queue.Item) error {
			select {
			case <-time.After(150 * time.Millisecond):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for _, commodity := range []string{"cotton", "maize"} {
		if _, err := d.Enqueue(ctx, "market_query", json.RawMessage(`{"commodity":"`+commodity+`"}`)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	d.SetOnline(true)

	srv := &apiServer{bind: "127.0.0.1:0", logger: logging.NewNop(), daemon: d, writeTimeout: 100 * time.Millisecond}
	srv.handler = srv.routes("")
	if err := srv.start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.stop()

	resp, err := http.Post("http://"+srv.address()+"/api/sync", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/sync: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var report api.SyncReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Completed != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
}
