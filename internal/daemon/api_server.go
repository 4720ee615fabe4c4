package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"agrisync/internal/api"
	"agrisync/internal/config"
	"agrisync/internal/logging"
	"agrisync/internal/services"
	"agrisync/internal/syncer"
)

const (
	maxRequestBytes     = 8 << 20
	defaultWriteTimeout = 30 * time.Second
)

type apiServer struct {
	bind         string
	logger       *slog.Logger
	daemon       *Daemon
	writeTimeout time.Duration

	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:         bind,
		logger:       logger,
		daemon:       d,
		writeTimeout: defaultWriteTimeout,
	}
	srv.handler = srv.routes(cfg.Paths.APIToken)
	return srv
}

func (s *apiServer) routes(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/queue", s.handleQueueList)
	mux.HandleFunc("POST /api/queue", s.handleEnqueue)
	mux.HandleFunc("DELETE /api/queue", s.handleQueueClear)
	mux.HandleFunc("POST /api/queue/retry", s.handleQueueRetry)
	mux.HandleFunc("GET /api/queue/{id}", s.handleQueueItem)
	mux.HandleFunc("DELETE /api/queue/{id}", s.handleQueueRemove)
	mux.HandleFunc("POST /api/sync", s.handleSync)
	mux.HandleFunc("GET /api/network", s.handleNetwork)
	mux.HandleFunc("PUT /api/network", s.handleNetworkUpdate)
	mux.HandleFunc("GET /api/cache", s.handleCacheKeys)
	mux.HandleFunc("GET /api/cache/{key...}", s.handleCacheGet)
	mux.HandleFunc("PUT /api/cache/{key...}", s.handleCachePut)
	mux.HandleFunc("DELETE /api/cache/{key...}", s.handleCacheDelete)
	mux.HandleFunc("GET /api/results/{id}", s.handleResult)
	mux.HandleFunc("DELETE /api/results/{id}", s.handleResultAck)
	return requestIDMiddleware(s.requireToken(token, mux))
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		s.server = nil
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()).Payload())
}

func (s *apiServer) handleQueueList(w http.ResponseWriter, r *http.Request) {
	statuses, invalid := api.ParseStatuses(r.URL.Query()["status"])
	if len(invalid) > 0 {
		s.writeError(w, http.StatusBadRequest, "unknown status: "+strings.Join(invalid, ", "))
		return
	}
	items, err := s.daemon.QueueService().List(r.Context(), statuses...)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []api.QueueItem{}
	}
	s.writeJSON(w, http.StatusOK, api.QueueListResponse{Items: items})
}

func (s *apiServer) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req api.EnqueueRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	id, err := s.daemon.Enqueue(r.Context(), req.Kind, req.Payload)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.EnqueueResponse{ID: id})
}

func (s *apiServer) handleQueueClear(w http.ResponseWriter, r *http.Request) {
	count, err := s.daemon.ClearQueue(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CountResponse{Count: count})
}

func (s *apiServer) handleQueueRetry(w http.ResponseWriter, r *http.Request) {
	var req api.RetryRequest
	if r.ContentLength != 0 && !s.decodeBody(w, r, &req) {
		return
	}
	count, err := s.daemon.RetryFailed(r.Context(), req.IDs)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CountResponse{Count: count})
}

func (s *apiServer) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.daemon.QueueService().Describe(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if item == nil {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueItemResponse{Item: *item})
}

func (s *apiServer) handleQueueRemove(w http.ResponseWriter, r *http.Request) {
	removed, err := s.daemon.RemoveItem(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !removed {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.CountResponse{Count: 1})
}

// handleSync runs a full cycle on the request, which may take longer than
// the server write timeout. The deadline is lifted for this response only.
func (s *apiServer) handleSync(w http.ResponseWriter, r *http.Request) {
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.log().Debug("could not clear write deadline", logging.Error(err))
	}
	report, err := s.daemon.SyncNow(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromReport(report))
}

func (s *apiServer) handleNetwork(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Network())
}

func (s *apiServer) handleNetworkUpdate(w http.ResponseWriter, r *http.Request) {
	var req api.NetworkUpdate
	if !s.decodeBody(w, r, &req) {
		return
	}
	s.daemon.SetOnline(req.Online)
	s.writeJSON(w, http.StatusOK, s.daemon.Network())
}

func (s *apiServer) handleCacheKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.daemon.CacheKeys(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	s.writeJSON(w, http.StatusOK, api.CacheKeysResponse{Keys: keys})
}

func (s *apiServer) handleCacheGet(w http.ResponseWriter, r *http.Request) {
	entry, ok, err := s.daemon.CacheGet(r.Context(), r.PathValue("key"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "cache entry not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromCacheEntry(entry, time.Now()))
}

func (s *apiServer) handleCachePut(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	entry, err := s.daemon.CachePut(r.Context(), r.PathValue("key"), body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromCacheEntry(entry, entry.Timestamp))
}

func (s *apiServer) handleCacheDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.CacheDelete(r.Context(), r.PathValue("key")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleResult(w http.ResponseWriter, r *http.Request) {
	result, ok, err := s.daemon.Result(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "result not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromResult(result))
}

func (s *apiServer) handleResultAck(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.AcknowledgeResult(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := decoder.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// statusForError maps error markers onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, syncer.ErrCycleInProgress):
		return http.StatusConflict
	case errors.Is(err, services.ErrStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger := logging.WithContext(r.Context(), s.log())
		logger.Error("api request failed",
			logging.String("path", r.URL.Path),
			logging.String("method", r.Method),
			logging.Error(err),
			logging.String(logging.FieldEventType, "api_request_failed"))
	}
	s.writeError(w, status, err.Error())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api-server"))
	}
	return logging.NewNop()
}

// requestIDMiddleware tags each request with an id, reusing one supplied by
// the client in X-Request-ID.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}
