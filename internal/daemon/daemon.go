package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"agrisync/internal/api"
	"agrisync/internal/config"
	"agrisync/internal/dispatch"
	"agrisync/internal/kvstore"
	"agrisync/internal/logging"
	"agrisync/internal/netmon"
	"agrisync/internal/notifications"
	"agrisync/internal/offlinecache"
	"agrisync/internal/queue"
	"agrisync/internal/services"
	"agrisync/internal/syncer"
	"agrisync/internal/telemetry"
)

// Daemon owns the queue, connectivity monitor, and sync engine and enforces
// single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *kvstore.SQLite
	queue     *queue.Manager
	monitor   *netmon.Monitor
	engine    *syncer.Engine
	cache     *offlinecache.Cache
	inbox     *offlinecache.Inbox
	notifier  notifications.Service
	telemetry *telemetry.Provider
	metrics   *telemetry.Metrics
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
	Queue        queue.HealthSummary
	Online       bool
	ChangedAt    time.Time
	Subscribers  int
	Sync         syncer.Status
	Database     *kvstore.Health
	Results      int
	Metrics      map[string]int64
	Telemetry    bool
}

// Option customizes daemon construction.
type Option func(*options)

type options struct {
	prober     netmon.Prober
	dispatcher syncer.Dispatcher
	notifier   notifications.Service
	telemetry  *telemetry.Provider
}

// WithProber replaces the HTTP reachability probe.
func WithProber(prober netmon.Prober) Option {
	return func(o *options) {
		o.prober = prober
	}
}

// WithDispatcher replaces the remote dispatch client.
func WithDispatcher(dispatcher syncer.Dispatcher) Option {
	return func(o *options) {
		o.dispatcher = dispatcher
	}
}

// WithNotifier replaces the ntfy notifier built from config.
func WithNotifier(notifier notifications.Service) Option {
	return func(o *options) {
		o.notifier = notifier
	}
}

// WithTelemetry supplies an initialized metrics provider.
func WithTelemetry(provider *telemetry.Provider) Option {
	return func(o *options) {
		o.telemetry = provider
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *kvstore.SQLite, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	provider := o.telemetry
	if provider == nil {
		var err error
		provider, err = telemetry.Init(context.Background(), telemetry.Config{Enabled: cfg.Telemetry.Enabled})
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
	}
	metrics, err := telemetry.NewMetrics(provider.Meter)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	schedule, err := syncer.ParseSchedule(cfg.Sync.Schedule)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "parse schedule", cfg.Sync.Schedule, err)
	}

	notifier := o.notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	q := queue.NewManager(store, logging.NewComponentLogger(logger, "queue"))
	cache := offlinecache.NewCache(store)
	inbox := offlinecache.NewInbox(store)

	prober := o.prober
	if prober == nil {
		prober = netmon.NewHTTPProber(cfg.Network.ProbeURL)
	}
	monitor := netmon.New(prober, logging.NewComponentLogger(logger, "netmon"),
		netmon.WithInterval(cfg.ProbeInterval()),
		netmon.WithProbeTimeout(cfg.ProbeTimeout()),
		netmon.WithNetlink(cfg.Network.NetlinkEnabled),
	)

	dispatcher := o.dispatcher
	if dispatcher == nil {
		dispatcher = dispatch.NewClient(dispatch.Config{
			BaseURL:   cfg.Remote.BaseURL,
			APIToken:  cfg.Remote.APIToken,
			UserAgent: cfg.Remote.UserAgent,
		},
			dispatch.WithResultSink(inbox),
			dispatch.WithLogger(logging.NewComponentLogger(logger, "dispatch")),
		)
	}

	engine := syncer.NewEngine(q, monitor, dispatcher, logging.NewComponentLogger(logger, "syncer"),
		syncer.WithNotifier(notifier),
		syncer.WithMetrics(metrics),
		syncer.WithDispatchTimeout(cfg.DispatchTimeout()),
		syncer.WithSchedule(cfg.Sync.Schedule, schedule),
		syncer.WithSyncOnStart(cfg.Sync.SyncOnStart),
	)

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		queue:     q,
		monitor:   monitor,
		engine:    engine,
		cache:     cache,
		inbox:     inbox,
		notifier:  notifier,
		telemetry: provider,
		metrics:   metrics,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, recovers interrupted deliveries, and
// launches connectivity monitoring, the sync engine, and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another agrisync daemon instance is already running")
	}

	recovered, err := d.queue.RecoverInFlight(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover in-flight items: %w", err)
	}
	if recovered > 0 {
		d.logger.Info("recovered interrupted deliveries",
			logging.Int("count", recovered),
			logging.String(logging.FieldEventType, "queue_recovered"))
	}

	runCtx, cancel := context.WithCancel(ctx)
	// The engine subscribes before the monitor probes so the first
	// offline to online edge reaches it.
	if err := d.engine.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start sync engine: %w", err)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.monitor.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logging.WarnWithContext(d.logger, "network monitor stopped", "netmon_stopped",
				logging.Error(err),
				logging.String(logging.FieldImpact, "connectivity changes are no longer detected"))
		}
	}()

	if err := d.api.start(runCtx); err != nil {
		d.engine.Stop()
		cancel()
		d.wg.Wait()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("agrisync daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.Load() {
		return
	}

	d.api.stop()
	d.engine.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("agrisync daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.telemetry.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("telemetry shutdown failed", logging.Error(err))
	}
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether background processing is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddress returns the bound HTTP API address, or empty when disabled or
// not started.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Enqueue validates and persists a user mutation. The payload must decode as
// the request variant for kind.
func (d *Daemon) Enqueue(ctx context.Context, rawKind string, payload json.RawMessage) (string, error) {
	kind, err := dispatch.Validate(rawKind, payload)
	if err != nil {
		return "", err
	}
	id, err := d.queue.Enqueue(ctx, kind, payload)
	if err != nil {
		return "", err
	}
	d.metrics.RecordEnqueue(ctx, string(kind))
	return id, nil
}

// ListPending returns the status-indicator view of every undelivered item.
func (d *Daemon) ListPending(ctx context.Context) ([]queue.Summary, error) {
	return d.queue.ListPending(ctx)
}

// QueueService exposes read-only queue views as API DTOs.
func (d *Daemon) QueueService() *api.QueueService {
	return api.NewQueueService(d.queue)
}

// SyncNow runs a drain immediately. It returns syncer.ErrCycleInProgress when
// a drain is already running.
func (d *Daemon) SyncNow(ctx context.Context) (syncer.Report, error) {
	return d.engine.SyncNow(ctx)
}

// RetryFailed resets failed items (all when ids is empty) and requests a
// drain if the device is online.
func (d *Daemon) RetryFailed(ctx context.Context, ids []string) (int, error) {
	count, err := d.queue.RetryFailed(ctx, ids...)
	if err != nil {
		return 0, err
	}
	if count > 0 && d.running.Load() && d.monitor.Online() {
		d.engine.Trigger(syncer.ReasonManual)
	}
	return count, nil
}

// ClearQueue removes every queued item.
func (d *Daemon) ClearQueue(ctx context.Context) (int, error) {
	return d.queue.Clear(ctx)
}

// RemoveItem deletes a single item regardless of status.
func (d *Daemon) RemoveItem(ctx context.Context, id string) (bool, error) {
	return d.queue.Remove(ctx, id)
}

// SetOnline records a connectivity change reported by the platform.
func (d *Daemon) SetOnline(online bool) bool {
	changed := d.monitor.Set(online)
	if changed {
		d.logger.Info("connectivity reported",
			logging.Bool("online", online),
			logging.String(logging.FieldEventType, "network_reported"))
	}
	return changed
}

// Online reports the current connectivity view.
func (d *Daemon) Online() bool {
	return d.monitor.Online()
}

// Network returns the connectivity view in API form.
func (d *Daemon) Network() api.NetworkStatus {
	online, changedAt := d.monitor.Status()
	return api.NetworkStatus{
		Online:      online,
		ChangedAt:   api.FormatTime(changedAt),
		Subscribers: d.monitor.Subscribers(),
	}
}

// CachePut stores a timestamped offline snapshot.
func (d *Daemon) CachePut(ctx context.Context, key string, data json.RawMessage) (offlinecache.Entry, error) {
	return d.cache.Put(ctx, key, data)
}

// CacheGet loads an offline snapshot.
func (d *Daemon) CacheGet(ctx context.Context, key string) (offlinecache.Entry, bool, error) {
	return d.cache.Get(ctx, key)
}

// CacheKeys lists cached snapshot keys.
func (d *Daemon) CacheKeys(ctx context.Context) ([]string, error) {
	return d.cache.Keys(ctx)
}

// CacheDelete drops a cached snapshot.
func (d *Daemon) CacheDelete(ctx context.Context, key string) error {
	return d.cache.Delete(ctx, key)
}

// Result returns the stored remote response for a delivered item.
func (d *Daemon) Result(ctx context.Context, id string) (offlinecache.Result, bool, error) {
	return d.inbox.Get(ctx, id)
}

// AcknowledgeResult drops a stored response once the app has shown it.
func (d *Daemon) AcknowledgeResult(ctx context.Context, id string) error {
	return d.inbox.Acknowledge(ctx, id)
}

// DatabaseHealth returns diagnostics for the backing store.
func (d *Daemon) DatabaseHealth(ctx context.Context) (kvstore.Health, error) {
	return d.store.CheckHealth(ctx)
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	online, changedAt := d.monitor.Status()
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		Online:       online,
		ChangedAt:    changedAt,
		Subscribers:  d.monitor.Subscribers(),
		Sync:         d.engine.Status(),
		Telemetry:    d.telemetry.Enabled(),
	}
	if health, err := d.queue.Health(ctx); err == nil {
		status.Queue = health
	} else {
		d.logger.Warn("queue health unavailable", logging.Error(err))
	}
	if health, err := d.store.CheckHealth(ctx); err == nil {
		status.Database = &health
	} else {
		status.Database = &kvstore.Health{Path: d.store.Path(), Error: err.Error()}
	}
	if count, err := d.inbox.Count(ctx); err == nil {
		status.Results = count
	}
	if snapshot, err := d.telemetry.Snapshot(ctx); err == nil {
		status.Metrics = snapshot
	}
	return status
}

// Payload converts the status into its API representation.
func (s Status) Payload() api.DaemonStatus {
	out := api.DaemonStatus{
		Running:      s.Running,
		PID:          s.PID,
		DatabasePath: s.DatabasePath,
		LockFilePath: s.LockFilePath,
		Queue:        api.FromQueueHealth(s.Queue),
		Network: api.NetworkStatus{
			Online:      s.Online,
			ChangedAt:   api.FormatTime(s.ChangedAt),
			Subscribers: s.Subscribers,
		},
		Sync:            api.FromSyncStatus(s.Sync),
		UnreadResults:   s.Results,
		Metrics:         s.Metrics,
		TelemetryActive: s.Telemetry,
	}
	if s.Database != nil {
		db := api.FromDatabaseHealth(*s.Database)
		out.Database = &db
	}
	return out
}
