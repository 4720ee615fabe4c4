package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"agrisync/internal/logging"
	"agrisync/internal/netmon"
	"agrisync/internal/notifications"
	"agrisync/internal/queue"
	"agrisync/internal/telemetry"
)

const (
	stateIdle int32 = iota
	stateDraining
)

const defaultDispatchTimeout = 30 * time.Second

var scheduleParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a five-field cron expression or a descriptor such as
// "@every 5m". An empty expression disables the periodic trigger.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	if expr == "" {
		return nil, nil
	}
	sched, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse sync schedule %q: %w", expr, err)
	}
	return sched, nil
}

// Engine drains the queue through a Dispatcher.
type Engine struct {
	queue      *queue.Manager
	monitor    Connectivity
	dispatcher Dispatcher
	logger     *slog.Logger
	notifier   notifications.Service
	metrics    *telemetry.Metrics

	dispatchTimeout time.Duration
	schedule        cronlib.Schedule
	scheduleExpr    string
	syncOnStart     bool
	now             func() time.Time

	state   atomic.Int32
	trigger chan string

	mu         sync.RWMutex
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	lastReport *Report
	lastErr    error
}

// Option customizes an Engine.
type Option func(*Engine)

// WithNotifier sets the notification service.
func WithNotifier(notifier notifications.Service) Option {
	return func(e *Engine) {
		if notifier != nil {
			e.notifier = notifier
		}
	}
}

// WithMetrics records cycle and dispatch metrics.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// WithDispatchTimeout bounds each delivery attempt.
func WithDispatchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.dispatchTimeout = d
		}
	}
}

// WithSchedule sets the periodic trigger. expr is kept for status output.
func WithSchedule(expr string, schedule cronlib.Schedule) Option {
	return func(e *Engine) {
		e.scheduleExpr = expr
		e.schedule = schedule
	}
}

// WithSyncOnStart drains once when Start finds the network online.
func WithSyncOnStart(enabled bool) Option {
	return func(e *Engine) {
		e.syncOnStart = enabled
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine constructs a sync engine.
func NewEngine(q *queue.Manager, monitor Connectivity, dispatcher Dispatcher, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		queue:           q,
		monitor:         monitor,
		dispatcher:      dispatcher,
		logger:          logging.NewComponentLogger(logger, "syncer"),
		notifier:        notifications.NewService(nil),
		dispatchTimeout: defaultDispatchTimeout,
		now:             time.Now,
		trigger:         make(chan string, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State reports whether a drain is active.
func (e *Engine) State() State {
	if e.state.Load() == stateDraining {
		return StateDraining
	}
	return StateIdle
}

// Status returns the engine state and the last cycle report.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	status := Status{
		State:    e.State(),
		Running:  e.running,
		Schedule: e.scheduleExpr,
	}
	if e.lastReport != nil {
		report := *e.lastReport
		status.LastReport = &report
	}
	if e.lastErr != nil {
		status.LastError = e.lastErr.Error()
	}
	return status
}

// Trigger requests a background drain. Requests made while one is already
// pending coalesce into it.
func (e *Engine) Trigger(reason string) {
	select {
	case e.trigger <- reason:
	default:
	}
}

// SyncNow drains on the caller's goroutine. It returns ErrCycleInProgress when
// another drain is active.
func (e *Engine) SyncNow(ctx context.Context) (Report, error) {
	if !e.state.CompareAndSwap(stateIdle, stateDraining) {
		return Report{}, ErrCycleInProgress
	}
	defer e.state.Store(stateIdle)
	return e.drain(ctx, ReasonManual)
}

// Start launches the trigger loop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("sync engine already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	sub := e.monitor.Subscribe()
	e.wg.Add(1)
	e.mu.Unlock()

	if e.syncOnStart && sub.Initial {
		e.Trigger(ReasonStartup)
	}
	go e.run(runCtx, sub)

	e.logger.Info("sync engine started",
		logging.String(logging.FieldEventType, "sync_engine_started"),
		logging.String("schedule", e.scheduleExpr),
		logging.Duration("dispatch_timeout", e.dispatchTimeout),
	)
	return nil
}

// Stop ends the trigger loop and waits for an active background drain to
// finish its current item.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	e.running = false
	e.cancel = nil
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
}

func (e *Engine) run(ctx context.Context, sub *netmon.Subscription) {
	defer e.wg.Done()
	defer sub.Cancel()

	var tick <-chan time.Time
	var timer *time.Timer
	resetTimer := func() {
		if e.schedule == nil {
			return
		}
		now := e.now()
		wait := e.schedule.Next(now).Sub(now)
		if wait < 0 {
			wait = 0
		}
		if timer == nil {
			timer = time.NewTimer(wait)
		} else {
			timer.Reset(wait)
		}
		tick = timer.C
	}
	resetTimer()
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if event.Online {
				e.Trigger(ReasonReconnect)
			}
		case <-tick:
			if e.monitor.Online() {
				e.Trigger(ReasonSchedule)
			}
			resetTimer()
		case reason := <-e.trigger:
			e.runBackground(ctx, reason)
		}
	}
}

// runBackground drains for a background trigger. A drain already in progress
// absorbs the trigger.
func (e *Engine) runBackground(ctx context.Context, reason string) {
	if !e.state.CompareAndSwap(stateIdle, stateDraining) {
		e.logger.Debug("sync trigger ignored; drain in progress", logging.String("reason", reason))
		return
	}
	defer e.state.Store(stateIdle)
	if _, err := e.drain(ctx, reason); err != nil && !errors.Is(err, context.Canceled) {
		logging.WarnWithContext(e.logger, "sync cycle failed", "sync_cycle_failed",
			logging.String("reason", reason),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the data directory and database health with 'agrisync status'"),
			logging.String(logging.FieldImpact, "queued items stay pending until the next cycle"),
		)
	}
}
