package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agrisync/internal/logging"
	"agrisync/internal/notifications"
	"agrisync/internal/queue"
	"agrisync/internal/services"
)

// drain runs one cycle. The caller must hold the draining state.
func (e *Engine) drain(ctx context.Context, reason string) (Report, error) {
	started := e.now()
	report := Report{Reason: reason, StartedAt: started.UTC()}
	// Queue writes and in-flight deliveries outlive cancellation so an
	// attempted item always ends in a recorded state.
	persistCtx := context.WithoutCancel(ctx)

	// Only one drain runs at a time, so anything still in_flight was left by
	// an interrupted attempt.
	recovered, err := e.queue.RecoverInFlight(persistCtx)
	if err != nil {
		return e.finish(persistCtx, report, started, fmt.Errorf("recover in-flight items: %w", err))
	}
	if recovered > 0 {
		e.logger.Info("recovered interrupted deliveries",
			logging.Int("count", recovered),
			logging.String(logging.FieldEventType, "sync_inflight_recovered"),
		)
	}

	items, err := e.queue.Snapshot(persistCtx)
	if err != nil {
		return e.finish(persistCtx, report, started, fmt.Errorf("snapshot queue: %w", err))
	}
	if len(items) > 0 {
		e.logger.Info("sync cycle started",
			logging.String("reason", reason),
			logging.Int("items", len(items)),
			logging.String(logging.FieldEventType, "sync_cycle_started"),
		)
	}

	for i, item := range items {
		if ctx.Err() != nil || !e.monitor.Online() {
			report.Aborted = true
			report.Skipped += len(items) - i
			e.logger.Info("sync cycle stopped before queue drained",
				logging.Int("remaining", len(items)-i),
				logging.Bool("online", e.monitor.Online()),
				logging.String(logging.FieldEventType, "sync_cycle_aborted"),
			)
			break
		}
		e.deliver(persistCtx, item, &report)
	}

	evicted, err := e.queue.EvictCompleted(persistCtx)
	report.Evicted = evicted
	if err != nil {
		return e.finish(persistCtx, report, started, fmt.Errorf("evict completed items: %w", err))
	}
	return e.finish(persistCtx, report, started, nil)
}

// deliver attempts one item and records the outcome on the queue.
func (e *Engine) deliver(ctx context.Context, item queue.Item, report *Report) {
	logger := logging.WithContext(services.WithItemID(ctx, item.ID), e.logger).
		With(logging.String(logging.FieldKind, string(item.Kind)))

	current, err := e.queue.Get(ctx, item.ID)
	if err != nil || current == nil || !current.IsDeliverable() {
		if err != nil {
			logging.WarnWithContext(logger, "failed to load queue item", "sync_item_load_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "item skipped this cycle"),
			)
		}
		report.Skipped++
		return
	}
	if err := e.queue.MarkInFlight(ctx, item.ID); err != nil {
		logging.WarnWithContext(logger, "failed to mark item in flight", "sync_item_mark_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "item skipped this cycle"),
		)
		report.Skipped++
		return
	}
	report.Attempted++

	dispatchCtx, cancel := context.WithTimeout(ctx, e.dispatchTimeout)
	start := time.Now()
	dispatchErr := e.dispatcher.Dispatch(dispatchCtx, *current)
	if dispatchErr != nil && errors.Is(dispatchCtx.Err(), context.DeadlineExceeded) && !errors.Is(dispatchErr, services.ErrTimeout) {
		dispatchErr = services.Wrap(services.ErrTimeout, "syncer", "dispatch",
			fmt.Sprintf("no response within %s", e.dispatchTimeout), dispatchErr)
	}
	cancel()
	elapsed := time.Since(start)
	e.metrics.RecordDispatch(ctx, string(item.Kind), services.Classify(dispatchErr), elapsed)

	if dispatchErr == nil {
		if err := e.queue.MarkCompleted(ctx, item.ID); err != nil {
			logging.WarnWithContext(logger, "delivered item could not be marked completed", "sync_item_mark_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "item is retried next cycle; the remote end dedupes by id"),
			)
			return
		}
		report.Completed++
		logger.Info("item delivered",
			logging.Duration("duration", elapsed),
			logging.Int("attempt", current.AttemptCount+1),
			logging.String(logging.FieldEventType, "sync_item_delivered"),
		)
		return
	}

	if err := e.queue.MarkFailed(ctx, item.ID, dispatchErr); err != nil {
		logging.WarnWithContext(logger, "failed item could not be marked failed", "sync_item_mark_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "item is retried next cycle"),
		)
	}
	report.Failed++
	if errors.Is(dispatchErr, services.ErrUnknownKind) {
		logging.ErrorWithContext(logger, "queue item has an unknown kind", "sync_item_unknown_kind",
			logging.Error(dispatchErr),
			logging.String(logging.FieldErrorHint, "the item is not retried; remove it with 'agrisync queue remove'"),
		)
	} else {
		hint := "the item is retried on the next sync"
		if !services.Retryable(dispatchErr) {
			hint = "fix the request and run 'agrisync queue retry', or remove it"
		}
		logging.WarnWithContext(logger, "item delivery failed", "sync_item_failed",
			logging.Error(dispatchErr),
			logging.String("error_code", services.Classify(dispatchErr)),
			logging.Duration("duration", elapsed),
			logging.Bool("retryable", services.Retryable(dispatchErr)),
			logging.String(logging.FieldErrorHint, hint),
			logging.String(logging.FieldImpact, "the answer is delayed"),
		)
	}
	e.publish(ctx, notifications.EventItemFailed, notifications.Payload{
		"id":    item.ID,
		"kind":  string(item.Kind),
		"error": services.Classify(dispatchErr),
	})
}

// finish records the report, metrics and notifications for a cycle.
func (e *Engine) finish(ctx context.Context, report Report, started time.Time, cycleErr error) (Report, error) {
	report.Duration = e.now().Sub(started)
	if health, err := e.queue.Health(ctx); err == nil {
		report.Remaining = health.Pending + health.InFlight + health.Failed
		e.metrics.SetQueueDepth(ctx, report.Remaining)
	}
	e.metrics.RecordCycle(ctx, report.Aborted || cycleErr != nil, report.Duration)

	e.mu.Lock()
	snapshot := report
	e.lastReport = &snapshot
	e.lastErr = cycleErr
	e.mu.Unlock()

	if cycleErr != nil {
		return report, cycleErr
	}
	if report.Attempted > 0 || report.Aborted {
		e.logger.Info("sync cycle finished",
			logging.String("reason", report.Reason),
			logging.Int("attempted", report.Attempted),
			logging.Int("completed", report.Completed),
			logging.Int("failed", report.Failed),
			logging.Int("skipped", report.Skipped),
			logging.Int("evicted", report.Evicted),
			logging.Bool("aborted", report.Aborted),
			logging.Duration("duration", report.Duration),
			logging.String(logging.FieldEventType, "sync_cycle_finished"),
		)
	}
	if report.Completed > 0 {
		e.publish(ctx, notifications.EventSyncCompleted, notifications.Payload{
			"completed": report.Completed,
			"failed":    report.Failed,
		})
	}
	return report, nil
}

func (e *Engine) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Publish(ctx, event, payload); err != nil {
		e.logger.Debug("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}
