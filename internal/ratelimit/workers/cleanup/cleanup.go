// Package cleanup bounds usage-event retention. Admission only ever reads
// the current window, so events past the retention horizon are dead weight;
// this worker deletes them on a ticker.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"cortex/internal/ratelimit/metrics"
)

// Result describes one cleanup run.
type Result struct {
	EventsDeleted int
	Duration      time.Duration
}

// UsageStore is the subset of the usage store the worker needs.
type UsageStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

func WithRetention(retention time.Duration) Option {
	return func(w *Worker) {
		if retention > 0 {
			w.retention = retention
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// Worker periodically deletes usage events older than the retention horizon.
type Worker struct {
	store     UsageStore
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration
	metrics   *metrics.Metrics
}

func New(store UsageStore, opts ...Option) *Worker {
	w := &Worker{
		store:     store,
		logger:    slog.Default(),
		interval:  15 * time.Minute,
		retention: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs the cleanup loop until the context is canceled.
func (w *Worker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			res, err := w.RunOnce(ctx)
			duration := time.Since(start)

			if err != nil {
				w.logger.Error("usage_cleanup_failed",
					"error", err,
					"duration_ms", duration.Milliseconds(),
				)
				if w.metrics != nil {
					w.metrics.RecordCleanupRun("error", 0, duration.Seconds())
				}
				continue
			}

			res.Duration = duration
			w.logger.Info("usage_cleanup_completed",
				"events_deleted", res.EventsDeleted,
				"duration_ms", duration.Milliseconds(),
			)
			if w.metrics != nil {
				w.metrics.RecordCleanupRun("success", res.EventsDeleted, duration.Seconds())
			}

		case <-ctx.Done():
			w.logger.Info("usage cleanup worker stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

// RunOnce executes a single cleanup pass. Logging is handled by Start.
func (w *Worker) RunOnce(ctx context.Context) (*Result, error) {
	cutoff := time.Now().Add(-w.retention)
	deleted, err := w.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	return &Result{EventsDeleted: deleted}, nil
}
