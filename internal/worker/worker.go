// Package worker drains the durable completion queue and drives pending
// orders to their completed state.
package worker

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/order-pipeline/internal/clock"
)

// Completer transitions a single order to its terminal state. Implemented by
// order.Coordinator.
type Completer interface {
	Complete(ctx context.Context, orderID string) error
}

// Queue is the worker-side view of the completion queue: claim due work,
// push failed work back.
type Queue interface {
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]string, error)
	Enqueue(ctx context.Context, orderID string, due time.Time) error
}

// Config tunes the completion worker.
type Config struct {
	// PollInterval is how often the queue is checked for due completions.
	PollInterval time.Duration
	// BatchSize caps the completions claimed per poll.
	BatchSize int
	// RetryDelay is how far a failed completion is pushed back.
	RetryDelay time.Duration
}

func (c *Config) setDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
}

// Worker polls the completion queue and invokes the Completer for each due
// order. Claims are exclusive; a completion that fails is re-enqueued with
// RetryDelay, so every scheduled completion is eventually attempted at least
// once more until it sticks.
type Worker struct {
	queue     Queue
	completer Completer
	clock     clock.Clock
	cfg       Config

	tracer    trace.Tracer
	completed metric.Int64Counter
	failed    metric.Int64Counter
}

// New creates a Worker. Nil telemetry providers fall back to no-ops.
func New(
	queue Queue,
	completer Completer,
	clk clock.Clock,
	cfg Config,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Worker, error) {
	cfg.setDefaults()
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}
	if mp == nil {
		mp = noop.NewMeterProvider()
	}

	meter := mp.Meter("order-pipeline/worker")
	completed, err := meter.Int64Counter("orders_completed_total",
		metric.WithDescription("Orders driven to the completed state"))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("order_completions_failed_total",
		metric.WithDescription("Completion attempts that failed and were re-enqueued"))
	if err != nil {
		return nil, err
	}

	return &Worker{
		queue:     queue,
		completer: completer,
		clock:     clk,
		cfg:       cfg,
		tracer:    tp.Tracer("order-pipeline/worker"),
		completed: completed,
		failed:    failed,
	}, nil
}

// Run polls until ctx is cancelled. It never returns a non-nil error for a
// failed completion; those are logged, counted, and re-enqueued.
func (w *Worker) Run(ctx context.Context) error {
	lg := zctx.From(ctx)
	lg.Info("completion worker started",
		zap.Duration("poll_interval", w.cfg.PollInterval),
		zap.Int("batch_size", w.cfg.BatchSize),
	)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			lg.Info("completion worker stopped")
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain claims and processes one batch of due completions.
func (w *Worker) drain(ctx context.Context) {
	lg := zctx.From(ctx)

	ids, err := w.queue.ClaimDue(ctx, w.clock.Now(), w.cfg.BatchSize)
	if err != nil {
		lg.Error("claim of due completions failed", zap.Error(err))
		return
	}

	for _, id := range ids {
		w.completeOne(ctx, id)
	}
}

// completeOne runs a single completion attempt inside its own span. The
// claim was exclusive, so a failure must push the id back on the queue or
// the order would be stuck pending forever.
func (w *Worker) completeOne(ctx context.Context, orderID string) {
	ctx, span := w.tracer.Start(ctx, "worker.Complete",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)
	defer span.End()

	lg := zctx.From(ctx).With(zap.String("order_id", orderID))

	if err := w.completer.Complete(ctx, orderID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		w.failed.Add(ctx, 1)

		retryAt := w.clock.Now().Add(w.cfg.RetryDelay)
		if qErr := w.queue.Enqueue(ctx, orderID, retryAt); qErr != nil {
			lg.Error("re-enqueue of failed completion failed",
				zap.Error(qErr),
				zap.NamedError("completion_error", err),
			)
			return
		}
		lg.Warn("completion failed, re-enqueued",
			zap.Time("retry_at", retryAt),
			zap.Error(err),
		)
		return
	}

	w.completed.Add(ctx, 1)
}
