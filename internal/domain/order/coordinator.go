package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/order-pipeline/internal/clock"
)

// FeeRate is the processing fee charged on every order, as a fraction of the
// product price.
var FeeRate = decimal.NewFromFloat(0.2)

// DefaultCompletionDelay is the minimum time between an order becoming
// pending and its completion being attempted.
const DefaultCompletionDelay = 5 * time.Second

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	ProductID string
	Quantity  int
}

// Coordinator drives the order lifecycle: it resolves the product, prices
// the order, persists it pending, schedules the deferred completion, and
// later transitions the order to completed and announces it on the event
// stream.
type Coordinator struct {
	lookup ProductLookup
	store  Store
	queue  CompletionQueue
	events EventPublisher
	clock  clock.Clock
	delay  time.Duration
}

// NewCoordinator creates a Coordinator with the required collaborators.
// A non-positive delay falls back to DefaultCompletionDelay.
func NewCoordinator(
	lookup ProductLookup,
	store Store,
	queue CompletionQueue,
	events EventPublisher,
	clk clock.Clock,
	delay time.Duration,
) *Coordinator {
	if delay <= 0 {
		delay = DefaultCompletionDelay
	}
	return &Coordinator{
		lookup: lookup,
		store:  store,
		queue:  queue,
		events: events,
		clock:  clk,
		delay:  delay,
	}
}

// Create validates the request, snapshots the product price, persists the
// order in the pending state, and schedules its completion. The returned
// order is pending; the completion runs detached after the configured delay.
//
// Lookup failures propagate unwrapped so callers can distinguish not-found,
// transport, and decode errors. No order is persisted on any failure path.
func (c *Coordinator) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if req.ProductID == "" {
		return nil, &ValidationError{Field: "product_id", Reason: "must not be empty"}
	}
	if req.Quantity <= 0 {
		return nil, &ValidationError{Field: "quantity", Reason: "must be greater than 0"}
	}

	p, err := c.lookup.Lookup(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	fee := p.Price.Mul(FeeRate)
	o := &Order{
		ID:        uuid.New().String(),
		ProductID: p.ID,
		Price:     p.Price,
		Fee:       fee,
		Total:     p.Price.Add(fee),
		Quantity:  req.Quantity,
		Status:    StatusPending,
		CreatedAt: now,
	}

	if err := c.store.Create(ctx, o); err != nil {
		return nil, &PersistenceError{Op: "create order", Err: err}
	}

	// The pending write is durable before the completion is scheduled. If
	// scheduling fails the pending record is removed again, so a failed
	// Create never leaves partial state behind.
	if err := c.queue.Enqueue(ctx, o.ID, now.Add(c.delay)); err != nil {
		if delErr := c.store.Delete(ctx, o.ID); delErr != nil {
			zctx.From(ctx).Error("rollback of unscheduled order failed",
				zap.String("order_id", o.ID),
				zap.Error(delErr),
			)
		}
		return nil, &PersistenceError{Op: "schedule completion", Err: err}
	}

	return o, nil
}

// Complete transitions a pending order to completed and publishes the
// order_completed event. It is invoked by the completion worker after the
// scheduled delay and is safe to call more than once for the same id: a
// second call observes the completed status and is a no-op, so exactly one
// event is published per order.
//
// A missing order is abandoned with a log line. Store failures are returned
// so the caller can retry; the order is not marked completed in that case.
func (c *Coordinator) Complete(ctx context.Context, orderID string) error {
	lg := zctx.From(ctx).With(zap.String("order_id", orderID))

	o, err := c.store.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			lg.Warn("order vanished before completion, abandoning")
			return nil
		}
		return &PersistenceError{Op: "load order for completion", Err: err}
	}

	if o.Status == StatusCompleted {
		lg.Debug("order already completed, skipping")
		return nil
	}

	o.Status = StatusCompleted
	if err := c.store.Update(ctx, o); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return c.resolveConflict(ctx, lg, orderID)
		}
		return &PersistenceError{Op: "persist completed order", Err: err}
	}

	c.publish(ctx, lg, o)
	return nil
}

// resolveConflict re-reads the order after a lost conditional write. A
// concurrent completion having won the race is fine; anything else is
// surfaced for retry.
func (c *Coordinator) resolveConflict(ctx context.Context, lg *zap.Logger, orderID string) error {
	o, err := c.store.Get(ctx, orderID)
	if err != nil {
		return &PersistenceError{Op: "reload order after version conflict", Err: err}
	}
	if o.Status == StatusCompleted {
		lg.Debug("concurrent completion won the race, skipping")
		return nil
	}
	return &PersistenceError{Op: "persist completed order", Err: ErrVersionConflict}
}

// publish announces the completion. The store is the source of truth; a
// failed publish is logged and never rolls back the status write.
func (c *Coordinator) publish(ctx context.Context, lg *zap.Logger, o *Order) {
	seq, err := c.events.PublishCompleted(ctx, o)
	if err != nil {
		lg.Error("publish of order_completed event failed",
			zap.String("stage", "publish"),
			zap.Error(err),
		)
		return
	}
	lg.Info("order completed", zap.String("event_seq", seq))
}
