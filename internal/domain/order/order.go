package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/order-pipeline/internal/domain/product"
)

// Status is the lifecycle state of an order. An order is created pending and
// transitions exactly once to completed. Refunded is reachable in the type
// but no flow in this module produces it; it is triggered externally.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
)

// Valid reports whether s is one of the known order statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusRefunded:
		return true
	}
	return false
}

// Order is an order record. Price is a snapshot of the product price at
// creation time and is never recomputed; Fee and Total are derived from it
// once, so Total == Price + Fee holds for the whole lifecycle.
type Order struct {
	ID        string
	ProductID string
	Price     decimal.Decimal
	Fee       decimal.Decimal
	Total     decimal.Decimal
	Quantity  int
	Status    Status
	Version   int64
	CreatedAt time.Time
}

// Store defines persistence for orders, keyed by order id.
//
// Update is a conditional write: it succeeds only when the stored version
// matches the version on the passed order, and bumps the version on success.
// This closes the lost-update window between concurrent completions.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, o *Order) error
	Delete(ctx context.Context, id string) error
}

// CompletionQueue schedules order completions. Entries are durable: a
// scheduled completion survives process restarts and is delivered to a
// worker at least once.
type CompletionQueue interface {
	Enqueue(ctx context.Context, orderID string, due time.Time) error
}

// EventPublisher appends a completed-order event to the order_completed
// stream. The returned id is the collaborator-assigned sequence. Publishes
// are at-least-once; a retried publish produces a duplicate entry.
type EventPublisher interface {
	PublishCompleted(ctx context.Context, o *Order) (string, error)
}

// ProductLookup resolves a product snapshot from the inventory service.
// Implementations return product.ErrNotFound for unknown ids and typed
// transport/decode errors for remote failures.
type ProductLookup interface {
	Lookup(ctx context.Context, productID string) (*product.Product, error)
}
