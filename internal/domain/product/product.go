package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. Quantity is the
// stock on hand; order flows never decrement it.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// Repository defines the catalog persistence operations owned by the
// inventory service.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id string) (*Product, error)
	Delete(ctx context.Context, id string) error
}
