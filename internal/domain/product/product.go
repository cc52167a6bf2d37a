package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog entry that can be ordered.
type Product struct {
	ID      int64
	Name    string
	Brand   string
	Price   decimal.Decimal
	InStock bool
}

// Repository defines read operations for the product catalog.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	// GetByIDs fetches products in one round trip. Unknown ids are absent
	// from the result rather than reported as errors.
	GetByIDs(ctx context.Context, ids []int64) ([]Product, error)
}

// Index keys products by id.
func Index(products []Product) map[int64]Product {
	m := make(map[int64]Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return m
}
