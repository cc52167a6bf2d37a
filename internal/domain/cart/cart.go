package cart

import (
	"context"

	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/pricing"
)

// Line is one product in an account's cart.
type Line struct {
	AccountID int64
	ProductID int64
	Quantity  int
}

// Reader reads a cart without locking it. The result is only a hint; the
// authoritative read happens under lock inside the order transaction.
type Reader interface {
	Snapshot(ctx context.Context, accountID int64) ([]Line, error)
}

// Items converts cart lines to pricing items.
func Items(lines []Line) []pricing.Item {
	items := make([]pricing.Item, len(lines))
	for i, l := range lines {
		items[i] = pricing.Item{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	return items
}
