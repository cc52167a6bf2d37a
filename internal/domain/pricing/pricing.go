// Package pricing computes order totals from authoritative catalog prices.
package pricing

import (
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/product"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/validation"
)

// Scale is the number of decimal places money is kept at.
const Scale = 2

// MaxQuantity is the largest quantity a single order line may carry.
const MaxQuantity = math.MaxInt32

// MaxAmount is the largest line total, subtotal or discount an order may carry.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// Item is a requested product and quantity. It carries no price: unit prices
// always come from the catalog.
type Item struct {
	ProductID int64
	Quantity  int
}

// Line is a priced order line.
type Line struct {
	Product   product.Product
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Breakdown is the priced result for a list of items.
type Breakdown struct {
	Lines    []Line
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Merge folds repeated product ids into one item, keeping first-seen order.
func Merge(items []Item) []Item {
	out := make([]Item, 0, len(items))
	pos := make(map[int64]int, len(items))
	for _, it := range items {
		if i, ok := pos[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		pos[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out
}

// ProductIDs returns the distinct product ids referenced by items.
func ProductIDs(items []Item) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}

// Quote prices items against catalog and applies discount.
//
// Quantities are checked before lookup so that a malformed request is
// reported as such even when it also names unknown products.
func Quote(items []Item, catalog map[int64]product.Product, discount decimal.Decimal) (*Breakdown, error) {
	var verr validation.Error
	for i, it := range items {
		switch {
		case it.Quantity < 1:
			verr.Add(itemField(i, "quantity"), "must be at least 1")
		case it.Quantity > MaxQuantity:
			verr.Add(itemField(i, "quantity"), "must be at most "+strconv.Itoa(MaxQuantity))
		}
	}
	checkDiscount(&verr, discount)
	if err := verr.Err(); err != nil {
		return nil, err
	}

	merged := Merge(items)
	b := &Breakdown{
		Lines:    make([]Line, 0, len(merged)),
		Subtotal: decimal.Zero,
	}
	for _, it := range merged {
		p, ok := catalog[it.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: it.ProductID}
		}
		if !p.InStock {
			return nil, validation.Field("items", fmt.Sprintf("product %d is out of stock", p.ID))
		}
		if it.Quantity > MaxQuantity {
			return nil, validation.Field("items", fmt.Sprintf("product %d: total quantity exceeds %d", p.ID, MaxQuantity))
		}
		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		if lineTotal.GreaterThan(MaxAmount) {
			return nil, validation.Field("items", fmt.Sprintf("product %d: line total exceeds %s", p.ID, MaxAmount.StringFixed(Scale)))
		}
		b.Lines = append(b.Lines, Line{
			Product:   p,
			Quantity:  it.Quantity,
			UnitPrice: p.Price,
			LineTotal: lineTotal,
		})
		b.Subtotal = b.Subtotal.Add(lineTotal)
	}
	if b.Subtotal.GreaterThan(MaxAmount) {
		return nil, validation.Field("items", "order subtotal exceeds "+MaxAmount.StringFixed(Scale))
	}

	if discount.GreaterThan(b.Subtotal) {
		return nil, validation.Field("discount", "must not exceed the order subtotal")
	}
	b.Discount = discount
	b.Total = b.Subtotal.Sub(discount)
	return b, nil
}

func checkDiscount(verr *validation.Error, discount decimal.Decimal) {
	switch {
	case discount.IsNegative():
		verr.Add("discount", "must not be negative")
	case !discount.Equal(discount.Truncate(Scale)):
		verr.Add("discount", "must have at most 2 decimal places")
	}
}

func itemField(i int, name string) string {
	return "items." + strconv.Itoa(i) + "." + name
}
