package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/product"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/validation"
)

func newTestCatalog() map[int64]product.Product {
	return product.Index([]product.Product{
		{ID: 1, Name: "Crème hydratante", Brand: "Avène", Price: decimal.RequireFromString("10.00"), InStock: true},
		{ID: 2, Name: "Gel nettoyant", Brand: "Bioderma", Price: decimal.RequireFromString("5.50"), InStock: true},
		{ID: 3, Name: "Sérum vitamine C", Brand: "La Roche-Posay", Price: decimal.RequireFromString("0.10"), InStock: true},
		{ID: 4, Name: "Écran solaire", Brand: "Uriage", Price: decimal.RequireFromString("18.90"), InStock: false},
	})
}

func TestQuote_Totals(t *testing.T) {
	b, err := Quote(
		[]Item{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1}},
		newTestCatalog(),
		decimal.RequireFromString("3.00"),
	)
	require.NoError(t, err)

	require.Len(t, b.Lines, 2)
	assert.True(t, decimal.RequireFromString("20.00").Equal(b.Lines[0].LineTotal))
	assert.True(t, decimal.RequireFromString("5.50").Equal(b.Lines[1].LineTotal))
	assert.True(t, decimal.RequireFromString("25.50").Equal(b.Subtotal))
	assert.True(t, decimal.RequireFromString("3.00").Equal(b.Discount))
	assert.True(t, decimal.RequireFromString("22.50").Equal(b.Total))
}

func TestQuote_ExactDecimal(t *testing.T) {
	// 0.10 * 3 must be exactly 0.30, not a binary float approximation.
	b, err := Quote([]Item{{ProductID: 3, Quantity: 3}}, newTestCatalog(), decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, "0.30", b.Total.StringFixed(Scale))
	assert.True(t, decimal.RequireFromString("0.3").Equal(b.Total))
}

func TestQuote_DiscountEqualToSubtotal(t *testing.T) {
	b, err := Quote([]Item{{ProductID: 2, Quantity: 2}}, newTestCatalog(), decimal.RequireFromString("11.00"))
	require.NoError(t, err)
	assert.True(t, b.Total.IsZero())
}

func TestQuote_DiscountExceedsSubtotal(t *testing.T) {
	_, err := Quote([]Item{{ProductID: 2, Quantity: 1}}, newTestCatalog(), decimal.RequireFromString("5.51"))
	v, ok := validation.As(err)
	require.True(t, ok)
	assert.True(t, v.Has("discount"))
}

func TestQuote_InvalidDiscount(t *testing.T) {
	tests := []struct {
		name     string
		discount string
	}{
		{name: "negative", discount: "-1.00"},
		{name: "too precise", discount: "0.005"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Quote([]Item{{ProductID: 1, Quantity: 1}}, newTestCatalog(), decimal.RequireFromString(tt.discount))
			v, ok := validation.As(err)
			require.True(t, ok)
			assert.True(t, v.Has("discount"))
		})
	}
}

func TestQuote_InvalidQuantity(t *testing.T) {
	_, err := Quote(
		[]Item{{ProductID: 1, Quantity: 1}, {ProductID: 2, Quantity: 0}},
		newTestCatalog(),
		decimal.Zero,
	)
	v, ok := validation.As(err)
	require.True(t, ok)
	assert.True(t, v.Has("items.1.quantity"))
}

func TestQuote_InvalidQuantityBeforeLookup(t *testing.T) {
	_, err := Quote([]Item{{ProductID: 999, Quantity: -2}}, newTestCatalog(), decimal.Zero)
	_, ok := validation.As(err)
	assert.True(t, ok)
}

func TestQuote_ProductNotFound(t *testing.T) {
	_, err := Quote(
		[]Item{{ProductID: 1, Quantity: 1}, {ProductID: 999, Quantity: 1}},
		newTestCatalog(),
		decimal.Zero,
	)
	var pnf *ProductNotFoundError
	require.ErrorAs(t, err, &pnf)
	assert.Equal(t, int64(999), pnf.ProductID)
}

func TestQuote_OutOfStock(t *testing.T) {
	_, err := Quote([]Item{{ProductID: 4, Quantity: 1}}, newTestCatalog(), decimal.Zero)
	v, ok := validation.As(err)
	require.True(t, ok)
	assert.True(t, v.Has("items"))
}

func TestQuote_MergesDuplicates(t *testing.T) {
	b, err := Quote(
		[]Item{{ProductID: 2, Quantity: 1}, {ProductID: 1, Quantity: 1}, {ProductID: 2, Quantity: 2}},
		newTestCatalog(),
		decimal.Zero,
	)
	require.NoError(t, err)
	require.Len(t, b.Lines, 2)
	assert.Equal(t, int64(2), b.Lines[0].Product.ID)
	assert.Equal(t, 3, b.Lines[0].Quantity)
	assert.True(t, decimal.RequireFromString("26.50").Equal(b.Total))
}

func TestQuote_MergedQuantityTooLarge(t *testing.T) {
	_, err := Quote(
		[]Item{{ProductID: 3, Quantity: MaxQuantity}, {ProductID: 3, Quantity: MaxQuantity}},
		newTestCatalog(),
		decimal.Zero,
	)
	v, ok := validation.As(err)
	require.True(t, ok)
	assert.True(t, v.Has("items"))
}

func TestQuote_AmountTooLarge(t *testing.T) {
	catalog := product.Index([]product.Product{
		{ID: 1, Name: "Coffret", Price: decimal.RequireFromString("20.00"), InStock: true},
		{ID: 2, Name: "Lot pharmacie", Price: decimal.RequireFromString("4000000000.00"), InStock: true},
	})
	tests := []struct {
		name  string
		items []Item
	}{
		{name: "line total", items: []Item{{ProductID: 1, Quantity: MaxQuantity}}},
		{name: "subtotal", items: []Item{{ProductID: 2, Quantity: 2}, {ProductID: 1, Quantity: 100_000_000}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Quote(tt.items, catalog, decimal.Zero)
			v, ok := validation.As(err)
			require.True(t, ok)
			assert.True(t, v.Has("items"))
		})
	}
}

func TestQuote_AmountAtLimit(t *testing.T) {
	catalog := product.Index([]product.Product{
		{ID: 1, Name: "Lot pharmacie", Price: MaxAmount, InStock: true},
	})
	b, err := Quote([]Item{{ProductID: 1, Quantity: 1}}, catalog, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, MaxAmount.Equal(b.Total))
}

func TestProductIDs(t *testing.T) {
	ids := ProductIDs([]Item{{ProductID: 3}, {ProductID: 1}, {ProductID: 3}})
	assert.Equal(t, []int64{3, 1}, ids)
}
