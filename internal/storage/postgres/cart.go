package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/cart"
)

const (
	cartLinesSQL = `SELECT account_id, product_id, quantity
		FROM cart_items WHERE account_id = $1 ORDER BY id`

	// Rows deleted by a concurrent checkout are skipped once the lock is
	// granted, so the loser of a race sees an empty cart.
	lockCartSQL = cartLinesSQL + ` FOR UPDATE`

	clearCartSQL = `DELETE FROM cart_items WHERE account_id = $1`

	addToCartSQL = `INSERT INTO cart_items (account_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`
)

var _ cart.Reader = (*CartRepository)(nil)

// CartRepository reads carts outside of order transactions.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Snapshot returns the account's cart without locking it.
func (r *CartRepository) Snapshot(ctx context.Context, accountID int64) ([]cart.Line, error) {
	return queryCart(ctx, r.pool, cartLinesSQL, accountID)
}

// Add puts quantity units of a product in the account's cart.
func (r *CartRepository) Add(ctx context.Context, accountID, productID int64, quantity int) error {
	if _, err := r.pool.Exec(ctx, addToCartSQL, accountID, productID, quantity); err != nil {
		return errors.Wrapf(err, "add product %d to cart", productID)
	}
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryCart(ctx context.Context, q querier, sql string, accountID int64) ([]cart.Line, error) {
	rows, err := q.Query(ctx, sql, accountID)
	if err != nil {
		return nil, errors.Wrapf(err, "read cart of account %d", accountID)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Line, error) {
		var l cart.Line
		err := row.Scan(&l.AccountID, &l.ProductID, &l.Quantity)
		return l, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan cart")
	}
	return lines, nil
}
