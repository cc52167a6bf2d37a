package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/cart"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/order"
)

const (
	nextCounterSQL = `INSERT INTO order_counters (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = order_counters.value + 1, updated_at = NOW()
		RETURNING value`

	insertOrderSQL = `INSERT INTO orders (
			order_number, kind, owner_id,
			first_name, last_name, email, phone, address, city, postal_code,
			notes, shipping_method, payment_method,
			subtotal, discount, total, status
		) VALUES ($1, $2, NULLIF($3::bigint, 0), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at`

	insertOrderLineSQL = `INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	orderColumns = `o.id, o.order_number, o.kind, COALESCE(o.owner_id, 0),
		o.first_name, o.last_name, o.email, o.phone, o.address, o.city, o.postal_code,
		o.notes, o.shipping_method, o.payment_method,
		o.subtotal, o.discount, o.total, o.status, o.created_at`

	getOrderSQL = `SELECT ` + orderColumns + `
		FROM orders o WHERE o.id = $1 AND o.owner_id = $2`

	// $2..$4 are optional filters; empty strings disable them.
	listOrdersSQL = `SELECT ` + orderColumns + `, COUNT(*) OVER ()
		FROM orders o
		WHERE o.owner_id = $1
		  AND ($2::text = '' OR o.kind = $2)
		  AND ($3::text = '' OR o.status = $3)
		  AND ($4::text = '' OR o.order_number ILIKE '%' || $4 || '%'
		       OR (o.first_name || ' ' || o.last_name) ILIKE '%' || $4 || '%'
		       OR o.email ILIKE '%' || $4 || '%')
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $5 OFFSET $6`

	dashboardStatsSQL = `SELECT
			COALESCE(SUM(total) FILTER (WHERE status <> 'cancelled'), 0),
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			(SELECT COUNT(*) FROM clients WHERE owner_id = $1)
		FROM orders
		WHERE owner_id = $1 AND kind = $2`

	dashboardRecentSQL = `SELECT ` + orderColumns + `
		FROM orders o
		WHERE o.owner_id = $1 AND o.kind = $2
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $3`

	salesByMonthSQL = `SELECT DATE_TRUNC('month', created_at) AS month, SUM(total)
		FROM orders
		WHERE owner_id = $1 AND kind = $2 AND status <> 'cancelled'
		GROUP BY month
		ORDER BY month DESC
		LIMIT $3`

	orderLinesSQL = `SELECT order_id, id, product_id, product_name, quantity, unit_price, line_total
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, id`
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
	lg   *zap.Logger
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool, lg *zap.Logger) *OrderStore {
	return &OrderStore{pool: pool, lg: lg}
}

// WithinTx runs fn in a READ COMMITTED transaction. Lock waits and
// statements are bounded by ctx.
func (s *OrderStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classifyTxError(errors.Wrap(err, "begin transaction"))
	}

	if err := fn(ctx, &orderTx{tx: tx}); err != nil {
		s.rollback(ctx, tx)
		return classifyTxError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		err = classifyTxError(errors.Wrap(err, "commit"))
		var timeout *order.TransactionTimeoutError
		if errors.As(err, &timeout) {
			return err
		}
		return &order.TransactionAbortedError{Err: err}
	}
	return nil
}

func (s *OrderStore) rollback(ctx context.Context, tx pgx.Tx) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := tx.Rollback(rctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		s.lg.Warn("Rollback failed", zap.Error(err))
	}
}

// GetByID returns the order with its lines when it belongs to ownerID.
func (s *OrderStore) GetByID(ctx context.Context, ownerID, id int64) (*order.Order, error) {
	rows, err := s.pool.Query(ctx, getOrderSQL, id, ownerID)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %d", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %d", id)
	}

	orders := []order.Order{o}
	if err := s.loadLines(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// List returns one page of orders with their lines.
func (s *OrderStore) List(ctx context.Context, f order.ListFilter) (*order.Page, error) {
	page := max(f.Page, 1)
	rows, err := s.pool.Query(ctx, listOrdersSQL,
		f.OwnerID, string(f.Kind), string(f.Status), f.Search,
		order.PageSize, (page-1)*order.PageSize,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}

	var total int
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Order, error) {
		var o order.Order
		err := row.Scan(append(orderDest(&o), &total)...)
		return o, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan orders")
	}
	if err := s.loadLines(ctx, orders); err != nil {
		return nil, err
	}
	return &order.Page{Orders: orders, Total: total, Page: page}, nil
}

// Dashboard aggregates the owner's bulk orders and clients in one round trip.
func (s *OrderStore) Dashboard(ctx context.Context, ownerID int64) (*order.Dashboard, error) {
	kind := string(order.KindBulk)
	batch := &pgx.Batch{}
	batch.Queue(dashboardStatsSQL, ownerID, kind)
	batch.Queue(dashboardRecentSQL, ownerID, kind, order.DashboardRecentOrders)
	batch.Queue(salesByMonthSQL, ownerID, kind, order.DashboardMonths)

	d, err := s.readDashboard(s.pool.SendBatch(ctx, batch))
	if err != nil {
		return nil, err
	}
	if err := s.loadLines(ctx, d.RecentOrders); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *OrderStore) readDashboard(results pgx.BatchResults) (*order.Dashboard, error) {
	defer func() { _ = results.Close() }()

	var d order.Dashboard
	if err := results.QueryRow().Scan(&d.TotalSales, &d.TotalOrders, &d.PendingOrders, &d.TotalClients); err != nil {
		return nil, errors.Wrap(err, "dashboard statistics")
	}

	rows, err := results.Query()
	if err != nil {
		return nil, errors.Wrap(err, "recent orders")
	}
	if d.RecentOrders, err = pgx.CollectRows(rows, scanOrder); err != nil {
		return nil, errors.Wrap(err, "scan recent orders")
	}

	rows, err = results.Query()
	if err != nil {
		return nil, errors.Wrap(err, "sales by month")
	}
	if d.SalesByMonth, err = pgx.CollectRows(rows, pgx.RowToStructByPos[order.MonthlySales]); err != nil {
		return nil, errors.Wrap(err, "scan sales by month")
	}
	return &d, nil
}

func (s *OrderStore) loadLines(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	pos := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		pos[o.ID] = i
	}

	rows, err := s.pool.Query(ctx, orderLinesSQL, ids)
	if err != nil {
		return errors.Wrap(err, "get order lines")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID int64
			l       order.Line
		)
		if err := rows.Scan(&orderID, &l.ID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice, &l.LineTotal); err != nil {
			return errors.Wrap(err, "scan order line")
		}
		i := pos[orderID]
		orders[i].Lines = append(orders[i].Lines, l)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "iterate order lines")
	}
	return nil
}

func orderDest(o *order.Order) []any {
	return []any{
		&o.ID, &o.Number, &o.Kind, &o.OwnerID,
		&o.Contact.FirstName, &o.Contact.LastName, &o.Contact.Email, &o.Contact.Phone,
		&o.Contact.Address, &o.Contact.City, &o.Contact.PostalCode,
		&o.Notes, &o.ShippingMethod, &o.PaymentMethod,
		&o.Subtotal, &o.Discount, &o.Total, &o.Status, &o.CreatedAt,
	}
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(orderDest(&o)...)
	return o, err
}

// orderTx implements order.Tx on one pgx transaction.
type orderTx struct {
	tx pgx.Tx
}

var _ order.Tx = (*orderTx)(nil)

func (t *orderTx) LockCart(ctx context.Context, accountID int64) ([]cart.Line, error) {
	return queryCart(ctx, t.tx, lockCartSQL, accountID)
}

func (t *orderTx) ClearCart(ctx context.Context, accountID int64) error {
	if _, err := t.tx.Exec(ctx, clearCartSQL, accountID); err != nil {
		return errors.Wrapf(err, "clear cart of account %d", accountID)
	}
	return nil
}

func (t *orderTx) NextSequence(ctx context.Context, name string) (int64, error) {
	var v int64
	if err := t.tx.QueryRow(ctx, nextCounterSQL, name).Scan(&v); err != nil {
		return 0, errors.Wrapf(err, "increment counter %q", name)
	}
	return v, nil
}

// InsertOrder runs inside a savepoint so a number clash can be undone
// without aborting the surrounding transaction.
func (t *orderTx) InsertOrder(ctx context.Context, o *order.Order) error {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "create savepoint")
	}

	err = sp.QueryRow(ctx, insertOrderSQL,
		o.Number, o.Kind, o.OwnerID,
		o.Contact.FirstName, o.Contact.LastName, o.Contact.Email, o.Contact.Phone,
		o.Contact.Address, o.Contact.City, o.Contact.PostalCode,
		o.Notes, o.ShippingMethod, o.PaymentMethod,
		o.Subtotal, o.Discount, o.Total, o.Status,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return errors.Wrap(rbErr, "rollback to savepoint")
		}
		if isUniqueViolation(err, orderNumberConstraint) {
			return order.ErrDuplicateNumber
		}
		return errors.Wrapf(err, "insert order %q", o.Number)
	}

	if err := sp.Commit(ctx); err != nil {
		return errors.Wrap(err, "release savepoint")
	}
	return nil
}

func (t *orderTx) InsertLines(ctx context.Context, orderID int64, lines []order.Line) error {
	if len(lines) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(insertOrderLineSQL, orderID, l.ProductID, l.ProductName, l.Quantity, l.UnitPrice, l.LineTotal)
	}

	results := t.tx.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for i := range lines {
		if err := results.QueryRow().Scan(&lines[i].ID); err != nil {
			return errors.Wrapf(err, "insert line for product %d", lines[i].ProductID)
		}
	}
	return nil
}
