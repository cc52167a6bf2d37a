package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/ledger"
)

const (
	// Single statement increments keep concurrent orders for one client
	// from losing updates.
	incrementClientSQL = `UPDATE clients
		SET total_orders    = total_orders + 1,
		    total_spent     = total_spent + $3,
		    last_order_date = GREATEST(COALESCE(last_order_date, $4::date), $4::date),
		    updated_at      = NOW()
		WHERE owner_id = $1 AND lower(email) = lower($2)`

	upsertClientSQL = `INSERT INTO clients
		(owner_id, name, email, phone, address, total_orders, total_spent, last_order_date)
		VALUES ($1, $2, $3, $4, $5, 1, $6, $7::date)
		ON CONFLICT (owner_id, lower(email)) DO UPDATE
		SET total_orders    = clients.total_orders + 1,
		    total_spent     = clients.total_spent + EXCLUDED.total_spent,
		    last_order_date = GREATEST(COALESCE(clients.last_order_date, EXCLUDED.last_order_date), EXCLUDED.last_order_date),
		    updated_at      = NOW()`

	createClientSQL = `INSERT INTO clients (owner_id, name, email, phone, address, city, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (owner_id, lower(email)) DO NOTHING`
)

var _ ledger.Store = (*ClientRepository)(nil)

// ClientRepository stores the per-owner client ledger.
type ClientRepository struct {
	pool *pgxpool.Pool
}

// NewClientRepository returns a ClientRepository that uses the given pool.
func NewClientRepository(pool *pgxpool.Pool) *ClientRepository {
	return &ClientRepository{pool: pool}
}

// IncrementStats adds one order of e.Total to the matching client.
func (r *ClientRepository) IncrementStats(ctx context.Context, e ledger.Entry) (bool, error) {
	tag, err := r.pool.Exec(ctx, incrementClientSQL, e.OwnerID, e.Email, e.Total, e.OrderedAt)
	if err != nil {
		return false, errors.Wrapf(err, "increment client %q", e.Email)
	}
	return tag.RowsAffected() > 0, nil
}

// UpsertClient creates a client seeded from e.
func (r *ClientRepository) UpsertClient(ctx context.Context, e ledger.Entry) error {
	_, err := r.pool.Exec(ctx, upsertClientSQL,
		e.OwnerID, e.Name, e.Email, e.Phone, e.Address, e.Total, e.OrderedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert client %q", e.Email)
	}
	return nil
}

// Client is a ledger row as maintained by operators.
type Client struct {
	OwnerID int64
	Name    string
	Email   string
	Phone   string
	Address string
	City    string
	Status  string
}

// CreateClient inserts c unless the owner already has a client with the
// same email.
func (r *ClientRepository) CreateClient(ctx context.Context, c Client) error {
	if c.Status == "" {
		c.Status = "active"
	}
	_, err := r.pool.Exec(ctx, createClientSQL, c.OwnerID, c.Name, c.Email, c.Phone, c.Address, c.City, c.Status)
	if err != nil {
		return errors.Wrapf(err, "create client %q", c.Email)
	}
	return nil
}
