package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/account"
)

const (
	getAccountByIDSQL = `SELECT id, type, name, email, company
		FROM accounts WHERE id = $1`

	findTokenSQL = `SELECT t.token_hash, a.id, a.type, a.name, a.email, a.company
		FROM account_tokens t
		JOIN accounts a ON a.id = t.account_id
		WHERE t.token_hash = $1 AND t.active`

	createAccountSQL = `INSERT INTO accounts (type, name, email, company)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET type = EXCLUDED.type, name = EXCLUDED.name, company = EXCLUDED.company
		RETURNING id`

	createTokenSQL = `INSERT INTO account_tokens (token_hash, account_id)
		VALUES ($1, $2)
		ON CONFLICT (token_hash) DO UPDATE SET account_id = EXCLUDED.account_id, active = TRUE`
)

var _ account.Repository = (*AccountRepository)(nil)

// AccountRepository implements account.Repository backed by PostgreSQL.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository returns an AccountRepository that uses the given pool.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// GetByID returns an account by its identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*account.Account, error) {
	var a account.Account
	err := r.pool.QueryRow(ctx, getAccountByIDSQL, id).Scan(&a.ID, &a.Type, &a.Name, &a.Email, &a.Company)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get account %d", id)
	}
	return &a, nil
}

// FindByTokenHash looks up an active token by its HMAC-SHA256 hash.
func (r *AccountRepository) FindByTokenHash(ctx context.Context, hash string) (*account.Token, error) {
	var t account.Token
	err := r.pool.QueryRow(ctx, findTokenSQL, hash).Scan(
		&t.Hash,
		&t.Account.ID, &t.Account.Type, &t.Account.Name, &t.Account.Email, &t.Account.Company,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrNotFound
		}
		return nil, errors.Wrap(err, "find token by hash")
	}
	return &t, nil
}

// Register stores the account described by reg, replacing the profile of an
// existing account with the same email, and returns it with its id.
func (r *AccountRepository) Register(ctx context.Context, reg account.Registration) (*account.Account, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	a := reg.Account()
	if err := r.pool.QueryRow(ctx, createAccountSQL, a.Type, a.Name, a.Email, a.Company).Scan(&a.ID); err != nil {
		return nil, errors.Wrapf(err, "register account %q", a.Email)
	}
	return &a, nil
}

// IssueToken stores hash as an active token of accountID.
func (r *AccountRepository) IssueToken(ctx context.Context, accountID int64, hash string) error {
	if _, err := r.pool.Exec(ctx, createTokenSQL, hash, accountID); err != nil {
		return errors.Wrapf(err, "issue token for account %d", accountID)
	}
	return nil
}
