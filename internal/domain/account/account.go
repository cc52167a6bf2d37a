package account

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when an account or token does not exist.
var ErrNotFound = errors.New("account not found")

// Type distinguishes retail customers from wholesale pharmacies.
type Type string

const (
	TypeConsumer Type = "b2c"
	TypeBusiness Type = "b2b"
)

// Valid reports whether t is a known account type.
func (t Type) Valid() bool {
	return t == TypeConsumer || t == TypeBusiness
}

// Account is an authenticated storefront account.
type Account struct {
	ID      int64
	Type    Type
	Name    string
	Email   string
	Company string
}

// IsBusiness reports whether the account may place bulk orders.
func (a Account) IsBusiness() bool {
	return a.Type == TypeBusiness
}

// Token is a stored access token and the account it belongs to.
type Token struct {
	Hash    string
	Account Account
}

// Repository provides account lookups.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Account, error)
	// FindByTokenHash returns the active token stored under hash.
	FindByTokenHash(ctx context.Context, hash string) (*Token, error)
}
