package account

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/go-faster/errors"
)

// ErrUnauthenticated is returned for a missing, unknown or revoked token.
var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator resolves bearer tokens to accounts. Tokens are stored as
// hex HMAC-SHA256 digests keyed by a server-side pepper.
type Authenticator struct {
	tokens Repository
	pepper []byte
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(tokens Repository, pepper []byte) *Authenticator {
	return &Authenticator{
		tokens: tokens,
		pepper: pepper,
	}
}

// HashToken returns the storage form of token.
func HashToken(pepper []byte, token string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// Authenticate returns the account owning token.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Account, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	hash := HashToken(a.pepper, token)

	stored, err := a.tokens.FindByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, errors.Wrap(err, "find token")
	}

	// The row came back by hash equality; compare again in constant time so
	// a repository returning the wrong row can never authenticate.
	want, err := hex.DecodeString(stored.Hash)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	got, _ := hex.DecodeString(hash)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return nil, ErrUnauthenticated
	}

	acc := stored.Account
	return &acc, nil
}

type ctxKey struct{}

// WithAccount returns a context carrying acc.
func WithAccount(ctx context.Context, acc *Account) context.Context {
	return context.WithValue(ctx, ctxKey{}, acc)
}

// FromContext returns the account stored by WithAccount.
func FromContext(ctx context.Context) (*Account, bool) {
	acc, ok := ctx.Value(ctxKey{}).(*Account)
	return acc, ok && acc != nil
}
