package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/account"
)

// Authenticator resolves bearer tokens to accounts.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*account.Account, error)
}

var _ Authenticator = (*account.Authenticator)(nil)

// requireAccount rejects requests without a valid bearer token and stores
// the caller's account in the request context.
func (h *Handler) requireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		token, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing bearer token", nil)
			return
		}

		acc, err := h.auth.Authenticate(ctx, token)
		if err != nil {
			if errors.Is(err, account.ErrUnauthenticated) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid token", nil)
				return
			}
			zctx.From(ctx).Error("Authenticate", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal", "internal error", nil)
			return
		}

		ctx = zctx.With(ctx, zap.Int64("account_id", acc.ID))
		next.ServeHTTP(w, r.WithContext(account.WithAccount(ctx, acc)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// caller returns the authenticated account; requireAccount guarantees it.
func caller(r *http.Request) *account.Account {
	acc, ok := account.FromContext(r.Context())
	if !ok {
		panic("handler: route registered without requireAccount")
	}
	return acc
}
