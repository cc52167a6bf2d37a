package handler

import (
	"context"
	"net/http"

	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/account"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/order"
)

// OrderService is the order use-case surface the HTTP layer depends on.
type OrderService interface {
	CreateConsumerOrder(ctx context.Context, req order.ConsumerOrderRequest) (*order.Order, error)
	CreateBulkOrder(ctx context.Context, req order.BulkOrderRequest) (*order.Order, error)
	GetOrder(ctx context.Context, accountID, id int64) (*order.Order, error)
	ListOrders(ctx context.Context, f order.ListFilter) (*order.Page, error)
	Dashboard(ctx context.Context, acc account.Account) (*order.Dashboard, error)
}

var _ OrderService = (*order.Service)(nil)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the order API.
type Handler struct {
	orders OrderService
	auth   Authenticator
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(orders OrderService, auth Authenticator) *Handler {
	return &Handler{
		orders: orders,
		auth:   auth,
	}
}

// Routes returns the API routes keyed by ServeMux pattern. Every route
// requires a bearer token.
func (h *Handler) Routes() map[string]http.Handler {
	routes := map[string]http.HandlerFunc{
		"POST /api/orders":         h.CreateOrder,
		"GET /api/orders":          h.ListOrders,
		"GET /api/orders/{id}":     h.GetOrder,
		"POST /api/b2b/orders":     h.CreateBulkOrder,
		"GET /api/b2b/orders":      h.ListBulkOrders,
		"GET /api/b2b/orders/{id}": h.GetOrder,
		"GET /api/b2b/dashboard":   h.Dashboard,
	}
	out := make(map[string]http.Handler, len(routes))
	for pattern, fn := range routes {
		out[pattern] = h.requireAccount(fn)
	}
	return out
}

// Register mounts the API routes on mux, passing each through wrap when it
// is not nil.
func (h *Handler) Register(mux *http.ServeMux, wrap func(pattern string, next http.Handler) http.Handler) {
	for pattern, handler := range h.Routes() {
		if wrap != nil {
			handler = wrap(pattern, handler)
		}
		mux.Handle(pattern, handler)
	}
}
