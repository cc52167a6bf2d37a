package handler

import (
	"net/http"
	"strconv"

	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/order"
)

// CreateOrder checks out the caller's cart.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	req, err := decodeConsumerOrder(body)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	req.AccountID = caller(r).ID

	o, err := h.orders.CreateConsumerOrder(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeOrder(w, http.StatusCreated, "order created", o)
}

// CreateBulkOrder places a wholesale order for a b2b caller.
func (h *Handler) CreateBulkOrder(w http.ResponseWriter, r *http.Request) {
	acc := caller(r)
	if !acc.IsBusiness() {
		// Non-b2b callers are rejected before the body is read.
		writeDomainError(w, r, &order.AuthorizationError{AccountID: acc.ID, Reason: "b2b access only"})
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	req, err := decodeBulkOrder(body)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	req.Account = *acc

	o, err := h.orders.CreateBulkOrder(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeOrder(w, http.StatusCreated, "bulk order created", o)
}

// GetOrder returns one of the caller's orders.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusNotFound, "not_found", order.ErrNotFound.Error(), nil)
		return
	}

	o, err := h.orders.GetOrder(r.Context(), caller(r).ID, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, "", o)
}

// ListOrders returns the caller's consumer orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, order.KindConsumer)
}

// ListBulkOrders returns the b2b caller's bulk orders, optionally filtered
// by status and a search term.
func (h *Handler) ListBulkOrders(w http.ResponseWriter, r *http.Request) {
	acc := caller(r)
	if !acc.IsBusiness() {
		writeDomainError(w, r, &order.AuthorizationError{AccountID: acc.ID, Reason: "b2b access only"})
		return
	}
	h.list(w, r, order.KindBulk)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, kind order.Kind) {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	p, err := h.orders.ListOrders(r.Context(), order.ListFilter{
		OwnerID: caller(r).ID,
		Kind:    kind,
		Status:  order.Status(q.Get("status")),
		Search:  q.Get("search"),
		Page:    page,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writePage(w, p)
}

// Dashboard returns the b2b caller's bulk-order statistics.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.orders.Dashboard(r.Context(), *caller(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeDashboard(w, d)
}
