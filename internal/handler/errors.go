package handler

import (
	"net/http"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/order"
)

// writeError writes {"code","message","errors"}. fields may be nil.
func writeError(w http.ResponseWriter, status int, code, message string, fields map[string][]string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Str(code)
		e.FieldStart("message")
		e.Str(message)
		if len(fields) > 0 {
			keys := make([]string, 0, len(fields))
			for k := range fields {
				keys = append(keys, k)
			}
			slices.Sort(keys)

			e.FieldStart("errors")
			e.ObjStart()
			for _, k := range keys {
				e.FieldStart(k)
				e.ArrStart()
				for _, msg := range fields[k] {
					e.Str(msg)
				}
				e.ArrEnd()
			}
			e.ObjEnd()
		}
		e.ObjEnd()
	})
}

// writeDomainError maps domain errors to HTTP responses. Unexpected errors
// are logged and reported without detail.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr  *order.ValidationError
		pnf   *order.ProductNotFoundError
		empty *order.EmptyOrderError
		authz *order.AuthorizationError
	)
	switch {
	case errors.Is(err, errMalformed):
		writeError(w, http.StatusBadRequest, "malformed_request", err.Error(), nil)
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", "the given data was invalid", verr.Fields)
	case errors.As(err, &pnf):
		writeError(w, http.StatusUnprocessableEntity, "product_not_found", pnf.Error(),
			map[string][]string{"items": {pnf.Error()}})
	case errors.As(err, &empty):
		writeError(w, http.StatusBadRequest, "empty_order", empty.Error(), nil)
	case errors.As(err, &authz):
		writeError(w, http.StatusForbidden, "forbidden", "b2b access only", nil)
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", order.ErrNotFound.Error(), nil)
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		var retryable interface{ Retryable() bool }
		if errors.As(err, &retryable) && retryable.Retryable() {
			w.Header().Set("Retry-After", "1")
		}
		writeError(w, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}
