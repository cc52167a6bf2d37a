package order

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/pricing"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/validation"
)

var (
	// ErrNotFound is returned when an order does not exist or belongs to
	// another account.
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateNumber is reported by Tx.InsertOrder on an order number
	// clash.
	ErrDuplicateNumber = errors.New("duplicate order number")
)

type (
	// ValidationError reports invalid request fields.
	ValidationError = validation.Error
	// ProductNotFoundError names a product missing from the catalog.
	ProductNotFoundError = pricing.ProductNotFoundError
)

// EmptyOrderError indicates there was nothing to order.
type EmptyOrderError struct {
	Kind Kind
}

func (e *EmptyOrderError) Error() string {
	if e.Kind == KindConsumer {
		return "cart is empty"
	}
	return "order has no items"
}

// AuthorizationError indicates the account may not perform the operation.
type AuthorizationError struct {
	AccountID int64
	Reason    string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("account %d not authorized: %s", e.AccountID, e.Reason)
}

// OrderNumberExhaustedError indicates every generated number collided.
type OrderNumberExhaustedError struct {
	Attempts int
}

func (e *OrderNumberExhaustedError) Error() string {
	return fmt.Sprintf("order number collided %d times", e.Attempts)
}

// TransactionTimeoutError indicates the transaction did not finish in time.
type TransactionTimeoutError struct {
	Err error
}

func (e *TransactionTimeoutError) Error() string {
	return "order transaction timed out: " + e.Err.Error()
}

func (e *TransactionTimeoutError) Unwrap() error { return e.Err }

// Retryable reports that the caller may safely try again.
func (e *TransactionTimeoutError) Retryable() bool { return true }

// TransactionAbortedError indicates the database aborted the transaction,
// e.g. on a deadlock or serialization failure.
type TransactionAbortedError struct {
	Err error
}

func (e *TransactionAbortedError) Error() string {
	return "order transaction aborted: " + e.Err.Error()
}

func (e *TransactionAbortedError) Unwrap() error { return e.Err }

// Retryable reports that the caller may safely try again.
func (e *TransactionAbortedError) Retryable() bool { return true }

// failureReason labels err for the orders.failed counter.
func failureReason(err error) string {
	var (
		verr      *ValidationError
		pnf       *ProductNotFoundError
		empty     *EmptyOrderError
		authz     *AuthorizationError
		exhausted *OrderNumberExhaustedError
		timeout   *TransactionTimeoutError
		aborted   *TransactionAbortedError
	)
	switch {
	case errors.As(err, &verr):
		return "validation"
	case errors.As(err, &pnf):
		return "product_not_found"
	case errors.As(err, &empty):
		return "empty"
	case errors.As(err, &authz):
		return "authorization"
	case errors.As(err, &exhausted):
		return "number_exhausted"
	case errors.As(err, &timeout):
		return "timeout"
	case errors.As(err, &aborted):
		return "aborted"
	default:
		return "internal"
	}
}
