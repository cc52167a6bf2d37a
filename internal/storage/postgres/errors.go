package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/order"
)

// PostgreSQL error codes the order transaction reacts to.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeQueryCanceled        = "57014"
	codeLockNotAvailable     = "55P03"
)

const orderNumberConstraint = "orders_order_number_key"

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == codeUniqueViolation &&
		pgErr.ConstraintName == constraint
}

// classifyTxError maps database failures to the retryable transaction
// errors. Anything else is returned unchanged.
func classifyTxError(err error) error {
	if err == nil {
		return nil
	}
	var (
		timeout *order.TransactionTimeoutError
		aborted *order.TransactionAbortedError
	)
	if errors.As(err, &timeout) || errors.As(err, &aborted) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeQueryCanceled, codeLockNotAvailable:
			return &order.TransactionTimeoutError{Err: err}
		case codeSerializationFailure, codeDeadlockDetected:
			return &order.TransactionAbortedError{Err: err}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return &order.TransactionTimeoutError{Err: err}
	}
	return err
}
