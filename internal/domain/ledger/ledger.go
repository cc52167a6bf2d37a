// Package ledger keeps per-client purchase statistics for wholesale accounts.
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Policy decides what happens when a bulk order names an unknown client.
type Policy string

const (
	// PolicyIgnore logs and counts the miss.
	PolicyIgnore Policy = "ignore"
	// PolicyCreate adds the client with the order's statistics.
	PolicyCreate Policy = "create"
)

// ParsePolicy validates a configured policy name. Empty means PolicyIgnore.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PolicyIgnore:
		return PolicyIgnore, nil
	case PolicyCreate:
		return PolicyCreate, nil
	default:
		return "", errors.Errorf("unknown client policy %q", s)
	}
}

// Entry is one committed bulk order to be folded into a client's statistics.
type Entry struct {
	OwnerID   int64
	Email     string
	Name      string
	Phone     string
	Address   string
	Total     decimal.Decimal
	OrderedAt time.Time
}

// Store applies entries atomically in SQL so concurrent orders for the same
// client never lose an increment.
type Store interface {
	// IncrementStats reports false when the owner has no client with the
	// entry's email.
	IncrementStats(ctx context.Context, e Entry) (bool, error)
	// UpsertClient creates the client, or increments it if it appeared
	// concurrently.
	UpsertClient(ctx context.Context, e Entry) error
}

// Recorder records ledger entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Service applies entries directly to the store.
type Service struct {
	store    Store
	policy   Policy
	lg       *zap.Logger
	notFound metric.Int64Counter
}

var _ Recorder = (*Service)(nil)

// NewService creates a ledger Service.
func NewService(store Store, policy Policy, lg *zap.Logger, meter metric.Meter) (*Service, error) {
	notFound, err := meter.Int64Counter("ledger.clients_not_found",
		metric.WithDescription("Bulk orders whose client is not in the owner's ledger"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create clients_not_found counter")
	}
	return &Service{
		store:    store,
		policy:   policy,
		lg:       lg,
		notFound: notFound,
	}, nil
}

// Record folds e into the matching client's statistics.
func (s *Service) Record(ctx context.Context, e Entry) error {
	e.Email = strings.TrimSpace(e.Email)
	found, err := s.store.IncrementStats(ctx, e)
	if err != nil {
		return errors.Wrap(err, "increment client stats")
	}
	if found {
		return nil
	}

	switch s.policy {
	case PolicyCreate:
		if err := s.store.UpsertClient(ctx, e); err != nil {
			return errors.Wrap(err, "create client")
		}
		s.lg.Info("Client created from order",
			zap.Int64("owner_id", e.OwnerID),
			zap.String("email", e.Email),
		)
	default:
		s.notFound.Add(ctx, 1)
		s.lg.Warn("Client not found",
			zap.Int64("owner_id", e.OwnerID),
			zap.String("email", e.Email),
		)
	}
	return nil
}
