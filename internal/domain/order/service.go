package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/account"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/cart"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/ledger"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/ordernum"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/pricing"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/product"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/validation"
)

// Config tunes the assembler.
type Config struct {
	// Timeout bounds each order transaction.
	Timeout time.Duration
	// NumberAttempts is how many order numbers are tried before giving up.
	NumberAttempts int
}

func (c *Config) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.NumberAttempts <= 0 {
		c.NumberAttempts = 5
	}
}

// Deps are the collaborators of Service. Ledger, Logger, Meter and Tracer
// are optional.
type Deps struct {
	Products        product.Repository
	Carts           cart.Reader
	Store           Store
	ConsumerNumbers ordernum.Generator
	BulkNumbers     ordernum.Generator
	Ledger          ledger.Recorder
	Logger          *zap.Logger
	Meter           metric.Meter
	Tracer          trace.Tracer
}

// Service assembles orders from carts and bulk requests.
type Service struct {
	cfg             Config
	products        product.Repository
	carts           cart.Reader
	store           Store
	consumerNumbers ordernum.Generator
	bulkNumbers     ordernum.Generator
	ledger          ledger.Recorder
	lg              *zap.Logger
	tracer          trace.Tracer

	created       metric.Int64Counter
	failed        metric.Int64Counter
	numberRetries metric.Int64Counter
}

// NewService creates an order Service.
func NewService(cfg Config, deps Deps) (*Service, error) {
	cfg.setDefaults()
	if deps.Products == nil || deps.Carts == nil || deps.Store == nil {
		return nil, errors.New("products, carts and store are required")
	}
	if deps.ConsumerNumbers == nil || deps.BulkNumbers == nil {
		return nil, errors.New("order number generators are required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Meter == nil {
		deps.Meter = metricnoop.NewMeterProvider().Meter("")
	}
	if deps.Tracer == nil {
		deps.Tracer = tracenoop.NewTracerProvider().Tracer("")
	}

	s := &Service{
		cfg:             cfg,
		products:        deps.Products,
		carts:           deps.Carts,
		store:           deps.Store,
		consumerNumbers: deps.ConsumerNumbers,
		bulkNumbers:     deps.BulkNumbers,
		ledger:          deps.Ledger,
		lg:              deps.Logger,
		tracer:          deps.Tracer,
	}
	var err error
	if s.created, err = deps.Meter.Int64Counter("orders.created",
		metric.WithDescription("Orders committed"),
	); err != nil {
		return nil, errors.Wrap(err, "create orders.created counter")
	}
	if s.failed, err = deps.Meter.Int64Counter("orders.failed",
		metric.WithDescription("Order attempts that did not commit"),
	); err != nil {
		return nil, errors.Wrap(err, "create orders.failed counter")
	}
	if s.numberRetries, err = deps.Meter.Int64Counter("orders.number_retries",
		metric.WithDescription("Order number collisions retried"),
	); err != nil {
		return nil, errors.Wrap(err, "create orders.number_retries counter")
	}
	return s, nil
}

// CreateConsumerOrder turns the account's cart into a pending order and
// empties the cart, all in one transaction.
func (s *Service) CreateConsumerOrder(ctx context.Context, req ConsumerOrderRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.CreateConsumerOrder",
		trace.WithAttributes(attribute.Int64("account.id", req.AccountID)),
	)
	defer func() { s.finish(ctx, span, KindConsumer, rerr) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Unlocked read so an empty cart never opens a transaction.
	pre, err := s.carts.Snapshot(ctx, req.AccountID)
	if err != nil {
		return nil, errors.Wrap(err, "read cart")
	}
	if len(pre) == 0 {
		return nil, &EmptyOrderError{Kind: KindConsumer}
	}

	o := &Order{
		Kind:           KindConsumer,
		OwnerID:        req.AccountID,
		Contact:        req.Contact,
		Notes:          req.Notes,
		ShippingMethod: req.ShippingMethod,
		PaymentMethod:  req.PaymentMethod,
		Status:         StatusPending,
	}
	if err := s.inTx(ctx, func(ctx context.Context, tx Tx) error {
		// The cart may have been checked out concurrently since the
		// snapshot, so only the locked read counts.
		lines, err := tx.LockCart(ctx, req.AccountID)
		if err != nil {
			return errors.Wrap(err, "lock cart")
		}
		if len(lines) == 0 {
			return &EmptyOrderError{Kind: KindConsumer}
		}
		quote, err := s.quote(ctx, cart.Items(lines), decimal.Zero)
		if err != nil {
			return err
		}
		if err := s.persist(ctx, tx, o, quote, s.consumerNumbers); err != nil {
			return err
		}
		if err := tx.ClearCart(ctx, req.AccountID); err != nil {
			return errors.Wrap(err, "clear cart")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	s.lg.Info("Consumer order created",
		zap.String("order_number", o.Number),
		zap.Int64("account_id", o.OwnerID),
		zap.String("total", o.Total.StringFixed(pricing.Scale)),
	)
	return o, nil
}

// CreateBulkOrder places a wholesale order for a b2b account. The client
// ledger is updated after commit; its failures never fail the order.
func (s *Service) CreateBulkOrder(ctx context.Context, req BulkOrderRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.CreateBulkOrder",
		trace.WithAttributes(attribute.Int64("account.id", req.Account.ID)),
	)
	defer func() { s.finish(ctx, span, KindBulk, rerr) }()

	if !req.Account.IsBusiness() {
		return nil, &AuthorizationError{AccountID: req.Account.ID, Reason: "bulk orders require a b2b account"}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, &EmptyOrderError{Kind: KindBulk}
	}

	quote, err := s.quote(ctx, req.Items, req.Discount)
	if err != nil {
		return nil, err
	}

	o := &Order{
		Kind:           KindBulk,
		OwnerID:        req.Account.ID,
		Contact:        req.contact(),
		Notes:          req.Notes,
		ShippingMethod: req.DeliveryMethod,
		PaymentMethod:  req.PaymentMethod,
		Status:         StatusPending,
	}
	if err := s.inTx(ctx, func(ctx context.Context, tx Tx) error {
		return s.persist(ctx, tx, o, quote, s.bulkNumbers)
	}); err != nil {
		return nil, err
	}

	s.lg.Info("Bulk order created",
		zap.String("order_number", o.Number),
		zap.Int64("account_id", o.OwnerID),
		zap.String("total", o.Total.StringFixed(pricing.Scale)),
	)
	s.recordLedger(ctx, o)
	return o, nil
}

// GetOrder returns an order owned by accountID.
func (s *Service) GetOrder(ctx context.Context, accountID, id int64) (*Order, error) {
	o, err := s.store.GetByID(ctx, accountID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %d", id)
	}
	return o, nil
}

// ListOrders returns one page of the owner's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, f ListFilter) (*Page, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, validation.Field("status", "is not a known order status")
	}
	if f.Page < 1 {
		f.Page = 1
	}
	f.Search = strings.TrimSpace(f.Search)

	p, err := s.store.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return p, nil
}

// Dashboard returns the bulk-order statistics of a b2b account.
func (s *Service) Dashboard(ctx context.Context, acc account.Account) (*Dashboard, error) {
	ctx, span := s.tracer.Start(ctx, "order.Dashboard",
		trace.WithAttributes(attribute.Int64("account.id", acc.ID)),
	)
	defer span.End()

	if !acc.IsBusiness() {
		return nil, &AuthorizationError{AccountID: acc.ID, Reason: "dashboard requires a b2b account"}
	}
	d, err := s.store.Dashboard(ctx, acc.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dashboard")
		return nil, errors.Wrap(err, "dashboard")
	}
	return d, nil
}

func (s *Service) quote(ctx context.Context, items []pricing.Item, discount decimal.Decimal) (*pricing.Breakdown, error) {
	products, err := s.products.GetByIDs(ctx, pricing.ProductIDs(items))
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	return pricing.Quote(items, product.Index(products), discount)
}

// persist numbers o, stores it and its lines.
func (s *Service) persist(ctx context.Context, tx Tx, o *Order, quote *pricing.Breakdown, gen ordernum.Generator) error {
	o.Subtotal = quote.Subtotal
	o.Discount = quote.Discount
	o.Total = quote.Total
	o.Lines = make([]Line, len(quote.Lines))
	for i, l := range quote.Lines {
		o.Lines[i] = Line{
			ProductID:   l.Product.ID,
			ProductName: l.Product.Name,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			LineTotal:   l.LineTotal,
		}
	}

	if err := s.insertNumbered(ctx, tx, o, gen); err != nil {
		return err
	}
	if err := tx.InsertLines(ctx, o.ID, o.Lines); err != nil {
		return errors.Wrap(err, "insert order lines")
	}
	return nil
}

func (s *Service) insertNumbered(ctx context.Context, tx Tx, o *Order, gen ordernum.Generator) error {
	for attempt := 1; attempt <= s.cfg.NumberAttempts; attempt++ {
		number, err := gen.Next(ctx, tx)
		if err != nil {
			return errors.Wrap(err, "generate order number")
		}
		o.Number = number

		err = tx.InsertOrder(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicateNumber) {
			return errors.Wrap(err, "insert order")
		}
		s.numberRetries.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(o.Kind))))
		s.lg.Debug("Order number collision",
			zap.String("order_number", number),
			zap.Int("attempt", attempt),
		)
	}
	return &OrderNumberExhaustedError{Attempts: s.cfg.NumberAttempts}
}

// inTx runs fn under the configured timeout and maps an expired deadline to
// TransactionTimeoutError.
func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	txCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	err := s.store.WithinTx(txCtx, fn)
	if err == nil {
		return nil
	}
	if failureReason(err) != "internal" {
		return err
	}
	if errors.Is(txCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return &TransactionTimeoutError{Err: err}
	}
	return err
}

func (s *Service) recordLedger(ctx context.Context, o *Order) {
	if s.ledger == nil {
		return
	}
	entry := ledger.Entry{
		OwnerID:   o.OwnerID,
		Email:     o.Contact.Email,
		Name:      o.Contact.FirstName,
		Phone:     o.Contact.Phone,
		Address:   o.Contact.Address,
		Total:     o.Total,
		OrderedAt: o.CreatedAt,
	}
	// The order is committed; a cancelled request must not skip the update.
	if err := s.ledger.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.lg.Warn("Ledger update failed",
			zap.String("order_number", o.Number),
			zap.Int64("account_id", o.OwnerID),
			zap.Error(err),
		)
	}
}

func (s *Service) finish(ctx context.Context, span trace.Span, kind Kind, err error) {
	defer span.End()
	kindAttr := attribute.String("kind", string(kind))
	if err == nil {
		s.created.Add(ctx, 1, metric.WithAttributes(kindAttr))
		return
	}

	reason := failureReason(err)
	s.failed.Add(ctx, 1, metric.WithAttributes(kindAttr, attribute.String("reason", reason)))
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	if reason == "internal" || reason == "number_exhausted" {
		s.lg.Error("Order creation failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}
