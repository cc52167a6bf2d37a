package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/cart"
)

// Kind tells consumer checkouts and wholesale bulk orders apart.
type Kind string

const (
	KindConsumer Kind = "consumer"
	KindBulk     Kind = "bulk"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Contact is the delivery contact recorded on an order.
type Contact struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Address    string
	City       string
	PostalCode string
}

// Order is a persisted order with its lines.
type Order struct {
	ID             int64
	Number         string
	Kind           Kind
	OwnerID        int64
	Contact        Contact
	Notes          string
	ShippingMethod string
	PaymentMethod  string
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	Status         Status
	Lines          []Line
	CreatedAt      time.Time
}

// Line is one product on an order. ProductName and UnitPrice are captured
// when the order is placed and do not follow later catalog changes.
type Line struct {
	ID          int64
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// PageSize is the number of orders returned per list page.
const PageSize = 20

// ListFilter selects orders owned by one account.
type ListFilter struct {
	OwnerID int64
	Kind    Kind
	Status  Status
	// Search matches customer name, email or order number, case-insensitively.
	Search string
	// Page is 1-based.
	Page int
}

// Page is one page of a listing.
type Page struct {
	Orders []Order
	Total  int
	Page   int
}

// Dashboard sizes.
const (
	DashboardRecentOrders = 10
	DashboardMonths       = 6
)

// MonthlySales is the revenue of one calendar month.
type MonthlySales struct {
	Month time.Time
	Total decimal.Decimal
}

// Dashboard summarises a b2b account's bulk orders and clients. Cancelled
// orders count towards TotalOrders but not towards any sales figure.
type Dashboard struct {
	TotalSales    decimal.Decimal
	TotalOrders   int
	PendingOrders int
	TotalClients  int
	// RecentOrders holds the newest bulk orders with their lines.
	RecentOrders []Order
	// SalesByMonth holds the most recent months with sales, newest first.
	SalesByMonth []MonthlySales
}

// Tx is the unit of work the assembler runs in. Every method observes and
// modifies the same database transaction.
type Tx interface {
	// LockCart reads the account's cart and locks its rows until the
	// transaction ends.
	LockCart(ctx context.Context, accountID int64) ([]cart.Line, error)
	ClearCart(ctx context.Context, accountID int64) error
	NextSequence(ctx context.Context, name string) (int64, error)
	// InsertOrder stores o and sets its ID and CreatedAt. A clashing order
	// number yields ErrDuplicateNumber and leaves the transaction usable.
	InsertOrder(ctx context.Context, o *Order) error
	// InsertLines stores lines for orderID and sets their IDs.
	InsertLines(ctx context.Context, orderID int64, lines []Line) error
}

// Store persists orders.
type Store interface {
	// WithinTx runs fn in a transaction that commits only if fn returns nil.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	GetByID(ctx context.Context, ownerID, id int64) (*Order, error)
	List(ctx context.Context, f ListFilter) (*Page, error)
	Dashboard(ctx context.Context, ownerID int64) (*Dashboard, error)
}
