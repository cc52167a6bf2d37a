package order

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/account"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/pricing"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/validation"
)

// ConsumerOrderRequest checks out the account's cart.
type ConsumerOrderRequest struct {
	AccountID      int64
	Contact        Contact
	Notes          string
	ShippingMethod string
	PaymentMethod  string
}

// Validate checks field formats. It does not look at the cart.
func (r ConsumerOrderRequest) Validate() error {
	var v validation.Error
	if v.Required("firstName", r.Contact.FirstName) {
		v.MaxLen("firstName", r.Contact.FirstName, 255)
	}
	if v.Required("lastName", r.Contact.LastName) {
		v.MaxLen("lastName", r.Contact.LastName, 255)
	}
	if v.Required("email", r.Contact.Email) {
		v.Email("email", r.Contact.Email)
	}
	if v.Required("phone", r.Contact.Phone) {
		v.MaxLen("phone", r.Contact.Phone, 20)
	}
	v.Required("address", r.Contact.Address)
	if v.Required("city", r.Contact.City) {
		v.MaxLen("city", r.Contact.City, 255)
	}
	v.MaxLen("postalCode", r.Contact.PostalCode, 10)
	v.Required("shippingMethod", r.ShippingMethod)
	v.Required("paymentMethod", r.PaymentMethod)
	return v.Err()
}

// BulkOrderRequest places a wholesale order on behalf of a client.
type BulkOrderRequest struct {
	Account         account.Account
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	CustomerAddress string
	Items           []pricing.Item
	Notes           string
	PaymentMethod   string
	DeliveryMethod  string
	Discount        decimal.Decimal
}

// Validate checks field formats. An empty item list is reported separately
// as EmptyOrderError.
func (r BulkOrderRequest) Validate() error {
	var v validation.Error
	if v.Required("customerName", r.CustomerName) {
		v.MaxLen("customerName", r.CustomerName, 255)
	}
	if v.Required("customerEmail", r.CustomerEmail) {
		v.Email("customerEmail", r.CustomerEmail)
	}
	if v.Required("customerPhone", r.CustomerPhone) {
		v.MaxLen("customerPhone", r.CustomerPhone, 20)
	}
	v.Required("customerAddress", r.CustomerAddress)
	v.Required("paymentMethod", r.PaymentMethod)
	v.Required("deliveryMethod", r.DeliveryMethod)
	if r.Discount.IsNegative() {
		v.Add("discount", "must not be negative")
	}
	for i, it := range r.Items {
		if it.Quantity < 1 {
			v.Add("items."+strconv.Itoa(i)+".quantity", "must be at least 1")
		}
		if it.ProductID < 1 {
			v.Add("items."+strconv.Itoa(i)+".productId", "is required")
		}
	}
	return v.Err()
}

// contact maps the single customer name of a bulk order onto the order
// contact. The whole name goes to FirstName.
func (r BulkOrderRequest) contact() Contact {
	return Contact{
		FirstName: r.CustomerName,
		Email:     r.CustomerEmail,
		Phone:     r.CustomerPhone,
		Address:   r.CustomerAddress,
	}
}
