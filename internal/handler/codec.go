package handler

import (
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/order"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/pricing"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/validation"
)

// errMalformed marks bodies that are not the expected JSON shape.
var errMalformed = errors.New("malformed request body")

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(errMalformed, err.Error())
	}
	return body, nil
}

// decodeFields walks a JSON object, handing each field to fn. Decoder
// errors are reported as errMalformed.
func decodeFields(body []byte, fn func(d *jx.Decoder, key string) error) error {
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return errors.Wrap(errMalformed, "expected JSON object")
	}
	if err := d.Obj(fn); err != nil {
		return errors.Wrap(errMalformed, err.Error())
	}
	return nil
}

// str reads a string field, treating null as empty.
func str(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// number reads a JSON number or numeric string as a decimal. ok is false
// when the value is present but not numeric.
func number(d *jx.Decoder) (v decimal.Decimal, ok bool, err error) {
	switch d.Next() {
	case jx.Null:
		return decimal.Zero, true, d.Null()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, false, err
		}
		v, err := decimal.NewFromString(n.String())
		return v, err == nil, nil
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, false, err
		}
		v, err := decimal.NewFromString(s)
		return v, err == nil, nil
	default:
		return decimal.Zero, false, d.Skip()
	}
}

func decodeConsumerOrder(body []byte) (order.ConsumerOrderRequest, error) {
	var req order.ConsumerOrderRequest
	err := decodeFields(body, func(d *jx.Decoder, key string) error {
		var dst *string
		switch key {
		case "firstName":
			dst = &req.Contact.FirstName
		case "lastName":
			dst = &req.Contact.LastName
		case "email":
			dst = &req.Contact.Email
		case "phone":
			dst = &req.Contact.Phone
		case "address":
			dst = &req.Contact.Address
		case "city":
			dst = &req.Contact.City
		case "postalCode":
			dst = &req.Contact.PostalCode
		case "notes":
			dst = &req.Notes
		case "shippingMethod":
			dst = &req.ShippingMethod
		case "paymentMethod":
			dst = &req.PaymentMethod
		default:
			return d.Skip()
		}
		v, err := str(d)
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		*dst = v
		return nil
	})
	return req, err
}

// decodeBulkOrder reads a bulk order body. Item prices sent by the client
// are skipped: prices always come from the catalog.
func decodeBulkOrder(body []byte) (order.BulkOrderRequest, error) {
	var (
		req  order.BulkOrderRequest
		verr validation.Error
	)
	err := decodeFields(body, func(d *jx.Decoder, key string) error {
		var dst *string
		switch key {
		case "customerName":
			dst = &req.CustomerName
		case "customerEmail":
			dst = &req.CustomerEmail
		case "customerPhone":
			dst = &req.CustomerPhone
		case "customerAddress":
			dst = &req.CustomerAddress
		case "notes":
			dst = &req.Notes
		case "paymentMethod":
			dst = &req.PaymentMethod
		case "deliveryMethod":
			dst = &req.DeliveryMethod
		case "discount":
			v, ok, err := number(d)
			if err != nil {
				return errors.Wrap(err, "field \"discount\"")
			}
			if !ok {
				verr.Add("discount", "must be a number")
			}
			req.Discount = v
			return nil
		case "items":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeItem(d, len(req.Items), &verr)
				if err != nil {
					return err
				}
				req.Items = append(req.Items, item)
				return nil
			})
		default:
			return d.Skip()
		}
		v, err := str(d)
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		*dst = v
		return nil
	})
	if err != nil {
		return req, err
	}
	if err := verr.Err(); err != nil {
		return req, err
	}
	return req, nil
}

func decodeItem(d *jx.Decoder, i int, verr *validation.Error) (pricing.Item, error) {
	var item pricing.Item
	prefix := "items." + strconv.Itoa(i) + "."
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "productId", "quantity":
			v, ok, err := number(d)
			if err != nil {
				return errors.Wrapf(err, "field %q", key)
			}
			if !ok || !v.IsInteger() || v.Abs().GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
				verr.Add(prefix+key, "must be an integer")
				return nil
			}
			if key == "productId" {
				item.ProductID = v.IntPart()
			} else {
				item.Quantity = int(v.IntPart())
			}
			return nil
		default:
			return d.Skip()
		}
	})
	return item, err
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func money(e *jx.Encoder, v decimal.Decimal) {
	e.Raw([]byte(v.StringFixed(pricing.Scale)))
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(o.ID)
	e.FieldStart("orderNumber")
	e.Str(o.Number)
	e.FieldStart("kind")
	e.Str(string(o.Kind))
	e.FieldStart("status")
	e.Str(string(o.Status))

	e.FieldStart("customer")
	e.ObjStart()
	e.FieldStart("firstName")
	e.Str(o.Contact.FirstName)
	e.FieldStart("lastName")
	e.Str(o.Contact.LastName)
	e.FieldStart("email")
	e.Str(o.Contact.Email)
	e.FieldStart("phone")
	e.Str(o.Contact.Phone)
	e.FieldStart("address")
	e.Str(o.Contact.Address)
	e.FieldStart("city")
	e.Str(o.Contact.City)
	e.FieldStart("postalCode")
	e.Str(o.Contact.PostalCode)
	e.ObjEnd()

	e.FieldStart("notes")
	e.Str(o.Notes)
	e.FieldStart("shippingMethod")
	e.Str(o.ShippingMethod)
	e.FieldStart("paymentMethod")
	e.Str(o.PaymentMethod)
	e.FieldStart("subtotal")
	money(e, o.Subtotal)
	e.FieldStart("discount")
	money(e, o.Discount)
	e.FieldStart("total")
	money(e, o.Total)

	e.FieldStart("items")
	e.ArrStart()
	for _, l := range o.Lines {
		e.ObjStart()
		e.FieldStart("id")
		e.Int64(l.ID)
		e.FieldStart("productId")
		e.Int64(l.ProductID)
		e.FieldStart("productName")
		e.Str(l.ProductName)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("unitPrice")
		money(e, l.UnitPrice)
		e.FieldStart("total")
		money(e, l.LineTotal)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("createdAt")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
}

func writeOrder(w http.ResponseWriter, status int, message string, o *order.Order) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		if message != "" {
			e.FieldStart("message")
			e.Str(message)
		}
		e.FieldStart("order")
		encodeOrder(e, o)
		e.ObjEnd()
	})
}

func writePage(w http.ResponseWriter, p *order.Page) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("orders")
		e.ArrStart()
		for i := range p.Orders {
			encodeOrder(e, &p.Orders[i])
		}
		e.ArrEnd()
		e.FieldStart("page")
		e.Int(p.Page)
		e.FieldStart("pageSize")
		e.Int(order.PageSize)
		e.FieldStart("total")
		e.Int(p.Total)
		e.ObjEnd()
	})
}

func writeDashboard(w http.ResponseWriter, d *order.Dashboard) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("statistics")
		e.ObjStart()
		e.FieldStart("totalSales")
		money(e, d.TotalSales)
		e.FieldStart("totalOrders")
		e.Int(d.TotalOrders)
		e.FieldStart("pendingOrders")
		e.Int(d.PendingOrders)
		e.FieldStart("totalClients")
		e.Int(d.TotalClients)
		e.ObjEnd()

		e.FieldStart("recentOrders")
		e.ArrStart()
		for i := range d.RecentOrders {
			encodeOrder(e, &d.RecentOrders[i])
		}
		e.ArrEnd()

		e.FieldStart("salesByMonth")
		e.ArrStart()
		for _, m := range d.SalesByMonth {
			e.ObjStart()
			e.FieldStart("month")
			e.Str(m.Month.UTC().Format("2006-01"))
			e.FieldStart("total")
			money(e, m.Total)
			e.ObjEnd()
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}
