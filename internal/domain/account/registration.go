package account

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/validation"
)

// Registration is the input for opening an account. The concrete type
// decides which fields exist: only BusinessRegistration carries company data.
type Registration interface {
	// Type is the account type the registration opens.
	Type() Type
	// Validate reports every invalid field as a *validation.Error.
	Validate() error
	// Account is the account row to store, without an ID.
	Account() Account
	contact() Contact
}

// Contact holds the fields shared by every registration.
type Contact struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
	Address   string
	City      string
}

// ConsumerRegistration opens a retail account.
type ConsumerRegistration struct {
	Contact
}

// BusinessRegistration opens a wholesale pharmacy account.
type BusinessRegistration struct {
	Contact
	CompanyName   string
	TaxID         string
	LicenseNumber string
}

var (
	_ Registration = ConsumerRegistration{}
	_ Registration = BusinessRegistration{}
)

// Type returns TypeConsumer.
func (ConsumerRegistration) Type() Type { return TypeConsumer }

// Type returns TypeBusiness.
func (BusinessRegistration) Type() Type { return TypeBusiness }

func (r ConsumerRegistration) contact() Contact { return r.Contact }
func (r BusinessRegistration) contact() Contact { return r.Contact }

// Validate checks the contact fields.
func (r ConsumerRegistration) Validate() error {
	var v validation.Error
	r.Contact.validate(&v)
	return v.Err()
}

// Validate checks the contact fields and requires the company name, tax id
// and pharmacy licence number.
func (r BusinessRegistration) Validate() error {
	var v validation.Error
	r.Contact.validate(&v)
	if v.Required("companyName", r.CompanyName) {
		v.MaxLen("companyName", r.CompanyName, 255)
	}
	if v.Required("taxId", r.TaxID) {
		v.MaxLen("taxId", r.TaxID, 50)
	}
	if v.Required("licenseNumber", r.LicenseNumber) {
		v.MaxLen("licenseNumber", r.LicenseNumber, 50)
	}
	return v.Err()
}

// Account returns a consumer account named after the contact.
func (r ConsumerRegistration) Account() Account {
	return Account{Type: TypeConsumer, Name: r.Contact.fullName(), Email: r.Email}
}

// Account returns a business account carrying the company name.
func (r BusinessRegistration) Account() Account {
	return Account{Type: TypeBusiness, Name: r.Contact.fullName(), Email: r.Email, Company: r.CompanyName}
}

func (c Contact) fullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

func (c Contact) validate(v *validation.Error) {
	if v.Required("email", c.Email) {
		v.Email("email", c.Email)
	}
	if v.Required("firstName", c.FirstName) {
		v.MaxLen("firstName", c.FirstName, 255)
	}
	if v.Required("lastName", c.LastName) {
		v.MaxLen("lastName", c.LastName, 255)
	}
	v.MaxLen("phone", c.Phone, 20)
	v.MaxLen("city", c.City, 255)
}

// DecodeRegistration reads a registration object whose "type" field selects
// the variant. Business fields sent for a consumer account are rejected
// rather than silently dropped.
func DecodeRegistration(d *jx.Decoder) (Registration, error) {
	var (
		kind     string
		c        Contact
		business BusinessRegistration
		extra    []string
	)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var dst *string
		switch key {
		case "type":
			dst = &kind
		case "email":
			dst = &c.Email
		case "firstName":
			dst = &c.FirstName
		case "lastName":
			dst = &c.LastName
		case "phone":
			dst = &c.Phone
		case "address":
			dst = &c.Address
		case "city":
			dst = &c.City
		case "companyName":
			dst = &business.CompanyName
			extra = append(extra, key)
		case "taxId":
			dst = &business.TaxID
			extra = append(extra, key)
		case "licenseNumber":
			dst = &business.LicenseNumber
			extra = append(extra, key)
		default:
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		s, err := d.Str()
		if err != nil {
			return errors.Wrapf(err, "decode %q", key)
		}
		*dst = s
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode registration")
	}

	var r Registration
	switch Type(kind) {
	case TypeConsumer:
		if len(extra) > 0 {
			var v validation.Error
			for _, f := range extra {
				v.Add(f, "is only allowed for b2b accounts")
			}
			return nil, &v
		}
		r = ConsumerRegistration{Contact: c}
	case TypeBusiness:
		business.Contact = c
		r = business
	default:
		return nil, validation.Field("type", "must be one of b2c, b2b")
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
