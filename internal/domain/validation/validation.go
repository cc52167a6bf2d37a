// Package validation collects field-level input errors.
package validation

import (
	"net/mail"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/go-faster/errors"
)

// Error reports one or more invalid input fields. Messages are keyed by the
// wire name of the field.
type Error struct {
	Fields map[string][]string
}

func (e *Error) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	b.WriteString("validation failed: ")
	for i, k := range keys {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Fields[k], ", "))
	}
	return b.String()
}

// Add records a message for field.
func (e *Error) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Has reports whether field has at least one message.
func (e *Error) Has(field string) bool {
	return len(e.Fields[field]) > 0
}

// Err returns e when any field failed and nil otherwise.
func (e *Error) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Field returns a single-field error.
func Field(field, msg string) *Error {
	e := &Error{}
	e.Add(field, msg)
	return e
}

// Required records a message when value is blank.
func (e *Error) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		e.Add(field, "is required")
		return false
	}
	return true
}

// MaxLen records a message when value exceeds n runes.
func (e *Error) MaxLen(field, value string, n int) bool {
	if utf8.RuneCountInString(value) > n {
		e.Add(field, "is too long")
		return false
	}
	return true
}

// Email records a message when value is not a single bare address.
func (e *Error) Email(field, value string) bool {
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		e.Add(field, "must be a valid email address")
		return false
	}
	return true
}

// OneOf records a message when value is not listed in allowed.
func (e *Error) OneOf(field, value string, allowed ...string) bool {
	if !slices.Contains(allowed, value) {
		e.Add(field, "must be one of "+strings.Join(allowed, ", "))
		return false
	}
	return true
}

// As extracts a validation error from err.
func As(err error) (*Error, bool) {
	var v *Error
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
