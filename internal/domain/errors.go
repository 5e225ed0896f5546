package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies storefront failures so callers can react without string matching.
type Kind string

const (
	KindAuthRequired        Kind = "auth_required"
	KindOrderNotFound       Kind = "order_not_found"
	KindShippingUnavailable Kind = "shipping_unavailable"
	KindValidation          Kind = "validation_error"
	KindPaymentDeclined     Kind = "payment_declined"
	KindNetwork             Kind = "network_error"
	// KindSessionExpired is raised when the backend rejects the bearer token (401/403).
	KindSessionExpired Kind = "session_expired"
	// KindRemote covers any other non-success backend response.
	KindRemote Kind = "remote_error"
	// KindInvalidState is returned when an operation is not allowed in the current checkout step.
	KindInvalidState Kind = "invalid_state"
	// KindInFlight is returned when a submission is already running.
	KindInFlight Kind = "in_flight"
	// KindNotFound is a missing catalog resource.
	KindNotFound Kind = "not_found"
)

// Sentinels for errors.Is comparisons. Only the Kind is compared.
var (
	ErrAuthRequired        = &Error{Kind: KindAuthRequired}
	ErrOrderNotFound       = &Error{Kind: KindOrderNotFound}
	ErrShippingUnavailable = &Error{Kind: KindShippingUnavailable}
	ErrValidation          = &Error{Kind: KindValidation}
	ErrPaymentDeclined     = &Error{Kind: KindPaymentDeclined}
	ErrNetwork             = &Error{Kind: KindNetwork}
	ErrSessionExpired      = &Error{Kind: KindSessionExpired}
	ErrRemote              = &Error{Kind: KindRemote}
	ErrInvalidState        = &Error{Kind: KindInvalidState}
	ErrInFlight            = &Error{Kind: KindInFlight}
	ErrNotFound            = &Error{Kind: KindNotFound}
)

// FieldErrors maps form field names to a short machine-readable reason.
type FieldErrors map[string]string

// Fields returns the field names in stable order.
func (f FieldErrors) Fields() []string {
	out := make([]string, 0, len(f))
	for k := range f {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Error is the storefront error value.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	// Status carries the settlement status verbatim for declined payments.
	Status string
	Fields FieldErrors
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Fields.Fields(), ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == "" && t.Err == nil
}

// E builds a new error of the given kind.
func E(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap attaches a kind to an underlying cause.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation builds a ValidationError listing the offending fields.
func Validation(op string, fields FieldErrors) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: "invalid input", Fields: fields}
}

// KindOf returns the kind of the first *Error in the chain, or "" when none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the most specific human-readable message in the chain.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		if e.Err != nil {
			return MessageOf(e.Err)
		}
		return string(e.Kind)
	}
	return err.Error()
}

// FieldsOf returns validation details from the chain, if any.
func FieldsOf(err error) FieldErrors {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
