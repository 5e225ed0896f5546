package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a BRL amount with exact decimal arithmetic.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{d: decimal.Zero}

// NewMoney parses a decimal string such as "100.00".
func NewMoney(value string) (Money, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Zero, fmt.Errorf("domain: invalid amount %q: %w", value, err)
	}
	return Money{d: d}, nil
}

// MustMoney is NewMoney for literals; it panics on malformed input.
func MustMoney(value string) Money {
	m, err := NewMoney(value)
	if err != nil {
		panic(err)
	}
	return m
}

// Add returns m + other.
func (m Money) Add(other Money) Money { return Money{d: m.d.Add(other.d)} }

// Sub returns m - other.
func (m Money) Sub(other Money) Money { return Money{d: m.d.Sub(other.d)} }

// Mul returns m multiplied by an integer quantity.
func (m Money) Mul(qty int) Money { return Money{d: m.d.Mul(decimal.NewFromInt(int64(qty)))} }

// Equal reports numeric equality regardless of scale ("15" == "15.00").
func (m Money) Equal(other Money) bool { return m.d.Equal(other.d) }

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.d.IsZero() }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.d.IsNegative() }

// Decimal exposes the underlying value.
func (m Money) Decimal() decimal.Decimal { return m.d }

// String renders the amount with two decimal places.
func (m Money) String() string { return m.d.StringFixed(2) }

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.StringFixed(2)), nil
}

// UnmarshalJSON accepts JSON numbers, numeric strings and null.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = Zero
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := NewMoney(s)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("domain: invalid amount %s: %w", string(data), err)
	}
	*m = Money{d: d}
	return nil
}
