// Package core provides money parsing and handling utilities.
//
// This file contains the fixed-point Money type used for balances, payments
// and interest. Arithmetic never rounds; values are truncated to cents only
// when formatted for display or serialized.
package core

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Epsilon is the balance at or below which a debt counts as paid off.
var Epsilon = decimal.New(1, -2)

// Money is an exact decimal amount in a single currency.
type Money struct {
	d decimal.Decimal
}

// NewMoney wraps a decimal value.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d}
}

// MoneyFromCents builds a Money from an integer number of cents.
func MoneyFromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -2)}
}

// MustParseMoney is ParseMoney for literals in tests and fixtures. It panics on error.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseMoney converts a decimal string to Money without any rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Zero is
// allowed (a paid-off balance, no extra payment). Signs, exponents and
// anything that is not digits plus one separator are rejected.
//
// Examples:
//   ParseMoney("12.34")  -> 12.34, nil
//   ParseMoney("12,34")  -> 12.34, nil
//   ParseMoney("12.345") -> 12.345, nil (kept exact)
//   ParseMoney("-1")     -> ErrInvalidAmount
func ParseMoney(s string) (Money, error) {
	d, err := parseDecimal(s, false)
	if err != nil {
		return Money{}, err
	}
	return Money{d: d}, nil
}

// Limits on the textual form of amounts and rates. They keep every decimal
// the engine sees small enough that per-month arithmetic stays cheap.
const (
	MaxFractionDigits = 8
	maxIntegerDigits  = 15
)

// parseDecimal accepts plain positional notation only: optional sign (when
// signed is true), digits, and at most one dot or comma separator.
func parseDecimal(s string, signed bool) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	neg := false
	if signed && s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	if s == "" {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	if parts[0] == "" && (len(parts) == 1 || parts[1] == "") {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	for _, p := range parts {
		for _, r := range p {
			if r < '0' || r > '9' {
				return decimal.Decimal{}, ErrInvalidAmount
			}
		}
	}
	if len(strings.TrimLeft(parts[0], "0")) > maxIntegerDigits {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	if len(parts) == 2 && len(parts[1]) > MaxFractionDigits {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	if parts[0] == "" {
		s = "0" + s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// ParseRate parses an annual percentage rate with the same rules as
// ParseMoney, except that a sign is accepted so Validate can report it.
func ParseRate(s string) (decimal.Decimal, error) {
	return parseDecimal(s, true)
}

// Decimal returns the underlying exact value.
func (m Money) Decimal() decimal.Decimal {
	return m.d
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{d: m.d.Add(o.d)}
}

// Sub returns m - o.
func (m Money) Sub(o Money) Money {
	return Money{d: m.d.Sub(o.d)}
}

func (m Money) IsZero() bool     { return m.d.IsZero() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }
func (m Money) IsPositive() bool { return m.d.IsPositive() }

// Cmp compares m and o: -1 if m < o, 0 if equal, +1 if m > o.
func (m Money) Cmp(o Money) int {
	return m.d.Cmp(o.d)
}

// Equal reports whether m and o are exactly equal.
func (m Money) Equal(o Money) bool {
	return m.d.Equal(o.d)
}

// Cents returns the value truncated to whole cents.
func (m Money) Cents() int64 {
	return m.d.Shift(2).Truncate(0).IntPart()
}

// String formats the value truncated (not rounded) to two decimals.
func (m Money) String() string {
	return m.d.Truncate(2).StringFixed(2)
}

// MarshalJSON renders the display value as a JSON string, e.g. "1234.56".
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// GobEncode keeps the exact value. Caches use it where the JSON form would
// truncate to cents.
func (m Money) GobEncode() ([]byte, error) {
	return m.d.GobEncode()
}

func (m *Money) GobDecode(data []byte) error {
	return m.d.GobDecode(data)
}

// UnmarshalJSON accepts a JSON number or a string in plain positional
// notation. Exponents and more than MaxFractionDigits decimals are rejected;
// a sign is kept so validation can report it.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Money{}
		return nil
	}
	d, err := decodeDecimal(data)
	if err != nil {
		return err
	}
	m.d = d
	return nil
}

func decodeDecimal(data []byte) (decimal.Decimal, error) {
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return decimal.Decimal{}, err
		}
	} else {
		s = string(data)
	}
	return parseDecimal(s, true)
}
