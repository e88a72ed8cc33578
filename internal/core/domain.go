package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Snowball  Method = "snowball"
	Avalanche Method = "avalanche"
	Custom    Method = "custom"
)

type (
	// Method selects how debts are prioritized for extra payment.
	Method string

	Debt struct {
		ID             string          `json:"id"`
		Name           string          `json:"name"`
		Balance        Money           `json:"balance"`
		MinimumPayment Money           `json:"minimumPayment"`
		InterestRate   decimal.Decimal `json:"interestRate"` // nominal APR in percent, 19.99 = 19.99%
		Type           string          `json:"type,omitempty"`
	}

	Strategy struct {
		Method       Method `json:"method"`
		ExtraPayment Money  `json:"extraPayment"`
	}
)

var (
	// ErrInvalidInput is the root of every validation failure. Use errors.Is.
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidAmount = errors.New("invalid amount")
)

// Upper bounds accepted by Validate.
var (
	MaxAmount       = NewMoney(decimal.New(1, 12))
	MaxInterestRate = decimal.NewFromInt(1000)
)

// ValidationError describes a rejected debt or strategy field.
type ValidationError struct {
	DebtID string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.DebtID != "" {
		return fmt.Sprintf("invalid input: debt %q: %s %s", e.DebtID, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// Methods lists the supported methods in their canonical order.
func Methods() []Method {
	return []Method{Snowball, Avalanche, Custom}
}

// ParseMethod normalizes user input into a Method.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", &ValidationError{Field: "method", Reason: fmt.Sprintf("must be one of %v", Methods())}
	}
	return m, nil
}

func (m Method) IsValid() bool {
	switch m {
	case Snowball, Avalanche, Custom:
		return true
	default:
		return false
	}
}

// ReallocatesFreedPayments reports whether a retired debt's minimum payment
// joins the extra pool. Custom plans keep the caller's amounts fixed.
func (m Method) ReallocatesFreedPayments() bool {
	return m == Snowball || m == Avalanche
}

func (m Method) String() string {
	return string(m)
}

func (d Debt) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if d.Balance.IsNegative() {
		return &ValidationError{DebtID: d.ID, Field: "balance", Reason: "must not be negative"}
	}
	if reason := checkAmount(d.Balance); reason != "" {
		return &ValidationError{DebtID: d.ID, Field: "balance", Reason: reason}
	}
	if d.MinimumPayment.IsNegative() {
		return &ValidationError{DebtID: d.ID, Field: "minimumPayment", Reason: "must not be negative"}
	}
	if reason := checkAmount(d.MinimumPayment); reason != "" {
		return &ValidationError{DebtID: d.ID, Field: "minimumPayment", Reason: reason}
	}
	if d.MinimumPayment.IsZero() && d.Balance.IsPositive() {
		return &ValidationError{DebtID: d.ID, Field: "minimumPayment", Reason: "must be positive while a balance is owed"}
	}
	if d.InterestRate.IsNegative() {
		return &ValidationError{DebtID: d.ID, Field: "interestRate", Reason: "must not be negative"}
	}
	if tooPrecise(d.InterestRate) {
		return &ValidationError{DebtID: d.ID, Field: "interestRate", Reason: fmt.Sprintf("must have at most %d decimals", MaxFractionDigits)}
	}
	if tooLarge(d.InterestRate, MaxInterestRate) {
		return &ValidationError{DebtID: d.ID, Field: "interestRate", Reason: fmt.Sprintf("must not exceed %s", MaxInterestRate)}
	}
	return nil
}

// UnmarshalJSON decodes a debt, parsing interestRate with the same
// positional-notation rules as Money. Unknown fields are rejected.
func (d *Debt) UnmarshalJSON(data []byte) error {
	type plain Debt
	var aux struct {
		*plain
		InterestRate json.RawMessage `json:"interestRate"`
	}
	aux.plain = (*plain)(d)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&aux); err != nil {
		return err
	}
	d.InterestRate = decimal.Decimal{}
	if len(aux.InterestRate) == 0 || string(aux.InterestRate) == "null" {
		return nil
	}
	rate, err := decodeDecimal(aux.InterestRate)
	if err != nil {
		return fmt.Errorf("interestRate: %w", err)
	}
	d.InterestRate = rate
	return nil
}

// checkAmount returns a reason when m is outside the accepted range.
// Precision is checked first so the magnitude comparison never rescales an
// extreme exponent.
func checkAmount(m Money) string {
	if tooPrecise(m.Decimal()) {
		return fmt.Sprintf("must have at most %d decimals", MaxFractionDigits)
	}
	if tooLarge(m.Decimal(), MaxAmount.Decimal()) {
		return fmt.Sprintf("must not exceed %s", MaxAmount)
	}
	return ""
}

func tooPrecise(d decimal.Decimal) bool {
	switch exp := d.Exponent(); {
	case exp >= -MaxFractionDigits || d.IsZero():
		return false
	case exp < -4*MaxFractionDigits:
		return true
	default:
		return !d.Equal(d.Truncate(MaxFractionDigits))
	}
}

func tooLarge(d, limit decimal.Decimal) bool {
	if d.IsZero() {
		return false
	}
	if d.Exponent() > 2*maxIntegerDigits {
		return true
	}
	return d.GreaterThan(limit)
}

// IsPaidOff reports whether the debt has nothing left to simulate.
func (d Debt) IsPaidOff() bool {
	return !d.Balance.IsPositive()
}

// MonthlyInterest is one month of interest on the current balance.
func (d Debt) MonthlyInterest() decimal.Decimal {
	return MonthlyInterest(d.Balance.Decimal(), d.InterestRate)
}

// CoversInterest reports whether the minimum payment outpaces the first
// month's interest. When it does not, the balance never shrinks on minimums alone.
func (d Debt) CoversInterest() bool {
	if d.IsPaidOff() {
		return true
	}
	return d.MinimumPayment.Decimal().GreaterThan(d.MonthlyInterest())
}

func (s Strategy) Validate() error {
	if !s.Method.IsValid() {
		return &ValidationError{Field: "method", Reason: fmt.Sprintf("%q must be one of %v", s.Method, Methods())}
	}
	if s.ExtraPayment.IsNegative() {
		return &ValidationError{Field: "extraPayment", Reason: "must not be negative"}
	}
	if reason := checkAmount(s.ExtraPayment); reason != "" {
		return &ValidationError{Field: "extraPayment", Reason: reason}
	}
	return nil
}

// ValidateDebts checks every debt and that ids are unique within the set.
func ValidateDebts(debts []Debt) error {
	seen := make(map[string]struct{}, len(debts))
	for _, d := range debts {
		if err := d.Validate(); err != nil {
			return err
		}
		if _, dup := seen[d.ID]; dup {
			return &ValidationError{DebtID: d.ID, Field: "id", Reason: "is duplicated"}
		}
		seen[d.ID] = struct{}{}
	}
	return nil
}

var twelveHundred = decimal.NewFromInt(1200)

// MonthlyInterest returns balance * (apr / 100) / 12 without rounding the
// balance product. The division keeps decimal.DivisionPrecision digits.
func MonthlyInterest(balance, apr decimal.Decimal) decimal.Decimal {
	if apr.IsZero() || !balance.IsPositive() {
		return decimal.Zero
	}
	return balance.Mul(apr).Div(twelveHundred)
}
