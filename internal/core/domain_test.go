package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func validDebt() Debt {
	return Debt{
		ID:             "card",
		Name:           "Visa",
		Balance:        MustParseMoney("1000"),
		MinimumPayment: MustParseMoney("50"),
		InterestRate:   decimal.RequireFromString("19.99"),
		Type:           "credit_card",
	}
}

func TestDebt_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Debt)
		wantErr bool
		field   string
	}{
		{name: "valid debt", mutate: func(*Debt) {}},
		{name: "paid off with zero minimum", mutate: func(d *Debt) {
			d.Balance = Money{}
			d.MinimumPayment = Money{}
		}},
		{name: "empty id", mutate: func(d *Debt) { d.ID = "  " }, wantErr: true, field: "id"},
		{name: "negative balance", mutate: func(d *Debt) { d.Balance = MoneyFromCents(-1) }, wantErr: true, field: "balance"},
		{name: "negative minimum", mutate: func(d *Debt) { d.MinimumPayment = MoneyFromCents(-100) }, wantErr: true, field: "minimumPayment"},
		{name: "zero minimum with balance", mutate: func(d *Debt) { d.MinimumPayment = Money{} }, wantErr: true, field: "minimumPayment"},
		{name: "negative rate", mutate: func(d *Debt) { d.InterestRate = decimal.NewFromInt(-1) }, wantErr: true, field: "interestRate"},
		{name: "rate at ceiling", mutate: func(d *Debt) { d.InterestRate = decimal.NewFromInt(1000) }},
		{name: "rate above ceiling", mutate: func(d *Debt) { d.InterestRate = decimal.RequireFromString("1000.01") }, wantErr: true, field: "interestRate"},
		{name: "rate with huge exponent", mutate: func(d *Debt) { d.InterestRate = decimal.New(1, 8000000) }, wantErr: true, field: "interestRate"},
		{name: "balance above ceiling", mutate: func(d *Debt) { d.Balance = MustParseMoney("1000000000000.01") }, wantErr: true, field: "balance"},
		{name: "balance too precise", mutate: func(d *Debt) { d.Balance = NewMoney(decimal.New(1, -8000000)) }, wantErr: true, field: "balance"},
		{name: "minimum too precise", mutate: func(d *Debt) { d.MinimumPayment = NewMoney(decimal.RequireFromString("50.000000001")) }, wantErr: true, field: "minimumPayment"},
		{name: "trailing zeros are not precision", mutate: func(d *Debt) { d.Balance = NewMoney(decimal.RequireFromString("1000.000000000000")) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDebt()
			tt.mutate(&d)
			err := d.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("expected field %q, got %v", tt.field, err)
			}
		})
	}
}

func TestValidateDebts_Duplicates(t *testing.T) {
	d := validDebt()
	if err := ValidateDebts([]Debt{d, d}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected duplicate id to be rejected, got %v", err)
	}
	other := validDebt()
	other.ID = "loan"
	if err := ValidateDebts([]Debt{d, other}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStrategy_Validate(t *testing.T) {
	if err := (Strategy{Method: Avalanche}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Strategy{Method: "random"}).Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected unknown method to be rejected, got %v", err)
	}
	if err := (Strategy{Method: Snowball, ExtraPayment: MoneyFromCents(-5)}).Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected negative extra to be rejected, got %v", err)
	}
	huge := NewMoney(decimal.New(1, 9000000))
	if err := (Strategy{Method: Snowball, ExtraPayment: huge}).Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected oversized extra to be rejected, got %v", err)
	}
}

func TestDebt_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		rate    string
	}{
		{name: "string rate", body: `{"id":"a","balance":"100","minimumPayment":"10","interestRate":"19.99"}`, rate: "19.99"},
		{name: "number rate", body: `{"id":"a","balance":100,"minimumPayment":10,"interestRate":5}`, rate: "5"},
		{name: "missing rate", body: `{"id":"a","balance":"100","minimumPayment":"10"}`, rate: "0"},
		{name: "negative rate kept for validation", body: `{"id":"a","balance":"1","minimumPayment":"1","interestRate":"-2"}`, rate: "-2"},
		{name: "exponent balance", body: `{"id":"a","balance":"1e-8000000","minimumPayment":"100","interestRate":"0"}`, wantErr: true},
		{name: "exponent number balance", body: `{"id":"a","balance":1e400,"minimumPayment":"100","interestRate":"0"}`, wantErr: true},
		{name: "exponent rate", body: `{"id":"a","balance":"1","minimumPayment":"1","interestRate":"1E+9000000"}`, wantErr: true},
		{name: "too many decimals", body: `{"id":"a","balance":"1.123456789","minimumPayment":"1","interestRate":"0"}`, wantErr: true},
		{name: "too many digits", body: `{"id":"a","balance":"1234567890123456","minimumPayment":"1","interestRate":"0"}`, wantErr: true},
		{name: "unknown field", body: `{"id":"a","balance":"1","minimumPayment":"1","apr":"5"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Debt
			err := json.Unmarshal([]byte(tt.body), &d)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if d.ID != "a" || d.InterestRate.String() != tt.rate {
				t.Errorf("decoded %+v, want rate %s", d, tt.rate)
			}
		})
	}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" Avalanche ")
	if err != nil || m != Avalanche {
		t.Fatalf("ParseMethod = %q, %v", m, err)
	}
	if _, err := ParseMethod("fastest"); err == nil {
		t.Fatal("expected error for unknown method")
	}
}

func TestDebt_CoversInterest(t *testing.T) {
	d := Debt{
		ID:             "loan",
		Balance:        MustParseMoney("10000"),
		MinimumPayment: MustParseMoney("150"),
		InterestRate:   decimal.NewFromInt(24),
	}
	// 10000 * 24% / 12 = 200 per month
	if got := d.MonthlyInterest(); !got.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("MonthlyInterest = %s, want 200", got)
	}
	if d.CoversInterest() {
		t.Fatal("minimum of 150 should not cover 200 of interest")
	}
	d.MinimumPayment = MustParseMoney("250")
	if !d.CoversInterest() {
		t.Fatal("minimum of 250 should cover 200 of interest")
	}
}

func TestMethod_ReallocatesFreedPayments(t *testing.T) {
	if !Snowball.ReallocatesFreedPayments() || !Avalanche.ReallocatesFreedPayments() {
		t.Fatal("snowball and avalanche reallocate freed payments")
	}
	if Custom.ReallocatesFreedPayments() {
		t.Fatal("custom keeps amounts fixed")
	}
}
