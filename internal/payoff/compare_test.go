package payoff

import (
	"context"
	"errors"
	"testing"

	"payoff/internal/core"
)

func TestCompare_DefaultMethods(t *testing.T) {
	cmp, err := Compare(context.Background(), portfolio(), core.MustParseMoney("200"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cmp.Outputs) != 2 {
		t.Fatalf("expected snowball and avalanche, got %d outputs", len(cmp.Outputs))
	}

	snow := cmp.Outputs[core.Snowball]
	aval := cmp.Outputs[core.Avalanche]
	// visa (19.99%) outranks the smaller store card (8.9%) under avalanche.
	if aval.Results[0].DebtID != "visa" || snow.Results[0].DebtID != "store" {
		t.Errorf("unexpected first payoffs: avalanche %s, snowball %s", aval.Results[0].DebtID, snow.Results[0].DebtID)
	}
	if aval.Aggregate.TotalInterestPaid.Cmp(snow.Aggregate.TotalInterestPaid) >= 0 {
		t.Errorf("avalanche interest %s should be below snowball %s", aval.Aggregate.TotalInterestPaid, snow.Aggregate.TotalInterestPaid)
	}
	if cmp.Best != core.Avalanche {
		t.Errorf("best = %s, want avalanche", cmp.Best)
	}
}

func TestCompare_MatchesSimulate(t *testing.T) {
	cmp, err := Compare(context.Background(), portfolio(), core.MustParseMoney("75"), core.Methods()...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, m := range core.Methods() {
		want, err := Simulate(portfolio(), core.Strategy{Method: m, ExtraPayment: core.MustParseMoney("75")})
		if err != nil {
			t.Fatalf("simulate %s: %v", m, err)
		}
		got := cmp.Outputs[m]
		if !got.Aggregate.TotalInterestPaid.Equal(want.Aggregate.TotalInterestPaid) ||
			got.Aggregate.TotalMonthsToPayoff != want.Aggregate.TotalMonthsToPayoff {
			t.Errorf("%s: parallel run %+v differs from sequential %+v", m, got.Aggregate, want.Aggregate)
		}
	}
}

func TestCompare_TieKeepsFirstMethod(t *testing.T) {
	// One debt: every method produces the same plan.
	debts := []core.Debt{debt("only", "1200", "100", "10")}
	cmp, err := Compare(context.Background(), debts, core.MustParseMoney("50"), core.Custom, core.Snowball)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmp.Best != core.Custom {
		t.Errorf("best = %s, want custom on a tie", cmp.Best)
	}
}

func TestCompare_InvalidInput(t *testing.T) {
	_, err := Compare(context.Background(), portfolio(), core.MoneyFromCents(-1))
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	_, err = Compare(context.Background(), portfolio(), core.Money{}, "fastest")
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCompare_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Compare(ctx, portfolio(), core.Money{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
