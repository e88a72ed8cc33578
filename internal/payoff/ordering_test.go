package payoff

import (
	"slices"
	"testing"

	"payoff/internal/core"
)

func TestOrderers(t *testing.T) {
	debts := []core.Debt{
		debt("a", "500", "25", "10"),
		debt("b", "200", "25", "22"),
		debt("c", "500", "25", "22"),
		debt("d", "200", "25", "3"),
	}

	tests := []struct {
		method core.Method
		want   []int
	}{
		// equal balances (b/d, a/c) keep input order
		{core.Snowball, []int{1, 3, 0, 2}},
		// equal rates (b/c) keep input order
		{core.Avalanche, []int{1, 2, 0, 3}},
		{core.Custom, []int{0, 1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.method.String(), func(t *testing.T) {
			o, err := OrdererFor(tt.method)
			if err != nil {
				t.Fatalf("OrdererFor(%s): %v", tt.method, err)
			}
			got := o.Order(debts)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Order() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrdererFor_Unknown(t *testing.T) {
	if _, err := OrdererFor("random"); err == nil {
		t.Fatal("expected error for unknown method")
	}
}
