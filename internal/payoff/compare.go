package payoff

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"payoff/internal/core"
)

// Compare simulates the same debts under several methods in parallel.
//
// Every method gets its own copy of debts; runs share nothing. When methods
// is empty snowball and avalanche are compared. Best is the method with the
// least interest, then the fewest months, then the earliest in methods.
func Compare(ctx context.Context, debts []core.Debt, extra core.Money, methods ...core.Method) (core.Comparison, error) {
	if len(methods) == 0 {
		methods = []core.Method{core.Snowball, core.Avalanche}
	}
	for _, m := range methods {
		if err := (core.Strategy{Method: m, ExtraPayment: extra}).Validate(); err != nil {
			return core.Comparison{}, err
		}
	}
	if err := core.ValidateDebts(debts); err != nil {
		return core.Comparison{}, err
	}

	outputs := make([]core.SimulationOutput, len(methods))
	g, ctx := errgroup.WithContext(ctx)
	for i, m := range methods {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := Simulate(clone(debts), core.Strategy{Method: m, ExtraPayment: extra})
			if err != nil {
				return fmt.Errorf("compare %s: %w", m, err)
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return core.Comparison{}, err
	}

	cmp := core.Comparison{Outputs: make(map[core.Method]core.SimulationOutput, len(methods))}
	bestIdx := -1
	for i, m := range methods {
		cmp.Outputs[m] = outputs[i]
		if bestIdx < 0 || better(outputs[i].Aggregate, outputs[bestIdx].Aggregate) {
			bestIdx = i
		}
	}
	cmp.Best = methods[bestIdx]
	return cmp, nil
}

func better(a, b core.AggregateStats) bool {
	if c := a.TotalInterestPaid.Cmp(b.TotalInterestPaid); c != 0 {
		return c < 0
	}
	return a.TotalMonthsToPayoff < b.TotalMonthsToPayoff
}
