package payoff

import (
	"fmt"

	"github.com/shopspring/decimal"

	"payoff/internal/core"
)

// Simulate projects the payoff of debts under strategy and compares it with
// the same method run without extra payment.
//
// Invalid input is rejected before any month is simulated and no partial
// output is returned. A plan that cannot finish within MaxMonths is not an
// error: it is reported through HitCeiling and Warnings.
func Simulate(debts []core.Debt, strategy core.Strategy) (core.SimulationOutput, error) {
	if err := strategy.Validate(); err != nil {
		return core.SimulationOutput{}, err
	}
	if err := core.ValidateDebts(debts); err != nil {
		return core.SimulationOutput{}, err
	}

	out := core.SimulationOutput{
		Method:       strategy.Method,
		ExtraPayment: strategy.ExtraPayment,
		Results:      []core.PayoffResult{},
	}

	// Zero balances are already settled and stay out of the loop.
	var open []core.Debt
	for _, d := range debts {
		if d.IsPaidOff() {
			out.Results = append(out.Results, settled(d))
			continue
		}
		open = append(open, d)
	}
	if len(open) == 0 {
		return out, nil
	}

	// Each pass builds its own state from fresh copies, so the baseline
	// never sees balances mutated by the accelerated run.
	actual, err := project(clone(open), strategy.Method, strategy.ExtraPayment.Decimal(), MaxMonths)
	if err != nil {
		return core.SimulationOutput{}, fmt.Errorf("simulate %s: %w", strategy.Method, err)
	}
	baseline, err := project(clone(open), strategy.Method, decimal.Zero, MaxMonths)
	if err != nil {
		return core.SimulationOutput{}, fmt.Errorf("simulate baseline: %w", err)
	}

	out.Results = append(out.Results, actual.results()...)
	out.Aggregate = actual.aggregate()
	out.Baseline = baseline.aggregate()
	out.HitCeiling = actual.hitCeiling
	out.Savings = savings(out.Baseline, out.Aggregate)
	out.Warnings = warnings(open, actual)

	return out, nil
}

func settled(d core.Debt) core.PayoffResult {
	return core.PayoffResult{
		DebtID:          d.ID,
		Name:            d.Name,
		Type:            d.Type,
		PaidOff:         true,
		OriginalBalance: d.Balance,
	}
}

func clone(debts []core.Debt) []core.Debt {
	out := make([]core.Debt, len(debts))
	copy(out, debts)
	return out
}

func savings(baseline, actual core.AggregateStats) core.Savings {
	s := core.Savings{}
	diff := baseline.TotalInterestPaid.Decimal().Sub(actual.TotalInterestPaid.Decimal())
	if diff.IsPositive() {
		s.InterestSaved = core.NewMoney(diff)
	}
	if months := baseline.TotalMonthsToPayoff - actual.TotalMonthsToPayoff; months > 0 {
		s.MonthsSaved = months
	}
	return s
}

func warnings(debts []core.Debt, r *run) []core.Warning {
	var out []core.Warning
	for _, d := range debts {
		if !d.CoversInterest() {
			out = append(out, core.Warning{
				DebtID: d.ID,
				Code:   core.WarningNegativeAmortization,
				Message: fmt.Sprintf("minimum payment %s does not cover monthly interest %s",
					d.MinimumPayment, core.NewMoney(d.MonthlyInterest())),
			})
		}
	}
	if r.hitCeiling {
		for _, st := range r.states {
			if st.retired {
				continue
			}
			out = append(out, core.Warning{
				DebtID:  st.debt.ID,
				Code:    core.WarningCeilingReached,
				Message: fmt.Sprintf("balance %s still owed after %d months", core.NewMoney(st.balance), r.months),
			})
		}
	}
	return out
}
