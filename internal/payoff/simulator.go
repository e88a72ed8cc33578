package payoff

import (
	"github.com/shopspring/decimal"

	"payoff/internal/core"
)

// MaxMonths caps every run at 50 years.
const MaxMonths = 600

// debtState is the running snapshot of one debt during a run.
type debtState struct {
	debt        core.Debt
	original    decimal.Decimal
	balance     decimal.Decimal
	minimum     decimal.Decimal
	rate        decimal.Decimal
	interest    decimal.Decimal // cumulative, tracked per month
	retired     bool
	payoffMonth int
}

// run is the outcome of one pass of the monthly loop.
type run struct {
	states     []*debtState // priority order
	retired    []*debtState // payoff order
	months     int
	hitCeiling bool
}

// project runs the monthly loop over debts that still carry a balance.
// debts must already be validated; they are read, never modified.
func project(debts []core.Debt, method core.Method, extra decimal.Decimal, maxMonths int) (*run, error) {
	orderer, err := OrdererFor(method)
	if err != nil {
		return nil, err
	}

	r := &run{
		states: make([]*debtState, 0, len(debts)),
	}
	for _, pos := range orderer.Order(debts) {
		d := debts[pos]
		st := &debtState{
			debt:     d,
			original: d.Balance.Decimal(),
			balance:  d.Balance.Decimal(),
			minimum:  d.MinimumPayment.Decimal(),
			rate:     d.InterestRate,
			interest: decimal.Zero,
		}
		r.states = append(r.states, st)
	}

	reallocate := method.ReallocatesFreedPayments()
	availableExtra := extra
	remaining := len(r.states)
	target := 0

	for month := 1; month <= maxMonths && remaining > 0; month++ {
		for target < len(r.states) && r.states[target].retired {
			target++
		}

		for i, st := range r.states {
			if st.retired {
				continue
			}

			interest := core.MonthlyInterest(st.balance, st.rate)
			st.balance = st.balance.Add(interest)
			st.interest = st.interest.Add(interest)

			payment := decimal.Min(st.minimum, st.balance)
			st.balance = st.balance.Sub(payment)

			// Extra only ever goes to the single current target.
			if i == target && availableExtra.IsPositive() {
				st.balance = st.balance.Sub(decimal.Min(availableExtra, st.balance))
			}
		}

		// Retire after every debt has been advanced, so freed minimums
		// only join the pool from the following month.
		freed := decimal.Zero
		for _, st := range r.states {
			if st.retired || st.balance.GreaterThan(core.Epsilon) {
				continue
			}
			st.retired = true
			st.payoffMonth = month
			r.retired = append(r.retired, st)
			remaining--
			if reallocate {
				freed = freed.Add(st.minimum)
			}
		}
		availableExtra = availableExtra.Add(freed)
		r.months = month
	}

	r.hitCeiling = remaining > 0
	return r, nil
}

// results lists paid-off debts in payoff order followed by the debts still
// open at the ceiling, in priority order.
func (r *run) results() []core.PayoffResult {
	out := make([]core.PayoffResult, 0, len(r.states))
	for _, st := range r.retired {
		out = append(out, st.result())
	}
	for _, st := range r.states {
		if !st.retired {
			out = append(out, st.result())
		}
	}
	return out
}

func (st *debtState) result() core.PayoffResult {
	res := core.PayoffResult{
		DebtID:               st.debt.ID,
		Name:                 st.debt.Name,
		Type:                 st.debt.Type,
		PaidOff:              st.retired,
		OriginalBalance:      core.NewMoney(st.original),
		TotalInterestPaid:    core.NewMoney(st.interest),
		TotalPaid:            core.NewMoney(st.original.Add(st.interest)),
		NegativeAmortization: !st.debt.CoversInterest(),
	}
	if st.retired {
		res.PayoffMonth = st.payoffMonth
	} else {
		// Only what was actually paid so far.
		res.RemainingBalance = core.NewMoney(st.balance)
		res.TotalPaid = core.NewMoney(st.original.Add(st.interest).Sub(st.balance))
	}
	return res
}

// aggregate reduces a run to its summary statistics.
func (r *run) aggregate() core.AggregateStats {
	stats := core.AggregateStats{HitCeiling: r.hitCeiling}
	interest := decimal.Zero
	paid := decimal.Zero
	for _, res := range r.results() {
		interest = interest.Add(res.TotalInterestPaid.Decimal())
		paid = paid.Add(res.TotalPaid.Decimal())
		if res.PaidOff && res.PayoffMonth > stats.TotalMonthsToPayoff {
			stats.TotalMonthsToPayoff = res.PayoffMonth
		}
	}
	if r.hitCeiling {
		stats.TotalMonthsToPayoff = r.months
	}
	stats.TotalInterestPaid = core.NewMoney(interest)
	stats.TotalPaid = core.NewMoney(paid)
	return stats
}
