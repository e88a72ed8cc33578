// Package payoff projects multi-debt repayment month by month.
//
// This file implements the Strategy Pattern for payoff ordering. Each method
// (snowball, avalanche, custom) has its own orderer that decides which debt
// receives the extra payment first. The order is fixed before the first
// simulated month and never recomputed during a run.
package payoff

import (
	"fmt"
	"slices"

	"payoff/internal/core"
)

// Orderer is the strategy interface for payoff priority.
type Orderer interface {
	// Order returns input positions of debts, highest priority first.
	// Implementations must be deterministic and must not modify debts.
	Order(debts []core.Debt) []int
}

// SnowballOrderer prioritizes the smallest balance.
type SnowballOrderer struct{}

// Order sorts by ascending balance; equal balances keep input order.
func (SnowballOrderer) Order(debts []core.Debt) []int {
	idx := identity(len(debts))
	slices.SortStableFunc(idx, func(a, b int) int {
		return debts[a].Balance.Cmp(debts[b].Balance)
	})
	return idx
}

// AvalancheOrderer prioritizes the highest interest rate.
type AvalancheOrderer struct{}

// Order sorts by descending rate; equal rates keep input order.
func (AvalancheOrderer) Order(debts []core.Debt) []int {
	idx := identity(len(debts))
	slices.SortStableFunc(idx, func(a, b int) int {
		return debts[b].InterestRate.Cmp(debts[a].InterestRate)
	})
	return idx
}

// CustomOrderer trusts the caller's order.
type CustomOrderer struct{}

func (CustomOrderer) Order(debts []core.Debt) []int {
	return identity(len(debts))
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// orderers maps methods to their ordering strategy.
var orderers = map[core.Method]Orderer{
	core.Snowball:  SnowballOrderer{},
	core.Avalanche: AvalancheOrderer{},
	core.Custom:    CustomOrderer{},
}

// OrdererFor returns the orderer registered for a method.
func OrdererFor(method core.Method) (Orderer, error) {
	o, ok := orderers[method]
	if !ok {
		return nil, fmt.Errorf("unknown payoff method: %s", method)
	}
	return o, nil
}
