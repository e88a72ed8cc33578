package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"payoff/internal/core"
)

// Fingerprint identifies a simulation request. Debt order is part of the
// key because it is the priority order of the custom method. Amounts use
// their exact decimal value, so 1.5 and 1.50 collide on purpose.
func Fingerprint(debts []core.Debt, strategy core.Strategy) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s\n", strategy.Method, strategy.ExtraPayment.Decimal().String())
	for _, d := range debts {
		fmt.Fprintf(h, "%q|%q|%q|%s|%s|%s\n",
			d.ID, d.Name, d.Type,
			d.Balance.Decimal().String(),
			d.MinimumPayment.Decimal().String(),
			d.InterestRate.String())
	}
	return hex.EncodeToString(h.Sum(nil))
}
