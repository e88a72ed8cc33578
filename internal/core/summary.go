package core

// PayoffResult is the projection for a single debt.
type PayoffResult struct {
	DebtID               string `json:"debtId"`
	Name                 string `json:"name,omitempty"`
	Type                 string `json:"type,omitempty"`
	PaidOff              bool   `json:"paidOff"`
	PayoffMonth          int    `json:"payoffMonth,omitempty"` // 1-based; unset when not paid off
	OriginalBalance      Money  `json:"originalBalance"`
	TotalInterestPaid    Money  `json:"totalInterestPaid"`
	TotalPaid            Money  `json:"totalPaid"`
	RemainingBalance     Money  `json:"remainingBalance"`
	NegativeAmortization bool   `json:"negativeAmortization,omitempty"`
}

// AggregateStats summarizes one run.
type AggregateStats struct {
	TotalMonthsToPayoff int   `json:"totalMonthsToPayoff"`
	TotalInterestPaid   Money `json:"totalInterestPaid"`
	TotalPaid           Money `json:"totalPaid"`
	HitCeiling          bool  `json:"hitCeiling"`
}

// Savings compares the accelerated plan against minimum payments only.
type Savings struct {
	InterestSaved Money `json:"interestSaved"`
	MonthsSaved   int   `json:"monthsSaved"`
}

const (
	WarningNegativeAmortization = "negative_amortization"
	WarningCeilingReached       = "ceiling_reached"
)

// Warning is a non-fatal condition the caller should display.
type Warning struct {
	DebtID  string `json:"debtId,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SimulationOutput is everything one call to the simulator produces.
type SimulationOutput struct {
	Method       Method         `json:"method"`
	ExtraPayment Money          `json:"extraPayment"`
	Results      []PayoffResult `json:"results"`
	Aggregate    AggregateStats `json:"aggregate"`
	Baseline     AggregateStats `json:"baseline"`
	Savings      Savings        `json:"savings"`
	HitCeiling   bool           `json:"hitCeiling"`
	Warnings     []Warning      `json:"warnings,omitempty"`
}

// Comparison holds one output per method evaluated side by side.
type Comparison struct {
	Outputs map[Method]SimulationOutput `json:"outputs"`
	Best    Method                      `json:"best"`
}
