package storage

import "database/sql"

// Debt is a row of the debts table. Amounts are stored as decimal text.
type Debt struct {
	ID             string `json:"id"`
	Position       int64  `json:"position"`
	Name           string `json:"name"`
	Balance        string `json:"balance"`
	MinimumPayment string `json:"minimum_payment"`
	InterestRate   string `json:"interest_rate"`
	Type           string `json:"type"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// SimulationRun is a row of the simulation_runs table.
type SimulationRun struct {
	ID           string
	Status       string
	Method       string
	ExtraPayment string
	DebtsJSON    string
	OutputJSON   sql.NullString
	Error        string
	CreatedAt    string
	CompletedAt  sql.NullString
}
