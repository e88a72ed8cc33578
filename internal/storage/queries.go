package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const listDebts = `-- name: ListDebts :many
SELECT id, position, name, balance, minimum_payment, interest_rate, type, created_at, updated_at
FROM debts
ORDER BY position
`

func (q *Queries) ListDebts(ctx context.Context) ([]Debt, error) {
	rows, err := q.db.QueryContext(ctx, listDebts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Debt
	for rows.Next() {
		var i Debt
		if err := rows.Scan(
			&i.ID,
			&i.Position,
			&i.Name,
			&i.Balance,
			&i.MinimumPayment,
			&i.InterestRate,
			&i.Type,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getDebt = `-- name: GetDebt :one
SELECT id, position, name, balance, minimum_payment, interest_rate, type, created_at, updated_at
FROM debts
WHERE id = ?
`

func (q *Queries) GetDebt(ctx context.Context, id string) (Debt, error) {
	row := q.db.QueryRowContext(ctx, getDebt, id)
	var i Debt
	err := row.Scan(
		&i.ID,
		&i.Position,
		&i.Name,
		&i.Balance,
		&i.MinimumPayment,
		&i.InterestRate,
		&i.Type,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertDebt = `-- name: UpsertDebt :exec
INSERT INTO debts (id, position, name, balance, minimum_payment, interest_rate, type, created_at, updated_at)
VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM debts), ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    balance = excluded.balance,
    minimum_payment = excluded.minimum_payment,
    interest_rate = excluded.interest_rate,
    type = excluded.type,
    updated_at = excluded.updated_at
`

type UpsertDebtParams struct {
	ID             string
	Name           string
	Balance        string
	MinimumPayment string
	InterestRate   string
	Type           string
	CreatedAt      string
	UpdatedAt      string
}

func (q *Queries) UpsertDebt(ctx context.Context, arg UpsertDebtParams) error {
	_, err := q.db.ExecContext(ctx, upsertDebt,
		arg.ID,
		arg.Name,
		arg.Balance,
		arg.MinimumPayment,
		arg.InterestRate,
		arg.Type,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const deleteDebt = `-- name: DeleteDebt :execrows
DELETE FROM debts
WHERE id = ?
`

func (q *Queries) DeleteDebt(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteDebt, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const createRun = `-- name: CreateRun :exec
INSERT INTO simulation_runs (id, status, method, extra_payment, debts_json, output_json, error, created_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateRunParams struct {
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

func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) error {
	_, err := q.db.ExecContext(ctx, createRun,
		arg.ID,
		arg.Status,
		arg.Method,
		arg.ExtraPayment,
		arg.DebtsJSON,
		arg.OutputJSON,
		arg.Error,
		arg.CreatedAt,
		arg.CompletedAt,
	)
	return err
}

const updateRun = `-- name: UpdateRun :execrows
UPDATE simulation_runs
SET status = ?, output_json = ?, error = ?, completed_at = ?
WHERE id = ?
`

type UpdateRunParams struct {
	Status      string
	OutputJSON  sql.NullString
	Error       string
	CompletedAt sql.NullString
	ID          string
}

func (q *Queries) UpdateRun(ctx context.Context, arg UpdateRunParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateRun,
		arg.Status,
		arg.OutputJSON,
		arg.Error,
		arg.CompletedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getRun = `-- name: GetRun :one
SELECT id, status, method, extra_payment, debts_json, output_json, error, created_at, completed_at
FROM simulation_runs
WHERE id = ?
`

func (q *Queries) GetRun(ctx context.Context, id string) (SimulationRun, error) {
	row := q.db.QueryRowContext(ctx, getRun, id)
	var i SimulationRun
	err := row.Scan(
		&i.ID,
		&i.Status,
		&i.Method,
		&i.ExtraPayment,
		&i.DebtsJSON,
		&i.OutputJSON,
		&i.Error,
		&i.CreatedAt,
		&i.CompletedAt,
	)
	return i, err
}

const listPendingRuns = `-- name: ListPendingRuns :many
SELECT id, status, method, extra_payment, debts_json, output_json, error, created_at, completed_at
FROM simulation_runs
WHERE status = 'pending' AND created_at < ?
  AND (claimed_at IS NULL OR claimed_at < ?)
ORDER BY created_at
LIMIT ?
`

func (q *Queries) ListPendingRuns(ctx context.Context, createdBefore string, limit int64) ([]SimulationRun, error) {
	rows, err := q.db.QueryContext(ctx, listPendingRuns, createdBefore, createdBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SimulationRun
	for rows.Next() {
		var i SimulationRun
		if err := rows.Scan(
			&i.ID,
			&i.Status,
			&i.Method,
			&i.ExtraPayment,
			&i.DebtsJSON,
			&i.OutputJSON,
			&i.Error,
			&i.CreatedAt,
			&i.CompletedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const claimRun = `-- name: ClaimRun :execrows
UPDATE simulation_runs
SET claimed_at = ?
WHERE id = ? AND status = 'pending'
  AND (claimed_at IS NULL OR claimed_at < ?)
`

type ClaimRunParams struct {
	ClaimedAt     string
	ID            string
	ClaimedBefore string
}

func (q *Queries) ClaimRun(ctx context.Context, arg ClaimRunParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, claimRun, arg.ClaimedAt, arg.ID, arg.ClaimedBefore)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const releaseRun = `-- name: ReleaseRun :exec
UPDATE simulation_runs
SET claimed_at = NULL
WHERE id = ? AND status = 'pending'
`

func (q *Queries) ReleaseRun(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, releaseRun, id)
	return err
}
