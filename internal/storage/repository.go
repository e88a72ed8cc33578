package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"payoff/internal/core"
	"payoff/internal/ports"

	_ "modernc.org/sqlite"
)

// Fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListDebts implements ports.DebtReader
func (r *SQLiteRepository) ListDebts(ctx context.Context) ([]core.Debt, error) {
	rows, err := r.queries.ListDebts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}

	debts := make([]core.Debt, 0, len(rows))
	for _, row := range rows {
		d, err := toDebt(row)
		if err != nil {
			return nil, err
		}
		debts = append(debts, d)
	}
	return debts, nil
}

// GetDebt implements ports.DebtReader
func (r *SQLiteRepository) GetDebt(ctx context.Context, id string) (core.Debt, error) {
	row, err := r.queries.GetDebt(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Debt{}, fmt.Errorf("debt %q: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return core.Debt{}, fmt.Errorf("get debt %s: %w", id, err)
	}
	return toDebt(row)
}

// SaveDebt implements ports.DebtWriter
func (r *SQLiteRepository) SaveDebt(ctx context.Context, d core.Debt) error {
	if err := d.Validate(); err != nil {
		return err
	}

	now := r.now().UTC().Format(timeLayout)
	err := r.queries.UpsertDebt(ctx, UpsertDebtParams{
		ID:             d.ID,
		Name:           d.Name,
		Balance:        d.Balance.Decimal().String(),
		MinimumPayment: d.MinimumPayment.Decimal().String(),
		InterestRate:   d.InterestRate.String(),
		Type:           d.Type,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return fmt.Errorf("save debt: %w", err)
	}

	slog.InfoContext(ctx, "Debt saved to SQLite",
		"debt_id", d.ID,
		"balance", d.Balance.String(),
		"minimum_payment", d.MinimumPayment.String())
	return nil
}

// DeleteDebt implements ports.DebtWriter
func (r *SQLiteRepository) DeleteDebt(ctx context.Context, id string) error {
	n, err := r.queries.DeleteDebt(ctx, id)
	if err != nil {
		return fmt.Errorf("delete debt: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("debt %q: %w", id, ports.ErrNotFound)
	}

	slog.InfoContext(ctx, "Debt deleted from SQLite", "debt_id", id)
	return nil
}

// CreateRun implements ports.RunRecorder
func (r *SQLiteRepository) CreateRun(ctx context.Context, run core.Run) error {
	debtsJSON, err := encodeDebts(run.Debts)
	if err != nil {
		return err
	}
	output, err := encodeOutput(run.Output)
	if err != nil {
		return err
	}

	err = r.queries.CreateRun(ctx, CreateRunParams{
		ID:           run.ID,
		Status:       string(run.Status),
		Method:       string(run.Strategy.Method),
		ExtraPayment: run.Strategy.ExtraPayment.Decimal().String(),
		DebtsJSON:    debtsJSON,
		OutputJSON:   output,
		Error:        run.Error,
		CreatedAt:    run.CreatedAt.UTC().Format(timeLayout),
		CompletedAt:  formatTime(run.CompletedAt),
	})
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// UpdateRun implements ports.RunRecorder
func (r *SQLiteRepository) UpdateRun(ctx context.Context, run core.Run) error {
	output, err := encodeOutput(run.Output)
	if err != nil {
		return err
	}

	n, err := r.queries.UpdateRun(ctx, UpdateRunParams{
		Status:      string(run.Status),
		OutputJSON:  output,
		Error:       run.Error,
		CompletedAt: formatTime(run.CompletedAt),
		ID:          run.ID,
	})
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %q: %w", run.ID, ports.ErrNotFound)
	}

	slog.InfoContext(ctx, "Simulation run updated", "run_id", run.ID, "status", run.Status)
	return nil
}

// GetRun implements ports.RunRecorder
func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (core.Run, error) {
	row, err := r.queries.GetRun(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Run{}, fmt.Errorf("run %q: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return core.Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return toRun(row)
}

// ListPendingRuns implements ports.RunRecorder
func (r *SQLiteRepository) ListPendingRuns(ctx context.Context, createdBefore time.Time, limit int) ([]core.Run, error) {
	rows, err := r.queries.ListPendingRuns(ctx, createdBefore.UTC().Format(timeLayout), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list pending runs: %w", err)
	}
	runs := make([]core.Run, 0, len(rows))
	for _, row := range rows {
		run, err := toRun(row)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// ClaimRun implements ports.RunRecorder
func (r *SQLiteRepository) ClaimRun(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	n, err := r.queries.ClaimRun(ctx, ClaimRunParams{
		ClaimedAt:     now.UTC().Format(timeLayout),
		ID:            id,
		ClaimedBefore: staleBefore.UTC().Format(timeLayout),
	})
	if err != nil {
		return false, fmt.Errorf("claim run %s: %w", id, err)
	}
	return n == 1, nil
}

// ReleaseRun implements ports.RunRecorder
func (r *SQLiteRepository) ReleaseRun(ctx context.Context, id string) error {
	if err := r.queries.ReleaseRun(ctx, id); err != nil {
		return fmt.Errorf("release run %s: %w", id, err)
	}
	return nil
}

func toDebt(row Debt) (core.Debt, error) {
	balance, err := decimal.NewFromString(row.Balance)
	if err != nil {
		return core.Debt{}, fmt.Errorf("parse balance of debt %s: %w", row.ID, err)
	}
	minimum, err := decimal.NewFromString(row.MinimumPayment)
	if err != nil {
		return core.Debt{}, fmt.Errorf("parse minimum payment of debt %s: %w", row.ID, err)
	}
	rate, err := decimal.NewFromString(row.InterestRate)
	if err != nil {
		return core.Debt{}, fmt.Errorf("parse interest rate of debt %s: %w", row.ID, err)
	}
	return core.Debt{
		ID:             row.ID,
		Name:           row.Name,
		Balance:        core.NewMoney(balance),
		MinimumPayment: core.NewMoney(minimum),
		InterestRate:   rate,
		Type:           row.Type,
	}, nil
}

func toRun(row SimulationRun) (core.Run, error) {
	extra, err := decimal.NewFromString(row.ExtraPayment)
	if err != nil {
		return core.Run{}, fmt.Errorf("parse extra payment of run %s: %w", row.ID, err)
	}
	created, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return core.Run{}, fmt.Errorf("parse created_at of run %s: %w", row.ID, err)
	}

	run := core.Run{
		ID:     row.ID,
		Status: core.RunStatus(row.Status),
		Strategy: core.Strategy{
			Method:       core.Method(row.Method),
			ExtraPayment: core.NewMoney(extra),
		},
		Error:     row.Error,
		CreatedAt: created,
	}
	if run.Debts, err = decodeDebts(row.DebtsJSON); err != nil {
		return core.Run{}, fmt.Errorf("decode debts of run %s: %w", row.ID, err)
	}
	if row.OutputJSON.Valid {
		var out core.SimulationOutput
		if err := json.Unmarshal([]byte(row.OutputJSON.String), &out); err != nil {
			return core.Run{}, fmt.Errorf("decode output of run %s: %w", row.ID, err)
		}
		run.Output = &out
	}
	if row.CompletedAt.Valid {
		completed, err := time.Parse(timeLayout, row.CompletedAt.String)
		if err != nil {
			return core.Run{}, fmt.Errorf("parse completed_at of run %s: %w", row.ID, err)
		}
		run.CompletedAt = &completed
	}
	return run, nil
}

// The debt snapshot is stored with the row encoding so amounts keep every
// decimal place; core.Money JSON truncates to cents.
func encodeDebts(debts []core.Debt) (string, error) {
	rows := make([]Debt, len(debts))
	for i, d := range debts {
		rows[i] = Debt{
			ID:             d.ID,
			Position:       int64(i + 1),
			Name:           d.Name,
			Balance:        d.Balance.Decimal().String(),
			MinimumPayment: d.MinimumPayment.Decimal().String(),
			InterestRate:   d.InterestRate.String(),
			Type:           d.Type,
		}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("encode run debts: %w", err)
	}
	return string(data), nil
}

func decodeDebts(data string) ([]core.Debt, error) {
	var rows []Debt
	if err := json.Unmarshal([]byte(data), &rows); err != nil {
		return nil, err
	}
	debts := make([]core.Debt, 0, len(rows))
	for _, row := range rows {
		d, err := toDebt(row)
		if err != nil {
			return nil, err
		}
		debts = append(debts, d)
	}
	return debts, nil
}

func encodeOutput(out *core.SimulationOutput) (sql.NullString, error) {
	if out == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(out)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode run output: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func formatTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}
