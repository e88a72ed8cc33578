package ports

import (
	"context"
	"errors"
	"time"

	"payoff/internal/core"
)

// ErrNotFound is returned by every adapter when a debt or run does not exist.
var ErrNotFound = errors.New("not found")

// Ports for outbound adapters.
type (
	// DebtReader returns stored debts in their saved order, which is the
	// priority order used by the custom method.
	DebtReader interface {
		ListDebts(ctx context.Context) ([]core.Debt, error)
		GetDebt(ctx context.Context, id string) (core.Debt, error)
	}

	// DebtWriter creates or replaces debts. Replacing keeps the position.
	DebtWriter interface {
		SaveDebt(ctx context.Context, d core.Debt) error
		DeleteDebt(ctx context.Context, id string) error
	}

	RunRecorder interface {
		CreateRun(ctx context.Context, run core.Run) error
		UpdateRun(ctx context.Context, run core.Run) error
		GetRun(ctx context.Context, id string) (core.Run, error)
		// ListPendingRuns returns the oldest pending runs created before
		// createdBefore and not claimed since, at most limit of them.
		ListPendingRuns(ctx context.Context, createdBefore time.Time, limit int) ([]core.Run, error)
		// ClaimRun takes a pending run for execution. It reports false when
		// the run is finished or holds a claim made after staleBefore, so a
		// run is executed by one caller at a time.
		ClaimRun(ctx context.Context, id string, now, staleBefore time.Time) (bool, error)
		// ReleaseRun drops the claim on a run that is still pending.
		ReleaseRun(ctx context.Context, id string) error
	}
)
