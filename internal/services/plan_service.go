package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"payoff/internal/cache"
	"payoff/internal/core"
	"payoff/internal/metrics"
	"payoff/internal/payoff"
	"payoff/internal/ports"
)

// ErrAsyncUnavailable is returned by SubmitRun when no broker is configured
// or the request could not be handed to it.
var ErrAsyncUnavailable = errors.New("async simulation unavailable")

// Repository is the storage a PlanService needs.
type Repository interface {
	ports.DebtReader
	ports.DebtWriter
	ports.RunRecorder
	Close() error
}

// Publisher hands a recorded run to the simulation worker.
type Publisher interface {
	PublishSimulationRequest(ctx context.Context, runID string, strategy core.Strategy) error
}

// PlanServiceConfig holds tunables for the plan service
type PlanServiceConfig struct {
	// Timeout bounds a single Simulate or Compare call (default: 5s)
	Timeout time.Duration
	// ClaimTTL is how long a claimed run is reserved for its executor before
	// another may take it over (default: 2m)
	ClaimTTL time.Duration
}

func DefaultPlanServiceConfig() PlanServiceConfig {
	return PlanServiceConfig{Timeout: 5 * time.Second, ClaimTTL: 2 * time.Minute}
}

// PlanService orchestrates debt storage, simulations, the output cache and
// asynchronous runs.
type PlanService struct {
	repo      Repository
	outputs   cache.Cache[core.SimulationOutput]
	publisher Publisher
	metrics   *metrics.Metrics
	config    PlanServiceConfig

	newID func() string
	now   func() time.Time
}

// NewPlanService wires a service. outputs, publisher and m may be nil.
func NewPlanService(repo Repository, outputs cache.Cache[core.SimulationOutput], publisher Publisher, m *metrics.Metrics, config PlanServiceConfig) *PlanService {
	if outputs == nil {
		outputs = cache.Nop[core.SimulationOutput]{}
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultPlanServiceConfig().Timeout
	}
	if config.ClaimTTL <= config.Timeout {
		config.ClaimTTL = max(DefaultPlanServiceConfig().ClaimTTL, 2*config.Timeout)
	}
	return &PlanService{
		repo:      repo,
		outputs:   outputs,
		publisher: publisher,
		metrics:   m,
		config:    config,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

func (s *PlanService) ListDebts(ctx context.Context) ([]core.Debt, error) {
	debts, err := s.repo.ListDebts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}
	return debts, nil
}

func (s *PlanService) GetDebt(ctx context.Context, id string) (core.Debt, error) {
	d, err := s.repo.GetDebt(ctx, id)
	if err != nil {
		return core.Debt{}, fmt.Errorf("get debt: %w", err)
	}
	return d, nil
}

// SaveDebt validates and stores d. An existing debt with the same id keeps
// its priority position.
func (s *PlanService) SaveDebt(ctx context.Context, d core.Debt) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if err := s.repo.SaveDebt(ctx, d); err != nil {
		return fmt.Errorf("save debt: %w", err)
	}
	slog.InfoContext(ctx, "Debt saved", "debt_id", d.ID, "balance", d.Balance.String())
	return nil
}

func (s *PlanService) DeleteDebt(ctx context.Context, id string) error {
	if err := s.repo.DeleteDebt(ctx, id); err != nil {
		return fmt.Errorf("delete debt: %w", err)
	}
	slog.InfoContext(ctx, "Debt deleted", "debt_id", id)
	return nil
}

// Simulate runs strategy over debts, or over the stored debts when debts is
// nil. Identical inputs are served from the output cache.
func (s *PlanService) Simulate(ctx context.Context, debts []core.Debt, strategy core.Strategy) (core.SimulationOutput, error) {
	debts, err := s.resolve(ctx, debts)
	if err != nil {
		return core.SimulationOutput{}, err
	}
	return s.simulate(ctx, debts, strategy)
}

func (s *PlanService) simulate(ctx context.Context, debts []core.Debt, strategy core.Strategy) (core.SimulationOutput, error) {
	key := Fingerprint(debts, strategy)
	if out, ok := s.outputs.Get(ctx, key); ok {
		s.metrics.CacheHit()
		slog.DebugContext(ctx, "Simulation served from cache", "method", strategy.Method, "key", key)
		return out, nil
	}
	s.metrics.CacheMiss()

	start := time.Now()
	out, err := bounded(ctx, s.config.Timeout, func(context.Context) (core.SimulationOutput, error) {
		return payoff.Simulate(debts, strategy)
	})
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.ObserveSimulation(strategy.Method.String(), outcome(err, false), elapsed)
		return core.SimulationOutput{}, err
	}
	s.metrics.ObserveSimulation(strategy.Method.String(), outcome(nil, out.HitCeiling), elapsed)

	s.outputs.Set(ctx, key, out)

	slog.InfoContext(ctx, "Simulation completed",
		"method", strategy.Method,
		"extra_payment", strategy.ExtraPayment.String(),
		"debts", len(debts),
		"months", out.Aggregate.TotalMonthsToPayoff,
		"interest", out.Aggregate.TotalInterestPaid.String(),
		"hit_ceiling", out.HitCeiling,
		"duration", elapsed)
	return out, nil
}

// Compare evaluates methods side by side over debts, or the stored debts
// when debts is nil.
func (s *PlanService) Compare(ctx context.Context, debts []core.Debt, extra core.Money, methods ...core.Method) (core.Comparison, error) {
	debts, err := s.resolve(ctx, debts)
	if err != nil {
		return core.Comparison{}, err
	}

	start := time.Now()
	cmp, err := bounded(ctx, s.config.Timeout, func(ctx context.Context) (core.Comparison, error) {
		return payoff.Compare(ctx, debts, extra, methods...)
	})
	if err != nil {
		return core.Comparison{}, err
	}

	slog.InfoContext(ctx, "Comparison completed",
		"methods", len(cmp.Outputs),
		"best", cmp.Best,
		"debts", len(debts),
		"duration", time.Since(start))
	return cmp, nil
}

// SubmitRun records a pending run over a snapshot of debts (the stored
// debts when nil) and queues it for the worker.
func (s *PlanService) SubmitRun(ctx context.Context, debts []core.Debt, strategy core.Strategy) (core.Run, error) {
	if s.publisher == nil {
		return core.Run{}, ErrAsyncUnavailable
	}
	debts, err := s.resolve(ctx, debts)
	if err != nil {
		return core.Run{}, err
	}
	if err := strategy.Validate(); err != nil {
		return core.Run{}, err
	}
	if err := core.ValidateDebts(debts); err != nil {
		return core.Run{}, err
	}

	run := core.Run{
		ID:        s.newID(),
		Status:    core.RunPending,
		Strategy:  strategy,
		Debts:     debts,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return core.Run{}, fmt.Errorf("create run: %w", err)
	}

	if err := s.publisher.PublishSimulationRequest(ctx, run.ID, strategy); err != nil {
		slog.ErrorContext(ctx, "Failed to publish simulation request", "run_id", run.ID, "error", err)
		// Nobody will ever pick the run up, so close it now.
		run.Fail("could not queue simulation request", s.now().UTC())
		if uerr := s.repo.UpdateRun(ctx, run); uerr != nil {
			slog.ErrorContext(ctx, "Failed to mark run failed", "run_id", run.ID, "error", uerr)
		}
		s.metrics.RunFinished(string(core.RunFailed))
		return core.Run{}, fmt.Errorf("publish simulation request: %w: %w", ErrAsyncUnavailable, err)
	}

	slog.InfoContext(ctx, "Simulation run submitted",
		"run_id", run.ID,
		"method", strategy.Method,
		"debts", len(debts))
	return run, nil
}

func (s *PlanService) GetRun(ctx context.Context, id string) (core.Run, error) {
	run, err := s.repo.GetRun(ctx, id)
	if err != nil {
		return core.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ExecuteRun simulates a pending run and stores the outcome. The run is
// claimed first so concurrent callers never both execute it. It returns an
// error only when the message should be retried: runs that are unknown,
// already finished, claimed elsewhere or invalid are acknowledged.
func (s *PlanService) ExecuteRun(ctx context.Context, runID string) error {
	run, err := s.repo.GetRun(ctx, runID)
	if errors.Is(err, ports.ErrNotFound) {
		slog.WarnContext(ctx, "Simulation run not found, dropping request", "run_id", runID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	if run.Done() {
		slog.InfoContext(ctx, "Simulation run already finished", "run_id", runID, "status", run.Status)
		return nil
	}

	now := s.now().UTC()
	claimed, err := s.repo.ClaimRun(ctx, runID, now, now.Add(-s.config.ClaimTTL))
	if err != nil {
		return fmt.Errorf("claim run: %w", err)
	}
	if !claimed {
		slog.InfoContext(ctx, "Simulation run claimed elsewhere, skipping", "run_id", runID)
		return nil
	}

	out, err := s.simulate(ctx, run.Debts, run.Strategy)
	switch {
	case err == nil:
		run.Complete(out, s.now().UTC())
	case ctx.Err() != nil:
		// Shutting down: leave the run pending for redelivery.
		s.releaseRun(ctx, runID)
		return fmt.Errorf("execute run %s: %w", runID, ctx.Err())
	default:
		run.Fail(err.Error(), s.now().UTC())
	}

	if err := s.repo.UpdateRun(ctx, run); err != nil {
		s.releaseRun(ctx, runID)
		return fmt.Errorf("update run: %w", err)
	}
	s.metrics.RunFinished(string(run.Status))

	slog.InfoContext(ctx, "Simulation run finished",
		"run_id", run.ID,
		"status", run.Status,
		"error", run.Error)
	return nil
}

func (s *PlanService) releaseRun(ctx context.Context, runID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.repo.ReleaseRun(ctx, runID); err != nil {
		slog.ErrorContext(ctx, "Failed to release run claim", "run_id", runID, "error", err)
	}
}

// ProcessPendingRuns executes up to limit runs that have been pending for
// longer than staleAfter. It recovers runs whose request message was lost.
func (s *PlanService) ProcessPendingRuns(ctx context.Context, staleAfter time.Duration, limit int) (int, error) {
	runs, err := s.repo.ListPendingRuns(ctx, s.now().UTC().Add(-staleAfter), limit)
	if err != nil {
		return 0, fmt.Errorf("list pending runs: %w", err)
	}
	if len(runs) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending runs", "count", len(runs))

	processed := 0
	for _, run := range runs {
		if err := s.ExecuteRun(ctx, run.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to execute pending run", "run_id", run.ID, "error", err)
			continue
		}
		processed++
	}
	return processed, nil
}

// Ready reports whether the backing store answers.
func (s *PlanService) Ready(ctx context.Context) error {
	if p, ok := s.repo.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// AsyncEnabled reports whether SubmitRun can queue runs.
func (s *PlanService) AsyncEnabled() bool {
	return s.publisher != nil
}

// Close closes the repository and, when closable, the publisher.
func (s *PlanService) Close() error {
	var errs []error

	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if err := s.repo.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close repository: %w", err))
	}

	return errors.Join(errs...)
}

func (s *PlanService) resolve(ctx context.Context, debts []core.Debt) ([]core.Debt, error) {
	if debts != nil {
		return debts, nil
	}
	return s.ListDebts(ctx)
}

// bounded runs fn and gives up once timeout elapses or ctx ends. The
// simulation itself cannot be interrupted; an abandoned call finishes in
// the background and its result is dropped.
func bounded[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("simulation aborted: %w", ctx.Err())
	}
}

func outcome(err error, hitCeiling bool) string {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		return metrics.OutcomeInvalid
	case err != nil:
		return metrics.OutcomeError
	case hitCeiling:
		return metrics.OutcomeCeiling
	default:
		return metrics.OutcomeOK
	}
}
