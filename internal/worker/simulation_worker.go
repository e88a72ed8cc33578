package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"payoff/internal/amqp"
)

// RunExecutor executes queued simulation runs.
type RunExecutor interface {
	ExecuteRun(ctx context.Context, runID string) error
	ProcessPendingRuns(ctx context.Context, staleAfter time.Duration, limit int) (int, error)
}

// Consumer delivers simulation requests from the broker.
type Consumer interface {
	ConsumeSimulationRequests(ctx context.Context, handler func(context.Context, *amqp.SimulationRequestMessage) error) error
}

// Config holds the recovery sweep settings
type Config struct {
	// SweepInterval is how often stale pending runs are picked up (default: 1m)
	SweepInterval time.Duration

	// StaleAfter is how long a run may stay pending before the sweep takes it (default: 2m)
	StaleAfter time.Duration

	// BatchSize is the max number of runs per sweep (default: 20)
	BatchSize int
}

func DefaultConfig() Config {
	return Config{
		SweepInterval: time.Minute,
		StaleAfter:    2 * time.Minute,
		BatchSize:     20,
	}
}

// SimulationWorker executes simulation runs requested over AMQP
type SimulationWorker struct {
	runs   RunExecutor
	config Config
}

func NewSimulationWorker(runs RunExecutor, config Config) *SimulationWorker {
	return &SimulationWorker{runs: runs, config: config}
}

// HandleSimulationRequest processes a single simulation request message.
// A returned error makes the broker redeliver the message.
func (w *SimulationWorker) HandleSimulationRequest(ctx context.Context, msg *amqp.SimulationRequestMessage) error {
	slog.InfoContext(ctx, "Processing simulation request",
		"run_id", msg.RunID,
		"method", msg.Strategy.Method,
		"queued_at", msg.Timestamp)

	if err := w.runs.ExecuteRun(ctx, msg.RunID); err != nil {
		return fmt.Errorf("execute run: %w", err)
	}
	return nil
}

// StartupCheck runs every stale pending run once before consumption starts.
// This recovers runs whose message was lost while the worker was down.
func (w *SimulationWorker) StartupCheck(ctx context.Context) error {
	n, err := w.runs.ProcessPendingRuns(ctx, w.config.StaleAfter, w.config.BatchSize*5)
	if err != nil {
		return fmt.Errorf("startup check: %w", err)
	}
	if n == 0 {
		slog.InfoContext(ctx, "No pending runs found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup check completed", "processed", n)
	return nil
}

// Run consumes simulation requests and periodically sweeps stale runs until
// ctx is cancelled or consumption fails for good.
func (w *SimulationWorker) Run(ctx context.Context, consumer Consumer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- consumer.ConsumeSimulationRequests(ctx, w.HandleSimulationRequest)
	}()

	var sweep <-chan time.Time
	if w.config.SweepInterval > 0 {
		ticker := time.NewTicker(w.config.SweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			// Let the consumer notice cancellation before returning.
			<-consumeErr
			return nil
		case err := <-consumeErr:
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("consume simulation requests: %w", err)
		case <-sweep:
			if _, err := w.runs.ProcessPendingRuns(ctx, w.config.StaleAfter, w.config.BatchSize); err != nil {
				slog.ErrorContext(ctx, "Periodic run sweep failed", "error", err)
			}
		}
	}
}
