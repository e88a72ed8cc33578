package main

import (
	"context"
	"os"
	"time"

	"payoff/internal/amqp"
	"payoff/internal/backend"
	"payoff/internal/cli"
	"payoff/internal/log"
	"payoff/internal/services"
	"payoff/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting payoff-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	if !backendCfg.Type.SharesRuns() {
		logger.Error("The worker needs a backend shared with the server",
			"backend", backendCfg.Type,
			"supported", backend.SQLiteBackend)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger)
	repo, err := factory.CreateRepository(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		repo.Close()
		os.Exit(1)
	}

	// The worker publishes nothing and outputs go to the run record.
	runs := services.NewPlanService(repo, nil, nil, nil,
		services.PlanServiceConfig{Timeout: cfg.SimulationTimeout})
	defer runs.Close()
	defer amqpClient.Close()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	simWorker := worker.NewSimulationWorker(runs, worker.DefaultConfig())

	logger.Info("Performing startup run check...")
	if err := simWorker.StartupCheck(ctx); err != nil {
		logger.Error("Failed startup run check", "error", err)
	}

	if err := simWorker.Run(ctx, amqpClient); err != nil {
		logger.Error("Message consumption failed", "error", err)
		return
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
