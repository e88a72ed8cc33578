package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"payoff/internal/amqp"
	"payoff/internal/backend"
	"payoff/internal/cache"
	"payoff/internal/cli"
	apphttp "payoff/internal/http"
	"payoff/internal/log"
	"payoff/internal/metrics"
	"payoff/internal/services"
	"payoff/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	factory := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger)

	repo, err := factory.CreateRepository(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", backendCfg.Type)
		os.Exit(1)
	}

	outputs := factory.CreateCache(ctx, backendCfg)
	cacheManager := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	if outputs.Cleaner != nil {
		cacheManager.Register(outputs.Cleaner)
		cacheManager.StartCleanup(time.Minute)
	}

	// Async simulation is optional: without a broker the endpoint answers 503.
	var (
		publisher  services.Publisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without async simulation", "error", err)
		} else {
			publisher = amqpClient
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	m := metrics.New()
	planner := services.NewPlanService(repo, outputs.Outputs, publisher, m,
		services.PlanServiceConfig{Timeout: cfg.SimulationTimeout})

	srv := apphttp.NewServer(apphttp.DefaultServerConfig(":"+cfg.Port), planner, m, logger)

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	// Runs of the memory backend live in this process, so it also executes them.
	if amqpClient != nil && !backendCfg.Type.SharesRuns() {
		w := worker.NewSimulationWorker(planner, worker.DefaultConfig())
		go func() {
			if err := w.Run(shutdownCtx, amqpClient); err != nil {
				logger.Error("In-process simulation worker stopped", "error", err)
			}
		}()
		logger.Info("Started in-process simulation worker", "backend", backendCfg.Type)
	}

	logger.Info("Starting payoff server",
		"port", cfg.Port,
		"backend", backendCfg.Type,
		"cache", backendCfg.Cache,
		"async", planner.AsyncEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)

	if outputs.Cleaner != nil {
		cacheManager.Stop()
	}
	if sc, ok := outputs.Outputs.(interface{ Stats() cache.Stats }); ok {
		st := sc.Stats()
		logger.Info("Cache statistics",
			"entries", st.Entries,
			"hits", st.Hits,
			"misses", st.Misses,
			"evictions", st.Evictions,
			"expired", st.Expired)
	}
	if outputs.Cleanup != nil {
		if err := outputs.Cleanup(); err != nil {
			logger.Warn("Failed to close cache", "error", err)
		}
	}
	if err := planner.Close(); err != nil {
		logger.Warn("Failed to close resources", "error", err)
	}
	logger.Info("Server stopped gracefully")
}
