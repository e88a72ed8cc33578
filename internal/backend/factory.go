package backend

import (
	"context"
	"fmt"
	"log/slog"

	"payoff/internal/cache"
	"payoff/internal/core"
	"payoff/internal/memory"
	"payoff/internal/services"
	"payoff/internal/storage"
)

const redisKeyPrefix = "payoff:sim:"

// Factory creates repositories and caches from configuration
type Factory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// CreateRepository opens the configured debt and run store. The caller owns
// the result and must Close it.
func (f *Factory) CreateRepository(ctx context.Context, config Config) (services.Repository, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteRepository(ctx, config)
	case MemoryBackend:
		return f.createMemoryRepository(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *Factory) createSQLiteRepository(ctx context.Context, config Config) (services.Repository, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	if err := repo.Ping(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("ping SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return repo, nil
}

func (f *Factory) createMemoryRepository(config Config) (services.Repository, error) {
	store, err := memory.NewFromFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}

	debts, _ := store.ListDebts(context.Background())
	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile, "debts", len(debts))
	return store, nil
}

// CreateCache builds the simulation output cache. An unreachable Redis falls
// back to the in-process LRU so the service keeps serving.
func (f *Factory) CreateCache(ctx context.Context, config Config) *CacheResult {
	switch config.Cache {
	case NoCache, "":
		f.logger.Info("Simulation cache disabled")
		return &CacheResult{Outputs: cache.Nop[core.SimulationOutput]{}}
	case RedisCache:
		client, err := cache.NewRedisClient(ctx, config.RedisAddr)
		if err != nil {
			f.logger.Warn("Failed to connect to Redis, falling back to in-memory cache",
				"addr", config.RedisAddr, "error", err)
			return f.memoryCache(config)
		}
		f.logger.Info("Initialized Redis cache", "addr", config.RedisAddr, "ttl", config.CacheTTL)
		return &CacheResult{
			Outputs: cache.NewRedisCache[core.SimulationOutput](client, redisKeyPrefix, config.CacheTTL, f.logger),
			Cleanup: client.Close,
		}
	default:
		return f.memoryCache(config)
	}
}

func (f *Factory) memoryCache(config Config) *CacheResult {
	lru := cache.NewLRUCache[core.SimulationOutput](config.CacheSize, config.CacheTTL)
	f.logger.Info("Initialized in-memory cache", "size", config.CacheSize, "ttl", config.CacheTTL)
	return &CacheResult{Outputs: lru, Cleaner: lru}
}
