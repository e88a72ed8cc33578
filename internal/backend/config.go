package backend

import (
	"errors"
	"fmt"

	"payoff/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	cfg := Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		SeedFile:     appConfig.SeedFile,
		Cache:        CacheType(appConfig.CacheBackend),
		RedisAddr:    appConfig.RedisAddr,
		CacheTTL:     appConfig.CacheTTL,
		CacheSize:    appConfig.CacheSize,
	}
	return cfg, cfg.Validate()
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return errors.New("SQLite database path is required for sqlite backend")
	}

	switch c.Cache {
	case "", NoCache:
	case MemoryCache:
		if c.CacheSize < 1 {
			return fmt.Errorf("cache size must be positive, got %d", c.CacheSize)
		}
	case RedisCache:
		if c.RedisAddr == "" {
			return errors.New("Redis address is required for redis cache")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s", c.Cache)
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend}
}
