package backend

import (
	"time"

	"payoff/internal/cache"
	"payoff/internal/core"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// CacheResult contains the simulation output cache and its optional cleanup
// function. Cleaner is set when the cache needs periodic expiry sweeps.
type CacheResult struct {
	Outputs cache.Cache[core.SimulationOutput]
	Cleaner cache.Cleaner
	Cleanup CleanupFunc
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory specific; a missing file yields an empty store
	SeedFile string

	// Simulation output cache
	Cache     CacheType
	RedisAddr string
	CacheTTL  time.Duration
	CacheSize int
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// SharesRuns reports whether runs recorded by one process are visible to
// another process opening the same backend.
func (bt BackendType) SharesRuns() bool {
	return bt == SQLiteBackend
}

// CacheType selects where simulation outputs are cached
type CacheType string

const (
	MemoryCache CacheType = "memory"
	RedisCache  CacheType = "redis"
	NoCache     CacheType = "none"
)

func (ct CacheType) String() string {
	return string(ct)
}

func (ct CacheType) IsValid() bool {
	switch ct {
	case MemoryCache, RedisCache, NoCache:
		return true
	default:
		return false
	}
}
