package repository

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrUnknownBackend = goerr.New("unknown store backend")
)

// Store is the key-value primitive records are persisted in. Values are
// JSON text. Get reports a missing key with ok=false rather than an error.
// Implementations must be safe for concurrent use by two goroutines.
type Store interface {
	// Get returns the value stored under key
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error
	Remove(ctx context.Context, key string) error

	// Keys enumerates every key in the store
	Keys(ctx context.Context) ([]string, error)
}

// Closer is implemented by stores holding external resources.
type Closer interface {
	Close() error
}

type Backend string

const (
	BackendMemory    Backend = "memory"
	BackendBolt      Backend = "bolt"
	BackendSQLite    Backend = "sqlite"
	BackendFirestore Backend = "firestore"
	BackendRedis     Backend = "redis"
)

// Config selects and configures a store backend.
type Config struct {
	Backend Backend

	// bolt
	BoltPath string

	// sqlite
	SQLitePath string

	// firestore
	Project    string
	Database   string
	Collection string

	// redis
	RedisAddr      string
	RedisNamespace string
}

// New opens the store selected by cfg.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemory(), nil

	case BackendBolt:
		return NewBolt(cfg.BoltPath)

	case BackendSQLite:
		return NewSQLite(ctx, cfg.SQLitePath)

	case BackendFirestore:
		return NewFirestore(ctx, cfg.Project, cfg.Database, cfg.Collection)

	case BackendRedis:
		return NewRedis(ctx, cfg.RedisAddr, cfg.RedisNamespace)

	default:
		return nil, goerr.Wrap(ErrUnknownBackend, "failed to open store", goerr.V("backend", cfg.Backend))
	}
}

// Close releases store resources when the store holds any.
func Close(s Store) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}
