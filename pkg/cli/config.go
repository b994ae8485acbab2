package cli

import (
	"context"
	"io"
	"os"

	"github.com/m-mizutani/dreamlog/pkg/repository"
	"github.com/m-mizutani/dreamlog/pkg/usecase/migration"
	"github.com/m-mizutani/dreamlog/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Store
	backend        string
	boltPath       string
	sqlitePath     string
	project        string
	database       string
	collection     string
	redisAddr      string
	redisNamespace string

	// Migration
	policyPath string

	// Logging
	logLevel  string
	logFormat string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "backend",
			Aliases:     []string{"b"},
			Usage:       "Store backend (bolt, sqlite, firestore, redis, memory)",
			Value:       string(repository.BackendBolt),
			Sources:     cli.EnvVars("DREAMLOG_BACKEND"),
			Destination: &cfg.backend,
		},
		&cli.StringFlag{
			Name:        "bolt-path",
			Usage:       "Path of the bolt database file",
			Value:       "dreamlog.db",
			Sources:     cli.EnvVars("DREAMLOG_BOLT_PATH"),
			Destination: &cfg.boltPath,
		},
		&cli.StringFlag{
			Name:        "sqlite-path",
			Usage:       "Path of the SQLite database file",
			Value:       "dreamlog.sqlite",
			Sources:     cli.EnvVars("DREAMLOG_SQLITE_PATH"),
			Destination: &cfg.sqlitePath,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("DREAMLOG_PROJECT", "GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("DREAMLOG_DATABASE", "FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "collection",
			Usage:       "Firestore collection holding records",
			Value:       "records",
			Sources:     cli.EnvVars("DREAMLOG_COLLECTION"),
			Destination: &cfg.collection,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis server address",
			Value:       "localhost:6379",
			Sources:     cli.EnvVars("DREAMLOG_REDIS_ADDR"),
			Destination: &cfg.redisAddr,
		},
		&cli.StringFlag{
			Name:        "redis-namespace",
			Usage:       "Prefix of every Redis key owned by the store",
			Value:       "dreamlog:",
			Sources:     cli.EnvVars("DREAMLOG_REDIS_NAMESPACE"),
			Destination: &cfg.redisNamespace,
		},
		&cli.StringFlag{
			Name:        "policy",
			Usage:       "Path of a YAML migration policy file",
			Sources:     cli.EnvVars("DREAMLOG_POLICY"),
			Destination: &cfg.policyPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("DREAMLOG_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       string(logging.FormatConsole),
			Sources:     cli.EnvVars("DREAMLOG_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
	}
}

// withLogger attaches a logger built from the logging flags to ctx
func (cfg *config) withLogger(ctx context.Context, c *cli.Command) (context.Context, error) {
	format, err := logging.ParseFormat(cfg.logFormat)
	if err != nil {
		return nil, err
	}

	var w io.Writer = os.Stderr
	if root := c.Root(); root != nil && root.ErrWriter != nil {
		w = root.ErrWriter
	}

	logger := logging.NewWithFormat(cfg.logLevel, format, w)
	logging.SetDefault(logger)
	return logging.With(ctx, logger), nil
}

// newStore opens the configured store. The caller closes it with repository.Close.
func (cfg *config) newStore(ctx context.Context) (repository.Store, error) {
	backend := repository.Backend(cfg.backend)
	switch backend {
	case repository.BackendBolt:
		if cfg.boltPath == "" {
			return nil, goerr.New("bolt-path is required")
		}
	case repository.BackendSQLite:
		if cfg.sqlitePath == "" {
			return nil, goerr.New("sqlite-path is required")
		}
	case repository.BackendFirestore:
		if cfg.project == "" {
			return nil, goerr.New("project is required")
		}
	case repository.BackendRedis:
		if cfg.redisAddr == "" {
			return nil, goerr.New("redis-addr is required")
		}
	}

	store, err := repository.New(ctx, repository.Config{
		Backend:        backend,
		BoltPath:       cfg.boltPath,
		SQLitePath:     cfg.sqlitePath,
		Project:        cfg.project,
		Database:       cfg.database,
		Collection:     cfg.collection,
		RedisAddr:      cfg.redisAddr,
		RedisNamespace: cfg.redisNamespace,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open store", goerr.V("backend", cfg.backend))
	}
	return store, nil
}

// loadPolicy reads the policy file, if any
func (cfg *config) loadPolicy() (migration.Policy, error) {
	policy, err := migration.LoadPolicy(cfg.policyPath)
	if err != nil {
		return migration.Policy{}, goerr.Wrap(err, "failed to load migration policy")
	}
	return policy, nil
}

// closeStore releases the store and logs a failure to do so
func closeStore(ctx context.Context, store repository.Store) {
	if err := repository.Close(store); err != nil {
		logging.From(ctx).Warn("failed to close store", "error", err)
	}
}
