package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/dreamlog/pkg/model"
	"github.com/m-mizutani/dreamlog/pkg/repository"
	"github.com/m-mizutani/dreamlog/pkg/usecase/migration"
	"github.com/m-mizutani/dreamlog/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func migrateCommand() *cli.Command {
	var (
		cfg        config
		dryRun     bool
		noWait     bool
		eagerCount int64
		keyPrefix  string
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Migrate an in-memory copy of the store and leave the store untouched",
			Sources:     cli.EnvVars("DREAMLOG_MIGRATE_DRY_RUN"),
			Destination: &dryRun,
		},
		&cli.BoolFlag{
			Name:        "no-wait",
			Usage:       "Return after the eager phase and leave older records for a later run",
			Sources:     cli.EnvVars("DREAMLOG_MIGRATE_NO_WAIT"),
			Destination: &noWait,
		},
		&cli.IntFlag{
			Name:        "eager-count",
			Usage:       "Override the number of newest records migrated eagerly",
			Sources:     cli.EnvVars("DREAMLOG_EAGER_COUNT"),
			Destination: &eagerCount,
		},
		&cli.StringFlag{
			Name:        "key-prefix",
			Usage:       "Override the prefix selecting record keys",
			Sources:     cli.EnvVars("DREAMLOG_KEY_PREFIX"),
			Destination: &keyPrefix,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "migrate",
		Usage: "Migrate legacy records to the current schema",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.withLogger(ctx, c)
			if err != nil {
				return err
			}

			policy, err := cfg.loadPolicy()
			if err != nil {
				return err
			}
			if c.IsSet("eager-count") {
				policy.EagerCount = int(eagerCount)
			}
			if c.IsSet("key-prefix") {
				policy.KeyPrefix = keyPrefix
			}
			if err := policy.Validate(); err != nil {
				return goerr.Wrap(err, "invalid migration policy")
			}

			store, err := cfg.newStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore(ctx, store)

			target := store
			if dryRun {
				mem := repository.NewMemory()
				if err := mem.CopyFrom(ctx, store); err != nil {
					return goerr.Wrap(err, "failed to copy store for dry run")
				}
				target = mem
			}

			idle := migration.NewIdleNotifier()
			uc := migration.New(target,
				migration.WithPolicy(policy),
				migration.WithIdleScheduler(idle),
			)

			result, err := uc.Migrate(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to migrate records")
			}

			w := c.Root().Writer
			if dryRun {
				fmt.Fprintf(w, "dry run: %s left unchanged\n", cfg.backend)
			}
			printResult(w, "eager", result)

			bg := uc.Background()
			if bg == nil {
				return nil
			}
			if noWait && !dryRun {
				bg.Stop()
				fmt.Fprintf(w, "%d records left for a later run\n", bg.Pending())
				return nil
			}

			// nothing else runs in this process
			idle.Idle()
			if err := waitBackground(ctx, w, bg); err != nil {
				return err
			}
			stats := bg.Stats()
			printResult(w, "background", &stats)
			return nil
		},
	}
}

func waitBackground(ctx context.Context, w io.Writer, bg *migration.Background) error {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " migrating older records"
	s.Start()
	defer s.Stop()

	if err := bg.Wait(ctx); err != nil {
		bg.Stop()
		logging.From(ctx).Warn("background migration interrupted", "pending", bg.Pending())
		return goerr.Wrap(err, "background migration interrupted")
	}
	return nil
}

func printResult(w io.Writer, phase string, r *model.Result) {
	fmt.Fprintf(w, "%s migration: migrated=%d failed=%d skipped=%d", phase, r.Migrated, r.Failed, r.Skipped)
	if r.Deferred > 0 {
		fmt.Fprintf(w, " deferred=%d", r.Deferred)
	}
	if r.Evicted > 0 {
		fmt.Fprintf(w, " evicted=%d", r.Evicted)
	}
	fmt.Fprintf(w, " duration=%s\n", r.Duration.Round(time.Millisecond))
}
