package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/dreamlog/pkg/usecase/migration"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func evictCommand() *cli.Command {
	var (
		cfg  config
		keep int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "keep",
			Aliases:     []string{"k"},
			Usage:       "Number of newest records to keep",
			Sources:     cli.EnvVars("DREAMLOG_EVICT_KEEP"),
			Destination: &keep,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "evict",
		Usage: "Delete every record older than the newest --keep ones",
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

			store, err := cfg.newStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore(ctx, store)

			removed, err := migration.New(store, migration.WithPolicy(policy)).Evict(ctx, int(keep))
			if err != nil {
				return goerr.Wrap(err, "failed to evict records")
			}

			fmt.Fprintf(c.Root().Writer, "evicted %d records\n", removed)
			return nil
		},
	}
}
