package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/dreamlog/pkg/usecase/migration"
	"github.com/urfave/cli/v3"
)

func usageCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "usage",
		Usage: "Show the estimated storage usage against the configured ceiling",
		Flags: globalFlags(&cfg),
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

			usage := migration.New(store, migration.WithPolicy(policy)).EstimateUsage(ctx)
			limit := policy.HighWaterBytes()

			w := c.Root().Writer
			fmt.Fprintf(w, "usage\t%d bytes\n", usage)
			fmt.Fprintf(w, "ceiling\t%d bytes\n", policy.StorageCeiling)
			fmt.Fprintf(w, "high-water\t%d bytes (%.0f%%)\n", limit, policy.HighWaterMark*100)
			fmt.Fprintf(w, "over\t%t\n", usage > limit)
			return nil
		},
	}
}
