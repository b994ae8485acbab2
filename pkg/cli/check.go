package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/dreamlog/pkg/usecase/migration"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func checkCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "check",
		Usage: "Report whether stored records look like they need migration",
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

			needed, err := migration.New(store, migration.WithPolicy(policy)).Check(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to check records")
			}

			fmt.Fprintf(c.Root().Writer, "migration needed: %t\n", needed)
			return nil
		},
	}
}
