package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/m-mizutani/dreamlog/pkg/adapter"
	"github.com/m-mizutani/dreamlog/pkg/usecase/backup"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// snapshotTarget holds the flags locating a snapshot: a local file or a GCS object
type snapshotTarget struct {
	file   string
	bucket string
	object string
}

func snapshotFlags(t *snapshotTarget, fileFlag, fileUsage string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        fileFlag,
			Aliases:     []string{fileFlag[:1]},
			Usage:       fileUsage,
			Destination: &t.file,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket holding the snapshot",
			Sources:     cli.EnvVars("DREAMLOG_BACKUP_BUCKET"),
			Destination: &t.bucket,
		},
		&cli.StringFlag{
			Name:        "object",
			Usage:       "Cloud Storage object name of the snapshot",
			Value:       "dreamlog/snapshot.jsonl",
			Sources:     cli.EnvVars("DREAMLOG_BACKUP_OBJECT"),
			Destination: &t.object,
		},
	}
}

// open resolves the target into a Storage and the key of the snapshot in it
func (t *snapshotTarget) open(ctx context.Context) (adapter.Storage, string, error) {
	switch {
	case t.file != "" && t.bucket != "":
		return nil, "", goerr.New("local file and bucket are mutually exclusive")

	case t.file != "":
		abs, err := filepath.Abs(t.file)
		if err != nil {
			return nil, "", goerr.Wrap(err, "failed to resolve snapshot path", goerr.V("file", t.file))
		}
		return adapter.NewFileStorage(filepath.Dir(abs)), filepath.Base(abs), nil

	case t.bucket != "":
		st, err := adapter.NewStorage(ctx, t.bucket)
		if err != nil {
			return nil, "", goerr.Wrap(err, "failed to create storage")
		}
		return st, t.object, nil

	default:
		return nil, "", goerr.New("either a local file or a bucket is required")
	}
}

func backupCommand() *cli.Command {
	var (
		cfg    config
		target snapshotTarget
	)

	flags := snapshotFlags(&target, "output", "Path of the snapshot file to write")
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "backup",
		Usage: "Write every stored entry to a JSON lines snapshot",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.withLogger(ctx, c)
			if err != nil {
				return err
			}

			st, key, err := target.open(ctx)
			if err != nil {
				return err
			}

			store, err := cfg.newStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore(ctx, store)

			n, err := backup.Export(ctx, store, st, key)
			if err != nil {
				return goerr.Wrap(err, "failed to back up store")
			}

			fmt.Fprintf(c.Root().Writer, "backed up %d entries to %s\n", n, key)
			return nil
		},
	}
}

func restoreCommand() *cli.Command {
	var (
		cfg    config
		target snapshotTarget
	)

	flags := snapshotFlags(&target, "input", "Path of the snapshot file to read")
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "restore",
		Usage: "Load a JSON lines snapshot into the store",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.withLogger(ctx, c)
			if err != nil {
				return err
			}

			st, key, err := target.open(ctx)
			if err != nil {
				return err
			}

			store, err := cfg.newStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore(ctx, store)

			n, err := backup.Import(ctx, store, st, key)
			if err != nil {
				return goerr.Wrap(err, "failed to restore store")
			}

			fmt.Fprintf(c.Root().Writer, "restored %d entries from %s\n", n, key)
			return nil
		},
	}
}
