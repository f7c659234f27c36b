// Command csvds ingests CSV/TSV files into a DuckDB document store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "csvds",
		Usage: "CSV/TSV file ingestion connector",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "config file (default is $HOME/.config/csvds/config.yml)",
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "environment file",
				Value: ".env",
			},
			&cli.StringSliceFlag{
				Name:  "param",
				Usage: "job parameter override, key=value (repeatable)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "ingest the configured files once and exit",
				Action: runAction,
			},
			{
				Name:   "watch",
				Usage:  "watch the configured directories and ingest settled files",
				Action: watchAction,
			},
			{
				Name:  "version",
				Usage: "print version information",
				Action: func(_ context.Context, cmd *cli.Command) error {
					fmt.Fprintf(cmd.Root().Writer, "csvds - CSV/TSV ingestion connector\n")
					fmt.Fprintf(cmd.Root().Writer, "  Version:    %s\n", version)
					fmt.Fprintf(cmd.Root().Writer, "  Commit:     %s\n", commit)
					fmt.Fprintf(cmd.Root().Writer, "  Built:      %s\n", buildTime)
					fmt.Fprintf(cmd.Root().Writer, "  Go version: %s\n", goVersion)
					return nil
				},
			},
		},
	}
}

func configFromCommand(cmd *cli.Command) (appConfig, error) {
	cfg, err := loadConfig(cmd.String("config"), cmd.String("env"), cmd.StringSlice("param"))
	if err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := configFromCommand(cmd)
	if err != nil {
		return err
	}
	cleanupLogger := configureRuntimeLogger(cfg.LogFile)
	defer cleanupLogger()

	printStartupBanner(cfg, "run")

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.runOnce(ctx)
	fmt.Fprintf(cmd.Root().Writer, "    files=%d stored=%d discarded=%d failed=%d\n",
		len(summary.Files), summary.Stored, summary.Discarded, summary.Failed)
	return err
}

func watchAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := configFromCommand(cmd)
	if err != nil {
		return err
	}
	cleanupLogger := configureRuntimeLogger(cfg.LogFile)
	defer cleanupLogger()

	printStartupBanner(cfg, "watch")

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.watch(ctx)
}
