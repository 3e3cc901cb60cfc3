// Package commands implements the `worklog` CLI surface: the command tree
// is the application's host binary, while report *formatting* (as opposed
// to the command surface itself) stays out of the attribution core per
// spec.md §1.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/sjawhar/worklog/internal/config"
	"github.com/sjawhar/worklog/internal/store"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "worklog",
		Usage: "Track direct and delegated working time across streams",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level := slog.LevelInfo
			if cfg, err := config.Load(cmd.String("config")); err == nil {
				_ = level.UnmarshalText([]byte(cfg.Log.Level))
			}
			if cmd.Bool("debug") {
				level = slog.LevelDebug
			}
			slog.SetLogLoggerLevel(level)
			return ctx, nil
		},
		Commands: []*cli.Command{
			NewIngestCommand(),
			NewInferCommand(),
			NewReportCommand(),
			NewTagCommand(),
			NewStreamCommand(),
			NewStatusCommand(),
			NewWatchCommand(),
		},
	}
}

// openStore opens the SQLite store named by the command's --config-derived
// path, honoring an explicit --db override if the caller supplies one.
func openStore(cmd *cli.Command) (*store.SQLiteStore, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	path := cfg.Store.Path
	if v := cmd.String("db"); v != "" {
		path = v
	}

	s, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	return s, nil
}

func loadConfig(cmd *cli.Command) *config.Config {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		slog.Warn("failed to load config, using defaults", "error", err)
		cfg = &config.Config{}
	}
	return cfg
}

var dbFlag = &cli.StringFlag{
	Name:  "db",
	Usage: "Path to the worklog SQLite database (overrides config)",
}
