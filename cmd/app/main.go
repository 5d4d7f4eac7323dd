package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/mediafold/internal"
	pkgconfig "github.com/starford/mediafold/pkg/config"
)

// loadConfig reads the config file named by --config. Serving requires the
// file; the one-shot commands fall back to defaults without one.
func loadConfig(cmd *cli.Command, required bool) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	load := pkgconfig.LoadOptional[internal.Config]
	if required {
		load = pkgconfig.Load[internal.Config]
	}
	if err := load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func collectGarbage(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	grace := cfg.GC.Grace
	if cmd.IsSet("older-than") {
		grace = cmd.Duration("older-than")
	}
	rep, err := internal.CollectGarbage(ctx, grace, cmd.Bool("dry-run"), internal.WithConfig(cfg))
	if encErr := json.NewEncoder(os.Stdout).Encode(rep); encErr != nil && err == nil {
		err = encErr
	}
	return err
}

func transform(direction string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd, false)
		if err != nil {
			return err
		}
		return internal.Transform(ctx, direction, os.Stdin, os.Stdout, internal.WithConfig(cfg))
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "mediafold",
		Usage:  "Keep inline media out of Markdown buffers and put it back on save",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, vault watcher and event stream",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools on stdin/stdout",
				Action: serveMCP,
			},
			{
				Name:   "gc",
				Usage:  "Delete blobs no vault document references",
				Action: collectGarbage,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Only collect blobs minted longer ago than this (default gc.grace)",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Report orphans without deleting them",
					},
				},
			},
			{
				Name:   "expand",
				Usage:  "Expand collapsed references read from stdin",
				Action: transform(internal.TransformExpand),
			},
			{
				Name:   "collapse",
				Usage:  "Collapse inline media read from stdin",
				Action: transform(internal.TransformCollapse),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
