package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/sarchip/internal/logger"
)

var (
	logLevel   string
	logFormat  string
	debug      bool
	configFile string

	// settings holds the config file loaded by setup.
	settings Config
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml (default: user config dir)",
			Destination: &configFile,
		},
	}
}

// setup loads the config file and stores the configured logger in ctx.
func setup(ctx context.Context, c *cli.Command) (context.Context, error) {
	path := configFile
	if path == "" {
		path = configPath()
	}
	cfg, err := LoadConfig(path, c.IsSet("config"))
	if err != nil {
		return ctx, err
	}
	settings = cfg
	applyLogConfig(c, cfg)

	level := slog.LevelDebug
	if !debug {
		if level, err = logger.ParseLevel(logLevel); err != nil {
			return ctx, err
		}
	}
	log, err := logger.NewWithFormat(logFormat, os.Stderr, level)
	if err != nil {
		return ctx, err
	}
	if cfg.path != "" {
		log.Debug("loaded config", "path", cfg.path)
	}
	return logger.WithContext(ctx, log), nil
}
