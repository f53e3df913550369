package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the sarchip configuration file (~/.config/sarchip/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Accessors
	NoMmap *bool `yaml:"no_mmap"`

	// create defaults
	DataType        string `yaml:"dtype"`
	MaxSegmentBytes *int64 `yaml:"max_segment_bytes"`
	MaxCols         *int   `yaml:"max_cols"`

	// Server
	ServerAddress string `yaml:"server_address"`

	path string
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "sarchip", "config.yaml")
}

// LoadConfig reads the config file at path. A missing file yields a zero
// Config unless the path was given explicitly.
func LoadConfig(path string, explicit bool) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.path = path
	return cfg, nil
}

// applyLogConfig applies config file defaults to the global logging flags
// when they were not set on the command line.
func applyLogConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyCreateConfig applies config file defaults to create command variables.
func applyCreateConfig(c *cli.Command, cfg Config, dtype *string, maxSegmentBytes *int64, maxCols *int, noMmap *bool) {
	if cfg.DataType != "" && !c.IsSet("dtype") {
		*dtype = cfg.DataType
	}
	if cfg.MaxSegmentBytes != nil && !c.IsSet("max-segment-bytes") {
		*maxSegmentBytes = *cfg.MaxSegmentBytes
	}
	if cfg.MaxCols != nil && !c.IsSet("max-cols") {
		*maxCols = *cfg.MaxCols
	}
	applyAccessConfig(c, cfg, noMmap)
}

func applyAccessConfig(c *cli.Command, cfg Config, noMmap *bool) {
	if cfg.NoMmap != nil && !c.IsSet("no-mmap") {
		*noMmap = *cfg.NoMmap
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string, noMmap *bool) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	applyAccessConfig(c, cfg, noMmap)
}
