// Package config loads CLI settings from defaults, an optional YAML file and
// NETGRAPH_* environment variables, in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"netgraph/internal/optimizer"
	"netgraph/internal/storage"
)

const (
	EnvStore    = "NETGRAPH_STORE"
	EnvDBPath   = "NETGRAPH_DB_PATH"
	EnvLogLevel = "NETGRAPH_LOG_LEVEL"
	EnvFormat   = "NETGRAPH_FORMAT"

	DefaultDBPath = "netgraph.db"
)

var validate = validator.New()

type Config struct {
	Store     string              `yaml:"store" validate:"oneof=memory sqlite"`
	DBPath    string              `yaml:"db_path" validate:"required_if=Store sqlite"`
	LogLevel  string              `yaml:"log_level" validate:"oneof=debug info warn error"`
	Format    string              `yaml:"format" validate:"oneof=json yaml"`
	Optimizer optimizer.Optimizer `yaml:"optimizer" validate:"-"`
}

func Default() Config {
	return Config{
		Store:     storage.DefaultStoreKind(),
		DBPath:    DefaultDBPath,
		LogLevel:  "info",
		Format:    "json",
		Optimizer: optimizer.New(optimizer.Adam),
	}
}

// Load applies the file at path (skipped when empty) and the environment
// over the defaults, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)

	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config) {
	for name, dst := range map[string]*string{
		EnvStore:    &cfg.Store,
		EnvDBPath:   &cfg.DBPath,
		EnvLogLevel: &cfg.LogLevel,
		EnvFormat:   &cfg.Format,
	} {
		if v, ok := os.LookupEnv(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
}

func (c *Config) normalize() error {
	c.Store = strings.ToLower(c.Store)
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.Format = strings.ToLower(c.Format)
	if c.Format == "yml" {
		c.Format = "yaml"
	}
	kind, err := optimizer.ParseKind(string(c.Optimizer.Type))
	if err != nil {
		return fmt.Errorf("config optimizer: %w", err)
	}
	c.Optimizer.Type = kind
	return nil
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := c.Optimizer.Validate(); err != nil {
		return fmt.Errorf("config optimizer: %w", err)
	}
	return nil
}
