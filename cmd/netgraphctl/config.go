package main

import (
	"flag"
	"fmt"

	"go.uber.org/zap"

	"netgraph/internal/config"
	"netgraph/internal/logging"
	"netgraph/internal/optimizer"
	"netgraph/internal/storage"
	ngapi "netgraph/pkg/netgraph"
)

// commonFlags are shared by every subcommand. Flags set on the command line
// win over the config file and NETGRAPH_* variables.
type commonFlags struct {
	fs         *flag.FlagSet
	configPath *string
	store      *string
	dbPath     *string
	logLevel   *string
	format     *string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		fs:         fs,
		configPath: fs.String("config", "", "path to a YAML config file"),
		store:      fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:     fs.String("db-path", config.DefaultDBPath, "sqlite database path"),
		logLevel:   fs.String("log-level", "info", "log level: debug|info|warn|error"),
		format:     fs.String("format", "json", "model output format: json|yaml"),
	}
}

func (f *commonFlags) resolve() (config.Config, error) {
	cfg, err := config.Load(*f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "store":
			cfg.Store = *f.store
		case "db-path":
			cfg.DBPath = *f.dbPath
		case "log-level":
			cfg.LogLevel = *f.logLevel
		case "format":
			cfg.Format = *f.format
		}
	})
	if cfg.Format == "yml" {
		cfg.Format = "yaml"
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogLevel)
}

func newClient(cfg config.Config, log *zap.Logger, seed uint64) (*ngapi.Client, error) {
	return ngapi.New(ngapi.Options{
		StoreKind: cfg.Store,
		DBPath:    cfg.DBPath,
		Seed:      seed,
		Logger:    log,
	})
}

// optimizerFlags override the configured optimizer.
type optimizerFlags struct {
	kind         *string
	learningRate *float64
}

func addOptimizerFlags(fs *flag.FlagSet) *optimizerFlags {
	return &optimizerFlags{
		kind:         fs.String("optimizer", "", "optimizer: sgd|momentum|adagrad|adadelta|adam|adamax|rmsprop"),
		learningRate: fs.Float64("learning-rate", 0, "optimizer learning rate (0 keeps the default)"),
	}
}

func (o *optimizerFlags) resolve(cfg config.Config) (optimizer.Optimizer, error) {
	opt := cfg.Optimizer.Clone()
	if *o.kind != "" {
		kind, err := optimizer.ParseKind(*o.kind)
		if err != nil {
			return optimizer.Optimizer{}, err
		}
		opt = optimizer.New(kind)
	}
	if *o.learningRate < 0 {
		return optimizer.Optimizer{}, fmt.Errorf("learning-rate must be > 0")
	}
	if *o.learningRate > 0 {
		lr := *o.learningRate
		opt.LearningRate = &lr
	}
	if err := opt.Validate(); err != nil {
		return optimizer.Optimizer{}, err
	}
	return opt, nil
}
