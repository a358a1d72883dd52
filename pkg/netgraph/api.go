// Package netgraph is the public entry point for storing, loading and
// compiling topology models.
package netgraph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"netgraph/internal/compiler"
	"netgraph/internal/engine/dense"
	"netgraph/internal/model"
	"netgraph/internal/optimizer"
	"netgraph/internal/storage"
)

const (
	defaultExportsDir = "exports"
	defaultDBPath     = "netgraph.db"
)

var ErrModelNotFound = errors.New("model not found")

type Options struct {
	StoreKind  string
	DBPath     string
	ExportsDir string
	// Seed drives weight initialization in Compile.
	Seed   uint64
	Logger *zap.Logger
}

type Client struct {
	store      storage.Store
	log        *zap.Logger
	seed       uint64
	exportsDir string
}

type ExportRequest struct {
	ID     string
	Format model.Format
	OutDir string
}

type ExportSummary struct {
	ID   string
	Path string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = dense.DefaultSeed
	}

	store, err := storage.NewStore(storeKind, dbPath, storage.WithLogger(log))
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		log:        log,
		seed:       seed,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

func (c *Client) Save(ctx context.Context, m *model.Model) error {
	return c.store.SaveModel(ctx, m)
}

func (c *Client) Get(ctx context.Context, id string) (*model.Model, error) {
	m, ok, err := c.store.GetModel(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	return m, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	removed, err := c.store.DeleteModel(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	return nil
}

func (c *Client) List(ctx context.Context) ([]model.Summary, error) {
	return c.store.ListModels(ctx)
}

// Import reads a model file, validates it and saves it.
func (c *Client) Import(ctx context.Context, path string) (*model.Model, error) {
	m, err := ReadModelFile(path)
	if err != nil {
		return nil, err
	}
	if err := c.Save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Export writes a stored model to <OutDir>/<id>.<format>.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.ID == "" {
		return ExportSummary{}, errors.New("export requires a model id")
	}
	format := req.Format
	if format == "" {
		format = model.FormatJSON
	}
	outDir := req.OutDir
	if outDir == "" {
		outDir = c.exportsDir
	}

	m, err := c.Get(ctx, req.ID)
	if err != nil {
		return ExportSummary{}, err
	}
	data, err := m.Serialize(format)
	if err != nil {
		return ExportSummary{}, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return ExportSummary{}, fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(outDir, req.ID+"."+string(format))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ExportSummary{}, fmt.Errorf("write export: %w", err)
	}
	c.log.Info("model exported", zap.String("model_id", req.ID), zap.String("path", path))
	return ExportSummary{ID: req.ID, Path: path}, nil
}

// Compile builds m on the gonum reference engine.
func (c *Client) Compile(ctx context.Context, m *model.Model, opt optimizer.Optimizer) (*compiler.Result, error) {
	eng := dense.New(dense.WithSeed(c.seed), dense.WithLogger(c.log))
	return compiler.Compile(ctx, m, opt, eng, compiler.WithLogger(c.log))
}

// ReadModelFile parses a .json, .yaml or .yml model file and validates it.
func ReadModelFile(path string) (*model.Model, error) {
	format, err := model.FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := model.Parse(format, data)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
