package storage

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"netgraph/internal/model"
)

var ErrNotInitialized = errors.New("store is not initialized")

// Store persists validated models keyed by id.
type Store interface {
	Init(ctx context.Context) error
	SaveModel(ctx context.Context, m *model.Model) error
	GetModel(ctx context.Context, id string) (*model.Model, bool, error)
	// DeleteModel reports whether a model was removed.
	DeleteModel(ctx context.Context, id string) (bool, error)
	// ListModels returns summaries ordered by id.
	ListModels(ctx context.Context) ([]model.Summary, error)
}

type Option func(*options)

type options struct {
	log *zap.Logger
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
