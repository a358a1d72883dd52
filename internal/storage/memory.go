package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"netgraph/internal/model"
)

// MemoryStore keeps encoded models so callers never share state with the
// store.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	models      map[string][]byte
	log         *zap.Logger
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	o := applyOptions(opts)
	return &MemoryStore{log: o.log}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.models = make(map[string][]byte)
	return nil
}

func (s *MemoryStore) SaveModel(_ context.Context, m *model.Model) error {
	payload, err := EncodeModel(m)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.models[m.ID] = payload
	s.log.Debug("model saved", zap.String("model_id", m.ID), zap.Int("bytes", len(payload)))
	return nil
}

func (s *MemoryStore) GetModel(_ context.Context, id string) (*model.Model, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, false, ErrNotInitialized
	}
	payload, ok := s.models[id]
	if !ok {
		return nil, false, nil
	}
	m, err := DecodeModel(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode model %s: %w", id, err)
	}
	return m, true, nil
}

func (s *MemoryStore) DeleteModel(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return false, ErrNotInitialized
	}
	_, ok := s.models[id]
	delete(s.models, id)
	return ok, nil
}

func (s *MemoryStore) ListModels(_ context.Context) ([]model.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	ids := make([]string, 0, len(s.models))
	for id := range s.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]model.Summary, 0, len(ids))
	for _, id := range ids {
		m, err := DecodeModel(s.models[id])
		if err != nil {
			return nil, fmt.Errorf("decode model %s: %w", id, err)
		}
		out = append(out, m.Summary())
	}
	return out, nil
}
