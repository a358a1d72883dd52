// Package watch reloads a model file whenever it changes on disk.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"netgraph/internal/model"
)

const DefaultDebounce = 200 * time.Millisecond

// Handler receives each reloaded model, or the error that prevented it.
type Handler func(m *model.Model, err error)

type Option func(*Watcher)

func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// Watcher watches the directory holding a model file so that editors which
// replace the file on save are still observed.
type Watcher struct {
	path     string
	format   model.Format
	onChange Handler
	debounce time.Duration
	log      *zap.Logger
}

func New(path string, onChange Handler, opts ...Option) (*Watcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("watch %s: handler is required", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	format, err := model.FormatFromPath(abs)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:     abs,
		format:   format,
		onChange: onChange,
		debounce: DefaultDebounce,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Load reads, parses and validates the watched file once.
func (w *Watcher) Load() (*model.Model, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, err
	}
	m, err := model.Parse(w.format, data)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Run blocks until ctx is cancelled, calling the handler after each burst
// of writes to the file settles.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.log.Info("watching model file", zap.String("path", w.path))

	var (
		timer  *time.Timer
		reload <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.log.Debug("model file changed", zap.String("op", event.Op.String()))
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			reload = timer.C

		case <-reload:
			reload = nil
			m, err := w.Load()
			if err != nil {
				w.log.Warn("model reload failed", zap.String("path", w.path), zap.Error(err))
			} else {
				w.log.Info("model reloaded", zap.String("path", w.path), zap.String("model_id", m.ID))
			}
			w.onChange(m, err)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("file watcher error", zap.Error(err))
		}
	}
}
