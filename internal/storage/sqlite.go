//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"netgraph/internal/model"

	_ "modernc.org/sqlite"
)

// DefaultStoreKind is the backend used when none is configured.
func DefaultStoreKind() string {
	return "sqlite"
}

type SQLiteStore struct {
	path string
	log  *zap.Logger

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string, opts ...Option) *SQLiteStore {
	o := applyOptions(opts)
	return &SQLiteStore{path: path, log: o.log}
}

func newSQLiteStore(path string, opts ...Option) (Store, error) {
	return NewSQLiteStore(path, opts...), nil
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	s.log.Debug("sqlite store opened", zap.String("path", s.path))
	return nil
}

func (s *SQLiteStore) SaveModel(ctx context.Context, m *model.Model) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeModel(m)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO models (id, schema_version, codec_version, name, updated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			name = excluded.name,
			updated_at = excluded.updated_at,
			payload = excluded.payload
	`, m.ID, CurrentSchemaVersion, CurrentCodecVersion, m.Name, m.UpdatedAt, payload)
	if err != nil {
		return err
	}
	s.log.Debug("model saved", zap.String("model_id", m.ID), zap.Int("bytes", len(payload)))
	return nil
}

func (s *SQLiteStore) GetModel(ctx context.Context, id string) (*model.Model, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM models WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	m, err := DecodeModel(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode model %s: %w", id, err)
	}
	return m, true, nil
}

func (s *SQLiteStore) DeleteModel(ctx context.Context, id string) (bool, error) {
	db, err := s.getDB()
	if err != nil {
		return false, err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM models WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListModels(ctx context.Context) ([]model.Summary, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, payload FROM models ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Summary
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		m, err := DecodeModel(payload)
		if err != nil {
			return nil, fmt.Errorf("decode model %s: %w", id, err)
		}
		out = append(out, m.Summary())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS models (
			id TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			name TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
	`)
	return err
}
