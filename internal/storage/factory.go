package storage

import "fmt"

func NewStore(kind, sqlitePath string, opts ...Option) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(opts...), nil
	case "sqlite":
		return newSQLiteStore(sqlitePath, opts...)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
