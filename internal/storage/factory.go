package storage

import (
	"context"
	"fmt"
)

// NewStore builds a run store backend. An empty kind picks the backend
// compiled into this binary.
func NewStore(kind, sqlitePath string) (Store, error) {
	if kind == "" {
		kind = DefaultStoreKind()
	}
	switch kind {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported run store backend: %s", kind)
	}
}

// Open builds and initializes a run store. The store is closed again if
// initialization fails.
func Open(ctx context.Context, kind, sqlitePath string) (Store, error) {
	store, err := NewStore(kind, sqlitePath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = Close(store)
		return nil, fmt.Errorf("init %s store: %w", kind, err)
	}
	return store, nil
}

// Close releases backends that hold resources. The memory store has none.
func Close(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
