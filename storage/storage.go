// Package storage provides the durable key-value stores backing the
// persistence gateway. Each key holds one serialized collection.
package storage

import (
	"context"
	"fmt"
	"sync"
)

// KV is a durable key-value store holding one JSON document per key
type KV interface {
	// Get returns the stored value and whether the key exists
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put replaces the value stored under key
	Put(ctx context.Context, key string, value []byte) error
	// Ping checks that the store is reachable
	Ping(ctx context.Context) error
	Close() error
}

// Open creates the store selected by driver
func Open(ctx context.Context, driver, path, databaseURL string) (KV, error) {
	switch driver {
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(ctx, path)
	case "postgres":
		return OpenPostgres(ctx, databaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// Compile-time check to ensure Memory implements KV
var _ KV = (*Memory)(nil)

// Memory is an in-process KV used by tests and the "memory" driver
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (m *Memory) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	m.values[key] = stored
	m.mu.Unlock()
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *Memory) Close() error {
	return nil
}
