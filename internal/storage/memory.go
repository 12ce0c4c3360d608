// Package storage provides Store implementations for the engine's
// persisted state: an in-memory store for tests and the simulation
// binary, and a PostgreSQL-backed store for deployments that mirror
// device state to a server.
package storage

import (
	"context"
	"sync"

	"wakebell/internal/types"
)

// Compile-time assertion that Memory implements Store.
var _ types.Store = (*Memory)(nil)

// Memory is a thread-safe in-memory Store.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte

	// SaveErr and LoadErr are returned by the matching operation when
	// set. Tests use them to simulate storage failure.
	SaveErr error
	LoadErr error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Load returns the value for key, or (nil, nil) if absent.
func (m *Memory) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Save stores a copy of value under key.
func (m *Memory) Save(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	return nil
}
