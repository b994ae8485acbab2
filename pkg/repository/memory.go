package repository

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store. Keys enumerate in lexical order.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) Keys(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored keys
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// CopyFrom replaces the contents of m with every entry of src.
func (m *Memory) CopyFrom(ctx context.Context, src Store) error {
	keys, err := src.Keys(ctx)
	if err != nil {
		return err
	}

	data := make(map[string]string, len(keys))
	for _, k := range keys {
		v, ok, err := src.Get(ctx, k)
		if err != nil {
			return err
		}
		if ok {
			data[k] = v
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	return nil
}
