package storage

import (
	"errors"
	"sync"
)

// ErrInvalidKey returned for keys a backend can't address
var ErrInvalidKey = errors.New("invalid key")

// Store is a minimal key-value contract. Get reports ok=false for missing keys,
// err is reserved for a backend failing to answer.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// Memory is a process-local store
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory makes an empty memory store
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Get returns value for the key
func (m *Memory) Get(key string) (value string, ok bool, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok = m.data[key]
	return value, ok, nil
}

// Set stores value for the key, overwriting previous one
func (m *Memory) Set(key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Keys returns all stored keys, in no particular order
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]string, 0, len(m.data))
	for k := range m.data {
		res = append(res, k)
	}
	return res
}

func (m *Memory) String() string {
	return "memory"
}
