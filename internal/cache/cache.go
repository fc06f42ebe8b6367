// Package cache stores small JSON documents (the category sidebar) with a TTL.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type Cache interface {
	// GetJSON reports a hit and unmarshals the value into dest.
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Nop never stores anything. Used when REDIS_ADDR is empty.
type Nop struct{}

func (Nop) GetJSON(context.Context, string, any) (bool, error) { return false, nil }
func (Nop) SetJSON(context.Context, string, any, time.Duration) error { return nil }
func (Nop) Delete(context.Context, ...string) error { return nil }

type memEntry struct {
	data    []byte
	expires time.Time
}

// Memory is an in-process Cache for tests and single-instance runs.
type Memory struct {
	mu    sync.Mutex
	items map[string]memEntry
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]memEntry), now: time.Now}
}

func (m *Memory) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	e, ok := m.items[key]
	if ok && !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.items, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(e.data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Memory) SetJSON(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	e := memEntry{data: data}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.items[key] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.items, k)
	}
	m.mu.Unlock()
	return nil
}
