package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Memory is a process-local Cache backed by ttlcache. Expired entries are
// invisible to Get and Len.
type Memory struct {
	items *ttlcache.Cache[string, []byte]
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		items: ttlcache.New[string, []byte](
			ttlcache.WithDisableTouchOnHit[string, []byte](),
		),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	it := m.items.Get(key)
	if it == nil {
		return nil, ErrMiss
	}
	v := it.Value()
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set stores a copy of value. A non-positive ttl stores nothing.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.items.Set(key, cp, ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.items.Delete(k)
	}
	return nil
}

func (m *Memory) Flush(_ context.Context) error {
	m.items.DeleteAll()
	return nil
}

// Len returns the number of unexpired entries.
func (m *Memory) Len() int {
	return m.items.Len()
}

var _ Cache = (*Memory)(nil)
