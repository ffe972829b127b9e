package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"farm-copilot/internal/common/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxEntries bounds the in-process cache when no size is configured.
const DefaultMaxEntries = 1024

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process LRU bounded TTL cache.
type Memory struct {
	mu         sync.Mutex
	entries    *lru.Cache[string, entry]
	defaultTTL time.Duration
	now        func() time.Time
}

func NewMemory(maxEntries int, defaultTTL time.Duration) (*Memory, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	entries, err := lru.New[string, entry](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Memory{entries: entries, defaultTTL: defaultTTL, now: time.Now}, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries.Get(key)
	if !ok {
		metrics.CacheLookups.WithLabelValues("memory", "miss").Inc()
		return nil, false
	}
	if !m.now().Before(e.expiresAt) {
		m.entries.Remove(key)
		metrics.CacheLookups.WithLabelValues("memory", "expired").Inc()
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues("memory", "hit").Inc()
	return e.value, true
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) {
	m.SetWithTTL(ctx, key, value, m.defaultTTL)
}

func (m *Memory) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries.Add(key, entry{value: value, expiresAt: m.now().Add(ttl)})
}

func (m *Memory) Delete(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries.Remove(key)
}

// Len reports stored entries, expired ones included until they are read.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries.Len()
}
