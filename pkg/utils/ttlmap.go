package utils

import (
	"sync"
	"time"
)

// TTLMap is a map whose entries expire after a fixed time to live.
// Every access to an entry refreshes its expiry.
type TTLMap[K comparable, V any] struct {
	mu      sync.Mutex
	data    map[K]V
	expires map[K]time.Time
	ttl     time.Duration
	stop    chan struct{}
	once    sync.Once
}

// NewTTLMap creates a new TTL map and starts its sweeper.
func NewTTLMap[K comparable, V any](ttl time.Duration) *TTLMap[K, V] {
	m := &TTLMap[K, V]{
		data:    make(map[K]V),
		expires: make(map[K]time.Time),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}

	go m.cleanup()

	return m
}

// Get retrieves a live value from the map.
func (m *TTLMap[K, V]) Get(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.getLocked(key, time.Now())
}

// GetOrCreate returns the live value for key, storing create() first if there is none.
func (m *TTLMap[K, V]) GetOrCreate(key K, create func() V) V {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if value, ok := m.getLocked(key, now); ok {
		return value
	}

	value := create()
	m.data[key] = value
	m.expires[key] = now.Add(m.ttl)
	return value
}

// Set adds or updates a value in the map.
func (m *TTLMap[K, V]) Set(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = value
	m.expires[key] = time.Now().Add(m.ttl)
}

// Delete removes a key from the map.
func (m *TTLMap[K, V]) Delete(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	delete(m.expires, key)
}

// Len returns the number of stored entries, expired ones included until the next sweep.
func (m *TTLMap[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.data)
}

// Close stops the sweeper.
func (m *TTLMap[K, V]) Close() {
	m.once.Do(func() { close(m.stop) })
}

func (m *TTLMap[K, V]) getLocked(key K, now time.Time) (V, bool) {
	value, exists := m.data[key]
	if !exists || now.After(m.expires[key]) {
		var zero V
		return zero, false
	}

	m.expires[key] = now.Add(m.ttl)
	return value, true
}

// cleanup periodically removes expired entries.
func (m *TTLMap[K, V]) cleanup() {
	ticker := time.NewTicker(m.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.mu.Lock()
			for key, expires := range m.expires {
				if now.After(expires) {
					delete(m.data, key)
					delete(m.expires, key)
				}
			}
			m.mu.Unlock()
		}
	}
}
