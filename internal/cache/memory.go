package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is a process-local Store implementation. Credentials are
// short-lived and must never be persisted, so token caches always use
// this backend regardless of the configured shared cache.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string]memoryEntry
	clock func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:  make(map[string]memoryEntry),
		clock: time.Now,
	}
}

// WithClock overrides the time source; used by tests to force expiry.
func (s *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// Set stores a value under key. A non-positive TTL means no expiry.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = s.clock().Add(ttl)
	}

	s.mu.Lock()
	s.data[key] = entry
	s.mu.Unlock()
	return nil
}

// Get retrieves a value by key, respecting expiry.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	entry, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && s.clock().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.data, key)
		s.mu.Unlock()
		return nil, false, nil
	}

	return append([]byte(nil), entry.value...), true, nil
}

// Delete removes keys from the store, ignoring missing keys.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	s.mu.Lock()
	for _, key := range keys {
		delete(s.data, key)
	}
	s.mu.Unlock()
	return nil
}

// IncrementWithTTL atomically increments a counter within a fixed window.
func (s *MemoryStore) IncrementWithTTL(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}

	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[key]
	count := int64(0)
	if ok && (entry.expiresAt.IsZero() || now.Before(entry.expiresAt)) {
		count, _ = strconv.ParseInt(string(entry.value), 10, 64)
	} else {
		entry = memoryEntry{expiresAt: now.Add(window)}
	}

	count++
	entry.value = []byte(strconv.FormatInt(count, 10))
	s.data[key] = entry

	return count, entry.expiresAt.Sub(now), nil
}
