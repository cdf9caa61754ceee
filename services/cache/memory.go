package cache

import (
	"sync"
	"time"
)

const defaultMaxEntries = 100

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryService is the in-process CacheService fallback: a bounded map
// with lazy expiry. When full, the entry closest to expiry is evicted.
type MemoryService struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	maxEntries int
}

// NewMemoryService creates a bounded in-process cache
func NewMemoryService(maxEntries int) *MemoryService {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &MemoryService{
		entries:    make(map[string]memoryEntry, maxEntries),
		maxEntries: maxEntries,
	}
}

// Get retrieves a value, expiring it lazily on access
func (m *MemoryService) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores a value, evicting the soonest-expiring entry when full
func (m *MemoryService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
		m.evictSoonest()
	}
	m.entries[key] = memoryEntry{
		value:     value,
		expiresAt: time.Now().Add(expiration),
	}
	return nil
}

// Delete removes a value from the cache
func (m *MemoryService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// evictSoonest drops the entry closest to expiry; caller holds the lock
func (m *MemoryService) evictSoonest() {
	var victim string
	var soonest time.Time
	for key, entry := range m.entries {
		if victim == "" || entry.expiresAt.Before(soonest) {
			victim = key
			soonest = entry.expiresAt
		}
	}
	if victim != "" {
		delete(m.entries, victim)
	}
}
