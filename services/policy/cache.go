package policy

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upb/governance-gateway/models"
)

// cacheEntry holds one customer's active policy set plus LRU bookkeeping.
type cacheEntry struct {
	customerID uuid.UUID
	policies   []*models.Policy
	insertedAt time.Time
	element    *list.Element
}

func (e *cacheEntry) isExpired(ttl time.Duration) bool {
	return time.Since(e.insertedAt) > ttl
}

// PolicyCache is an in-memory LRU cache with TTL for active policy sets,
// keyed by customer. Safe for concurrent use.
type PolicyCache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*cacheEntry
	lruList *list.List
	maxSize int
	ttl     time.Duration
	hits    uint64
	misses  uint64
}

// NewPolicyCache creates a PolicyCache bounded to maxSize entries, each
// living at most ttl.
func NewPolicyCache(maxSize int, ttl time.Duration) *PolicyCache {
	return &PolicyCache{
		entries: make(map[uuid.UUID]*cacheEntry),
		lruList: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// GetPolicies retrieves a customer's cached active policies.
// Returns (nil, false) on miss or expiry; a cached empty set is a valid hit.
func (c *PolicyCache) GetPolicies(customerID uuid.UUID) ([]*models.Policy, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[customerID]
	if !exists || entry.isExpired(c.ttl) {
		c.misses++
		if exists {
			c.removeEntry(customerID)
		}
		return nil, false
	}

	c.lruList.MoveToFront(entry.element)
	c.hits++

	return entry.policies, true
}

// SetPolicies stores a customer's active policies, refreshing the TTL if an
// entry already exists. An empty slice is cached like any other value.
func (c *PolicyCache) SetPolicies(customerID uuid.UUID, policies []*models.Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.entries[customerID]; exists {
		entry.policies = policies
		entry.insertedAt = time.Now()
		c.lruList.MoveToFront(entry.element)
		return
	}

	if c.lruList.Len() >= c.maxSize {
		c.evictLRU()
	}

	entry := &cacheEntry{
		customerID: customerID,
		policies:   policies,
		insertedAt: time.Now(),
	}
	entry.element = c.lruList.PushFront(customerID)
	c.entries[customerID] = entry
}

// Invalidate drops a customer's entry so the next lookup goes to the store.
func (c *PolicyCache) Invalidate(customerID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeEntry(customerID)
}

// Clear removes all entries from the cache
func (c *PolicyCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[uuid.UUID]*cacheEntry)
	c.lruList.Init()
}

// Stats reports current size and hit/miss counters.
func (c *PolicyCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return CacheStats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: c.calculateHitRate(),
	}
}

// CacheStats is a point-in-time snapshot of cache counters.
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
	HitRate float64
}

func (c *PolicyCache) calculateHitRate() float64 {
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// removeEntry deletes an entry. Caller must hold the lock.
func (c *PolicyCache) removeEntry(customerID uuid.UUID) {
	if entry, exists := c.entries[customerID]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, customerID)
	}
}

// evictLRU drops the least recently used entry. Caller must hold the lock.
func (c *PolicyCache) evictLRU() {
	backElement := c.lruList.Back()
	if backElement != nil {
		customerID := backElement.Value.(uuid.UUID)
		c.lruList.Remove(backElement)
		delete(c.entries, customerID)
	}
}

// CleanupExpired removes all expired entries and reports how many were dropped.
func (c *PolicyCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	expired := make([]uuid.UUID, 0)
	for customerID, entry := range c.entries {
		if entry.isExpired(c.ttl) {
			expired = append(expired, customerID)
		}
	}
	for _, customerID := range expired {
		c.removeEntry(customerID)
	}
	return len(expired)
}

// StartCleanupWorker sweeps expired entries on the given interval until
// stopCh closes. Run it in its own goroutine.
func (c *PolicyCache) StartCleanupWorker(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanupExpired()
		case <-stopCh:
			return
		}
	}
}
