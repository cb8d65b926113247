package policy

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/upb/governance-gateway/models"
)

const testCacheTTL = 30 * time.Second

func cachedPolicies(customerID uuid.UUID) []*models.Policy {
	return []*models.Policy{
		models.NewPolicy(customerID, "baseline", []models.Rule{{Type: models.RuleTypePersonalData}}),
	}
}

func TestPolicyCache(t *testing.T) {
	t.Run("miss then hit", func(t *testing.T) {
		cache := NewPolicyCache(4, testCacheTTL)
		customerID := uuid.New()

		_, ok := cache.GetPolicies(customerID)
		assert.False(t, ok)

		cache.SetPolicies(customerID, cachedPolicies(customerID))
		got, ok := cache.GetPolicies(customerID)
		assert.True(t, ok)
		assert.Len(t, got, 1)
	})

	t.Run("empty policy set is a valid hit", func(t *testing.T) {
		cache := NewPolicyCache(4, testCacheTTL)
		customerID := uuid.New()

		cache.SetPolicies(customerID, []*models.Policy{})
		got, ok := cache.GetPolicies(customerID)
		assert.True(t, ok)
		assert.Empty(t, got)
	})

	t.Run("expired entry is a miss", func(t *testing.T) {
		cache := NewPolicyCache(4, time.Millisecond)
		customerID := uuid.New()

		cache.SetPolicies(customerID, cachedPolicies(customerID))
		time.Sleep(5 * time.Millisecond)

		_, ok := cache.GetPolicies(customerID)
		assert.False(t, ok)
	})

	t.Run("evicts least recently used at capacity", func(t *testing.T) {
		cache := NewPolicyCache(2, testCacheTTL)
		first := uuid.New()
		second := uuid.New()
		third := uuid.New()

		cache.SetPolicies(first, cachedPolicies(first))
		cache.SetPolicies(second, cachedPolicies(second))

		// Touch first so second becomes the LRU victim.
		_, ok := cache.GetPolicies(first)
		assert.True(t, ok)

		cache.SetPolicies(third, cachedPolicies(third))

		_, ok = cache.GetPolicies(second)
		assert.False(t, ok)
		_, ok = cache.GetPolicies(first)
		assert.True(t, ok)
		_, ok = cache.GetPolicies(third)
		assert.True(t, ok)
	})

	t.Run("invalidate removes entry", func(t *testing.T) {
		cache := NewPolicyCache(4, testCacheTTL)
		customerID := uuid.New()

		cache.SetPolicies(customerID, cachedPolicies(customerID))
		cache.Invalidate(customerID)

		_, ok := cache.GetPolicies(customerID)
		assert.False(t, ok)
	})

	t.Run("cleanup removes only expired entries", func(t *testing.T) {
		cache := NewPolicyCache(4, 20*time.Millisecond)
		old := uuid.New()
		fresh := uuid.New()

		cache.SetPolicies(old, cachedPolicies(old))
		time.Sleep(30 * time.Millisecond)
		cache.SetPolicies(fresh, cachedPolicies(fresh))

		removed := cache.CleanupExpired()
		assert.Equal(t, 1, removed)
		assert.Equal(t, 1, cache.Stats().Size)
	})

	t.Run("stats track hit rate", func(t *testing.T) {
		cache := NewPolicyCache(4, testCacheTTL)
		customerID := uuid.New()

		cache.SetPolicies(customerID, cachedPolicies(customerID))
		cache.GetPolicies(customerID)
		cache.GetPolicies(uuid.New())

		stats := cache.Stats()
		assert.Equal(t, uint64(1), stats.Hits)
		assert.Equal(t, uint64(1), stats.Misses)
		assert.InDelta(t, 0.5, stats.HitRate, 0.001)
	})
}
