package quota

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// bucket holds token-bucket state for one key.
// Tokens refill continuously at capacity/window and are capped at capacity.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	lastAccess time.Time
}

// MemoryStore is the in-process Store implementation. Buckets are created
// lazily on first use and evicted by the cleanup worker after sitting idle.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]*bucket

	logger *zap.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup

	// now is swappable for tests
	now func() time.Time
}

// NewMemoryStore creates an in-memory bucket store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]*bucket),
		logger:  logger,
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
}

// Take consumes one token from the keyed bucket if available.
func (s *MemoryStore) Take(ctx context.Context, key string, capacity int, window time.Duration) (*Result, error) {
	return s.apply(key, capacity, window, true), nil
}

// Peek reports bucket state without consuming.
func (s *MemoryStore) Peek(ctx context.Context, key string, capacity int, window time.Duration) (*Result, error) {
	return s.apply(key, capacity, window, false), nil
}

func (s *MemoryStore) apply(key string, capacity int, window time.Duration, consume bool) *Result {
	now := s.now()
	b := s.getBucket(key, capacity, now)

	b.mu.Lock()
	defer b.mu.Unlock()

	rate := float64(capacity) / window.Seconds()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(float64(capacity), b.tokens+elapsed*rate)
		b.lastRefill = now
	}
	b.lastAccess = now

	if consume {
		if b.tokens < 1 {
			// Seconds until one whole token accrues, rounded up so the
			// client never retries early.
			wait := (1 - b.tokens) / rate
			return &Result{
				Allowed:    false,
				Remaining:  0,
				Capacity:   capacity,
				RetryAfter: time.Duration(math.Ceil(wait)) * time.Second,
			}
		}
		b.tokens--
	}

	return &Result{
		Allowed:   true,
		Remaining: int(b.tokens),
		Capacity:  capacity,
	}
}

func (s *MemoryStore) getBucket(key string, capacity int, now time.Time) *bucket {
	s.mu.RLock()
	b, ok := s.buckets[key]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.buckets[key]; ok {
		return b
	}
	b = &bucket{
		tokens:     float64(capacity),
		lastRefill: now,
		lastAccess: now,
	}
	s.buckets[key] = b
	return b
}

// StartCleanupWorker evicts buckets untouched for longer than idleTTL.
// A full bucket carries no state worth keeping, so eviction never changes
// an admission outcome.
func (s *MemoryStore) StartCleanupWorker(interval, idleTTL time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				removed := s.evictIdle(idleTTL)
				if removed > 0 {
					s.logger.Debug("evicted idle quota buckets", zap.Int("count", removed))
				}
			case <-s.stopCh:
				return
			}
		}
	}()
}

func (s *MemoryStore) evictIdle(idleTTL time.Duration) int {
	cutoff := s.now().Add(-idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, b := range s.buckets {
		b.mu.Lock()
		idle := b.lastAccess.Before(cutoff)
		b.mu.Unlock()
		if idle {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed
}

// Stop halts the cleanup worker.
func (s *MemoryStore) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// Len returns the number of live buckets.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buckets)
}
