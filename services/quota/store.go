package quota

import (
	"context"
	"time"
)

// Result reports the outcome of a quota operation against one bucket.
type Result struct {
	Allowed    bool
	Remaining  int
	Capacity   int
	RetryAfter time.Duration
}

// Store is the bucket state backend. The in-memory implementation is the
// default; a shared backend (e.g. Redis) can be substituted for multi-node
// deployments without touching the limiter.
type Store interface {
	// Take attempts to consume one token from the bucket identified by key.
	// RetryAfter is populated only on rejection.
	Take(ctx context.Context, key string, capacity int, window time.Duration) (*Result, error)

	// Peek reports the current bucket state without consuming a token.
	Peek(ctx context.Context, key string, capacity int, window time.Duration) (*Result, error)
}
