package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// PostgresStore keeps bucket state in a quota_buckets table so that several
// gateway instances can share one quota pool. Each Take runs in a short
// transaction: the row is locked, refilled based on elapsed time, and the
// token consumed if available.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger

	// now is swappable in tests
	now func() time.Time
}

// NewPostgresStore creates a Store backed by the given database.
func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// InitSchema creates the quota_buckets table if it does not exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS quota_buckets (
			bucket_key  TEXT PRIMARY KEY,
			tokens      DOUBLE PRECISION NOT NULL,
			last_refill TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create quota_buckets table: %w", err)
	}
	return nil
}

// Take attempts to consume one token from the bucket identified by key.
func (s *PostgresStore) Take(ctx context.Context, key string, capacity int, window time.Duration) (*Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin quota transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	tokens, err := s.lockBucket(ctx, tx, key, capacity, window, now)
	if err != nil {
		return nil, err
	}

	res := &Result{Capacity: capacity}
	if tokens >= 1 {
		tokens--
		res.Allowed = true
	} else {
		rate := float64(capacity) / window.Seconds()
		res.RetryAfter = time.Duration(math.Ceil((1-tokens)/rate)) * time.Second
	}
	res.Remaining = int(tokens)

	update := `UPDATE quota_buckets SET tokens = $2, last_refill = $3 WHERE bucket_key = $1`
	if _, err := tx.ExecContext(ctx, update, key, tokens, now); err != nil {
		return nil, fmt.Errorf("failed to update quota bucket: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit quota transaction: %w", err)
	}
	return res, nil
}

// Peek reports the current bucket state without consuming a token.
func (s *PostgresStore) Peek(ctx context.Context, key string, capacity int, window time.Duration) (*Result, error) {
	query := `SELECT tokens, last_refill FROM quota_buckets WHERE bucket_key = $1`

	var stored float64
	var lastRefill time.Time
	err := s.db.QueryRowContext(ctx, query, key).Scan(&stored, &lastRefill)
	if errors.Is(err, sql.ErrNoRows) {
		return &Result{Allowed: true, Remaining: capacity, Capacity: capacity}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query quota bucket: %w", err)
	}

	tokens := refill(stored, lastRefill, s.now(), capacity, window)
	return &Result{
		Allowed:   tokens >= 1,
		Remaining: int(tokens),
		Capacity:  capacity,
	}, nil
}

// lockBucket loads the row for key under FOR UPDATE, creating it at full
// capacity if absent, and returns the refilled token count.
func (s *PostgresStore) lockBucket(ctx context.Context, tx *sql.Tx, key string, capacity int, window time.Duration, now time.Time) (float64, error) {
	insert := `
		INSERT INTO quota_buckets (bucket_key, tokens, last_refill)
		VALUES ($1, $2, $3)
		ON CONFLICT (bucket_key) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, insert, key, float64(capacity), now); err != nil {
		return 0, fmt.Errorf("failed to insert quota bucket: %w", err)
	}

	query := `SELECT tokens, last_refill FROM quota_buckets WHERE bucket_key = $1 FOR UPDATE`
	var stored float64
	var lastRefill time.Time
	if err := tx.QueryRowContext(ctx, query, key).Scan(&stored, &lastRefill); err != nil {
		return 0, fmt.Errorf("failed to lock quota bucket: %w", err)
	}

	return refill(stored, lastRefill, now, capacity, window), nil
}

// refill advances a bucket's token count for the time elapsed since the last
// refill, capped at capacity.
func refill(tokens float64, lastRefill, now time.Time, capacity int, window time.Duration) float64 {
	elapsed := now.Sub(lastRefill)
	if elapsed <= 0 {
		return tokens
	}
	rate := float64(capacity) / window.Seconds()
	tokens += elapsed.Seconds() * rate
	if tokens > float64(capacity) {
		tokens = float64(capacity)
	}
	return tokens
}

// CleanupIdle removes buckets that have not been touched for longer than
// idleTTL. A full bucket and a missing row behave identically, so stale rows
// can be dropped safely.
func (s *PostgresStore) CleanupIdle(ctx context.Context, idleTTL time.Duration) (int64, error) {
	cutoff := s.now().Add(-idleTTL)

	result, err := s.db.ExecContext(ctx, `DELETE FROM quota_buckets WHERE last_refill < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup quota buckets: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		s.logger.Debug("removed idle quota buckets", zap.Int64("rows_deleted", rows))
	}
	return rows, nil
}

// StartCleanupWorker periodically removes idle buckets until ctx is canceled.
func (s *PostgresStore) StartCleanupWorker(ctx context.Context, interval, idleTTL time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("started quota bucket cleanup worker",
		zap.Duration("interval", interval),
		zap.Duration("idle_ttl", idleTTL))

	for {
		select {
		case <-ticker.C:
			if _, err := s.CleanupIdle(ctx, idleTTL); err != nil {
				s.logger.Error("failed to cleanup quota buckets", zap.Error(err))
			}
		case <-ctx.Done():
			s.logger.Info("stopping quota bucket cleanup worker")
			return
		}
	}
}
