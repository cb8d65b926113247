package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/governance-gateway/config"
	"github.com/upb/governance-gateway/models"
	"github.com/upb/governance-gateway/repositories"
)

// captureSink is an in-memory AuditRepository for emitter tests.
type captureSink struct {
	mu      sync.Mutex
	logs    []*models.AuditLog
	batches int
	failing bool
	delay   time.Duration
}

func (s *captureSink) Insert(ctx context.Context, log *models.AuditLog) error {
	return s.InsertBatch(ctx, []*models.AuditLog{log})
}

func (s *captureSink) InsertBatch(ctx context.Context, logs []*models.AuditLog) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("sink unavailable")
	}
	s.batches++
	s.logs = append(s.logs, logs...)
	return nil
}

func (s *captureSink) GetByRequestID(ctx context.Context, requestID string) ([]*models.AuditLog, error) {
	return nil, nil
}

func (s *captureSink) WithTx(tx repositories.Transaction) repositories.AuditRepository {
	return s
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs)
}

func (s *captureSink) setFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

func testAuditConfig() config.AuditConfig {
	return config.AuditConfig{
		BufferSize:      8,
		BatchSize:       4,
		FlushInterval:   20 * time.Millisecond,
		RetainLimit:     16,
		ShutdownTimeout: time.Second,
	}
}

func testEntry() *models.AuditLog {
	return &models.AuditLog{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		KeyID:      "gk_test",
		Model:      "gpt-4",
		Operation:  "llm_call",
		Tokens:     100,
		Allowed:    true,
		Reason:     "within policy limits",
		RequestID:  uuid.NewString(),
		CreatedAt:  time.Now(),
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestEmitter(t *testing.T) {
	t.Run("entries are eventually written", func(t *testing.T) {
		sink := &captureSink{}
		emitter := NewEmitter(sink, nil, nil, zap.NewNop(), testAuditConfig())
		require.NoError(t, emitter.Start())
		defer emitter.Stop(time.Second)

		for i := 0; i < 3; i++ {
			emitter.Emit(testEntry())
		}

		waitFor(t, func() bool { return sink.count() == 3 })
	})

	t.Run("full batch flushes before interval", func(t *testing.T) {
		cfg := testAuditConfig()
		cfg.FlushInterval = time.Hour
		sink := &captureSink{}
		emitter := NewEmitter(sink, nil, nil, zap.NewNop(), cfg)
		require.NoError(t, emitter.Start())
		defer emitter.Stop(time.Second)

		for i := 0; i < cfg.BatchSize; i++ {
			emitter.Emit(testEntry())
		}

		waitFor(t, func() bool { return sink.count() == cfg.BatchSize })
	})

	t.Run("emit does not block on slow sink", func(t *testing.T) {
		sink := &captureSink{delay: 200 * time.Millisecond}
		emitter := NewEmitter(sink, nil, nil, zap.NewNop(), testAuditConfig())
		require.NoError(t, emitter.Start())
		defer emitter.Stop(2 * time.Second)

		start := time.Now()
		for i := 0; i < 5; i++ {
			emitter.Emit(testEntry())
		}
		elapsed := time.Since(start)

		assert.Less(t, elapsed, 50*time.Millisecond)
	})

	t.Run("overflow drops oldest entries", func(t *testing.T) {
		cfg := testAuditConfig()
		cfg.BufferSize = 4
		cfg.BatchSize = 4
		cfg.FlushInterval = time.Hour
		// Block the drain goroutine so the buffer genuinely fills.
		sink := &captureSink{delay: 300 * time.Millisecond}
		emitter := NewEmitter(sink, nil, nil, zap.NewNop(), cfg)
		require.NoError(t, emitter.Start())
		defer emitter.Stop(2 * time.Second)

		for i := 0; i < 20; i++ {
			emitter.Emit(testEntry())
		}

		stats := emitter.Stats()
		assert.Greater(t, stats.Dropped, uint64(0))
		assert.LessOrEqual(t, stats.Pending, cfg.BufferSize)
	})

	t.Run("sink failure retains entries until recovery", func(t *testing.T) {
		sink := &captureSink{}
		sink.setFailing(true)
		emitter := NewEmitter(sink, nil, nil, zap.NewNop(), testAuditConfig())
		require.NoError(t, emitter.Start())
		defer emitter.Stop(time.Second)

		for i := 0; i < 3; i++ {
			emitter.Emit(testEntry())
		}

		// Give a few flush ticks a chance to fail.
		time.Sleep(80 * time.Millisecond)
		assert.Equal(t, 0, sink.count())

		sink.setFailing(false)
		waitFor(t, func() bool { return sink.count() == 3 })
	})

	t.Run("stop flushes pending entries", func(t *testing.T) {
		cfg := testAuditConfig()
		cfg.FlushInterval = time.Hour
		sink := &captureSink{}
		emitter := NewEmitter(sink, nil, nil, zap.NewNop(), cfg)
		require.NoError(t, emitter.Start())

		emitter.Emit(testEntry())
		emitter.Emit(testEntry())
		require.NoError(t, emitter.Stop(time.Second))

		assert.Equal(t, 2, sink.count())
	})

	t.Run("emit after stop is a no-op", func(t *testing.T) {
		sink := &captureSink{}
		emitter := NewEmitter(sink, nil, nil, zap.NewNop(), testAuditConfig())
		require.NoError(t, emitter.Start())
		require.NoError(t, emitter.Stop(time.Second))

		emitter.Emit(testEntry())

		assert.Equal(t, 0, sink.count())
	})

	t.Run("concurrent emits during stop do not panic", func(t *testing.T) {
		sink := &captureSink{}
		emitter := NewEmitter(sink, nil, nil, zap.NewNop(), testAuditConfig())
		require.NoError(t, emitter.Start())

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 200; j++ {
					emitter.Emit(testEntry())
				}
			}()
		}

		require.NoError(t, emitter.Stop(2*time.Second))
		wg.Wait()
	})

	t.Run("double start is rejected", func(t *testing.T) {
		sink := &captureSink{}
		emitter := NewEmitter(sink, nil, nil, zap.NewNop(), testAuditConfig())
		require.NoError(t, emitter.Start())
		defer emitter.Stop(time.Second)

		assert.Error(t, emitter.Start())
	})

	t.Run("stats report written count", func(t *testing.T) {
		sink := &captureSink{}
		emitter := NewEmitter(sink, nil, nil, zap.NewNop(), testAuditConfig())
		require.NoError(t, emitter.Start())

		for i := 0; i < 6; i++ {
			emitter.Emit(testEntry())
		}
		require.NoError(t, emitter.Stop(time.Second))

		assert.Equal(t, uint64(6), emitter.Stats().Written)
	})
}
