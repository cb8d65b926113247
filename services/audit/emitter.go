package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/upb/governance-gateway/config"
	"github.com/upb/governance-gateway/internal/observability"
	"github.com/upb/governance-gateway/models"
	"github.com/upb/governance-gateway/repositories"
	"github.com/upb/governance-gateway/services"
)

// Emitter persists decision records asynchronously. Producers enqueue onto a
// bounded channel and return immediately; a single drain goroutine batches
// entries and writes them on a size or interval trigger, whichever fires
// first. Under sustained backpressure the oldest queued entries are dropped
// so the request path never blocks on audit durability.
type Emitter struct {
	auditRepo repositories.AuditRepository
	txManager repositories.TransactionManager
	metrics   observability.Metrics
	logger    *zap.Logger
	cfg       config.AuditConfig

	entries chan *models.AuditLog
	// stop signals the drain goroutine to sweep the channel and exit. The
	// entries channel itself is never closed, so a producer racing shutdown
	// can at worst enqueue an entry that goes unwritten, never panic.
	stop chan struct{}
	// retained holds entries from failed batch writes, bounded by RetainLimit.
	// Only the drain goroutine touches it.
	retained []*models.AuditLog

	mu      sync.Mutex
	started bool
	stopped bool
	dropped uint64
	written uint64
	wg      sync.WaitGroup
}

// NewEmitter creates an audit emitter. The transaction manager is optional;
// when nil, batches are written without an explicit transaction.
func NewEmitter(auditRepo repositories.AuditRepository, txManager repositories.TransactionManager, metrics observability.Metrics, logger *zap.Logger, cfg config.AuditConfig) *Emitter {
	return &Emitter{
		auditRepo: auditRepo,
		txManager: txManager,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		entries:   make(chan *models.AuditLog, cfg.BufferSize),
		stop:      make(chan struct{}),
	}
}

// Start launches the drain goroutine.
func (e *Emitter) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return fmt.Errorf("audit emitter already started")
	}
	e.started = true

	e.wg.Add(1)
	go e.drain()

	e.logger.Info("started audit emitter",
		zap.Int("buffer_size", e.cfg.BufferSize),
		zap.Int("batch_size", e.cfg.BatchSize),
		zap.Duration("flush_interval", e.cfg.FlushInterval))

	return nil
}

// Emit enqueues one entry without blocking. When the buffer is full the
// oldest queued entry is displaced to make room, so recent records survive
// sustained backpressure at the cost of older ones.
func (e *Emitter) Emit(entry *models.AuditLog) {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	for {
		select {
		case e.entries <- entry:
			return
		default:
		}

		// Buffer full: displace the oldest entry and retry. The non-blocking
		// receive races the drain goroutine, which is fine; either way a slot
		// opens up.
		select {
		case <-e.entries:
			e.recordDrop(1)
		default:
		}
	}
}

// Stop drains remaining entries and flushes the final batch, bounded by the
// given timeout.
func (e *Emitter) Stop(timeout time.Duration) error {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return fmt.Errorf("audit emitter not running")
	}
	e.stopped = true
	e.mu.Unlock()

	e.logger.Info("stopping audit emitter", zap.Int("pending_entries", len(e.entries)))
	close(e.stop)

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("audit emitter stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit emitter stop timeout after %v", timeout)
	}
}

// drain is the single consumer: it accumulates entries into a batch and
// writes when the batch is full or the flush interval elapses.
func (e *Emitter) drain() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]*models.AuditLog, 0, e.cfg.BatchSize)

	for {
		select {
		case entry := <-e.entries:
			batch = append(batch, entry)
			if len(batch) >= e.cfg.BatchSize {
				batch = e.flush(batch)
			}
		case <-ticker.C:
			batch = e.flush(batch)
		case <-e.stop:
			// Sweep whatever producers managed to enqueue, then flush the rest.
			for {
				select {
				case entry := <-e.entries:
					batch = append(batch, entry)
					if len(batch) >= e.cfg.BatchSize {
						batch = e.flush(batch)
					}
				default:
					e.flush(batch)
					return
				}
			}
		}
	}
}

// flush writes retained plus current entries in one batch. On failure the
// whole batch is retained for the next attempt, bounded by RetainLimit with
// the oldest entries discarded first.
func (e *Emitter) flush(batch []*models.AuditLog) []*models.AuditLog {
	if len(e.retained) > 0 {
		batch = append(e.retained, batch...)
		e.retained = nil
	}
	if len(batch) == 0 {
		return batch[:0]
	}

	if err := e.writeBatch(batch); err != nil {
		e.logger.Error("audit batch write failed, retaining entries",
			zap.Int("batch_size", len(batch)),
			zap.Error(err))
		e.retain(batch)
		return make([]*models.AuditLog, 0, e.cfg.BatchSize)
	}

	e.mu.Lock()
	e.written += uint64(len(batch))
	e.mu.Unlock()

	return batch[:0]
}

func (e *Emitter) writeBatch(batch []*models.AuditLog) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if e.txManager == nil {
		return e.auditRepo.InsertBatch(ctx, batch)
	}
	return services.WithTransaction(ctx, e.txManager, func(ctx context.Context, tx repositories.Transaction) error {
		return e.auditRepo.WithTx(tx).InsertBatch(ctx, batch)
	})
}

func (e *Emitter) retain(batch []*models.AuditLog) {
	e.retained = append(e.retained, batch...)
	if overflow := len(e.retained) - e.cfg.RetainLimit; overflow > 0 {
		e.retained = e.retained[overflow:]
		e.recordDrop(overflow)
	}
}

func (e *Emitter) recordDrop(n int) {
	e.mu.Lock()
	e.dropped += uint64(n)
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.RecordAuditDropped(n)
	}
	e.logger.Warn("dropped audit entries under backpressure", zap.Int("count", n))
}

// Stats reports emitter counters for the debug endpoint.
func (e *Emitter) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Stats{
		BufferSize: e.cfg.BufferSize,
		Pending:    len(e.entries),
		Written:    e.written,
		Dropped:    e.dropped,
		Started:    e.started && !e.stopped,
	}
}

// Stats represents audit emitter statistics
type Stats struct {
	BufferSize int    `json:"buffer_size"`
	Pending    int    `json:"pending"`
	Written    uint64 `json:"written"`
	Dropped    uint64 `json:"dropped"`
	Started    bool   `json:"started"`
}
