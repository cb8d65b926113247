package observability

import (
	"math"
	"sync/atomic"
)

// Metrics collects decision pipeline metrics.
type Metrics interface {
	// RecordDecision increments the request counter and the allowed or
	// blocked counter, plus the latency aggregate, once per verdict.
	RecordDecision(allowed bool, latencyMs float64)
	// RecordRateLimited counts quota rejections.
	RecordRateLimited()
	// RecordValidationRejected counts forbidden-field rejections.
	RecordValidationRejected()
	// RecordAuditDropped counts audit entries lost to backpressure.
	RecordAuditDropped(n int)
	// Snapshot returns the current counter values.
	Snapshot() MetricsSnapshot
}

// MetricsSnapshot is a point-in-time view of all counters.
type MetricsSnapshot struct {
	RequestsTotal           uint64  `json:"requests_total"`
	AllowedTotal            uint64  `json:"allowed_total"`
	BlockedTotal            uint64  `json:"blocked_total"`
	RateLimitedTotal        uint64  `json:"rate_limited_total"`
	ValidationRejectedTotal uint64  `json:"validation_rejected_total"`
	AuditDroppedTotal       uint64  `json:"audit_dropped_total"`
	LatencySumMs            float64 `json:"latency_sum_ms"`
	LatencyMaxMs            float64 `json:"latency_max_ms"`
}

// collector is the in-process Metrics implementation (atomic counters).
type collector struct {
	requests           atomic.Uint64
	allowed            atomic.Uint64
	blocked            atomic.Uint64
	rateLimited        atomic.Uint64
	validationRejected atomic.Uint64
	auditDropped       atomic.Uint64
	latencySumBits     atomic.Uint64
	latencyMaxBits     atomic.Uint64
}

// NewMetrics creates an in-process metrics collector.
func NewMetrics() Metrics {
	return &collector{}
}

func (c *collector) RecordDecision(allowed bool, latencyMs float64) {
	c.requests.Add(1)
	if allowed {
		c.allowed.Add(1)
	} else {
		c.blocked.Add(1)
	}
	addFloat(&c.latencySumBits, latencyMs)
	maxFloat(&c.latencyMaxBits, latencyMs)
}

func (c *collector) RecordRateLimited() {
	c.rateLimited.Add(1)
}

func (c *collector) RecordValidationRejected() {
	c.validationRejected.Add(1)
}

func (c *collector) RecordAuditDropped(n int) {
	if n > 0 {
		c.auditDropped.Add(uint64(n))
	}
}

func (c *collector) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		RequestsTotal:           c.requests.Load(),
		AllowedTotal:            c.allowed.Load(),
		BlockedTotal:            c.blocked.Load(),
		RateLimitedTotal:        c.rateLimited.Load(),
		ValidationRejectedTotal: c.validationRejected.Load(),
		AuditDroppedTotal:       c.auditDropped.Load(),
		LatencySumMs:            math.Float64frombits(c.latencySumBits.Load()),
		LatencyMaxMs:            math.Float64frombits(c.latencyMaxBits.Load()),
	}
}

// addFloat accumulates a float64 stored as raw bits via CAS.
func addFloat(bits *atomic.Uint64, v float64) {
	for {
		old := bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + v)
		if bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// maxFloat keeps the running maximum of a float64 stored as raw bits.
func maxFloat(bits *atomic.Uint64, v float64) {
	for {
		old := bits.Load()
		if v <= math.Float64frombits(old) {
			return
		}
		if bits.CompareAndSwap(old, math.Float64bits(v)) {
			return
		}
	}
}
