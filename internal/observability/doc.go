// Package observability provides structured logging and metrics for the
// governance gateway.
//
// This package implements:
//   - Structured logging with contextual fields (zap-based)
//   - Request ID propagation into log lines
//   - In-process decision counters and latency aggregates
//
// Counters are incremented exactly once per completed decision.
package observability
