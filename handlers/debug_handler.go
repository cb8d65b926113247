package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/governance-gateway/internal/observability"
	"github.com/upb/governance-gateway/services/audit"
	"github.com/upb/governance-gateway/utils"
)

// DebugHandler exposes operational internals: audit queue stats and the
// in-process metrics snapshot. Both endpoints require a valid credential.
type DebugHandler struct {
	emitter *audit.Emitter
	metrics observability.Metrics
	logger  *zap.Logger
}

// NewDebugHandler creates a new DebugHandler
func NewDebugHandler(emitter *audit.Emitter, metrics observability.Metrics, logger *zap.Logger) *DebugHandler {
	return &DebugHandler{
		emitter: emitter,
		metrics: metrics,
		logger:  logger,
	}
}

// HandleAuditQueue handles GET /debug/audit/queue
func (h *DebugHandler) HandleAuditQueue(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteJSON(w, http.StatusOK, h.emitter.Stats())
}

// HandleMetrics handles GET /debug/metrics
func (h *DebugHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteJSON(w, http.StatusOK, h.metrics.Snapshot())
}
