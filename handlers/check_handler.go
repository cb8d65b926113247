package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/upb/governance-gateway/middleware"
	"github.com/upb/governance-gateway/models"
	"github.com/upb/governance-gateway/services/quota"
	"github.com/upb/governance-gateway/utils"
)

// DecisionEngine runs the full governance pipeline for one request.
type DecisionEngine interface {
	Check(ctx context.Context, apiKey string, req *models.CheckRequest) (*models.Decision, error)
}

// CredentialVerifier resolves an API key to a verified identity.
type CredentialVerifier interface {
	Verify(ctx context.Context, apiKey string) (*models.Identity, error)
}

// QuotaLimiter admits requests and reports bucket status.
type QuotaLimiter interface {
	Check(ctx context.Context, identity *models.Identity) (*quota.Result, error)
	Status(ctx context.Context, identity *models.Identity) (*quota.Result, error)
}

// CheckHandler serves the decision pipeline endpoints
type CheckHandler struct {
	engine   DecisionEngine
	verifier CredentialVerifier
	limiter  QuotaLimiter
	logger   *zap.Logger
}

// NewCheckHandler creates a new CheckHandler
func NewCheckHandler(engine DecisionEngine, verifier CredentialVerifier, limiter QuotaLimiter, logger *zap.Logger) *CheckHandler {
	return &CheckHandler{
		engine:   engine,
		verifier: verifier,
		limiter:  limiter,
		logger:   logger,
	}
}

// HandleCheck handles POST /v1/check
// Runs verification, quota admission, and policy evaluation, and returns
// the decision record. Blocked decisions are still HTTP 200; only pipeline
// failures map to error statuses.
func (h *CheckHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	apiKey := middleware.GetAPIKeyFromContext(r.Context())

	var req models.CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if req.Context == nil {
		req.Context = map[string]interface{}{}
	}

	decision, err := h.engine.Check(r.Context(), apiKey, &req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, decision)
}

// EvaluateResponse is the response body for POST /api/evaluate
type EvaluateResponse struct {
	Status     string `json:"status"`
	CustomerID string `json:"customer_id"`
	Remaining  int    `json:"remaining"`
}

// HandleEvaluate handles POST /api/evaluate
// Credential verification plus quota admission only; a cheap probe for
// callers validating their key before sending real traffic.
func (h *CheckHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	apiKey := middleware.GetAPIKeyFromContext(r.Context())

	identity, err := h.verifier.Verify(r.Context(), apiKey)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	result, err := h.limiter.Check(r.Context(), identity)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	setRateLimitHeaders(w, result)
	_ = utils.WriteJSON(w, http.StatusOK, EvaluateResponse{
		Status:     "ok",
		CustomerID: identity.CustomerID.String(),
		Remaining:  result.Remaining,
	})
}

// QuotaStatusResponse is the response body for GET /v1/quota
type QuotaStatusResponse struct {
	Capacity  int `json:"capacity"`
	Remaining int `json:"remaining"`
}

// HandleQuotaStatus handles GET /v1/quota
// Reports the presented credential's bucket state without consuming a token.
func (h *CheckHandler) HandleQuotaStatus(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())
	if identity == nil {
		_ = utils.WriteUnauthorized(w, "invalid API key")
		return
	}

	result, err := h.limiter.Status(r.Context(), identity)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	setRateLimitHeaders(w, result)
	_ = utils.WriteJSON(w, http.StatusOK, QuotaStatusResponse{
		Capacity:  result.Capacity,
		Remaining: result.Remaining,
	})
}

func setRateLimitHeaders(w http.ResponseWriter, result *quota.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Capacity))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
}
