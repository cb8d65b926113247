package decision

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/governance-gateway/internal/observability"
	"github.com/upb/governance-gateway/models"
	"github.com/upb/governance-gateway/services"
	"github.com/upb/governance-gateway/services/policy"
	"github.com/upb/governance-gateway/services/quota"
)

// CredentialVerifier resolves an API key to a verified identity.
type CredentialVerifier interface {
	Verify(ctx context.Context, apiKey string) (*models.Identity, error)
}

// QuotaLimiter admits or rejects one request for an identity.
type QuotaLimiter interface {
	Check(ctx context.Context, identity *models.Identity) (*quota.Result, error)
}

// PolicyEvaluator scores a request against a customer's active policies.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, customerID uuid.UUID, req *models.CheckRequest) (*policy.Evaluation, error)
}

// AuditEmitter accepts a completed decision record without blocking.
type AuditEmitter interface {
	Emit(entry *models.AuditLog)
}

// Engine orchestrates the per-request governance pipeline: credential
// verification, quota admission, then policy evaluation, cheapest first,
// each stage short-circuiting the rest on failure. Any nonzero risk blocks;
// there is no sliding threshold.
type Engine struct {
	verifier  CredentialVerifier
	limiter   QuotaLimiter
	evaluator PolicyEvaluator
	emitter   AuditEmitter
	metrics   observability.Metrics
	logger    *zap.Logger
}

// NewEngine creates a decision engine.
func NewEngine(verifier CredentialVerifier, limiter QuotaLimiter, evaluator PolicyEvaluator, emitter AuditEmitter, metrics observability.Metrics, logger *zap.Logger) *Engine {
	return &Engine{
		verifier:  verifier,
		limiter:   limiter,
		evaluator: evaluator,
		emitter:   emitter,
		metrics:   metrics,
		logger:    logger,
	}
}

// Check runs the request through the full pipeline and produces exactly one
// decision record. Errors returned from any stage carry the request id for
// support correlation; decisions are audited fire-and-forget so a slow or
// failing sink never delays the caller.
func (e *Engine) Check(ctx context.Context, apiKey string, req *models.CheckRequest) (*models.Decision, error) {
	requestID := uuid.NewString()
	start := time.Now()

	identity, err := e.verifier.Verify(ctx, apiKey)
	if err != nil {
		return nil, stampRequestID(err, requestID)
	}

	if _, err := e.limiter.Check(ctx, identity); err != nil {
		if services.IsRateLimitedError(err) {
			e.metrics.RecordRateLimited()
		}
		return nil, stampRequestID(err, requestID)
	}

	eval, err := e.evaluator.Evaluate(ctx, identity.CustomerID, req)
	if err != nil {
		if services.IsValidationError(err) {
			e.metrics.RecordValidationRejected()
		}
		return nil, stampRequestID(err, requestID)
	}

	decision := &models.Decision{
		Allowed:        eval.RiskScore == 0,
		RiskScore:      eval.RiskScore,
		Reason:         verdictReason(eval),
		TriggeredRules: eval.TriggeredRules,
		RequestID:      requestID,
		LatencyMs:      float64(time.Since(start).Microseconds()) / 1000.0,
	}

	e.metrics.RecordDecision(decision.Allowed, decision.LatencyMs)
	e.emitter.Emit(models.NewAuditLog(*identity, req.PrimaryOperation(), req.TotalTokens(), decision))

	e.logger.Info("decision",
		zap.String("request_id", requestID),
		zap.String("customer_id", identity.CustomerID.String()),
		zap.String("key_id", identity.KeyID),
		zap.Bool("allowed", decision.Allowed),
		zap.Int("risk_score", decision.RiskScore),
		zap.String("reason", decision.Reason),
		zap.Float64("latency_ms", decision.LatencyMs))

	return decision, nil
}

// verdictReason names the highest-weight triggered rule, or the fixed
// within-policy string when nothing fired. Ties keep declaration order.
func verdictReason(eval *policy.Evaluation) string {
	if len(eval.TriggeredRules) == 0 {
		return models.ReasonWithinPolicy
	}
	reason := eval.TriggeredRules[0]
	best := models.RuleWeight(models.RuleType(reason))
	for _, name := range eval.TriggeredRules[1:] {
		if w := models.RuleWeight(models.RuleType(name)); w > best {
			best = w
			reason = name
		}
	}
	return reason
}

// stampRequestID attaches the request id to a pipeline error without
// mutating shared sentinel errors.
func stampRequestID(err error, requestID string) error {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		clone := services.NewDomainError(domainErr.Type, domainErr.Message, domainErr.Err)
		for k, v := range domainErr.Details {
			clone.Details[k] = v
		}
		return clone.WithDetail("request_id", requestID)
	}
	return services.NewDomainError(services.ErrorTypeInternal, "internal server error", err).
		WithDetail("request_id", requestID)
}
