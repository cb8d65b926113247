package quota

import (
	"context"

	"go.uber.org/zap"

	"github.com/upb/governance-gateway/config"
	"github.com/upb/governance-gateway/models"
	"github.com/upb/governance-gateway/services"
)

// Limiter enforces per-key request quotas using a token bucket per key_id.
// Capacity comes from the credential tier; the refill window is global.
type Limiter struct {
	store  Store
	cfg    config.QuotaConfig
	logger *zap.Logger
}

// NewLimiter creates a quota limiter backed by the given store.
func NewLimiter(store Store, cfg config.QuotaConfig, logger *zap.Logger) *Limiter {
	return &Limiter{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Check consumes one token for the identity's key. On rejection the returned
// error is a rate-limited domain error carrying retry_after seconds; the
// bucket is left untouched. Store failures surface as unavailability so the
// pipeline fails closed.
func (l *Limiter) Check(ctx context.Context, identity *models.Identity) (*Result, error) {
	capacity := l.cfg.CapacityForTier(string(identity.Tier))

	res, err := l.store.Take(ctx, identity.KeyID, capacity, l.cfg.Window)
	if err != nil {
		l.logger.Error("quota store failure",
			zap.String("key_id", identity.KeyID),
			zap.Error(err))
		return nil, services.NewDomainError(services.ErrorTypeUnavailable, "quota store unavailable", err)
	}

	if !res.Allowed {
		return res, services.NewDomainError(services.ErrorTypeRateLimited, "rate limit exceeded", nil).
			WithDetail("retry_after", int(res.RetryAfter.Seconds()))
	}
	return res, nil
}

// Status reports the identity's current bucket state without consuming.
func (l *Limiter) Status(ctx context.Context, identity *models.Identity) (*Result, error) {
	capacity := l.cfg.CapacityForTier(string(identity.Tier))

	res, err := l.store.Peek(ctx, identity.KeyID, capacity, l.cfg.Window)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeUnavailable, "quota store unavailable", err)
	}
	return res, nil
}
