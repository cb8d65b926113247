package auth

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/upb/governance-gateway/config"
	"github.com/upb/governance-gateway/models"
	"github.com/upb/governance-gateway/repositories"
	"github.com/upb/governance-gateway/services"
)

// Verifier authenticates API keys of the form "key_id.secret" against
// stored bcrypt hashes. All failure modes (malformed key, unknown key_id,
// revoked credential, expired rotation grace, hash mismatch) surface as
// the same unauthenticated error so callers cannot probe which part failed.
type Verifier struct {
	credentials repositories.CredentialRepository
	cfg         config.AuthConfig
	logger      *zap.Logger
}

// NewVerifier creates a credential verifier.
func NewVerifier(credentials repositories.CredentialRepository, cfg config.AuthConfig, logger *zap.Logger) *Verifier {
	return &Verifier{
		credentials: credentials,
		cfg:         cfg,
		logger:      logger,
	}
}

// Verify resolves an API key to the identity it authenticates.
// Lookup errors are reported as store unavailability so the caller can
// fail closed instead of treating an outage as a bad key.
func (v *Verifier) Verify(ctx context.Context, apiKey string) (*models.Identity, error) {
	keyID, secret, ok := splitKey(apiKey)
	if !ok {
		return nil, services.ErrUnauthenticated
	}

	lookupCtx := ctx
	if v.cfg.LookupTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, v.cfg.LookupTimeout)
		defer cancel()
	}

	cred, err := v.credentials.FindByKeyID(lookupCtx, keyID)
	if err != nil {
		v.logger.Error("credential lookup failed",
			zap.String("key_id", keyID),
			zap.Error(err))
		return nil, services.NewDomainError(services.ErrorTypeUnavailable, "credential store unavailable", err)
	}
	if cred == nil {
		// Burn a bcrypt comparison so unknown key_ids take as long as
		// known ones with a wrong secret.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"), []byte(secret))
		return nil, services.ErrUnauthenticated
	}

	if cred.IsRevoked() {
		return nil, services.ErrUnauthenticated
	}
	if !cred.IsWithinRotationGrace(time.Now(), v.cfg.RotationGrace) {
		return nil, services.ErrUnauthenticated
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.SecretHash), []byte(secret)); err != nil {
		return nil, services.ErrUnauthenticated
	}

	return &models.Identity{
		KeyID:      cred.KeyID,
		KeyName:    cred.Name,
		CustomerID: cred.CustomerID,
		Tier:       cred.Tier,
	}, nil
}

// splitKey splits an API key at the first dot. Both halves must be
// non-empty for the key to be well formed.
func splitKey(apiKey string) (keyID, secret string, ok bool) {
	keyID, secret, found := strings.Cut(apiKey, ".")
	if !found || keyID == "" || secret == "" {
		return "", "", false
	}
	return keyID, secret, true
}
