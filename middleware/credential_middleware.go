package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/governance-gateway/models"
	"github.com/upb/governance-gateway/utils"
)

// CredentialVerifier resolves an API key to a verified identity.
type CredentialVerifier interface {
	Verify(ctx context.Context, apiKey string) (*models.Identity, error)
}

// CredentialMiddleware extracts and optionally verifies API keys.
type CredentialMiddleware struct {
	verifier CredentialVerifier
	logger   *zap.Logger
}

// NewCredentialMiddleware creates a new CredentialMiddleware
func NewCredentialMiddleware(verifier CredentialVerifier, logger *zap.Logger) *CredentialMiddleware {
	return &CredentialMiddleware{
		verifier: verifier,
		logger:   logger,
	}
}

// ExtractAPIKey pulls the presented key from the Authorization header
// ("Bearer KEY") or the X-API-Key header and stores it in the context.
// Verification is deliberately left to the pipeline so all credential
// failures share one uniform response.
func (m *CredentialMiddleware) ExtractAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := extractAPIKey(r)
		if apiKey == "" {
			_ = utils.WriteUnauthorized(w, "invalid API key")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAPIKey(r.Context(), apiKey)))
	})
}

// RequireIdentity verifies the presented key and stores the resulting
// identity in the context. Used by endpoints outside the decision pipeline,
// such as quota status and debug surfaces.
func (m *CredentialMiddleware) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := extractAPIKey(r)
		if apiKey == "" {
			_ = utils.WriteUnauthorized(w, "invalid API key")
			return
		}

		identity, err := m.verifier.Verify(r.Context(), apiKey)
		if err != nil {
			m.logger.Debug("credential verification failed", zap.Error(err))
			_ = utils.WriteUnauthorized(w, "invalid API key")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// extractAPIKey returns the key from "Authorization: Bearer KEY", falling
// back to the X-API-Key header.
func extractAPIKey(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
