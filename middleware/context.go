package middleware

import (
	"context"

	"github.com/upb/governance-gateway/models"
)

// Unexported key type so request-scoped values cannot collide across packages.
type contextKey string

const (
	// APIKeyKey is the context key for the raw presented API key
	APIKeyKey contextKey = "api_key"

	// IdentityKey is the context key for the verified identity
	IdentityKey contextKey = "identity"
)

// GetAPIKeyFromContext retrieves the raw API key from context
func GetAPIKeyFromContext(ctx context.Context) string {
	if val := ctx.Value(APIKeyKey); val != nil {
		if apiKey, ok := val.(string); ok {
			return apiKey
		}
	}
	return ""
}

// WithAPIKey adds the raw API key to the context
func WithAPIKey(ctx context.Context, apiKey string) context.Context {
	return context.WithValue(ctx, APIKeyKey, apiKey)
}

// GetIdentityFromContext retrieves the verified identity from context
func GetIdentityFromContext(ctx context.Context) *models.Identity {
	if val := ctx.Value(IdentityKey); val != nil {
		if identity, ok := val.(*models.Identity); ok {
			return identity
		}
	}
	return nil
}

// WithIdentity adds a verified identity to the context
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}
