package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/upb/governance-gateway/config"
	"github.com/upb/governance-gateway/models"
	"github.com/upb/governance-gateway/services"
)

type mockCredentialRepository struct {
	mock.Mock
}

func (m *mockCredentialRepository) FindByKeyID(ctx context.Context, keyID string) (*models.Credential, error) {
	args := m.Called(ctx, keyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Credential), args.Error(1)
}

func (m *mockCredentialRepository) ListByCustomerID(ctx context.Context, customerID uuid.UUID) ([]*models.Credential, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Credential), args.Error(1)
}

func hashSecret(t *testing.T, secret string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newTestVerifier(repo *mockCredentialRepository) *Verifier {
	cfg := config.AuthConfig{
		RotationGrace: 7 * 24 * time.Hour,
		LookupTimeout: 2 * time.Second,
	}
	return NewVerifier(repo, cfg, zap.NewNop())
}

var testCustomerID = uuid.MustParse("2f9d1b66-6f3c-4e6a-9a5d-6f2b8c1d4e7a")

func activeCredential(t *testing.T, secret string) *models.Credential {
	return &models.Credential{
		ID:         uuid.New(),
		KeyID:      "gk_abc123",
		CustomerID: testCustomerID,
		Name:       "ci-pipeline",
		SecretHash: hashSecret(t, secret),
		Status:     models.CredentialStatusActive,
		Tier:       models.TierStandard,
		CreatedAt:  time.Now().Add(-24 * time.Hour),
	}
}

func TestVerifier_Verify(t *testing.T) {
	t.Run("valid key returns identity", func(t *testing.T) {
		repo := new(mockCredentialRepository)
		cred := activeCredential(t, "s3cr3t")
		repo.On("FindByKeyID", mock.Anything, "gk_abc123").Return(cred, nil)

		identity, err := newTestVerifier(repo).Verify(context.Background(), "gk_abc123.s3cr3t")

		require.NoError(t, err)
		assert.Equal(t, "gk_abc123", identity.KeyID)
		assert.Equal(t, testCustomerID, identity.CustomerID)
		assert.Equal(t, "ci-pipeline", identity.KeyName)
		assert.Equal(t, models.TierStandard, identity.Tier)
		repo.AssertExpectations(t)
	})

	t.Run("malformed key without dot", func(t *testing.T) {
		repo := new(mockCredentialRepository)

		_, err := newTestVerifier(repo).Verify(context.Background(), "nodothere")

		assert.True(t, services.IsUnauthenticatedError(err))
		repo.AssertNotCalled(t, "FindByKeyID")
	})

	t.Run("empty key_id half", func(t *testing.T) {
		repo := new(mockCredentialRepository)

		_, err := newTestVerifier(repo).Verify(context.Background(), ".secretonly")

		assert.True(t, services.IsUnauthenticatedError(err))
	})

	t.Run("empty secret half", func(t *testing.T) {
		repo := new(mockCredentialRepository)

		_, err := newTestVerifier(repo).Verify(context.Background(), "gk_abc123.")

		assert.True(t, services.IsUnauthenticatedError(err))
	})

	t.Run("secret with embedded dots", func(t *testing.T) {
		repo := new(mockCredentialRepository)
		cred := activeCredential(t, "se.cr.et")
		repo.On("FindByKeyID", mock.Anything, "gk_abc123").Return(cred, nil)

		identity, err := newTestVerifier(repo).Verify(context.Background(), "gk_abc123.se.cr.et")

		require.NoError(t, err)
		assert.Equal(t, testCustomerID, identity.CustomerID)
	})

	t.Run("unknown key_id", func(t *testing.T) {
		repo := new(mockCredentialRepository)
		repo.On("FindByKeyID", mock.Anything, "gk_missing").Return(nil, nil)

		_, err := newTestVerifier(repo).Verify(context.Background(), "gk_missing.whatever")

		assert.True(t, services.IsUnauthenticatedError(err))
	})

	t.Run("wrong secret", func(t *testing.T) {
		repo := new(mockCredentialRepository)
		cred := activeCredential(t, "correct")
		repo.On("FindByKeyID", mock.Anything, "gk_abc123").Return(cred, nil)

		_, err := newTestVerifier(repo).Verify(context.Background(), "gk_abc123.wrong")

		assert.True(t, services.IsUnauthenticatedError(err))
	})

	t.Run("revoked credential", func(t *testing.T) {
		repo := new(mockCredentialRepository)
		cred := activeCredential(t, "s3cr3t")
		cred.Status = models.CredentialStatusRevoked
		repo.On("FindByKeyID", mock.Anything, "gk_abc123").Return(cred, nil)

		_, err := newTestVerifier(repo).Verify(context.Background(), "gk_abc123.s3cr3t")

		assert.True(t, services.IsUnauthenticatedError(err))
	})

	t.Run("rotated within grace still valid", func(t *testing.T) {
		repo := new(mockCredentialRepository)
		cred := activeCredential(t, "s3cr3t")
		cred.Status = models.CredentialStatusRotated
		rotatedAt := time.Now().Add(-48 * time.Hour)
		cred.RotatedAt = &rotatedAt
		repo.On("FindByKeyID", mock.Anything, "gk_abc123").Return(cred, nil)

		identity, err := newTestVerifier(repo).Verify(context.Background(), "gk_abc123.s3cr3t")

		require.NoError(t, err)
		assert.Equal(t, testCustomerID, identity.CustomerID)
	})

	t.Run("rotated past grace rejected", func(t *testing.T) {
		repo := new(mockCredentialRepository)
		cred := activeCredential(t, "s3cr3t")
		cred.Status = models.CredentialStatusRotated
		rotatedAt := time.Now().Add(-8 * 24 * time.Hour)
		cred.RotatedAt = &rotatedAt
		repo.On("FindByKeyID", mock.Anything, "gk_abc123").Return(cred, nil)

		_, err := newTestVerifier(repo).Verify(context.Background(), "gk_abc123.s3cr3t")

		assert.True(t, services.IsUnauthenticatedError(err))
	})

	t.Run("store error surfaces as unavailable", func(t *testing.T) {
		repo := new(mockCredentialRepository)
		repo.On("FindByKeyID", mock.Anything, "gk_abc123").Return(nil, errors.New("connection refused"))

		_, err := newTestVerifier(repo).Verify(context.Background(), "gk_abc123.s3cr3t")

		assert.True(t, services.IsUnavailableError(err))
		assert.False(t, services.IsUnauthenticatedError(err))
	})
}
