package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newDBForTest(t *testing.T) (*DB, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	return &DB{DB: db}, mock, func() { db.Close() }
}

var credentialColumns = []string{
	"id", "key_id", "customer_id", "name", "secret_hash", "status", "tier", "created_at", "rotated_at",
}

func TestCredentialRepository_FindByKeyID(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("returns the credential when found", func(t *testing.T) {
		db, mock, cleanup := newDBForTest(t)
		defer cleanup()

		id := uuid.New()
		customerID := uuid.New()
		createdAt := time.Now()

		mock.ExpectQuery("SELECT id, key_id, customer_id, name, secret_hash, status, tier, created_at, rotated_at").
			WithArgs("ak_live_1").
			WillReturnRows(sqlmock.NewRows(credentialColumns).
				AddRow(id, "ak_live_1", customerID, "ci pipeline", "$2a$10$hash", "active", "standard", createdAt, nil))

		repo := NewCredentialRepository(db, logger)
		cred, err := repo.FindByKeyID(ctx, "ak_live_1")

		require.NoError(t, err)
		require.NotNil(t, cred)
		assert.Equal(t, id, cred.ID)
		assert.Equal(t, "ak_live_1", cred.KeyID)
		assert.Equal(t, customerID, cred.CustomerID)
		assert.Equal(t, "$2a$10$hash", cred.SecretHash)
		assert.Nil(t, cred.RotatedAt)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns nil without error when absent", func(t *testing.T) {
		db, mock, cleanup := newDBForTest(t)
		defer cleanup()

		mock.ExpectQuery("SELECT id, key_id, customer_id").
			WithArgs("ak_unknown").
			WillReturnRows(sqlmock.NewRows(credentialColumns))

		repo := NewCredentialRepository(db, logger)
		cred, err := repo.FindByKeyID(ctx, "ak_unknown")

		require.NoError(t, err)
		assert.Nil(t, cred)
	})

	t.Run("propagates query errors", func(t *testing.T) {
		db, mock, cleanup := newDBForTest(t)
		defer cleanup()

		mock.ExpectQuery("SELECT id, key_id, customer_id").
			WithArgs("ak_live_1").
			WillReturnError(assert.AnError)

		repo := NewCredentialRepository(db, logger)
		cred, err := repo.FindByKeyID(ctx, "ak_live_1")

		assert.Error(t, err)
		assert.Nil(t, cred)
	})
}

func TestCredentialRepository_ListByCustomerID(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	db, mock, cleanup := newDBForTest(t)
	defer cleanup()

	customerID := uuid.New()
	rotatedAt := time.Now().Add(-time.Hour)

	mock.ExpectQuery("SELECT id, key_id, customer_id").
		WithArgs(customerID).
		WillReturnRows(sqlmock.NewRows(credentialColumns).
			AddRow(uuid.New(), "ak_live_2", customerID, "new key", "$2a$10$h2", "active", "standard", time.Now(), nil).
			AddRow(uuid.New(), "ak_live_1", customerID, "old key", "$2a$10$h1", "rotated", "standard", time.Now().Add(-48*time.Hour), rotatedAt))

	repo := NewCredentialRepository(db, logger)
	creds, err := repo.ListByCustomerID(ctx, customerID)

	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "ak_live_2", creds[0].KeyID)
	assert.Equal(t, "ak_live_1", creds[1].KeyID)
	require.NotNil(t, creds[1].RotatedAt)
	assert.WithinDuration(t, rotatedAt, *creds[1].RotatedAt, time.Second)
}
