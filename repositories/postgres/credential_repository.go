package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/governance-gateway/models"
	"github.com/upb/governance-gateway/repositories"
	"go.uber.org/zap"
)

// CredentialRepository implements the repositories.CredentialRepository interface
type CredentialRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *DB, logger *zap.Logger) repositories.CredentialRepository {
	return &CredentialRepository{
		db:     db,
		logger: logger,
	}
}

// FindByKeyID retrieves a credential by its indexed public key identifier.
// Returns nil without error when no record exists; the caller maps absence
// to the same authentication failure as a bad secret.
func (r *CredentialRepository) FindByKeyID(ctx context.Context, keyID string) (*models.Credential, error) {
	query := `
		SELECT id, key_id, customer_id, name, secret_hash, status, tier, created_at, rotated_at
		FROM credentials
		WHERE key_id = $1
	`

	executor := GetExecutor(ctx, r.db)
	credential := &models.Credential{}

	err := executor.QueryRowContext(ctx, query, keyID).Scan(
		&credential.ID,
		&credential.KeyID,
		&credential.CustomerID,
		&credential.Name,
		&credential.SecretHash,
		&credential.Status,
		&credential.Tier,
		&credential.CreatedAt,
		&credential.RotatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}

	return credential, nil
}

// ListByCustomerID retrieves all credentials belonging to a customer
func (r *CredentialRepository) ListByCustomerID(ctx context.Context, customerID uuid.UUID) ([]*models.Credential, error) {
	query := `
		SELECT id, key_id, customer_id, name, secret_hash, status, tier, created_at, rotated_at
		FROM credentials
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	credentials := make([]*models.Credential, 0)
	for rows.Next() {
		credential := &models.Credential{}
		if err := rows.Scan(
			&credential.ID,
			&credential.KeyID,
			&credential.CustomerID,
			&credential.Name,
			&credential.SecretHash,
			&credential.Status,
			&credential.Tier,
			&credential.CreatedAt,
			&credential.RotatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		credentials = append(credentials, credential)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate credentials: %w", err)
	}

	return credentials, nil
}
