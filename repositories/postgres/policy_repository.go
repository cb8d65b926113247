package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/governance-gateway/models"
	"github.com/upb/governance-gateway/repositories"
	"go.uber.org/zap"
)

// PolicyRepository implements the repositories.PolicyRepository interface
type PolicyRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *DB, logger *zap.Logger) repositories.PolicyRepository {
	return &PolicyRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a policy by ID
func (r *PolicyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	query := `
		SELECT id, customer_id, name, version, active, rules, created_at, updated_at
		FROM policies
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	policy, err := scanPolicy(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}

	return policy, nil
}

// GetActiveByCustomerID retrieves all active policies for a customer.
// Ordered by creation time so triggered-rule reporting stays deterministic.
func (r *PolicyRepository) GetActiveByCustomerID(ctx context.Context, customerID uuid.UUID) ([]*models.Policy, error) {
	query := `
		SELECT id, customer_id, name, version, active, rules, created_at, updated_at
		FROM policies
		WHERE customer_id = $1 AND active = true
		ORDER BY created_at ASC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active policies: %w", err)
	}
	defer rows.Close()

	policies := make([]*models.Policy, 0)
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		policies = append(policies, policy)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate policies: %w", err)
	}

	return policies, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanPolicy scans one policy row, decoding the JSONB rules column
func scanPolicy(row rowScanner) (*models.Policy, error) {
	policy := &models.Policy{}
	var rulesJSON []byte

	if err := row.Scan(
		&policy.ID,
		&policy.CustomerID,
		&policy.Name,
		&policy.Version,
		&policy.Active,
		&rulesJSON,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if len(rulesJSON) > 0 {
		if err := json.Unmarshal(rulesJSON, &policy.Rules); err != nil {
			return nil, fmt.Errorf("failed to decode policy rules: %w", err)
		}
	}

	return policy, nil
}
