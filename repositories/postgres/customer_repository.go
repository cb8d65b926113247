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

// CustomerRepository implements the repositories.CustomerRepository interface
type CustomerRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db *DB, logger *zap.Logger) repositories.CustomerRepository {
	return &CustomerRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a customer by ID
func (r *CustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	query := `
		SELECT id, name, email, strict_mode, created_at, updated_at
		FROM customers
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	customer := &models.Customer{}

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&customer.ID,
		&customer.Name,
		&customer.Email,
		&customer.StrictMode,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	return customer, nil
}
