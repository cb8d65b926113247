package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/upb/governance-gateway/models"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// CustomerRepository handles customer data operations.
// The core reads customers only; writes belong to the administrative layer.
type CustomerRepository interface {
	// GetByID retrieves a customer by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}

// CredentialRepository handles credential record lookups.
// Read-only to the core; rotation and revocation are administrative writes.
type CredentialRepository interface {
	// FindByKeyID retrieves a credential by its indexed public key identifier.
	// Returns nil without error when no record exists.
	FindByKeyID(ctx context.Context, keyID string) (*models.Credential, error)

	// ListByCustomerID retrieves all credentials belonging to a customer
	ListByCustomerID(ctx context.Context, customerID uuid.UUID) ([]*models.Credential, error)
}

// PolicyRepository handles policy data operations
type PolicyRepository interface {
	// GetByID retrieves a policy by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Policy, error)

	// GetActiveByCustomerID retrieves all active policies for a customer,
	// ordered by creation time for deterministic rule reporting
	GetActiveByCustomerID(ctx context.Context, customerID uuid.UUID) ([]*models.Policy, error)
}

// AuditRepository handles audit log data operations
type AuditRepository interface {
	// Insert inserts a single audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// InsertBatch inserts a batch of audit log entries in one transaction
	InsertBatch(ctx context.Context, logs []*models.AuditLog) error

	// GetByRequestID retrieves audit logs by request ID (support correlation)
	GetByRequestID(ctx context.Context, requestID string) ([]*models.AuditLog, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) AuditRepository
}

// Repositories holds all repository instances
type Repositories struct {
	Customers   CustomerRepository
	Credentials CredentialRepository
	Policies    PolicyRepository
	AuditLogs   AuditRepository
}
