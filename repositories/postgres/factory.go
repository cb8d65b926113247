package postgres

import (
	"context"

	"github.com/upb/governance-gateway/config"
	"github.com/upb/governance-gateway/repositories"
	"go.uber.org/zap"
)

// RepositoryFactory creates and manages all repositories
type RepositoryFactory struct {
	db      *DB
	auditDB *DB // Optional: separate DB for audit logs
	logger  *zap.Logger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	f := &RepositoryFactory{db: db, logger: logger}

	if cfg.AuditDatabase != nil {
		auditDB, err := NewDB(*cfg.AuditDatabase, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		f.auditDB = auditDB
	}

	return f, nil
}

// InitAuditSchema initializes the audit database schema when using a separate audit DB.
func (f *RepositoryFactory) InitAuditSchema(ctx context.Context) error {
	if f.auditDB != nil {
		return f.auditDB.InitAuditSchema(ctx)
	}
	return nil
}

// NewRepositories creates all repository instances
func (f *RepositoryFactory) NewRepositories() *repositories.Repositories {
	auditDB := f.db
	if f.auditDB != nil {
		auditDB = f.auditDB
	}
	return &repositories.Repositories{
		Customers:   NewCustomerRepository(f.db, f.logger),
		Credentials: NewCredentialRepository(f.db, f.logger),
		Policies:    NewPolicyRepository(f.db, f.logger),
		AuditLogs:   NewAuditRepository(auditDB, f.logger),
	}
}

// GetDB returns the underlying database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// GetTransactionManager returns a transaction manager bound to the audit DB
// (audit batch writes are the only transactional path in the core).
func (f *RepositoryFactory) GetTransactionManager() repositories.TransactionManager {
	auditDB := f.db
	if f.auditDB != nil {
		auditDB = f.auditDB
	}
	return NewTransactionManager(auditDB, f.logger)
}

// Close closes all database connections
func (f *RepositoryFactory) Close() error {
	if f.auditDB != nil {
		if err := f.auditDB.Close(); err != nil {
			f.logger.Error("failed to close audit database", zap.Error(err))
		}
	}
	return f.db.Close()
}
