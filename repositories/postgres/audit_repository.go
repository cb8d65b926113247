package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/upb/governance-gateway/models"
	"github.com/upb/governance-gateway/repositories"
	"go.uber.org/zap"
)

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	db     *DB
	logger *zap.Logger
	tx     repositories.Transaction
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

const auditInsertColumns = `id, customer_id, key_id, key_name, model, operation, tokens,
		risk_score, allowed, reason, request_id, latency_ms, created_at`

// Insert inserts a single audit log entry
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	query := fmt.Sprintf(`
		INSERT INTO audit_logs (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, auditInsertColumns)

	executor := r.executor(ctx)
	_, err := executor.ExecContext(ctx, query,
		log.ID,
		log.CustomerID,
		log.KeyID,
		log.KeyName,
		log.Model,
		log.Operation,
		log.Tokens,
		log.RiskScore,
		log.Allowed,
		log.Reason,
		log.RequestID,
		log.LatencyMs,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// InsertBatch inserts a batch of audit log entries with a single multi-row
// INSERT. The drain worker calls this inside one transaction per batch.
func (r *AuditRepository) InsertBatch(ctx context.Context, logs []*models.AuditLog) error {
	if len(logs) == 0 {
		return nil
	}

	const fieldsPerRow = 13
	placeholders := make([]string, 0, len(logs))
	args := make([]interface{}, 0, len(logs)*fieldsPerRow)

	for i, log := range logs {
		base := i * fieldsPerRow
		row := make([]string, fieldsPerRow)
		for j := range row {
			row[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(row, ", ")+")")
		args = append(args,
			log.ID,
			log.CustomerID,
			log.KeyID,
			log.KeyName,
			log.Model,
			log.Operation,
			log.Tokens,
			log.RiskScore,
			log.Allowed,
			log.Reason,
			log.RequestID,
			log.LatencyMs,
			log.CreatedAt,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO audit_logs (%s)
		VALUES %s
	`, auditInsertColumns, strings.Join(placeholders, ", "))

	executor := r.executor(ctx)
	if _, err := executor.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert audit batch: %w", err)
	}

	r.logger.Debug("audit batch written", zap.Int("count", len(logs)))
	return nil
}

// GetByRequestID retrieves audit logs by request ID (support correlation)
func (r *AuditRepository) GetByRequestID(ctx context.Context, requestID string) ([]*models.AuditLog, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM audit_logs
		WHERE request_id = $1
		ORDER BY created_at ASC
	`, auditInsertColumns)

	executor := r.executor(ctx)
	rows, err := executor.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*models.AuditLog, 0)
	for rows.Next() {
		log := &models.AuditLog{}
		if err := rows.Scan(
			&log.ID,
			&log.CustomerID,
			&log.KeyID,
			&log.KeyName,
			&log.Model,
			&log.Operation,
			&log.Tokens,
			&log.RiskScore,
			&log.Allowed,
			&log.Reason,
			&log.RequestID,
			&log.LatencyMs,
			&log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}

	return logs, nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *AuditRepository) WithTx(tx repositories.Transaction) repositories.AuditRepository {
	return &AuditRepository{
		db:     r.db,
		logger: r.logger,
		tx:     tx,
	}
}

// executor resolves the transaction-bound executor when present
func (r *AuditRepository) executor(ctx context.Context) Executor {
	if r.tx != nil {
		if pgTx, ok := r.tx.(*Transaction); ok {
			return pgTx.GetTx()
		}
	}
	return GetExecutor(ctx, r.db)
}
