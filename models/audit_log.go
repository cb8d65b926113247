package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog represents one durable decision record in the audit trail.
// It carries derived, non-identifying request attributes only; raw context
// payloads never survive into storage.
type AuditLog struct {
	ID         uuid.UUID `json:"id" db:"id"`
	CustomerID uuid.UUID `json:"customer_id" db:"customer_id"`
	KeyID      string    `json:"key_id" db:"key_id"`
	KeyName    string    `json:"key_name" db:"key_name"`
	Model      string    `json:"model" db:"model"`
	Operation  string    `json:"operation" db:"operation"`
	Tokens     int       `json:"tokens" db:"tokens"`
	RiskScore  int       `json:"risk_score" db:"risk_score"`
	Allowed    bool      `json:"allowed" db:"allowed"`
	Reason     string    `json:"reason" db:"reason"`
	RequestID  string    `json:"request_id" db:"request_id"`
	LatencyMs  float64   `json:"latency_ms" db:"latency_ms"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates an audit record for a completed decision.
func NewAuditLog(identity Identity, op Operation, tokens int, decision *Decision) *AuditLog {
	return &AuditLog{
		ID:         uuid.New(),
		CustomerID: identity.CustomerID,
		KeyID:      identity.KeyID,
		KeyName:    identity.KeyName,
		Model:      op.Model,
		Operation:  op.Type,
		Tokens:     tokens,
		RiskScore:  decision.RiskScore,
		Allowed:    decision.Allowed,
		Reason:     decision.Reason,
		RequestID:  decision.RequestID,
		LatencyMs:  decision.LatencyMs,
		CreatedAt:  time.Now(),
	}
}
