package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RuleType identifies a governance rule kind. The set is closed: the
// evaluator dispatches on these values with typed parameters, so a malformed
// rule kind fails evaluation instead of being interpreted loosely.
type RuleType string

const (
	RuleTypePersonalData       RuleType = "personal_data"
	RuleTypeExternalModel      RuleType = "external_model"
	RuleTypeSizeCeiling        RuleType = "size_ceiling"
	RuleTypeOperationAllowList RuleType = "operation_allowlist"
)

// RuleWeight returns the fixed risk contribution of a rule kind.
// Each rule contributes at most once per request.
func RuleWeight(t RuleType) int {
	switch t {
	case RuleTypePersonalData:
		return 70
	case RuleTypeExternalModel:
		return 50
	case RuleTypeSizeCeiling:
		return 30
	case RuleTypeOperationAllowList:
		return 20
	default:
		return 0
	}
}

// Rule is one entry of a policy's rule set: a kind tag plus typed parameters.
type Rule struct {
	Type   RuleType        `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Policy represents a named, versioned governance rule set scoped to a customer.
// Policies are read-only to the core; toggling Active is the only mutation the
// pipeline must tolerate between requests (last-read-wins, no isolation).
type Policy struct {
	ID         uuid.UUID `json:"id" db:"id"`
	CustomerID uuid.UUID `json:"customer_id" db:"customer_id"`
	Name       string    `json:"name" db:"name"`
	Version    int       `json:"version" db:"version"`
	Active     bool      `json:"active" db:"active"`
	Rules      []Rule    `json:"rules" db:"rules"` // JSONB column
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Policy model
func (Policy) TableName() string {
	return "policies"
}

// NewPolicy creates a new Policy instance
func NewPolicy(customerID uuid.UUID, name string, rules []Rule) *Policy {
	now := time.Now()
	return &Policy{
		ID:         uuid.New(),
		CustomerID: customerID,
		Name:       name,
		Version:    1,
		Active:     true,
		Rules:      rules,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ExternalModelConfig parameterizes the external_model rule: anything not on
// the approved lists counts as external.
type ExternalModelConfig struct {
	ApprovedProviders []string `json:"approved_providers"`
	ApprovedModels    []string `json:"approved_models"`
}

// SizeCeilingConfig parameterizes the size_ceiling rule.
type SizeCeilingConfig struct {
	MaxTokens int `json:"max_tokens"`
}

// OperationAllowListConfig parameterizes the operation_allowlist rule.
type OperationAllowListConfig struct {
	Operations []string `json:"operations"`
}
