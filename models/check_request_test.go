package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCheckRequest_TotalTokens(t *testing.T) {
	req := &CheckRequest{
		Operations: []Operation{
			{Type: "llm_call", Model: "gpt-4", Tokens: 120},
			{Type: "embedding", Model: "text-embedding-3-small", Tokens: 30},
		},
	}
	assert.Equal(t, 150, req.TotalTokens())

	assert.Equal(t, 0, (&CheckRequest{}).TotalTokens())
}

func TestCheckRequest_PrimaryOperation(t *testing.T) {
	req := &CheckRequest{
		Operations: []Operation{
			{Type: "llm_call", Model: "gpt-4", Tokens: 120},
			{Type: "embedding", Model: "text-embedding-3-small", Tokens: 30},
		},
	}
	assert.Equal(t, "llm_call", req.PrimaryOperation().Type)
	assert.Equal(t, "gpt-4", req.PrimaryOperation().Model)

	assert.Equal(t, Operation{}, (&CheckRequest{}).PrimaryOperation())
}

func TestNewAuditLog(t *testing.T) {
	identity := Identity{
		KeyID:      "ak_live_1",
		KeyName:    "ci pipeline",
		CustomerID: uuid.New(),
		Tier:       TierStandard,
	}
	decision := &Decision{
		Allowed:        false,
		RiskScore:      70,
		Reason:         "personal/identifying data detected",
		TriggeredRules: []string{"personal_data"},
		RequestID:      "req-1",
		LatencyMs:      1.25,
	}

	entry := NewAuditLog(identity, Operation{Type: "llm_call", Model: "gpt-4"}, 150, decision)

	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.Equal(t, identity.CustomerID, entry.CustomerID)
	assert.Equal(t, "ak_live_1", entry.KeyID)
	assert.Equal(t, "ci pipeline", entry.KeyName)
	assert.Equal(t, "gpt-4", entry.Model)
	assert.Equal(t, "llm_call", entry.Operation)
	assert.Equal(t, 150, entry.Tokens)
	assert.Equal(t, 70, entry.RiskScore)
	assert.False(t, entry.Allowed)
	assert.Equal(t, "req-1", entry.RequestID)
	assert.Equal(t, 1.25, entry.LatencyMs)
	assert.False(t, entry.CreatedAt.IsZero())
}
