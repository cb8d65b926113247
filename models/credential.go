package models

import (
	"time"

	"github.com/google/uuid"
)

// CredentialStatus represents the lifecycle state of a credential
type CredentialStatus string

const (
	CredentialStatusActive  CredentialStatus = "active"
	CredentialStatusRotated CredentialStatus = "rotated"
	CredentialStatusRevoked CredentialStatus = "revoked"
)

// Tier classifies a credential for quota purposes
type Tier string

const (
	TierFree       Tier = "free"
	TierStandard   Tier = "standard"
	TierEnterprise Tier = "enterprise"
)

// Credential represents a persistent API key record.
// The presented token has the form "<key_id>.<secret>"; only the key_id is
// stored in the clear (indexed for O(1) lookup), the secret is bcrypt-hashed.
type Credential struct {
	ID         uuid.UUID        `json:"id" db:"id"`
	KeyID      string           `json:"key_id" db:"key_id"`
	CustomerID uuid.UUID        `json:"customer_id" db:"customer_id"`
	Name       string           `json:"name" db:"name"`
	SecretHash string           `json:"-" db:"secret_hash"`
	Status     CredentialStatus `json:"status" db:"status"`
	Tier       Tier             `json:"tier" db:"tier"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
	RotatedAt  *time.Time       `json:"rotated_at,omitempty" db:"rotated_at"`
}

// TableName returns the table name for the Credential model
func (Credential) TableName() string {
	return "credentials"
}

// IsRevoked reports whether the credential must never validate.
func (c *Credential) IsRevoked() bool {
	return c.Status == CredentialStatusRevoked
}

// IsWithinRotationGrace reports whether a rotated credential is still inside
// its grace window at the given instant. Active credentials always pass.
func (c *Credential) IsWithinRotationGrace(now time.Time, grace time.Duration) bool {
	if c.Status == CredentialStatusActive {
		return true
	}
	if c.Status != CredentialStatusRotated || c.RotatedAt == nil {
		return false
	}
	return now.Before(c.RotatedAt.Add(grace))
}

// Identity is the verified caller context for one request.
// Created per request by the credential verifier and never mutated.
type Identity struct {
	KeyID      string
	KeyName    string
	CustomerID uuid.UUID
	Tier       Tier
}
