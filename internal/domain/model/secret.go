package model

import "time"

// Secret is a stored vault entry. Ciphertext holds the encrypted value as an
// envelope string; the plaintext value is never part of this type.
type Secret struct {
	ID           string
	TenantID     string
	Title        string
	Category     Category
	Ciphertext   string
	Notes        string
	LinkedEntity *LinkedEntity // Optional weak reference; no cascade on delete.
	UpdatedBy    string
	UpdatedAt    time.Time
}

// LinkedEntity associates a secret with an asset or user record.
type LinkedEntity struct {
	EntityID   string
	EntityType EntityType
}

// NewSecret carries the fields needed to create a Secret. The repository
// assigns ID and UpdatedAt.
type NewSecret struct {
	TenantID     string
	Title        string
	Category     Category
	Ciphertext   string
	Notes        string
	LinkedEntity *LinkedEntity
	UpdatedBy    string
}

// SecretPatch lists the mutable fields of a Secret. Nil fields are left
// unchanged. ClearLinkedEntity removes an existing link.
type SecretPatch struct {
	Title             *string
	Category          *Category
	Ciphertext        *string
	Notes             *string
	LinkedEntity      *LinkedEntity
	ClearLinkedEntity bool
	UpdatedBy         string
}
