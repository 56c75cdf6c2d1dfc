package model

import "time"

// AuditEvent records who performed a vault operation on which secret.
// It never carries secret values or ciphertext.
type AuditEvent struct {
	ID         string
	TenantID   string
	SecretID   string
	Action     AuditAction
	Actor      string
	Success    bool
	OccurredAt time.Time
}
