package driven

import (
	"context"

	"github.com/ericfisherdev/vaultdesk/internal/domain/model"
)

// AuditStore defines the driven port for the vault's append-only audit trail.
type AuditStore interface {
	Record(ctx context.Context, event model.AuditEvent) error

	// ListByTenant returns the most recent events for tenantID, newest first.
	// A limit <= 0 returns all events.
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]model.AuditEvent, error)
}
