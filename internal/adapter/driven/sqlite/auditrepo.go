package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfisherdev/vaultdesk/internal/domain/model"
	"github.com/ericfisherdev/vaultdesk/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AuditStore = (*AuditRepo)(nil)

// timestampLayout is fixed-width so that stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// AuditRepo is the SQLite implementation of the AuditStore port interface.
type AuditRepo struct {
	db *DB
}

// NewAuditRepo creates a new AuditRepo backed by the given DB.
func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Record appends an audit event.
func (r *AuditRepo) Record(ctx context.Context, event model.AuditEvent) error {
	const query = `
		INSERT INTO audit_events (id, tenant_id, secret_id, action, actor, success, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		event.ID,
		event.TenantID,
		event.SecretID,
		string(event.Action),
		event.Actor,
		event.Success,
		occurredAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("record audit event %s for secret %q: %w", event.Action, event.SecretID, err)
	}
	return nil
}

// ListByTenant returns the tenant's audit events, newest first.
func (r *AuditRepo) ListByTenant(ctx context.Context, tenantID string, limit int) ([]model.AuditEvent, error) {
	query := `
		SELECT id, tenant_id, secret_id, action, actor, success, occurred_at
		FROM audit_events WHERE tenant_id = ?
		ORDER BY occurred_at DESC, id DESC`
	args := []any{tenantID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []model.AuditEvent
	for rows.Next() {
		var ev model.AuditEvent
		var action, occurredAt string
		if err := rows.Scan(&ev.ID, &ev.TenantID, &ev.SecretID, &action, &ev.Actor, &ev.Success, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.Action = model.AuditAction(action)

		ev.OccurredAt, err = parseTime(occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parse occurred_at for audit event %q: %w", ev.ID, err)
		}

		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}

// parseTime parses timestamps written by this package or by SQLite's CURRENT_TIMESTAMP.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		timestampLayout,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
