package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ericfisherdev/vaultdesk/internal/domain/model"
	"github.com/ericfisherdev/vaultdesk/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AuditStore = (*AuditLog)(nil)

// AuditLog is an in-memory AuditStore. Events are lost on restart.
type AuditLog struct {
	mu     sync.RWMutex
	events []model.AuditEvent
}

// NewAuditLog creates an empty AuditLog.
func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

// Record appends an audit event.
func (l *AuditLog) Record(_ context.Context, event model.AuditEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

// ListByTenant returns the tenant's events, newest first. A limit <= 0 returns all.
func (l *AuditLog) ListByTenant(_ context.Context, tenantID string, limit int) ([]model.AuditEvent, error) {
	l.mu.RLock()
	result := make([]model.AuditEvent, 0)
	for _, e := range l.events {
		if e.TenantID == tenantID {
			result = append(result, e)
		}
	}
	l.mu.RUnlock()

	// Stable on insertion order so equal timestamps list the later event first.
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].OccurredAt.After(result[j].OccurredAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
