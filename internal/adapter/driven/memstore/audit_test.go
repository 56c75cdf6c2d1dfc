package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/vaultdesk/internal/domain/model"
)

func TestAuditLog_ListByTenant(t *testing.T) {
	l := NewAuditLog()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, l.Record(ctx, model.AuditEvent{ID: "1", TenantID: "acme", Action: model.AuditActionStore, OccurredAt: base}))
	require.NoError(t, l.Record(ctx, model.AuditEvent{ID: "2", TenantID: "globex", Action: model.AuditActionStore, OccurredAt: base}))
	require.NoError(t, l.Record(ctx, model.AuditEvent{ID: "3", TenantID: "acme", Action: model.AuditActionReveal, OccurredAt: base.Add(time.Minute)}))
	require.NoError(t, l.Record(ctx, model.AuditEvent{ID: "4", TenantID: "acme", Action: model.AuditActionDelete, OccurredAt: base.Add(time.Minute)}))

	events, err := l.ListByTenant(ctx, "acme", 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "4", events[0].ID)
	assert.Equal(t, "3", events[1].ID)
	assert.Equal(t, "1", events[2].ID)

	limited, err := l.ListByTenant(ctx, "acme", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "4", limited[0].ID)

	none, err := l.ListByTenant(ctx, "initech", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAuditLog_RecordFillsTimestamp(t *testing.T) {
	l := NewAuditLog()
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, model.AuditEvent{ID: "1", TenantID: "acme"}))

	events, err := l.ListByTenant(ctx, "acme", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].OccurredAt.IsZero())
}
