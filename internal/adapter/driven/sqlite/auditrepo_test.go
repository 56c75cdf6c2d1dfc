package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/vaultdesk/internal/domain/model"
)

func TestAuditRepo_RecordAndList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditRepo(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	events := []model.AuditEvent{
		{ID: "e1", TenantID: "acme", SecretID: "s1", Action: model.AuditActionStore, Actor: "alice", Success: true, OccurredAt: base},
		{ID: "e2", TenantID: "acme", SecretID: "s1", Action: model.AuditActionReveal, Actor: "bob", Success: true, OccurredAt: base.Add(100 * time.Millisecond)},
		{ID: "e3", TenantID: "acme", SecretID: "s1", Action: model.AuditActionReveal, Actor: "mallory", Success: false, OccurredAt: base.Add(120 * time.Millisecond)},
		{ID: "e4", TenantID: "globex", SecretID: "s9", Action: model.AuditActionDelete, Actor: "eve", Success: true, OccurredAt: base},
	}
	for _, ev := range events {
		require.NoError(t, repo.Record(ctx, ev))
	}

	got, err := repo.ListByTenant(ctx, "acme", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "e3", got[0].ID)
	assert.Equal(t, "e2", got[1].ID)
	assert.Equal(t, "e1", got[2].ID)

	assert.Equal(t, model.AuditActionReveal, got[0].Action)
	assert.False(t, got[0].Success)
	assert.Equal(t, "mallory", got[0].Actor)
	assert.True(t, base.Add(120*time.Millisecond).Equal(got[0].OccurredAt))
}

func TestAuditRepo_ListLimit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditRepo(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Record(ctx, model.AuditEvent{
			ID: id, TenantID: "acme", SecretID: "s", Action: model.AuditActionReveal,
			Actor: "x", Success: true, OccurredAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	got, err := repo.ListByTenant(ctx, "acme", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestAuditRepo_ListEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditRepo(db)

	got, err := repo.ListByTenant(context.Background(), "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
