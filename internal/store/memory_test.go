package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDoc(t *testing.T, s *MemoryDocumentStore, collection, id string, fields map[string]any) {
	t.Helper()
	_, err := s.Create(context.Background(), collection, id, fields)
	require.NoError(t, err)
}

func TestMemoryList_EqualValueSet(t *testing.T) {
	s := NewMemoryDocumentStore()
	seedDoc(t, s, "users", "u1", map[string]any{"role": "owner_business"})
	seedDoc(t, s, "users", "u2", map[string]any{"role": "owner_bussines"})
	seedDoc(t, s, "users", "u3", map[string]any{"role": "tenant"})

	docs, err := s.List(context.Background(), "users", []Filter{
		Equal("role", "owner_business", "owner_bussines"),
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "u1", docs[0].ID)
	assert.Equal(t, "u2", docs[1].ID)
}

func TestMemoryList_NotEqualAndMetaID(t *testing.T) {
	s := NewMemoryDocumentStore()
	seedDoc(t, s, "users", "root", map[string]any{"tenant_id": "t1"})
	seedDoc(t, s, "users", "staff1", map[string]any{"tenant_id": "t1"})
	seedDoc(t, s, "users", "other", map[string]any{"tenant_id": "t2"})

	docs, err := s.List(context.Background(), "users", []Filter{
		Equal("tenant_id", "t1"),
		NotEqual("$id", "root"),
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "staff1", docs[0].ID)
}

func TestMemoryList_LessThanTimestampString(t *testing.T) {
	s := NewMemoryDocumentStore()
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	seedDoc(t, s, "users", "expired", map[string]any{
		"contract_end_date": now.AddDate(0, 0, -10).Format(time.RFC3339),
	})
	seedDoc(t, s, "users", "current", map[string]any{
		"contract_end_date": now.AddDate(0, 0, 10).Format(time.RFC3339),
	})
	seedDoc(t, s, "users", "no_contract", map[string]any{})

	docs, err := s.List(context.Background(), "users", []Filter{
		LessThan("contract_end_date", now.Format(time.RFC3339)),
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "expired", docs[0].ID)
}

func TestMemoryList_CreatedAtCutoff(t *testing.T) {
	s := NewMemoryDocumentStore()
	base := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	s.SetClock(func() time.Time { return base.Add(-6 * time.Hour) })
	seedDoc(t, s, "invitation_codes", "old", map[string]any{"status": "active"})
	s.SetClock(func() time.Time { return base.Add(-1 * time.Hour) })
	seedDoc(t, s, "invitation_codes", "fresh", map[string]any{"status": "active"})

	docs, err := s.List(context.Background(), "invitation_codes", []Filter{
		Equal("status", "active"),
		LessThan("$createdAt", base.Add(-5*time.Hour).Format(time.RFC3339)),
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "old", docs[0].ID)
}

func TestMemoryList_OrIsNull(t *testing.T) {
	s := NewMemoryDocumentStore()
	seedDoc(t, s, "users", "no_subrole", map[string]any{"role": "tenant"})
	seedDoc(t, s, "users", "empty_subrole", map[string]any{"role": "tenant", "sub_role": ""})
	seedDoc(t, s, "users", "staff", map[string]any{"role": "tenant", "sub_role": "staff"})

	docs, err := s.List(context.Background(), "users", []Filter{
		Or(IsNull("sub_role"), Equal("sub_role", "")),
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
}

func TestMemoryList_Limit(t *testing.T) {
	s := NewMemoryDocumentStore()
	for i := 0; i < 5; i++ {
		seedDoc(t, s, "products", "", map[string]any{"is_available": true})
	}

	docs, err := s.List(context.Background(), "products", []Filter{
		Equal("is_available", true),
		Limit(3),
	})
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestMemoryList_NonScalarFieldNeverMatches(t *testing.T) {
	s := NewMemoryDocumentStore()
	seedDoc(t, s, "users", "u1", map[string]any{
		"role":                "owner_business",
		"selected_tenant_ids": []any{"t1", "t2"},
	})

	docs, err := s.List(context.Background(), "users", []Filter{
		Equal("selected_tenant_ids", "t1"),
	})
	require.NoError(t, err)
	assert.Empty(t, docs)

	docs, err = s.List(context.Background(), "users", []Filter{
		NotEqual("selected_tenant_ids", "t1"),
	})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestMemoryUpdate_MergesFields(t *testing.T) {
	s := NewMemoryDocumentStore()
	seedDoc(t, s, "products", "p1", map[string]any{"is_available": true, "name": "Nasi Goreng"})

	err := s.Update(context.Background(), "products", "p1", map[string]any{"is_available": false})
	require.NoError(t, err)

	doc, ok := s.Get("products", "p1")
	require.True(t, ok)
	assert.False(t, doc.Bool("is_available"))
	assert.Equal(t, "Nasi Goreng", doc.String("name"))
}

func TestMemoryUpdateDelete_NotFound(t *testing.T) {
	s := NewMemoryDocumentStore()

	err := s.Update(context.Background(), "products", "missing", map[string]any{"is_available": false})
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.Delete(context.Background(), "products", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryIdentityStore(t *testing.T) {
	s := NewMemoryIdentityStore()
	ctx := context.Background()

	id, err := s.CreatePrincipal(ctx, "owner@example.com", "secret", "Owner")
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.True(t, s.HasPrincipal(id))

	require.NoError(t, s.SetLabels(ctx, id, []string{"owner_business"}))
	require.NoError(t, s.DeletePrincipal(ctx, id))
	assert.False(t, s.HasPrincipal(id))

	assert.ErrorIs(t, s.DeletePrincipal(ctx, id), ErrNotFound)
	assert.ErrorIs(t, s.SetLabels(ctx, id, nil), ErrNotFound)
}
