package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestMemoryListUninitialized(t *testing.T) {
	mem := NewMemory()

	raw, err := mem.List(context.Background(), CollectionProducts)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(raw))

	items, err := List[widget](context.Background(), mem, CollectionProducts)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMemoryReplaceAllRoundTrip(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	in := []widget{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}}
	require.NoError(t, ReplaceAll(ctx, mem, CollectionProducts, in))

	out, err := List[widget](ctx, mem, CollectionProducts)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	// Replace-all overwrites, never appends.
	require.NoError(t, ReplaceAll(ctx, mem, CollectionProducts, []widget{{ID: "3"}}))
	out, err = List[widget](ctx, mem, CollectionProducts)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "3", out[0].ID)
}

func TestMemoryReplaceMany(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	err := mem.ReplaceMany(ctx, map[string]json.RawMessage{
		CollectionSales:    json.RawMessage(`[{"id":"s1"}]`),
		CollectionProducts: json.RawMessage(`[{"id":"p1"}]`),
	})
	require.NoError(t, err)

	sales, err := List[widget](ctx, mem, CollectionSales)
	require.NoError(t, err)
	require.Len(t, sales, 1)

	products, err := List[widget](ctx, mem, CollectionProducts)
	require.NoError(t, err)
	require.Len(t, products, 1)
}

func TestListCorruptCollection(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.ReplaceAll(ctx, CollectionCustomers, json.RawMessage(`{"not":"an array"}`)))

	_, err := List[widget](ctx, mem, CollectionCustomers)
	var persistenceErr *PersistenceError
	require.ErrorAs(t, err, &persistenceErr)
	assert.Equal(t, CollectionCustomers, persistenceErr.Collection)
}

func TestMemorySpool(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	first := &SpoolEntry{SheetName: "販売履歴", Payload: json.RawMessage(`{"id":"s1"}`), LastError: "timeout", Attempts: 1}
	second := &SpoolEntry{SheetName: "顧客情報", Payload: json.RawMessage(`{"id":"c1"}`), LastError: "refused", Attempts: 1}
	require.NoError(t, mem.Enqueue(ctx, first))
	require.NoError(t, mem.Enqueue(ctx, second))
	assert.NotZero(t, first.ID)
	assert.Greater(t, second.ID, first.ID)

	entries, err := mem.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "販売履歴", entries[0].SheetName)

	require.NoError(t, mem.MarkFailed(ctx, first.ID, "still down"))
	entries, err = mem.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, "still down", entries[0].LastError)
	assert.Equal(t, 2, entries[0].Attempts)

	require.NoError(t, mem.Delete(ctx, first.ID))
	entries, err = mem.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, second.ID, entries[0].ID)

	// Deleting an unknown id is a no-op.
	require.NoError(t, mem.Delete(ctx, 999))
}
