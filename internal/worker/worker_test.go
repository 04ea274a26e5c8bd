package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"pos-ledger/internal/replication"
	"pos-ledger/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spoolEntry(t *testing.T, mem *store.Memory, sheet string) *store.SpoolEntry {
	t.Helper()
	entry := &store.SpoolEntry{
		SheetName: sheet,
		Payload:   json.RawMessage(`{"id":"x"}`),
		LastError: "initial failure",
		Attempts:  1,
	}
	require.NoError(t, mem.Enqueue(context.Background(), entry))
	return entry
}

func TestSweepDeliversAndRemoves(t *testing.T) {
	var delivered atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered.Add(1)
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	mem := store.NewMemory()
	dispatcher := replication.NewDispatcher(srv.URL, "", mem)
	spoolEntry(t, mem, replication.SheetSales)
	spoolEntry(t, mem, replication.SheetCustomers)

	sweeper := NewRetrySweeper(mem, dispatcher, time.Minute)
	sweeper.Sweep(context.Background())

	assert.Equal(t, int32(2), delivered.Load())
	entries, err := mem.Pending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSweepKeepsFailedEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	mem := store.NewMemory()
	dispatcher := replication.NewDispatcher(srv.URL, "", mem)
	entry := spoolEntry(t, mem, replication.SheetSales)

	sweeper := NewRetrySweeper(mem, dispatcher, time.Minute)
	sweeper.Sweep(context.Background())

	entries, err := mem.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)
	assert.Equal(t, 2, entries[0].Attempts)
	assert.Contains(t, entries[0].LastError, "503")
}

func TestSweepEmptySpool(t *testing.T) {
	mem := store.NewMemory()
	dispatcher := replication.NewDispatcher("", "", mem)

	sweeper := NewRetrySweeper(mem, dispatcher, time.Minute)
	sweeper.Sweep(context.Background())

	entries, err := mem.Pending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStartStopsOnStop(t *testing.T) {
	mem := store.NewMemory()
	dispatcher := replication.NewDispatcher("", "", mem)
	sweeper := NewRetrySweeper(mem, dispatcher, 10*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		done <- sweeper.Start(context.Background())
	}()

	time.Sleep(30 * time.Millisecond)
	sweeper.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
