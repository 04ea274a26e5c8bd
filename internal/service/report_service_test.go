package service

import (
	"context"
	"testing"
	"time"

	"pos-ledger/internal/models"
	"pos-ledger/internal/replication"
	"pos-ledger/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReports(t *testing.T) (*ReportService, *store.Memory, *replication.Dispatcher) {
	t.Helper()
	mem := store.NewMemory()
	dispatcher := replication.NewDispatcher("", "", mem)
	return NewReportService(mem, dispatcher), mem, dispatcher
}

func TestStats(t *testing.T) {
	reports, mem, _ := newTestReports(t)
	ctx := context.Background()

	now := time.Now()
	yesterday := now.Add(-48 * time.Hour)

	require.NoError(t, store.ReplaceAll(ctx, mem, store.CollectionSales, []models.Sale{
		{ID: "s1", Total: 2200, CreatedAt: now},
		{ID: "s2", Total: 5500, CreatedAt: now},
		{ID: "s3", Total: 9999, CreatedAt: yesterday},
	}))
	require.NoError(t, store.ReplaceAll(ctx, mem, store.CollectionPurchases, []models.Purchase{
		{ID: "b1", TotalAmount: 30000, CreatedAt: now},
		{ID: "b2", TotalAmount: 7777, CreatedAt: yesterday},
	}))
	require.NoError(t, store.ReplaceAll(ctx, mem, store.CollectionProducts, []models.Product{
		{ID: "p1", Stock: 5},
		{ID: "p2", Stock: 2},
		{ID: "p3", Stock: 0},
	}))
	require.NoError(t, store.ReplaceAll(ctx, mem, store.CollectionAssessments, []models.Assessment{
		{ID: "a1", Status: models.AssessmentStatusPending},
		{ID: "a2", Status: models.AssessmentStatusCompleted},
	}))

	stats, err := reports.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(7700), stats.TodaySales)
	assert.Equal(t, int64(30000), stats.TodayPurchases)
	assert.Equal(t, 7, stats.TotalStock)
	assert.Equal(t, 2, stats.LowStockItems)
	assert.Equal(t, 1, stats.PendingAssessments)
}

func TestSendDailyReport(t *testing.T) {
	reports, mem, dispatcher := newTestReports(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, store.ReplaceAll(ctx, mem, store.CollectionSales, []models.Sale{
		{ID: "s1", Total: 2200, CreatedAt: now},
	}))
	require.NoError(t, store.ReplaceAll(ctx, mem, store.CollectionPurchases, []models.Purchase{
		{ID: "b1", TotalAmount: 30000, CreatedAt: now},
	}))
	require.NoError(t, store.ReplaceAll(ctx, mem, store.CollectionCustomers, []models.Customer{
		{ID: "c1", CreatedAt: now},
		{ID: "c2", CreatedAt: now.Add(-48 * time.Hour)},
	}))

	row, err := reports.SendDailyReport(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(2200), row.TotalSales)
	assert.Equal(t, int64(30000), row.TotalPurchases)
	assert.Equal(t, 2, row.TransactionCount)
	assert.Equal(t, 1, row.NewCustomers)

	// No mirror configured, so the report lands in the spool.
	dispatcher.Flush()
	entries, err := mem.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, replication.SheetDailyReport, entries[0].SheetName)
}
