package service

import (
	"context"
	"fmt"
	"time"

	"pos-ledger/internal/models"
	"pos-ledger/internal/replication"
	"pos-ledger/internal/store"
	"pos-ledger/internal/util"

	"go.uber.org/zap"
)

// ReportService computes dashboard statistics and sends the daily
// summary row to the mirror.
type ReportService struct {
	store      store.Store
	dispatcher *replication.Dispatcher
	logger     *zap.Logger
}

// NewReportService creates a report service.
func NewReportService(st store.Store, dispatcher *replication.Dispatcher) *ReportService {
	return &ReportService{
		store:      st,
		dispatcher: dispatcher,
		logger:     util.GetLogger(),
	}
}

// Stats summarizes the ledger for the current day.
func (rs *ReportService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.Stats")
	defer span.End()

	sales, err := store.List[models.Sale](ctx, rs.store, store.CollectionSales)
	if err != nil {
		return nil, err
	}
	purchases, err := store.List[models.Purchase](ctx, rs.store, store.CollectionPurchases)
	if err != nil {
		return nil, err
	}
	products, err := store.List[models.Product](ctx, rs.store, store.CollectionProducts)
	if err != nil {
		return nil, err
	}
	assessments, err := store.List[models.Assessment](ctx, rs.store, store.CollectionAssessments)
	if err != nil {
		return nil, err
	}

	today := startOfDay(time.Now())
	stats := &models.DashboardStats{}

	for _, sale := range sales {
		if !sale.CreatedAt.Before(today) {
			stats.TodaySales += sale.Total
		}
	}
	for _, purchase := range purchases {
		if !purchase.CreatedAt.Before(today) {
			stats.TodayPurchases += purchase.TotalAmount
		}
	}
	for _, product := range products {
		stats.TotalStock += product.Stock
		if product.Stock <= lowStockThreshold {
			stats.LowStockItems++
		}
	}
	for _, assessment := range assessments {
		if assessment.Status == models.AssessmentStatusPending {
			stats.PendingAssessments++
		}
	}

	return stats, nil
}

// SendDailyReport builds the end-of-day summary and dispatches it to
// the mirror's report sheet.
func (rs *ReportService) SendDailyReport(ctx context.Context) (*replication.DailyReportRow, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.SendDailyReport")
	defer span.End()

	stats, err := rs.Stats(ctx)
	if err != nil {
		return nil, err
	}

	sales, err := store.List[models.Sale](ctx, rs.store, store.CollectionSales)
	if err != nil {
		return nil, err
	}
	purchases, err := store.List[models.Purchase](ctx, rs.store, store.CollectionPurchases)
	if err != nil {
		return nil, err
	}
	customers, err := store.List[models.Customer](ctx, rs.store, store.CollectionCustomers)
	if err != nil {
		return nil, err
	}

	today := startOfDay(time.Now())
	transactions := 0
	for _, sale := range sales {
		if !sale.CreatedAt.Before(today) {
			transactions++
		}
	}
	for _, purchase := range purchases {
		if !purchase.CreatedAt.Before(today) {
			transactions++
		}
	}
	newCustomers := 0
	for _, customer := range customers {
		if !customer.CreatedAt.Before(today) {
			newCustomers++
		}
	}

	row := replication.NewDailyReportRow(today, stats, transactions, newCustomers)

	rs.logger.Info("Sending daily report",
		zap.String("date", row.Date),
		zap.Int64("total_sales", row.TotalSales),
		zap.Int("transactions", row.TransactionCount))

	rs.dispatcher.Mirror(row)
	rs.dispatcher.Notify(fmt.Sprintf("日次レポート送信 - 売上: ¥%d / 買取: ¥%d / 取引件数: %d",
		row.TotalSales, row.TotalPurchases, row.TransactionCount))

	return &row, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
