package replication

import (
	"fmt"
	"strings"
	"time"

	"pos-ledger/internal/models"
)

// Sheet tab names on the mirror. The mirror has no schema negotiation:
// these strings and each row's field names and order are fixed.
const (
	SheetAssessments = "査定データ"
	SheetPurchases   = "買取履歴"
	SheetSales       = "販売履歴"
	SheetCustomers   = "顧客情報"
	SheetInventory   = "在庫管理"
	SheetDailyReport = "日次レポート"
)

const timestampLayout = "2006/01/02 15:04:05"

// SheetRow is one replicable mutation, tagged with its destination
// sheet. Each variant carries that sheet's fixed column set.
type SheetRow interface {
	SheetName() string
}

// AssessmentRow mirrors one assessment submission or status change.
type AssessmentRow struct {
	Timestamp           string `json:"timestamp"`
	ID                  string `json:"id"`
	CustomerName        string `json:"customerName"`
	CustomerPhone       string `json:"customerPhone"`
	ItemCount           int    `json:"itemCount"`
	TotalEstimatedValue int64  `json:"totalEstimatedValue"`
	Status              string `json:"status"`
	ItemDetails         string `json:"itemDetails"`
}

func (AssessmentRow) SheetName() string { return SheetAssessments }

// PurchaseRow mirrors one completed purchase.
type PurchaseRow struct {
	Timestamp     string `json:"timestamp"`
	ID            string `json:"id"`
	CustomerName  string `json:"customerName"`
	CustomerPhone string `json:"customerPhone"`
	ItemCount     int    `json:"itemCount"`
	TotalAmount   int64  `json:"totalAmount"`
	PaymentMethod string `json:"paymentMethod"`
	ItemDetails   string `json:"itemDetails"`
}

func (PurchaseRow) SheetName() string { return SheetPurchases }

// SaleRow mirrors one recorded sale.
type SaleRow struct {
	Timestamp     string `json:"timestamp"`
	ID            string `json:"id"`
	CustomerName  string `json:"customerName"`
	CustomerPhone string `json:"customerPhone"`
	ItemCount     int    `json:"itemCount"`
	Subtotal      int64  `json:"subtotal"`
	Tax           int64  `json:"tax"`
	Total         int64  `json:"total"`
	PaymentMethod string `json:"paymentMethod"`
	ItemDetails   string `json:"itemDetails"`
}

func (SaleRow) SheetName() string { return SheetSales }

// CustomerRow mirrors one customer registration.
type CustomerRow struct {
	Timestamp        string `json:"timestamp"`
	ID               string `json:"id"`
	Name             string `json:"name"`
	Phone            string `json:"phone"`
	Email            string `json:"email"`
	Address          string `json:"address"`
	RegistrationType string `json:"registrationType"`
}

func (CustomerRow) SheetName() string { return SheetCustomers }

// ProductRow mirrors one inventory addition.
type ProductRow struct {
	Timestamp     string `json:"timestamp"`
	ID            string `json:"id"`
	Barcode       string `json:"barcode"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	Brand         string `json:"brand"`
	Condition     string `json:"condition"`
	PurchasePrice int64  `json:"purchasePrice"`
	SalePrice     int64  `json:"salePrice"`
	Stock         int    `json:"stock"`
	Description   string `json:"description"`
}

func (ProductRow) SheetName() string { return SheetInventory }

// DailyReportRow mirrors one end-of-day summary.
type DailyReportRow struct {
	Date               string `json:"date"`
	TotalSales         int64  `json:"totalSales"`
	TotalPurchases     int64  `json:"totalPurchases"`
	TransactionCount   int    `json:"transactionCount"`
	NewCustomers       int    `json:"newCustomers"`
	LowStockItems      int    `json:"lowStockItems"`
	PendingAssessments int    `json:"pendingAssessments"`
}

func (DailyReportRow) SheetName() string { return SheetDailyReport }

// NewAssessmentRow builds the mirror row for an assessment.
func NewAssessmentRow(a *models.Assessment) AssessmentRow {
	details := make([]string, len(a.Items))
	for i, item := range a.Items {
		details[i] = fmt.Sprintf("%s(%s) ¥%d", item.Name, item.Condition, item.EstimatedValue)
	}
	return AssessmentRow{
		Timestamp:           a.UpdatedAt.Format(timestampLayout),
		ID:                  a.ID,
		CustomerName:        a.CustomerName,
		CustomerPhone:       a.CustomerPhone,
		ItemCount:           len(a.Items),
		TotalEstimatedValue: a.TotalEstimatedValue,
		Status:              a.Status,
		ItemDetails:         strings.Join(details, ", "),
	}
}

// NewPurchaseRow builds the mirror row for a purchase.
func NewPurchaseRow(p *models.Purchase) PurchaseRow {
	details := make([]string, len(p.Items))
	for i, item := range p.Items {
		details[i] = fmt.Sprintf("%s(%s) ¥%d", item.Name, item.Condition, item.PurchasePrice)
	}
	return PurchaseRow{
		Timestamp:     p.CreatedAt.Format(timestampLayout),
		ID:            p.ID,
		CustomerName:  p.CustomerName,
		CustomerPhone: p.CustomerPhone,
		ItemCount:     len(p.Items),
		TotalAmount:   p.TotalAmount,
		PaymentMethod: p.PaymentMethod,
		ItemDetails:   strings.Join(details, ", "),
	}
}

// NewSaleRow builds the mirror row for a sale.
func NewSaleRow(s *models.Sale) SaleRow {
	details := make([]string, len(s.Items))
	for i, item := range s.Items {
		details[i] = fmt.Sprintf("%s x%d ¥%d", item.Name, item.Quantity, item.SalePrice)
	}
	return SaleRow{
		Timestamp:     s.CreatedAt.Format(timestampLayout),
		ID:            s.ID,
		CustomerName:  s.CustomerName,
		CustomerPhone: s.CustomerPhone,
		ItemCount:     len(s.Items),
		Subtotal:      s.Subtotal,
		Tax:           s.Tax,
		Total:         s.Total,
		PaymentMethod: s.PaymentMethod,
		ItemDetails:   strings.Join(details, ", "),
	}
}

// NewCustomerRow builds the mirror row for a customer registration.
func NewCustomerRow(c *models.Customer, registrationType string) CustomerRow {
	return CustomerRow{
		Timestamp:        c.CreatedAt.Format(timestampLayout),
		ID:               c.ID,
		Name:             c.Name,
		Phone:            c.Phone,
		Email:            c.Email,
		Address:          c.Address,
		RegistrationType: registrationType,
	}
}

// NewProductRow builds the mirror row for an inventory addition.
func NewProductRow(p *models.Product) ProductRow {
	return ProductRow{
		Timestamp:     p.CreatedAt.Format(timestampLayout),
		ID:            p.ID,
		Barcode:       p.Barcode,
		Name:          p.Name,
		Category:      p.Category,
		Brand:         p.Brand,
		Condition:     p.Condition,
		PurchasePrice: p.PurchasePrice,
		SalePrice:     p.SalePrice,
		Stock:         p.Stock,
		Description:   p.Description,
	}
}

// NewDailyReportRow builds the end-of-day summary row.
func NewDailyReportRow(day time.Time, stats *models.DashboardStats, transactionCount, newCustomers int) DailyReportRow {
	return DailyReportRow{
		Date:               day.Format("2006/01/02"),
		TotalSales:         stats.TodaySales,
		TotalPurchases:     stats.TodayPurchases,
		TransactionCount:   transactionCount,
		NewCustomers:       newCustomers,
		LowStockItems:      stats.LowStockItems,
		PendingAssessments: stats.PendingAssessments,
	}
}
