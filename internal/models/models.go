package models

import "time"

// Customer is a person the shop buys from or sells to. Phone is the
// dedup key: lookups always go through it.
type Customer struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product is a unit of purchased inventory. Stock is the only field
// mutated after creation and never goes below zero.
type Product struct {
	ID            string    `json:"id"`
	Barcode       string    `json:"barcode"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	Brand         string    `json:"brand,omitempty"`
	Condition     string    `json:"condition"`
	PurchasePrice int64     `json:"purchase_price"`
	SalePrice     int64     `json:"sale_price"`
	Stock         int       `json:"stock"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Assessment is a valuation of customer-submitted items prior to a
// purchase. Status is the only field mutated after creation.
type Assessment struct {
	ID                  string           `json:"id"`
	CustomerID          string           `json:"customer_id"`
	CustomerName        string           `json:"customer_name"`
	CustomerPhone       string           `json:"customer_phone"`
	Items               []AssessmentItem `json:"items"`
	TotalEstimatedValue int64            `json:"total_estimated_value"`
	Status              string           `json:"status"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// AssessmentItem belongs to exactly one Assessment.
type AssessmentItem struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	Condition      string `json:"condition"`
	EstimatedValue int64  `json:"estimated_value"`
	Notes          string `json:"notes,omitempty"`
}

// Purchase records buying items from a customer. Each item yields
// exactly one new Product at stock=1.
type Purchase struct {
	ID            string         `json:"id"`
	CustomerID    string         `json:"customer_id"`
	CustomerName  string         `json:"customer_name"`
	CustomerPhone string         `json:"customer_phone"`
	AssessmentID  string         `json:"assessment_id,omitempty"`
	Items         []PurchaseItem `json:"items"`
	TotalAmount   int64          `json:"total_amount"`
	PaymentMethod string         `json:"payment_method"`
	CreatedAt     time.Time      `json:"created_at"`
}

// PurchaseItem carries the barcode generated at purchase time.
type PurchaseItem struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	Condition     string `json:"condition"`
	PurchasePrice int64  `json:"purchase_price"`
	Barcode       string `json:"barcode"`
}

// Sale records selling inventory. Items snapshot the product price and
// category at sale time; later price changes never alter the record.
type Sale struct {
	ID            string     `json:"id"`
	CustomerID    string     `json:"customer_id,omitempty"`
	CustomerName  string     `json:"customer_name,omitempty"`
	CustomerPhone string     `json:"customer_phone,omitempty"`
	Items         []SaleItem `json:"items"`
	Subtotal      int64      `json:"subtotal"`
	Tax           int64      `json:"tax"`
	Total         int64      `json:"total"`
	PaymentMethod string     `json:"payment_method"`
	CreatedAt     time.Time  `json:"created_at"`
}

// SaleItem references a Product by id with a price snapshot.
type SaleItem struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Barcode   string `json:"barcode"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	SalePrice int64  `json:"sale_price"`
	Quantity  int    `json:"quantity"`
}

// Assessment statuses
const (
	AssessmentStatusPending   = "pending"
	AssessmentStatusAccepted  = "accepted"
	AssessmentStatusDeclined  = "declined"
	AssessmentStatusCompleted = "completed"
)

// Item conditions
const (
	ConditionExcellent = "excellent"
	ConditionGood      = "good"
	ConditionFair      = "fair"
	ConditionPoor      = "poor"
)

// DashboardStats summarizes the ledger for the current day.
type DashboardStats struct {
	TodaySales         int64 `json:"today_sales"`
	TodayPurchases     int64 `json:"today_purchases"`
	TotalStock         int   `json:"total_stock"`
	LowStockItems      int   `json:"low_stock_items"`
	PendingAssessments int   `json:"pending_assessments"`
}
