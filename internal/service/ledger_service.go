package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"pos-ledger/internal/models"
	"pos-ledger/internal/redisclient"
	"pos-ledger/internal/replication"
	"pos-ledger/internal/store"
	"pos-ledger/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const lowStockThreshold = 2

// LedgerService is the workflow engine: every entity mutation goes
// through it as a whole-collection read-modify-write, serialized by a
// process-local mutex. Replication of committed mutations is handed to
// the dispatcher and never awaited.
type LedgerService struct {
	mu         sync.Mutex
	store      store.Store
	cache      *redisclient.Client
	dispatcher *replication.Dispatcher
	logger     *zap.Logger
}

// NewLedgerService creates a ledger service. cache may be nil; the
// barcode lookup then always hits the store.
func NewLedgerService(st store.Store, cache *redisclient.Client, dispatcher *replication.Dispatcher) *LedgerService {
	return &LedgerService{
		store:      st,
		cache:      cache,
		dispatcher: dispatcher,
		logger:     util.GetLogger(),
	}
}

// CustomerRequest registers or looks up a customer by phone.
type CustomerRequest struct {
	Phone   string `json:"phone" binding:"required"`
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// AssessmentItemRequest is one item submitted for valuation.
type AssessmentItemRequest struct {
	Name           string `json:"name" binding:"required"`
	Category       string `json:"category"`
	Condition      string `json:"condition"`
	EstimatedValue int64  `json:"estimated_value" binding:"required"`
	Notes          string `json:"notes,omitempty"`
}

// SubmitAssessmentRequest opens a new assessment for a customer.
type SubmitAssessmentRequest struct {
	CustomerID string                  `json:"customer_id" binding:"required"`
	Items      []AssessmentItemRequest `json:"items" binding:"required,min=1"`
}

// PurchaseItemRequest is one item being bought from a customer.
type PurchaseItemRequest struct {
	Name          string `json:"name" binding:"required"`
	Category      string `json:"category"`
	Condition     string `json:"condition"`
	PurchasePrice int64  `json:"purchase_price" binding:"required"`
}

// CompletePurchaseRequest finalizes a purchase, optionally closing an
// accepted assessment.
type CompletePurchaseRequest struct {
	CustomerID    string                `json:"customer_id" binding:"required"`
	AssessmentID  string                `json:"assessment_id,omitempty"`
	Items         []PurchaseItemRequest `json:"items" binding:"required,min=1"`
	PaymentMethod string                `json:"payment_method" binding:"required"`
}

// SaleItemRequest references inventory to sell.
type SaleItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// RecordSaleRequest records a counter sale.
type RecordSaleRequest struct {
	Items         []SaleItemRequest `json:"items" binding:"required,min=1"`
	PaymentMethod string            `json:"payment_method" binding:"required"`
	CustomerID    string            `json:"customer_id,omitempty"`
	CustomerName  string            `json:"customer_name,omitempty"`
	CustomerPhone string            `json:"customer_phone,omitempty"`
}

// CreateOrFindCustomer looks a customer up by phone and creates one if
// absent. Existing customers are returned untouched.
func (s *LedgerService) CreateOrFindCustomer(ctx context.Context, req *CustomerRequest) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.CreateOrFindCustomer")
	defer span.End()

	if req.Phone == "" {
		return nil, &ValidationError{Field: "phone", Reason: "required"}
	}
	if req.Name == "" {
		return nil, &ValidationError{Field: "name", Reason: "required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := store.List[models.Customer](ctx, s.store, store.CollectionCustomers)
	if err != nil {
		return nil, err
	}

	for i := range customers {
		if customers[i].Phone == req.Phone {
			return &customers[i], nil
		}
	}

	now := time.Now()
	customer := models.Customer{
		ID:        uuid.New().String(),
		Phone:     req.Phone,
		Name:      req.Name,
		Email:     req.Email,
		Address:   req.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	customers = append(customers, customer)

	if err := store.ReplaceAll(ctx, s.store, store.CollectionCustomers, customers); err != nil {
		return nil, err
	}

	util.CustomersCreatedTotal.Inc()
	s.logger.Info("Customer created",
		zap.String("customer_id", customer.ID),
		zap.String("phone", customer.Phone))

	row := replication.NewCustomerRow(&customer, "新規登録")
	s.dispatcher.Mirror(row)

	return &customer, nil
}

// SubmitAssessment opens a pending assessment. The total estimated
// value is always recomputed here; a caller-supplied total is ignored.
func (s *LedgerService) SubmitAssessment(ctx context.Context, req *SubmitAssessmentRequest) (*models.Assessment, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.SubmitAssessment")
	defer span.End()

	if req.CustomerID == "" {
		return nil, &ValidationError{Field: "customer_id", Reason: "required"}
	}
	if len(req.Items) == 0 {
		return nil, &ValidationError{Field: "items", Reason: "at least one item is required"}
	}
	for i, item := range req.Items {
		if item.Name == "" {
			return nil, &ValidationError{Field: fmt.Sprintf("items[%d].name", i), Reason: "required"}
		}
		if item.EstimatedValue <= 0 {
			return nil, &ValidationError{Field: fmt.Sprintf("items[%d].estimated_value", i), Reason: "must be positive"}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	customer, err := s.findCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	assessments, err := store.List[models.Assessment](ctx, s.store, store.CollectionAssessments)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	items := make([]models.AssessmentItem, len(req.Items))
	var total int64
	for i, item := range req.Items {
		items[i] = models.AssessmentItem{
			ID:             uuid.New().String(),
			Name:           item.Name,
			Category:       item.Category,
			Condition:      item.Condition,
			EstimatedValue: item.EstimatedValue,
			Notes:          item.Notes,
		}
		total += item.EstimatedValue
	}

	assessment := models.Assessment{
		ID:                  uuid.New().String(),
		CustomerID:          customer.ID,
		CustomerName:        customer.Name,
		CustomerPhone:       customer.Phone,
		Items:               items,
		TotalEstimatedValue: total,
		Status:              models.AssessmentStatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	assessments = append(assessments, assessment)

	if err := store.ReplaceAll(ctx, s.store, store.CollectionAssessments, assessments); err != nil {
		return nil, err
	}

	util.AssessmentsSubmittedTotal.Inc()
	s.logger.Info("Assessment submitted",
		zap.String("assessment_id", assessment.ID),
		zap.Int64("total_estimated_value", total))

	s.dispatcher.Mirror(replication.NewAssessmentRow(&assessment))
	s.dispatcher.Notify(fmt.Sprintf("新規査定受付 - %s (%s) - 見積額: ¥%d",
		customer.Name, customer.Phone, total))

	return &assessment, nil
}

// TransitionAssessment moves an assessment along the status graph:
// pending -> accepted|declined. completed is reserved for
// CompletePurchase so a purchase always exists before completion.
func (s *LedgerService) TransitionAssessment(ctx context.Context, id, newStatus string) (*models.Assessment, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.TransitionAssessment")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	assessments, err := store.List[models.Assessment](ctx, s.store, store.CollectionAssessments)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range assessments {
		if assessments[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, &ValidationError{Field: "assessment_id", Reason: "not found"}
	}

	current := assessments[idx].Status
	if newStatus == models.AssessmentStatusCompleted || !legalTransition(current, newStatus) {
		util.OperationsRejectedTotal.WithLabelValues("transition_assessment", "invalid_transition").Inc()
		return nil, &InvalidTransitionError{AssessmentID: id, From: current, To: newStatus}
	}

	assessments[idx].Status = newStatus
	assessments[idx].UpdatedAt = time.Now()

	if err := store.ReplaceAll(ctx, s.store, store.CollectionAssessments, assessments); err != nil {
		return nil, err
	}

	util.AssessmentTransitionsTotal.WithLabelValues(newStatus).Inc()
	s.logger.Info("Assessment status updated",
		zap.String("assessment_id", id),
		zap.String("from", current),
		zap.String("to", newStatus))

	s.dispatcher.Mirror(replication.NewAssessmentRow(&assessments[idx]))
	s.dispatcher.Notify(fmt.Sprintf("査定状況更新 - %s: %s", assessments[idx].CustomerName, newStatus))

	result := assessments[idx]
	return &result, nil
}

// legalTransition checks the assessment status graph. declined and
// completed are terminal.
func legalTransition(from, to string) bool {
	switch from {
	case models.AssessmentStatusPending:
		return to == models.AssessmentStatusAccepted || to == models.AssessmentStatusDeclined
	case models.AssessmentStatusAccepted:
		return to == models.AssessmentStatusCompleted
	default:
		return false
	}
}

// CompletePurchase buys items from a customer: each item becomes one
// Product at stock=1 with a 1.5x markup and a fresh barcode. When an
// assessment id is given, that assessment must be accepted and is
// completed in the same atomic write as the purchase.
func (s *LedgerService) CompletePurchase(ctx context.Context, req *CompletePurchaseRequest) (*models.Purchase, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.CompletePurchase")
	defer span.End()

	if req.CustomerID == "" {
		return nil, &ValidationError{Field: "customer_id", Reason: "required"}
	}
	if len(req.Items) == 0 {
		return nil, &ValidationError{Field: "items", Reason: "at least one item is required"}
	}
	if req.PaymentMethod == "" {
		return nil, &ValidationError{Field: "payment_method", Reason: "required"}
	}
	for i, item := range req.Items {
		if item.Name == "" {
			return nil, &ValidationError{Field: fmt.Sprintf("items[%d].name", i), Reason: "required"}
		}
		if item.PurchasePrice <= 0 {
			return nil, &ValidationError{Field: fmt.Sprintf("items[%d].purchase_price", i), Reason: "must be positive"}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	customer, err := s.findCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	assessments, err := store.List[models.Assessment](ctx, s.store, store.CollectionAssessments)
	if err != nil {
		return nil, err
	}

	var completedIdx = -1
	if req.AssessmentID != "" {
		for i := range assessments {
			if assessments[i].ID == req.AssessmentID {
				completedIdx = i
				break
			}
		}
		if completedIdx == -1 {
			return nil, &ValidationError{Field: "assessment_id", Reason: "not found"}
		}
		if assessments[completedIdx].Status != models.AssessmentStatusAccepted {
			util.OperationsRejectedTotal.WithLabelValues("complete_purchase", "invalid_transition").Inc()
			return nil, &InvalidTransitionError{
				AssessmentID: req.AssessmentID,
				From:         assessments[completedIdx].Status,
				To:           models.AssessmentStatusCompleted,
			}
		}
	}

	purchases, err := store.List[models.Purchase](ctx, s.store, store.CollectionPurchases)
	if err != nil {
		return nil, err
	}
	products, err := store.List[models.Product](ctx, s.store, store.CollectionProducts)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	items := make([]models.PurchaseItem, len(req.Items))
	newProducts := make([]models.Product, len(req.Items))
	var total int64
	for i, item := range req.Items {
		barcode := util.NewBarcode()
		items[i] = models.PurchaseItem{
			ID:            uuid.New().String(),
			Name:          item.Name,
			Category:      item.Category,
			Condition:     item.Condition,
			PurchasePrice: item.PurchasePrice,
			Barcode:       barcode,
		}
		newProducts[i] = models.Product{
			ID:            uuid.New().String(),
			Barcode:       barcode,
			Name:          item.Name,
			Category:      item.Category,
			Condition:     item.Condition,
			PurchasePrice: item.PurchasePrice,
			SalePrice:     item.PurchasePrice * 3 / 2,
			Stock:         1,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		total += item.PurchasePrice
	}

	purchase := models.Purchase{
		ID:            uuid.New().String(),
		CustomerID:    customer.ID,
		CustomerName:  customer.Name,
		CustomerPhone: customer.Phone,
		AssessmentID:  req.AssessmentID,
		Items:         items,
		TotalAmount:   total,
		PaymentMethod: req.PaymentMethod,
		CreatedAt:     now,
	}
	purchases = append(purchases, purchase)
	products = append(products, newProducts...)

	writes := map[string]interface{}{
		store.CollectionPurchases: purchases,
		store.CollectionProducts:  products,
	}
	if completedIdx != -1 {
		assessments[completedIdx].Status = models.AssessmentStatusCompleted
		assessments[completedIdx].UpdatedAt = now
		writes[store.CollectionAssessments] = assessments
	}
	if err := s.replaceMany(ctx, writes); err != nil {
		return nil, err
	}

	util.PurchasesCompletedTotal.Inc()
	s.logger.Info("Purchase completed",
		zap.String("purchase_id", purchase.ID),
		zap.Int64("total_amount", total),
		zap.Int("products_created", len(newProducts)))

	s.dispatcher.Mirror(replication.NewPurchaseRow(&purchase))
	for i := range newProducts {
		s.dispatcher.Mirror(replication.NewProductRow(&newProducts[i]))
	}
	if completedIdx != -1 {
		s.dispatcher.Mirror(replication.NewAssessmentRow(&assessments[completedIdx]))
	}
	s.dispatcher.Notify(fmt.Sprintf("買取完了 - %s (%s) - 買取額: ¥%d (%s)",
		customer.Name, customer.Phone, total, req.PaymentMethod))

	s.cacheProducts(ctx, newProducts)

	return &purchase, nil
}

// RecordSale sells inventory. Stock is checked for every line item
// before anything is written: one short item rejects the whole sale.
// The sale and the decremented product stock commit in one step.
func (s *LedgerService) RecordSale(ctx context.Context, req *RecordSaleRequest) (*models.Sale, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.RecordSale")
	defer span.End()

	if len(req.Items) == 0 {
		return nil, &ValidationError{Field: "items", Reason: "at least one item is required"}
	}
	if req.PaymentMethod == "" {
		return nil, &ValidationError{Field: "payment_method", Reason: "required"}
	}
	for i, item := range req.Items {
		if item.ProductID == "" {
			return nil, &ValidationError{Field: fmt.Sprintf("items[%d].product_id", i), Reason: "required"}
		}
		if item.Quantity <= 0 {
			return nil, &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Reason: "must be positive"}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := store.List[models.Product](ctx, s.store, store.CollectionProducts)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(products))
	for i := range products {
		index[products[i].ID] = i
	}

	// Validate before touching stock. The same product may appear on
	// several line items, so the check runs against the aggregated
	// quantity per product, not line by line.
	requested := make(map[string]int, len(req.Items))
	for _, item := range req.Items {
		if _, ok := index[item.ProductID]; !ok {
			return nil, &ValidationError{Field: "product_id", Reason: "product not found: " + item.ProductID}
		}
		requested[item.ProductID] += item.Quantity
	}
	for productID, quantity := range requested {
		p := &products[index[productID]]
		if quantity > p.Stock {
			util.OperationsRejectedTotal.WithLabelValues("record_sale", "insufficient_stock").Inc()
			return nil, &InsufficientStockError{
				ProductID: p.ID,
				Name:      p.Name,
				Requested: quantity,
				Available: p.Stock,
			}
		}
	}

	now := time.Now()
	saleItems := make([]models.SaleItem, len(req.Items))
	var subtotal int64
	for n, item := range req.Items {
		i := index[item.ProductID]
		p := &products[i]
		saleItems[n] = models.SaleItem{
			ID:        uuid.New().String(),
			ProductID: p.ID,
			Barcode:   p.Barcode,
			Name:      p.Name,
			Category:  p.Category,
			SalePrice: p.SalePrice,
			Quantity:  item.Quantity,
		}
		subtotal += p.SalePrice * int64(item.Quantity)
		p.Stock -= item.Quantity
		p.UpdatedAt = now
	}
	touched := make([]models.Product, 0, len(requested))
	for productID := range requested {
		touched = append(touched, products[index[productID]])
	}

	tax := subtotal / 10
	sale := models.Sale{
		ID:            uuid.New().String(),
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Items:         saleItems,
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         subtotal + tax,
		PaymentMethod: req.PaymentMethod,
		CreatedAt:     now,
	}

	sales, err := store.List[models.Sale](ctx, s.store, store.CollectionSales)
	if err != nil {
		return nil, err
	}
	sales = append(sales, sale)

	if err := s.replaceMany(ctx, map[string]interface{}{
		store.CollectionSales:    sales,
		store.CollectionProducts: products,
	}); err != nil {
		return nil, err
	}

	util.SalesRecordedTotal.Inc()
	s.logger.Info("Sale recorded",
		zap.String("sale_id", sale.ID),
		zap.Int64("total", sale.Total),
		zap.Int("items", len(saleItems)))

	s.dispatcher.Mirror(replication.NewSaleRow(&sale))
	s.dispatcher.Notify(fmt.Sprintf("売上登録 - 合計: ¥%d (%s) - 商品数: %d",
		sale.Total, req.PaymentMethod, len(saleItems)))

	s.cacheProducts(ctx, touched)

	return &sale, nil
}

// FindProductByBarcode resolves a scanned barcode, preferring the
// Redis cache. Returns nil when no product matches.
func (s *LedgerService) FindProductByBarcode(ctx context.Context, barcode string) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.FindProductByBarcode")
	defer span.End()

	if s.cache != nil {
		product, err := s.cache.GetProductByBarcode(ctx, barcode)
		if err != nil {
			s.logger.Warn("Barcode cache lookup failed, falling back to store",
				zap.String("barcode", barcode), zap.Error(err))
		} else if product != nil {
			return product, nil
		}
	}

	products, err := store.List[models.Product](ctx, s.store, store.CollectionProducts)
	if err != nil {
		return nil, err
	}
	for i := range products {
		if products[i].Barcode == barcode {
			return &products[i], nil
		}
	}
	return nil, nil
}

// Customers returns all customers.
func (s *LedgerService) Customers(ctx context.Context) ([]models.Customer, error) {
	return store.List[models.Customer](ctx, s.store, store.CollectionCustomers)
}

// Products returns all products.
func (s *LedgerService) Products(ctx context.Context) ([]models.Product, error) {
	return store.List[models.Product](ctx, s.store, store.CollectionProducts)
}

// Assessments returns all assessments.
func (s *LedgerService) Assessments(ctx context.Context) ([]models.Assessment, error) {
	return store.List[models.Assessment](ctx, s.store, store.CollectionAssessments)
}

// Purchases returns all purchases.
func (s *LedgerService) Purchases(ctx context.Context) ([]models.Purchase, error) {
	return store.List[models.Purchase](ctx, s.store, store.CollectionPurchases)
}

// Sales returns all sales.
func (s *LedgerService) Sales(ctx context.Context) ([]models.Sale, error) {
	return store.List[models.Sale](ctx, s.store, store.CollectionSales)
}

func (s *LedgerService) findCustomer(ctx context.Context, id string) (*models.Customer, error) {
	customers, err := store.List[models.Customer](ctx, s.store, store.CollectionCustomers)
	if err != nil {
		return nil, err
	}
	for i := range customers {
		if customers[i].ID == id {
			return &customers[i], nil
		}
	}
	return nil, &ValidationError{Field: "customer_id", Reason: "not found"}
}

// replaceMany marshals typed collections and commits them atomically.
func (s *LedgerService) replaceMany(ctx context.Context, collections map[string]interface{}) error {
	raw := make(map[string]json.RawMessage, len(collections))
	for name, items := range collections {
		data, err := json.Marshal(items)
		if err != nil {
			return &store.PersistenceError{Collection: name, Err: err}
		}
		raw[name] = data
	}
	return s.store.ReplaceMany(ctx, raw)
}

// cacheProducts refreshes the barcode cache, best effort.
func (s *LedgerService) cacheProducts(ctx context.Context, products []models.Product) {
	if s.cache == nil || len(products) == 0 {
		return
	}
	if err := s.cache.SyncProducts(ctx, products); err != nil {
		s.logger.Warn("Failed to refresh product cache", zap.Error(err))
	}
}
