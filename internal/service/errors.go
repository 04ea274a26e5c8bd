package service

import "fmt"

// ValidationError means caller-supplied input violates a precondition.
// It is raised before any mutation; the caller can correct and retry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError means a requested assessment status change
// violates the state machine. Nothing is mutated.
type InvalidTransitionError struct {
	AssessmentID string
	From         string
	To           string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("assessment %s: illegal transition %s -> %s", e.AssessmentID, e.From, e.To)
}

// InsufficientStockError means a sale requested more than the recorded
// stock. The whole sale is rejected; no line item is applied.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (%s): requested=%d, available=%d",
		e.Name, e.ProductID, e.Requested, e.Available)
}
