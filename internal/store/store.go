package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Collection names. These match the storage keys the spreadsheet-era
// deployment used, so exported data stays recognizable.
const (
	CollectionCustomers   = "pos_customers"
	CollectionProducts    = "pos_products"
	CollectionAssessments = "pos_assessments"
	CollectionPurchases   = "pos_purchases"
	CollectionSales       = "pos_sales"
)

// Store is the entity-store port: durable named collections with
// list and atomic replace-all semantics. Reads of an uninitialized
// collection return an empty JSON array, never an error.
type Store interface {
	// List returns the raw JSON array stored under collection.
	List(ctx context.Context, collection string) (json.RawMessage, error)

	// ReplaceAll atomically overwrites the whole collection.
	ReplaceAll(ctx context.Context, collection string, data json.RawMessage) error

	// ReplaceMany overwrites several collections in a single atomic
	// step. Either every collection is updated or none is.
	ReplaceMany(ctx context.Context, collections map[string]json.RawMessage) error
}

// SpoolStore persists replication payloads that failed remote delivery.
type SpoolStore interface {
	Enqueue(ctx context.Context, entry *SpoolEntry) error
	// Pending returns all spooled entries, oldest first.
	Pending(ctx context.Context) ([]SpoolEntry, error)
	// Delete removes an entry after a confirmed resend.
	Delete(ctx context.Context, id int64) error
	// MarkFailed records another failed delivery attempt.
	MarkFailed(ctx context.Context, id int64, lastError string) error
}

// SpoolEntry is a replication payload awaiting retry.
type SpoolEntry struct {
	ID        int64           `db:"id" json:"id"`
	SheetName string          `db:"sheet_name" json:"sheet_name"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	LastError string          `db:"last_error" json:"last_error"`
	Attempts  int             `db:"attempts" json:"attempts"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// PersistenceError means a local durable write or read failed. It is
// fatal to the triggering operation: the caller must assume the last
// action was not saved.
type PersistenceError struct {
	Collection string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure on %s: %v", e.Collection, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// List decodes a whole collection into typed entities.
func List[T any](ctx context.Context, s Store, collection string) ([]T, error) {
	raw, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &PersistenceError{Collection: collection, Err: fmt.Errorf("corrupt collection: %w", err)}
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Marshal encodes typed entities for a replace-all write.
func Marshal[T any](collection string, items []T) (json.RawMessage, error) {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, &PersistenceError{Collection: collection, Err: err}
	}
	return data, nil
}

// ReplaceAll encodes and atomically overwrites a whole collection.
func ReplaceAll[T any](ctx context.Context, s Store, collection string, items []T) error {
	data, err := Marshal(collection, items)
	if err != nil {
		return err
	}
	return s.ReplaceAll(ctx, collection, data)
}
