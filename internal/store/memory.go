package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Memory keeps collections and the spool in process memory. It backs
// tests and single-node deployments that do not need a database.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]json.RawMessage
	spool       []SpoolEntry
	nextSpoolID int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]json.RawMessage),
		nextSpoolID: 1,
	}
}

// List returns the raw JSON array for a collection, "[]" if absent.
func (m *Memory) List(ctx context.Context, collection string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.collections[collection]
	if !ok {
		return json.RawMessage("[]"), nil
	}
	out := make(json.RawMessage, len(data))
	copy(out, data)
	return out, nil
}

// ReplaceAll overwrites one collection.
func (m *Memory) ReplaceAll(ctx context.Context, collection string, data json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.collections[collection] = append(json.RawMessage(nil), data...)
	return nil
}

// ReplaceMany overwrites several collections under one lock.
func (m *Memory) ReplaceMany(ctx context.Context, collections map[string]json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, data := range collections {
		m.collections[name] = append(json.RawMessage(nil), data...)
	}
	return nil
}

// Enqueue appends a spool entry.
func (m *Memory) Enqueue(ctx context.Context, entry *SpoolEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.ID = m.nextSpoolID
	m.nextSpoolID++
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.spool = append(m.spool, *entry)
	return nil
}

// Pending returns all spooled entries, oldest first.
func (m *Memory) Pending(ctx context.Context) ([]SpoolEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]SpoolEntry, len(m.spool))
	copy(out, m.spool)
	return out, nil
}

// Delete removes a delivered entry.
func (m *Memory) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, e := range m.spool {
		if e.ID == id {
			m.spool = append(m.spool[:i], m.spool[i+1:]...)
			return nil
		}
	}
	return nil
}

// MarkFailed records another failed delivery attempt.
func (m *Memory) MarkFailed(ctx context.Context, id int64, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.spool {
		if m.spool[i].ID == id {
			m.spool[i].LastError = lastError
			m.spool[i].Attempts++
			return nil
		}
	}
	return nil
}
