// ABOUTME: Mock audit store for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MockStore is an in-memory AuditLogger and AuditReader for testing.
type MockStore struct {
	mu      sync.RWMutex
	entries []AuditEntry
	failErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// FailWith makes subsequent appends return err. Pass nil to restore.
func (m *MockStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// AppendAuditLog records a copy of e.
func (m *MockStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return m.failErr
	}
	prepareEntry(e)
	if !e.Type.IsValid() {
		return fmt.Errorf("invalid audit type %q", e.Type)
	}
	m.entries = append(m.entries, *e)
	return nil
}

// Entries returns every recorded entry in append order.
func (m *MockStore) Entries() []AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]AuditEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// ListAuditLog returns entries matching the filter, newest first.
func (m *MockStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := normalizeAuditLimit(f.Limit)
	result := []AuditEntry{}
	for i := len(m.entries) - 1; i >= 0; i-- {
		if auditMatchesFilter(&m.entries[i], f) {
			result = append(result, m.entries[i])
		}
	}

	// Stable keeps append order (reversed) for equal timestamps
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func auditMatchesFilter(e *AuditEntry, f AuditFilter) bool {
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && e.Timestamp.After(*f.Until) {
		return false
	}
	if f.Type != nil && e.Type != *f.Type {
		return false
	}
	if f.Method != nil && e.Method != *f.Method {
		return false
	}
	if f.ToolName != nil && e.ToolName != *f.ToolName {
		return false
	}
	if f.RequestID != nil && e.RequestID != *f.RequestID {
		return false
	}
	return true
}

// Close is a no-op for MockStore.
func (m *MockStore) Close() error {
	return nil
}
