package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func ptr[T any](v T) *T {
	return &v
}

func TestAuditType_IsValid(t *testing.T) {
	for _, typ := range ValidAuditTypes {
		assert.True(t, typ.IsValid(), typ)
	}
	assert.False(t, AuditType("").IsValid())
	assert.False(t, AuditType("warning").IsValid())
}

func TestNormalizeAuditLimit(t *testing.T) {
	assert.Equal(t, 100, normalizeAuditLimit(0))
	assert.Equal(t, 100, normalizeAuditLimit(-5))
	assert.Equal(t, 25, normalizeAuditLimit(25))
	assert.Equal(t, 1000, normalizeAuditLimit(5000))
}

func TestPrepareEntry(t *testing.T) {
	e := &AuditEntry{Type: AuditRequest, Method: "tools/list"}
	prepareEntry(e)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())

	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e = &AuditEntry{ID: "keep", Timestamp: fixed}
	prepareEntry(e)
	assert.Equal(t, "keep", e.ID)
	assert.Equal(t, fixed, e.Timestamp)
}

func TestAuditEntry_Elapsed(t *testing.T) {
	e := &AuditEntry{}
	e.Elapsed(time.Now().Add(-50 * time.Millisecond))
	require.NotNil(t, e.ExecutionTimeMs)
	assert.GreaterOrEqual(t, *e.ExecutionTimeMs, int64(50))
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "audit.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()
	assert.FileExists(t, dbPath)
}
