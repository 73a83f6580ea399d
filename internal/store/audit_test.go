package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAuditLog_RoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	ts := time.Date(2024, 5, 10, 9, 30, 0, 123456789, time.UTC)
	ms := int64(42)
	e := &AuditEntry{
		Timestamp:       ts,
		Type:            AuditError,
		Method:          "tools/call",
		ToolName:        "create_repair_order",
		Args:            json.RawMessage(`{"equipmentId":"eq-1"}`),
		Error:           "boom",
		ExecutionTimeMs: &ms,
		RequestID:       "req-1",
		RemoteAddr:      "127.0.0.1:5000",
		Subject:         "tech-7",
	}
	require.NoError(t, s.AppendAuditLog(ctx, e))
	assert.NotEmpty(t, e.ID)

	got, err := s.ListAuditLog(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	r := got[0]
	assert.Equal(t, e.ID, r.ID)
	assert.True(t, ts.Equal(r.Timestamp))
	assert.Equal(t, AuditError, r.Type)
	assert.Equal(t, "tools/call", r.Method)
	assert.Equal(t, "create_repair_order", r.ToolName)
	assert.JSONEq(t, `{"equipmentId":"eq-1"}`, string(r.Args))
	assert.Equal(t, "boom", r.Error)
	require.NotNil(t, r.ExecutionTimeMs)
	assert.Equal(t, int64(42), *r.ExecutionTimeMs)
	assert.Equal(t, "req-1", r.RequestID)
	assert.Equal(t, "127.0.0.1:5000", r.RemoteAddr)
	assert.Equal(t, "tech-7", r.Subject)
}

func TestAppendAuditLog_OptionalFieldsStayEmpty(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendAuditLog(ctx, &AuditEntry{Type: AuditRequest, Method: "tools/list"}))

	got, err := s.ListAuditLog(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].ToolName)
	assert.Nil(t, got[0].Args)
	assert.Nil(t, got[0].ExecutionTimeMs)
}

func TestAppendAuditLog_RejectsInvalidType(t *testing.T) {
	s := setupTestStore(t)
	err := s.AppendAuditLog(context.Background(), &AuditEntry{Type: "bogus", Method: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid audit type")
}

func TestListAuditLog_NewestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendAuditLog(ctx, &AuditEntry{
			ID:        fmt.Sprintf("e%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Type:      AuditRequest,
			Method:    "tools/list",
		}))
	}

	got, err := s.ListAuditLog(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "e2", got[0].ID)
	assert.Equal(t, "e1", got[1].ID)
	assert.Equal(t, "e0", got[2].ID)
}

func TestListAuditLog_SameTimestampUsesInsertOrder(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendAuditLog(ctx, &AuditEntry{ID: "first", Timestamp: ts, Type: AuditRequest, Method: "m"}))
	require.NoError(t, s.AppendAuditLog(ctx, &AuditEntry{ID: "second", Timestamp: ts, Type: AuditSuccess, Method: "m"}))

	got, err := s.ListAuditLog(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].ID)
	assert.Equal(t, "first", got[1].ID)
}

func TestListAuditLog_Filters(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	entries := []*AuditEntry{
		{ID: "a", Timestamp: base, Type: AuditRequest, Method: "tools/call", ToolName: "search_equipment", RequestID: "r1"},
		{ID: "b", Timestamp: base.Add(time.Second), Type: AuditSuccess, Method: "tools/call", ToolName: "search_equipment", RequestID: "r1"},
		{ID: "c", Timestamp: base.Add(2 * time.Second), Type: AuditRequest, Method: "tools/list", RequestID: "r2"},
		{ID: "d", Timestamp: base.Add(3 * time.Second), Type: AuditError, Method: "tools/call", ToolName: "create_repair_order", RequestID: "r3"},
	}
	for _, e := range entries {
		require.NoError(t, s.AppendAuditLog(ctx, e))
	}

	ids := func(f AuditFilter) []string {
		got, err := s.ListAuditLog(ctx, f)
		require.NoError(t, err)
		out := make([]string, 0, len(got))
		for _, e := range got {
			out = append(out, e.ID)
		}
		return out
	}

	assert.Equal(t, []string{"d", "b", "a"}, ids(AuditFilter{Method: ptr("tools/call")}))
	assert.Equal(t, []string{"b", "a"}, ids(AuditFilter{ToolName: ptr("search_equipment")}))
	assert.Equal(t, []string{"c", "a"}, ids(AuditFilter{Type: ptr(AuditRequest)}))
	assert.Equal(t, []string{"b", "a"}, ids(AuditFilter{RequestID: ptr("r1")}))
	assert.Equal(t, []string{"d", "c"}, ids(AuditFilter{Since: ptr(base.Add(2 * time.Second))}))
	assert.Equal(t, []string{"b", "a"}, ids(AuditFilter{Until: ptr(base.Add(time.Second))}))
	assert.Equal(t, []string{"d"}, ids(AuditFilter{Limit: 1}))
	assert.Empty(t, ids(AuditFilter{ToolName: ptr("nope")}))
}

func TestListAuditLog_EmptyIsNonNil(t *testing.T) {
	s := setupTestStore(t)
	got, err := s.ListAuditLog(context.Background(), AuditFilter{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAppendAuditLog_Concurrent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AppendAuditLog(ctx, &AuditEntry{Type: AuditRequest, Method: "tools/list"}))
		}()
	}
	wg.Wait()

	got, err := s.ListAuditLog(ctx, AuditFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 20)
}
