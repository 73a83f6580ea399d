// ABOUTME: Audit record types and sink interfaces for repairdesk-gateway
// ABOUTME: One append-only record per gateway request phase: request, success, or error

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned when writing to a sink after Close.
var ErrClosed = errors.New("audit sink closed")

// AuditType is the phase of a request an audit record describes.
type AuditType string

const (
	AuditRequest AuditType = "request"
	AuditSuccess AuditType = "success"
	AuditError   AuditType = "error"
)

// ValidAuditTypes lists all valid audit types.
var ValidAuditTypes = []AuditType{AuditRequest, AuditSuccess, AuditError}

// IsValid reports whether t is a known audit type.
func (t AuditType) IsValid() bool {
	for _, v := range ValidAuditTypes {
		if t == v {
			return true
		}
	}
	return false
}

// AuditEntry is a single audit record. The JSON form is the JSONL line format.
type AuditEntry struct {
	ID              string          `json:"id,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
	Type            AuditType       `json:"type"`
	Method          string          `json:"method"`
	ToolName        string          `json:"toolName,omitempty"`
	Args            json.RawMessage `json:"args,omitempty"`
	Error           string          `json:"error,omitempty"`
	ExecutionTimeMs *int64          `json:"executionTimeMs,omitempty"`
	RequestID       string          `json:"requestId,omitempty"`
	RemoteAddr      string          `json:"remoteAddr,omitempty"`
	Subject         string          `json:"subject,omitempty"` // verified token subject, if any
}

// Elapsed sets ExecutionTimeMs from a start time.
func (e *AuditEntry) Elapsed(start time.Time) {
	ms := time.Since(start).Milliseconds()
	e.ExecutionTimeMs = &ms
}

// AuditFilter specifies filtering options for listing audit entries.
type AuditFilter struct {
	Since     *time.Time // entries at or after this time
	Until     *time.Time // entries at or before this time
	Type      *AuditType
	Method    *string
	ToolName  *string
	RequestID *string
	Limit     int // max results (default 100, max 1000)
}

// AuditLogger is an append-only audit sink.
type AuditLogger interface {
	AppendAuditLog(ctx context.Context, e *AuditEntry) error
}

// AuditReader lists audit entries, newest first.
type AuditReader interface {
	ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
}

func newAuditID() string {
	return uuid.New().String()
}

// prepareEntry fills in ID and Timestamp when unset.
func prepareEntry(e *AuditEntry) {
	if e.ID == "" {
		e.ID = newAuditID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
}

// normalizeAuditLimit applies default (100) and cap (1000) to audit limit.
func normalizeAuditLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}
