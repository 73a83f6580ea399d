// ABOUTME: Audit log store methods for the SQLite sink
// ABOUTME: Appends gateway request records and lists them with filtering

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// tsFormat is fixed-width so stored timestamps sort lexically.
const tsFormat = "2006-01-02T15:04:05.000000000Z"

// AppendAuditLog appends a new entry to the audit log.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	prepareEntry(e)
	if !e.Type.IsValid() {
		return fmt.Errorf("invalid audit type %q", e.Type)
	}

	var argsJSON *string
	if len(e.Args) > 0 {
		str := string(e.Args)
		argsJSON = &str
	}

	query := `
		INSERT INTO audit_log (audit_id, ts, type, method, tool_name, args_json, error, execution_ms, request_id, remote_addr, subject)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.Timestamp.UTC().Format(tsFormat),
		string(e.Type),
		e.Method,
		nullString(e.ToolName),
		argsJSON,
		nullString(e.Error),
		e.ExecutionTimeMs,
		nullString(e.RequestID),
		nullString(e.RemoteAddr),
		nullString(e.Subject),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	s.logger.Debug("appended audit log",
		"id", e.ID,
		"type", e.Type,
		"method", e.Method,
		"tool", e.ToolName,
	)
	return nil
}

// nullString maps "" to SQL NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// auditQueryArgs builds the query arguments from an AuditFilter.
type auditQueryArgs struct {
	sinceStr *string
	untilStr *string
	typeStr  *string
}

// buildAuditQueryArgs converts filter time/type fields to query args.
func buildAuditQueryArgs(f AuditFilter) auditQueryArgs {
	var args auditQueryArgs
	if f.Since != nil {
		s := f.Since.UTC().Format(tsFormat)
		args.sinceStr = &s
	}
	if f.Until != nil {
		s := f.Until.UTC().Format(tsFormat)
		args.untilStr = &s
	}
	if f.Type != nil {
		t := string(*f.Type)
		args.typeStr = &t
	}
	return args
}

// scanAuditEntry scans a row into an AuditEntry.
func scanAuditEntry(scanner interface{ Scan(dest ...any) error }) (AuditEntry, error) {
	var e AuditEntry
	var typeStr, tsStr string
	var toolName, argsJSON, errStr, requestID, remoteAddr, subject sql.NullString
	var execMs sql.NullInt64

	if err := scanner.Scan(
		&e.ID,
		&tsStr,
		&typeStr,
		&e.Method,
		&toolName,
		&argsJSON,
		&errStr,
		&execMs,
		&requestID,
		&remoteAddr,
		&subject,
	); err != nil {
		return e, fmt.Errorf("scanning audit entry: %w", err)
	}

	e.Type = AuditType(typeStr)
	var err error
	e.Timestamp, err = time.Parse(tsFormat, tsStr)
	if err != nil {
		return e, fmt.Errorf("parsing timestamp: %w", err)
	}

	e.ToolName = toolName.String
	e.Error = errStr.String
	e.RequestID = requestID.String
	e.RemoteAddr = remoteAddr.String
	e.Subject = subject.String
	if argsJSON.Valid {
		e.Args = json.RawMessage(argsJSON.String)
	}
	if execMs.Valid {
		ms := execMs.Int64
		e.ExecutionTimeMs = &ms
	}
	return e, nil
}

const auditLogQuery = `
	SELECT audit_id, ts, type, method, tool_name, args_json, error, execution_ms, request_id, remote_addr, subject
	FROM audit_log
	WHERE (? IS NULL OR ts >= ?)
	  AND (? IS NULL OR ts <= ?)
	  AND (? IS NULL OR type = ?)
	  AND (? IS NULL OR method = ?)
	  AND (? IS NULL OR tool_name = ?)
	  AND (? IS NULL OR request_id = ?)
	ORDER BY ts DESC, rowid DESC
	LIMIT ?
`

// ListAuditLog returns audit entries matching the filter criteria.
// Results are returned newest first (DESC by timestamp).
func (s *SQLiteStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	limit := normalizeAuditLimit(f.Limit)
	args := buildAuditQueryArgs(f)

	rows, err := s.db.QueryContext(ctx, auditLogQuery,
		args.sinceStr, args.sinceStr,
		args.untilStr, args.untilStr,
		args.typeStr, args.typeStr,
		f.Method, f.Method,
		f.ToolName, f.ToolName,
		f.RequestID, f.RequestID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	if entries == nil {
		entries = []AuditEntry{}
	}
	return entries, nil
}
