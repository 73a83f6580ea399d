// Package store provides the gateway's audit trail.
//
// # Records
//
// The gateway writes one AuditEntry per request phase:
//
//   - request: a JSON-RPC call arrived (method, tool name and arguments)
//   - success: the call produced a result
//   - error: the call produced a JSON-RPC error, with the elapsed time
//
// Entries never carry the caller's bearer token. Subject is the verified
// token subject when token verification is enabled.
//
// # Sinks
//
// Every sink implements AuditLogger:
//
//   - JSONLSink: appends one JSON object per line to a file (mcp-logs.jsonl)
//   - SQLiteStore: durable, queryable table; also implements AuditReader
//   - Multi: fans an entry out to several sinks
//   - Discard: drops everything
//
// Audit writes are best effort from the gateway's point of view: a failing
// sink is logged and never changes the response sent to the client.
//
// # SQLite Configuration
//
// The SQLite sink uses modernc.org/sqlite (pure Go) with WAL mode:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//
// Timestamps are stored as fixed-width UTC strings so ordering by ts is
// chronological.
//
// # Testing
//
// Use NewMockStore() for unit tests. Use NewSQLiteStore(":memory:") or a
// file under t.TempDir() for integration tests with real SQLite.
package store
