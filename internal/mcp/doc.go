// Package mcp implements the gateway's JSON-RPC 2.0 tool-calling endpoint.
//
// # Protocol
//
// A single endpoint accepts one JSON-RPC envelope per HTTP POST:
//
//   - POST /mcp - tools/list, tools/call, initialize, ping
//
// Every envelope is returned with HTTP 200; callers detect failure from the
// error member, never from the transport status. A request without an id (or
// with a null id) is answered with id 0. Notifications (no id, method under
// notifications/) are accepted with 202 and no body. Other HTTP methods get 405.
//
// # Tool Discovery
//
// tools/list returns the descriptor array itself as the result, in
// registration order:
//
//	{"jsonrpc":"2.0","id":1,"result":[{"name":"search_equipment","description":"...","inputSchema":{...}}]}
//
// # Tool Execution
//
// tools/call runs a tool and returns its outcome object as the result:
//
//	{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"validate_availability","arguments":{"equipmentId":"eq-1"}}}
//
// Tool outcomes always carry success; a backend failure is a success:false
// result, not a JSON-RPC error.
//
// # Error Codes
//
//   - -32700 Parse error: body is not JSON
//   - -32600 Invalid request: bad envelope, or a token that failed verification
//   - -32601 Method not found: unknown method or unknown tool
//   - -32602 Invalid params: missing tool name or undecodable arguments
//   - -32603 Internal error: anything else, including recovered panics
//
// # Authentication
//
// The Authorization bearer token is scoped to the request's context and
// forwarded to the backend on every call that request makes. Requests never
// share a credential. When a TokenVerifier is configured, a presented token
// must verify; requests without a token are still forwarded and the backend
// decides.
//
// # Audit
//
// Each request writes a request record and then a success or error record
// (with execution time) to the configured store.AuditLogger.
package mcp
