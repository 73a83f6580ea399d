// ABOUTME: JSON-RPC 2.0 tool-calling endpoint for LLM agents
// ABOUTME: Validates envelopes, scopes the caller's credential per request, dispatches to the registry

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/repairdesk-gateway/internal/auth"
	"github.com/2389/repairdesk-gateway/internal/packs"
	"github.com/2389/repairdesk-gateway/internal/store"
)

// Supported MCP protocol versions
var supportedProtocolVersions = map[string]bool{
	"2024-11-05": true,
	"2025-03-26": true,
	"2025-06-18": true,
}

// latestProtocolVersion is the version we advertise when the client asks for
// one we don't know.
const latestProtocolVersion = "2025-06-18"

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// unknownMethod is recorded in the audit trail when no method could be read.
const unknownMethod = "unknown"

// MCPCallToolParams are the params for tools/call.
type MCPCallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Config holds configuration for the MCP server.
type Config struct {
	Registry      *packs.Registry
	Logger        *slog.Logger
	TokenVerifier auth.TokenVerifier // optional; nil forwards tokens unverified
	Audit         store.AuditLogger  // optional; nil discards
	Name          string             // serverInfo.name in initialize
	Version       string             // serverInfo.version in initialize
}

// Server implements the JSON-RPC endpoint.
type Server struct {
	registry *packs.Registry
	logger   *slog.Logger
	verifier auth.TokenVerifier
	audit    store.AuditLogger
	name     string
	version  string
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	audit := cfg.Audit
	if audit == nil {
		audit = store.Discard
	}
	name := cfg.Name
	if name == "" {
		name = "repairdesk-gateway"
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	return &Server{
		registry: cfg.Registry,
		logger:   logger.With("component", "mcp"),
		verifier: cfg.TokenVerifier,
		audit:    audit,
		name:     name,
		version:  version,
	}, nil
}

// RegisterRoutes registers the MCP endpoint on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/mcp", s.handleMCP)
}

// ServeHTTP serves the endpoint directly, without a mux.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handleMCP(w, r)
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	s.handlePost(w, r)
}

// call is the state of one request, accumulated for the audit trail.
type call struct {
	requestID string
	start     time.Time
	req       JSONRPCRequest
	toolName  string
	args      json.RawMessage
	subject   string
	requested bool // request record written
}

// handlePost processes one JSON-RPC message.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	c := &call{
		requestID: uuid.New().String(),
		start:     time.Now(),
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		s.respond(w, r, c, nil, rpcError(JSONRPCParseError, "failed to read request body"))
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		s.respond(w, r, c, nil, rpcError(JSONRPCInvalidRequest, "request body too large"))
		return
	}

	req, rpcErr := decodeRequest(body)
	c.req = req
	if rpcErr != nil {
		s.respond(w, r, c, nil, rpcErr)
		return
	}

	if c.req.Method == "tools/call" {
		c.toolName, c.args = peekToolCall(c.req.Params)
	}
	s.recordRequest(r, c)

	if c.req.JSONRPC != "2.0" || c.req.Method == "" {
		s.respond(w, r, c, nil, rpcError(JSONRPCInvalidRequest, "invalid JSON-RPC request"))
		return
	}

	ctx, err := auth.ScopeRequest(r, s.verifier)
	if err != nil {
		s.logger.Warn("rejected bearer token",
			"request_id", c.requestID,
			"error", err,
		)
		s.respond(w, r, c, nil, rpcError(JSONRPCInvalidRequest, "invalid or expired token"))
		return
	}
	c.subject = auth.SubjectFromContext(ctx)

	if isNotification(&c.req) && strings.HasPrefix(c.req.Method, "notifications/") {
		s.logger.Debug("accepted MCP notification", "method", c.req.Method)
		s.record(r, c, store.AuditSuccess, "")
		w.WriteHeader(http.StatusAccepted)
		return
	}

	s.logger.Debug("MCP request",
		"method", c.req.Method,
		"tool_name", c.toolName,
		"request_id", c.requestID,
		"authenticated", auth.CredentialFromContext(ctx) != "",
	)

	result, rpcErr := s.dispatch(ctx, c)
	s.respond(w, r, c, result, rpcErr)
}

// dispatch routes a validated request. A panic anywhere below is reported
// as InternalError.
func (s *Server) dispatch(ctx context.Context, c *call) (result any, rpcErr *JSONRPCError) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("dispatch panicked",
				"method", c.req.Method,
				"request_id", c.requestID,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			result = nil
			rpcErr = rpcError(JSONRPCInternalError, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	switch c.req.Method {
	case "initialize":
		return s.handleInitialize(c.req.Params), nil
	case "ping":
		return struct{}{}, nil
	case "tools/list":
		return s.handleToolsList(), nil
	case "tools/call":
		return s.handleToolsCall(ctx, c)
	default:
		return nil, rpcError(JSONRPCMethodNotFound, fmt.Sprintf("Method %q not found", c.req.Method))
	}
}

// handleInitialize answers the MCP handshake.
func (s *Server) handleInitialize(params json.RawMessage) any {
	version := latestProtocolVersion
	var p struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	if len(params) > 0 && json.Unmarshal(params, &p) == nil && supportedProtocolVersions[p.ProtocolVersion] {
		version = p.ProtocolVersion
	}

	return map[string]any{
		"protocolVersion": version,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    s.name,
			"version": s.version,
		},
	}
}

// handleToolsList returns the descriptor array in registration order.
func (s *Server) handleToolsList() any {
	tools := s.registry.ListTools()
	s.logger.Debug("tools/list", "count", len(tools))
	return tools
}

// handleToolsCall handles tools/call requests.
func (s *Server) handleToolsCall(ctx context.Context, c *call) (any, *JSONRPCError) {
	var params MCPCallToolParams
	if len(bytes.TrimSpace(c.req.Params)) > 0 && string(bytes.TrimSpace(c.req.Params)) != "null" {
		if err := json.Unmarshal(c.req.Params, &params); err != nil {
			return nil, rpcError(JSONRPCInvalidParams, "invalid params")
		}
	}

	if params.Name == "" {
		return nil, rpcError(JSONRPCInvalidParams, "tool name is required")
	}

	if !s.registry.HasTool(params.Name) {
		return nil, rpcError(JSONRPCMethodNotFound, fmt.Sprintf("Tool %q not found", params.Name))
	}

	s.logger.Debug("tools/call",
		"tool_name", params.Name,
		"request_id", c.requestID,
	)

	result, err := s.registry.ExecuteTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return nil, s.toolError(params.Name, c.requestID, err)
	}
	return result, nil
}

// toolError maps a registry error to a JSON-RPC error.
func (s *Server) toolError(toolName, requestID string, err error) *JSONRPCError {
	s.logger.Warn("tool execution failed",
		"tool_name", toolName,
		"request_id", requestID,
		"error", err,
	)

	switch {
	case errors.Is(err, packs.ErrInvalidInput):
		return rpcError(JSONRPCInvalidParams, err.Error())
	case errors.Is(err, packs.ErrToolNotFound):
		// Unregistered between HasTool and ExecuteTool
		return rpcError(JSONRPCMethodNotFound, fmt.Sprintf("Tool %q not found", toolName))
	default:
		return rpcError(JSONRPCInternalError, err.Error())
	}
}

// respond writes the envelope and records the outcome.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, c *call, result any, rpcErr *JSONRPCError) {
	s.recordRequest(r, c)
	data, rpcErr := encodeResponse(c.req.ID, result, rpcErr)

	if rpcErr != nil {
		s.logger.Info("MCP request failed",
			"method", methodOrUnknown(c.req.Method),
			"tool_name", c.toolName,
			"request_id", c.requestID,
			"code", rpcErr.Code,
			"error", rpcErr.Message,
			"duration", time.Since(c.start),
		)
		s.record(r, c, store.AuditError, rpcErr.Message)
	} else {
		s.record(r, c, store.AuditSuccess, "")
	}

	if err := writeEnvelope(w, data); err != nil {
		s.logger.Warn("failed to write JSON-RPC response",
			"request_id", c.requestID,
			"error", err,
		)
	}
}

// recordRequest writes the request record once.
func (s *Server) recordRequest(r *http.Request, c *call) {
	if c.requested {
		return
	}
	c.requested = true
	s.record(r, c, store.AuditRequest, "")
}

// record appends one audit entry. Failures are logged, never returned: the
// client's response does not depend on the audit trail.
func (s *Server) record(r *http.Request, c *call, typ store.AuditType, errMsg string) {
	e := &store.AuditEntry{
		Type:       typ,
		Method:     methodOrUnknown(c.req.Method),
		ToolName:   c.toolName,
		Args:       c.args,
		Error:      errMsg,
		RequestID:  c.requestID,
		RemoteAddr: r.RemoteAddr,
		Subject:    c.subject,
	}
	if typ != store.AuditRequest {
		e.Elapsed(c.start)
	}

	// The audit outlives a disconnected client
	ctx := context.WithoutCancel(r.Context())
	if err := s.audit.AppendAuditLog(ctx, e); err != nil {
		s.logger.Warn("failed to write audit entry",
			"request_id", c.requestID,
			"type", typ,
			"error", err,
		)
	}
}

// peekToolCall extracts name and arguments for the audit trail before the
// request is validated. Unreadable params yield empty values.
func peekToolCall(params json.RawMessage) (string, json.RawMessage) {
	var p MCPCallToolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return "", nil
	}
	args := bytes.TrimSpace(p.Arguments)
	if len(args) == 0 || bytes.Equal(args, []byte("null")) || !json.Valid(args) {
		return p.Name, nil
	}
	return p.Name, json.RawMessage(args)
}

func methodOrUnknown(method string) string {
	if method == "" {
		return unknownMethod
	}
	return method
}
