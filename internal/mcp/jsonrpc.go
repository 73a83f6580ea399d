// ABOUTME: JSON-RPC 2.0 envelope types, error codes and response writers
// ABOUTME: Every envelope is sent with HTTP 200; failures live in the error member

package mcp

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// JSON-RPC 2.0 types

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response. Exactly one of
// Result and Error is set.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Standard JSON-RPC error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// envelope is the first decoding pass: every member is kept raw so a
// mistyped jsonrpc or method does not cost the caller its id.
type envelope struct {
	JSONRPC json.RawMessage `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  json.RawMessage `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// decodeRequest parses body into a request. The returned request carries
// whatever id could be recovered even when an error is returned. Mistyped
// jsonrpc or method members decode as empty strings and are rejected by the
// caller's envelope check.
func decodeRequest(body []byte) (JSONRPCRequest, *JSONRPCError) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if !json.Valid(body) {
			return JSONRPCRequest{}, rpcError(JSONRPCParseError, "Parse error")
		}
		// Valid JSON that isn't a request object
		return JSONRPCRequest{}, rpcError(JSONRPCInvalidRequest, "invalid JSON-RPC request")
	}

	if !validID(env.ID) {
		return JSONRPCRequest{}, rpcError(JSONRPCInvalidRequest, "id must be a string, number or null")
	}

	req := JSONRPCRequest{ID: env.ID, Params: env.Params}
	_ = json.Unmarshal(env.JSONRPC, &req.JSONRPC)
	_ = json.Unmarshal(env.Method, &req.Method)
	return req, nil
}

// validID reports whether id is absent, null, a string or a number.
func validID(id json.RawMessage) bool {
	trimmed := bytes.TrimSpace(id)
	if len(trimmed) == 0 {
		return true
	}
	switch c := trimmed[0]; {
	case c == '"', c == '-', c >= '0' && c <= '9':
		return true
	default:
		return bytes.Equal(trimmed, []byte("null"))
	}
}

// zeroID is echoed when the request carried no usable id.
var zeroID = json.RawMessage("0")

// responseID returns the id to echo: the request's own, or 0 when absent or null.
func responseID(id json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(id)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return zeroID
	}
	return trimmed
}

// isNotification reports whether req carries no id.
func isNotification(req *JSONRPCRequest) bool {
	return len(bytes.TrimSpace(req.ID)) == 0
}

func rpcError(code int, message string) *JSONRPCError {
	return &JSONRPCError{Code: code, Message: message}
}

// encodeResponse marshals a result envelope, falling back to an
// InternalError envelope when the result cannot be encoded.
func encodeResponse(id json.RawMessage, result any, rpcErr *JSONRPCError) ([]byte, *JSONRPCError) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: responseID(id)}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
		if result == nil {
			resp.Result = json.RawMessage("null")
		}
	}

	data, err := json.Marshal(resp)
	if err == nil {
		return data, rpcErr
	}

	fallback := rpcError(JSONRPCInternalError, "failed to encode result: "+err.Error())
	data, _ = json.Marshal(JSONRPCResponse{JSONRPC: "2.0", ID: responseID(id), Error: fallback})
	return data, fallback
}

func writeEnvelope(w http.ResponseWriter, data []byte) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(append(data, '\n'))
	return err
}
