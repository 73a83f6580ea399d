// ABOUTME: Built-in tool types: descriptor, handler signature, and pack grouping.
// ABOUTME: Tools execute in-process against a per-request backend session.

package packs

import (
	"context"
	"encoding/json"

	"github.com/2389/repairdesk-gateway/internal/backend"
)

// ToolDefinition is the static descriptor advertised by tools/list.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ToolHandler executes a built-in tool.
// It receives a backend view scoped to the caller's credential and the tool
// arguments as a JSON object. Returns a JSON-serializable outcome. A non-nil
// error is reserved for arguments that cannot be decoded (wrap ErrInvalidInput);
// downstream failures belong in the outcome.
type ToolHandler func(ctx context.Context, api backend.API, input json.RawMessage) (any, error)

// BuiltinTool represents a tool that executes in the gateway process.
type BuiltinTool struct {
	Definition *ToolDefinition
	Handler    ToolHandler
}

// BuiltinPack is a collection of built-in tools with a pack ID.
type BuiltinPack struct {
	ID    string
	Tools []*BuiltinTool
}

// builtinEntry stores a builtin tool with its pack ID for registry lookup.
type builtinEntry struct {
	Tool   *BuiltinTool
	PackID string
}
