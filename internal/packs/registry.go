// ABOUTME: Thread-safe ordered registry mapping tool names to descriptors and handlers.
// ABOUTME: Owns the backend client and scopes each execution to the caller's credential.

package packs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/2389/repairdesk-gateway/internal/auth"
	"github.com/2389/repairdesk-gateway/internal/backend"
)

// ErrToolNotFound indicates the requested tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// ErrToolCollision indicates a tool name is already registered.
var ErrToolCollision = errors.New("tool name collision")

// ErrInvalidInput indicates tool arguments could not be decoded.
var ErrInvalidInput = errors.New("invalid input")

// ErrToolPanicked indicates a handler panicked. The panic is recovered.
var ErrToolPanicked = errors.New("tool panicked")

// Registry maintains the registered tools in registration order.
type Registry struct {
	mu       sync.RWMutex
	client   *backend.Client
	order    []string                 // tool names in registration order
	builtins map[string]*builtinEntry // tool name -> entry
	packs    []string                 // pack ids in registration order
	logger   *slog.Logger
}

// NewRegistry creates a Registry whose tools call the backend through client.
func NewRegistry(client *backend.Client, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		client:   client,
		builtins: make(map[string]*builtinEntry),
		logger:   logger,
	}
}

// RegisterBuiltinPack registers a pack of built-in tools.
// Returns ErrToolCollision if any tool name is already registered or repeats
// within the pack; nothing from the pack is registered in that case.
func (r *Registry) RegisterBuiltinPack(pack *BuiltinPack) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for collisions
	incoming := make(map[string]struct{}, len(pack.Tools))
	for _, tool := range pack.Tools {
		if tool == nil || tool.Definition == nil || tool.Handler == nil {
			return fmt.Errorf("pack '%s': tool definition and handler are required", pack.ID)
		}
		name := tool.Definition.Name
		if name == "" {
			return fmt.Errorf("pack '%s': tool name is required", pack.ID)
		}
		if existing, exists := r.builtins[name]; exists {
			return fmt.Errorf("%w: tool '%s' already registered by pack '%s'", ErrToolCollision, name, existing.PackID)
		}
		if _, dup := incoming[name]; dup {
			return fmt.Errorf("%w: tool '%s' appears twice in pack '%s'", ErrToolCollision, name, pack.ID)
		}
		incoming[name] = struct{}{}
	}

	for _, tool := range pack.Tools {
		name := tool.Definition.Name
		r.builtins[name] = &builtinEntry{Tool: tool, PackID: pack.ID}
		r.order = append(r.order, name)
	}
	r.packs = append(r.packs, pack.ID)

	r.logger.Info("=== BUILTIN PACK REGISTERED ===",
		"pack_id", pack.ID,
		"tool_count", len(pack.Tools),
		"total_tools", len(r.order),
	)

	return nil
}

// ListTools returns all descriptors in registration order.
func (r *Registry) ListTools() []*ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.builtins[name].Tool.Definition)
	}
	return defs
}

// HasTool reports whether name is registered. Matching is exact and case-sensitive.
func (r *Registry) HasTool(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builtins[name]
	return ok
}

// ToolCount returns the number of registered tools.
func (r *Registry) ToolCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// BuiltinPackInfo contains information about a registered builtin pack for display.
type BuiltinPackInfo struct {
	ID    string
	Tools []*ToolDefinition
}

// ListBuiltinPacks returns registered packs and their tools, both in registration order.
func (r *Registry) ListBuiltinPacks() []BuiltinPackInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]BuiltinPackInfo, 0, len(r.packs))
	index := make(map[string]int, len(r.packs))
	for _, id := range r.packs {
		index[id] = len(result)
		result = append(result, BuiltinPackInfo{ID: id})
	}
	for _, name := range r.order {
		entry := r.builtins[name]
		i := index[entry.PackID]
		result[i].Tools = append(result[i].Tools, entry.Tool.Definition)
	}
	return result
}

// ExecuteTool runs the named tool with input under the credential carried
// by ctx (see auth.WithCredential).
//
// Empty or null input is treated as {}; any other non-object input fails
// with ErrInvalidInput. Handler errors are returned unchanged. A handler
// panic is recovered and reported as ErrToolPanicked.
func (r *Registry) ExecuteTool(ctx context.Context, name string, input json.RawMessage) (result any, err error) {
	r.mu.RLock()
	entry, ok := r.builtins[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	input, err = normalizeInput(input)
	if err != nil {
		return nil, err
	}

	session := r.client.Session(auth.CredentialFromContext(ctx))

	r.logger.Info("→ dispatching to builtin",
		"tool_name", name,
		"pack_id", entry.PackID,
		"authenticated", auth.CredentialFromContext(ctx) != "",
	)
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("builtin tool panicked",
				"tool_name", name,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			result = nil
			err = fmt.Errorf("%w: %s: %v", ErrToolPanicked, name, rec)
		}
	}()

	result, err = entry.Tool.Handler(ctx, session, input)
	if err != nil {
		r.logger.Warn("builtin tool error",
			"tool_name", name,
			"error", err,
		)
		return nil, err
	}

	r.logger.Info("← builtin responded",
		"tool_name", name,
		"duration", time.Since(start),
	)
	return result, nil
}

// normalizeInput maps absent arguments to {} and rejects non-objects.
func normalizeInput(input json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(input)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("{}"), nil
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: arguments must be a JSON object", ErrInvalidInput)
	}
	return json.RawMessage(trimmed), nil
}

// Close clears the registry. Called during graceful shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := len(r.order)
	r.order = nil
	r.packs = nil
	r.builtins = make(map[string]*builtinEntry)

	r.logger.Info("registry closed", "builtins_cleared", count)
}
