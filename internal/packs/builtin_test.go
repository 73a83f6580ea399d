// ABOUTME: Tests for builtin pack grouping and descriptor serialization.
// ABOUTME: Validates ListBuiltinPacks ordering and the tools/list wire shape.

package packs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListBuiltinPacks(t *testing.T) {
	registry, _ := newTestRegistry(t)
	require.NoError(t, registry.RegisterBuiltinPack(&BuiltinPack{
		ID: "builtin:repair",
		Tools: []*BuiltinTool{
			createTestTool("b", echoHandler),
			createTestTool("a", echoHandler),
		},
	}))
	require.NoError(t, registry.RegisterBuiltinPack(&BuiltinPack{
		ID:    "builtin:extra",
		Tools: []*BuiltinTool{createTestTool("c", echoHandler)},
	}))

	packs := registry.ListBuiltinPacks()
	require.Len(t, packs, 2)
	assert.Equal(t, "builtin:repair", packs[0].ID)
	require.Len(t, packs[0].Tools, 2)
	assert.Equal(t, "b", packs[0].Tools[0].Name)
	assert.Equal(t, "a", packs[0].Tools[1].Name)
	assert.Equal(t, "builtin:extra", packs[1].ID)
}

func TestToolDefinition_WireShape(t *testing.T) {
	def := &ToolDefinition{
		Name:        "search_equipment",
		Description: "Search",
		InputSchema: json.RawMessage(`{"type":"object","required":["query"]}`),
	}

	data, err := json.Marshal(def)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "search_equipment",
		"description": "Search",
		"inputSchema": {"type": "object", "required": ["query"]}
	}`, string(data))
}
