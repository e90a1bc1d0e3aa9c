package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibeyhq/vibey/internal/llm"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	registry, err := NewRegistry(
		NewSearch(http.DefaultClient, nil),
		NewMemory(&storageSpy{}),
		nil,
	)
	require.NoError(t, err)
	return registry
}

func TestRegistryDefinitions(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t)
	defs := registry.Definitions()
	require.Len(t, defs, 3)

	names := make([]string, len(defs))
	for i, def := range defs {
		assert.Equal(t, "function", def.Type)
		assert.NotNil(t, def.Function.Parameters)
		assert.NotEmpty(t, def.Function.Description)
		names[i] = def.Function.Name
	}
	assert.ElementsMatch(t, []string{NameWebSearch, NameRecallMemory, NameSaveMemory}, names)
}

func TestRegistryDefinitionsSerializable(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t)
	var defs []llm.Tool
	data, err := json.Marshal(registry.Definitions())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &defs))
	assert.Contains(t, string(data), `"query"`)
	assert.Len(t, defs, 3)
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t)
	result := registry.Execute(context.Background(), "launch_rocket", map[string]any{}, GuestUserID)
	assert.JSONEq(t, `{"error": "Unknown tool"}`, result)
}

func TestRegistryExecuteFailureBecomesPayload(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t)
	// recall_memory without a query fails inside the executor.
	result := registry.Execute(context.Background(), NameRecallMemory, map[string]any{}, "user-1")

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(result), &payload))
	assert.Contains(t, payload["error"], "query is required")
}

func TestRegistryExecuteGuestMemory(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t)
	result := registry.Execute(context.Background(), NameRecallMemory,
		map[string]any{"query": "anything"}, GuestUserID)
	assert.Contains(t, result, "Memory recall disabled in guest mode.")
}
