package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibeyhq/vibey/internal/llm"
)

func TestCallAccumulatorReassemblesFragments(t *testing.T) {
	t.Parallel()

	var acc callAccumulator
	acc.add([]llm.ToolCallDelta{{
		Index:    0,
		ID:       "call_1",
		Function: llm.FunctionCall{Name: "web_", Arguments: `{"que`},
	}})
	acc.add([]llm.ToolCallDelta{{
		Index:    0,
		Function: llm.FunctionCall{Name: "search", Arguments: `ry":"go"}`},
	}})

	calls := acc.result()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "function", calls[0].Type)
	assert.Equal(t, "web_search", calls[0].Function.Name)
	assert.Equal(t, `{"query":"go"}`, calls[0].Function.Arguments)
}

func TestCallAccumulatorKeepsFirstID(t *testing.T) {
	t.Parallel()

	var acc callAccumulator
	acc.add([]llm.ToolCallDelta{{Index: 0, ID: "call_first"}})
	acc.add([]llm.ToolCallDelta{{Index: 0, ID: "call_second"}})

	calls := acc.result()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_first", calls[0].ID)
}

func TestCallAccumulatorGrowsToIndex(t *testing.T) {
	t.Parallel()

	var acc callAccumulator
	acc.add([]llm.ToolCallDelta{{
		Index:    1,
		ID:       "call_b",
		Function: llm.FunctionCall{Name: "save_memory"},
	}})
	acc.add([]llm.ToolCallDelta{{
		Index:    0,
		ID:       "call_a",
		Function: llm.FunctionCall{Name: "recall_memory"},
	}})

	calls := acc.result()
	require.Len(t, calls, 2)
	assert.Equal(t, "call_a", calls[0].ID)
	assert.Equal(t, "call_b", calls[1].ID)
	assert.Equal(t, "function", calls[0].Type)
}
