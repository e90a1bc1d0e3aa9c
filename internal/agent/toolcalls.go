package agent

import "github.com/vibeyhq/vibey/internal/llm"

// callAccumulator reassembles tool calls from streamed fragments. Providers
// split each call across many chunks: the positional index identifies the
// call, the id arrives once, and the function name and arguments arrive as
// concatenation fragments in order.
type callAccumulator struct {
	calls []llm.ToolCall
}

// add merges one chunk's fragments into the accumulated calls.
func (a *callAccumulator) add(deltas []llm.ToolCallDelta) {
	for _, d := range deltas {
		for d.Index >= len(a.calls) {
			a.calls = append(a.calls, llm.ToolCall{Type: "function"})
		}

		call := &a.calls[d.Index]
		if call.ID == "" {
			call.ID = d.ID
		}
		call.Function.Name += d.Function.Name
		call.Function.Arguments += d.Function.Arguments
	}
}

// result returns the completed calls in declaration order.
func (a *callAccumulator) result() []llm.ToolCall {
	return a.calls
}
