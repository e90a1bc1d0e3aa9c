// Package tools implements the agent's callable tools: web search and
// long-term memory recall/save. The model addresses tools by name with raw
// JSON arguments; every execution produces a JSON string result, including
// failures, so the model always gets something it can reason about.
package tools

import (
	"context"
	"encoding/json"

	"github.com/vibeyhq/vibey/internal/llm"
	"github.com/vibeyhq/vibey/internal/log"
)

// Tool names as exposed to the model.
const (
	NameWebSearch    = "web_search"
	NameRecallMemory = "recall_memory"
	NameSaveMemory   = "save_memory"
)

// Executor runs one tool call and returns its JSON result text.
// userID scopes memory operations; the search tool ignores it.
type Executor func(ctx context.Context, args map[string]any, userID string) (string, error)

// Registry maps tool names to executors and carries the provider-facing
// catalog. Safe for concurrent use after construction.
type Registry struct {
	executors   map[string]Executor
	definitions []llm.Tool
	logger      log.Logger
}

// NewRegistry builds the registry with the standard toolset.
func NewRegistry(search *Search, memory *Memory, logger log.Logger) (*Registry, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	defs, err := definitions()
	if err != nil {
		return nil, err
	}

	return &Registry{
		executors: map[string]Executor{
			NameWebSearch:    search.Execute,
			NameRecallMemory: memory.Recall,
			NameSaveMemory:   memory.Save,
		},
		definitions: defs,
		logger:      logger,
	}, nil
}

// Definitions returns the tool catalog sent to the provider.
func (r *Registry) Definitions() []llm.Tool {
	return r.definitions
}

// Execute runs the named tool. The result is always a JSON string: unknown
// names and executor failures are reported as {"error": ...} payloads rather
// than errors, so a bad call degrades into model-visible feedback instead of
// aborting the turn.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any, userID string) string {
	exec, ok := r.executors[name]
	if !ok {
		r.logger.Warn("unknown tool requested", "tool", name)
		return errorResult("Unknown tool")
	}

	result, err := exec(ctx, args, userID)
	if err != nil {
		r.logger.Error("tool execution failed", "tool", name, "error", err)
		return errorResult(err.Error())
	}
	return result
}

// errorResult encodes a failure as a model-readable JSON payload.
func errorResult(msg string) string {
	data, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error": "internal error"}`
	}
	return string(data)
}

// stringArg extracts a string argument, tolerating absent or mistyped values.
func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
