package tools

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/vibeyhq/vibey/internal/llm"
)

// SearchInput defines input for the web_search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema_description:"The search query"`
}

// RecallInput defines input for the recall_memory tool.
type RecallInput struct {
	Query string `json:"query" jsonschema_description:"What to search for in stored memories"`
}

// SaveInput defines input for the save_memory tool.
type SaveInput struct {
	Key      string `json:"key" jsonschema_description:"Short identifier for this memory, e.g. 'favorite_color'"`
	Value    string `json:"value" jsonschema_description:"The information to remember"`
	Category string `json:"category,omitempty" jsonschema_description:"Optional grouping such as 'preferences' or 'facts'"`
}

// definitions builds the provider-facing tool catalog.
func definitions() ([]llm.Tool, error) {
	searchSchema, err := jsonschema.For[SearchInput](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", NameWebSearch, err)
	}
	recallSchema, err := jsonschema.For[RecallInput](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", NameRecallMemory, err)
	}
	saveSchema, err := jsonschema.For[SaveInput](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", NameSaveMemory, err)
	}

	return []llm.Tool{
		{
			Type: "function",
			Function: llm.FunctionDef{
				Name:        NameWebSearch,
				Description: "Search the web for current information. Returns relevant results with titles, URLs, and content snippets.",
				Parameters:  searchSchema,
			},
		},
		{
			Type: "function",
			Function: llm.FunctionDef{
				Name:        NameRecallMemory,
				Description: "Search the user's long-term memory for previously saved information.",
				Parameters:  recallSchema,
			},
		},
		{
			Type: "function",
			Function: llm.FunctionDef{
				Name:        NameSaveMemory,
				Description: "Save a piece of information about the user to long-term memory for future conversations.",
				Parameters:  saveSchema,
			},
		},
	}, nil
}
