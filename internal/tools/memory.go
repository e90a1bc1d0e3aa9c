package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vibeyhq/vibey/internal/store"
)

// GuestUserID is the identity used for unauthenticated sessions. Guest
// sessions never touch persistent storage: tools answer with fixed payloads.
const GuestUserID = "guest"

// recallLimit caps memories returned per recall.
const recallLimit = 10

const defaultMemoryCategory = "general"

// MemoryStorage is the persistence surface the memory tools need.
type MemoryStorage interface {
	SaveMemory(ctx context.Context, userID, key, value, category string) (string, error)
	SearchMemories(ctx context.Context, userID, query string, limit int) ([]store.Memory, error)
}

// Memory implements the recall_memory and save_memory tools on top of
// persistent storage, with guest sessions short-circuited before any
// storage access.
type Memory struct {
	storage MemoryStorage
}

// NewMemory creates the memory toolset.
func NewMemory(storage MemoryStorage) *Memory {
	return &Memory{storage: storage}
}

// recallResult is the payload returned by recall_memory.
type recallResult struct {
	Found    bool           `json:"found"`
	Memories []store.Memory `json:"memories"`
	Message  string         `json:"message"`
}

// saveResult is the payload returned by save_memory.
type saveResult struct {
	Action  string `json:"action"`
	Key     string `json:"key"`
	Value   string `json:"value"`
	Message string `json:"message,omitempty"`
}

// Recall searches the user's memories by key or value substring.
// Guests get a fixed disabled payload; storage is never consulted.
func (m *Memory) Recall(ctx context.Context, args map[string]any, userID string) (string, error) {
	query := strings.TrimSpace(stringArg(args, "query"))
	if query == "" {
		return "", fmt.Errorf("query is required")
	}

	if userID == GuestUserID {
		return marshalResult(recallResult{
			Found:    false,
			Memories: []store.Memory{},
			Message:  "Memory recall disabled in guest mode.",
		})
	}

	memories, err := m.storage.SearchMemories(ctx, userID, query, recallLimit)
	if err != nil {
		return "", fmt.Errorf("recalling memories: %w", err)
	}

	if len(memories) == 0 {
		return marshalResult(recallResult{
			Found:    false,
			Memories: []store.Memory{},
			Message:  "No matching memories found for this user.",
		})
	}

	lines := make([]string, len(memories))
	for i, mem := range memories {
		lines[i] = fmt.Sprintf("• **%s**: %s", mem.Key, mem.Value)
	}

	return marshalResult(recallResult{
		Found:    true,
		Memories: memories,
		Message:  strings.Join(lines, "\n"),
	})
}

// Save upserts a memory entry keyed by (user, key). Guests get a fixed
// ignored payload; storage is never consulted.
func (m *Memory) Save(ctx context.Context, args map[string]any, userID string) (string, error) {
	key := strings.TrimSpace(stringArg(args, "key"))
	value := strings.TrimSpace(stringArg(args, "value"))
	if key == "" || value == "" {
		return "", fmt.Errorf("key and value are required")
	}
	category := strings.TrimSpace(stringArg(args, "category"))
	if category == "" {
		category = defaultMemoryCategory
	}

	if userID == GuestUserID {
		return marshalResult(saveResult{
			Action:  "ignored",
			Key:     key,
			Value:   value,
			Message: "Memory not saved in guest mode.",
		})
	}

	action, err := m.storage.SaveMemory(ctx, userID, key, value, category)
	if err != nil {
		return "", fmt.Errorf("saving memory: %w", err)
	}

	return marshalResult(saveResult{Action: action, Key: key, Value: value})
}

func marshalResult(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding tool result: %w", err)
	}
	return string(data), nil
}
