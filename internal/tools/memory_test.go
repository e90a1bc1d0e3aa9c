package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibeyhq/vibey/internal/store"
)

// storageSpy records calls so guest tests can assert storage was never touched.
type storageSpy struct {
	saveCalls   int
	searchCalls int

	saveAction string
	saveErr    error
	memories   []store.Memory
	searchErr  error

	gotKey      string
	gotValue    string
	gotCategory string
	gotQuery    string
	gotLimit    int
}

func (s *storageSpy) SaveMemory(_ context.Context, _, key, value, category string) (string, error) {
	s.saveCalls++
	s.gotKey, s.gotValue, s.gotCategory = key, value, category
	return s.saveAction, s.saveErr
}

func (s *storageSpy) SearchMemories(_ context.Context, _, query string, limit int) ([]store.Memory, error) {
	s.searchCalls++
	s.gotQuery, s.gotLimit = query, limit
	return s.memories, s.searchErr
}

func TestMemoryRecall(t *testing.T) {
	t.Parallel()

	t.Run("guest gets fixed payload without storage access", func(t *testing.T) {
		t.Parallel()

		spy := &storageSpy{}
		memory := NewMemory(spy)

		result, err := memory.Recall(context.Background(), map[string]any{"query": "coffee"}, GuestUserID)
		require.NoError(t, err)

		var payload recallResult
		require.NoError(t, json.Unmarshal([]byte(result), &payload))
		assert.False(t, payload.Found)
		assert.Empty(t, payload.Memories)
		assert.Equal(t, "Memory recall disabled in guest mode.", payload.Message)
		assert.Zero(t, spy.searchCalls)
	})

	t.Run("no matches", func(t *testing.T) {
		t.Parallel()

		spy := &storageSpy{}
		memory := NewMemory(spy)

		result, err := memory.Recall(context.Background(), map[string]any{"query": "coffee"}, "user-1")
		require.NoError(t, err)

		var payload recallResult
		require.NoError(t, json.Unmarshal([]byte(result), &payload))
		assert.False(t, payload.Found)
		assert.Equal(t, "No matching memories found for this user.", payload.Message)
		assert.Equal(t, "coffee", spy.gotQuery)
		assert.Equal(t, recallLimit, spy.gotLimit)
	})

	t.Run("matches formatted as bullet list", func(t *testing.T) {
		t.Parallel()

		spy := &storageSpy{memories: []store.Memory{
			{Key: "favorite_drink", Value: "espresso", Category: "preferences", UpdatedAt: time.Now()},
			{Key: "morning_routine", Value: "coffee then run", Category: "habits", UpdatedAt: time.Now()},
		}}
		memory := NewMemory(spy)

		result, err := memory.Recall(context.Background(), map[string]any{"query": "coffee"}, "user-1")
		require.NoError(t, err)

		var payload recallResult
		require.NoError(t, json.Unmarshal([]byte(result), &payload))
		assert.True(t, payload.Found)
		assert.Len(t, payload.Memories, 2)
		assert.Equal(t, "• **favorite_drink**: espresso\n• **morning_routine**: coffee then run", payload.Message)
	})

	t.Run("missing query rejected", func(t *testing.T) {
		t.Parallel()

		memory := NewMemory(&storageSpy{})
		_, err := memory.Recall(context.Background(), map[string]any{}, "user-1")
		assert.Error(t, err)
	})

	t.Run("storage error propagated", func(t *testing.T) {
		t.Parallel()

		memory := NewMemory(&storageSpy{searchErr: errors.New("connection refused")})
		_, err := memory.Recall(context.Background(), map[string]any{"query": "x"}, "user-1")
		assert.ErrorContains(t, err, "connection refused")
	})
}

func TestMemorySave(t *testing.T) {
	t.Parallel()

	t.Run("guest gets ignored payload without storage access", func(t *testing.T) {
		t.Parallel()

		spy := &storageSpy{}
		memory := NewMemory(spy)

		result, err := memory.Save(context.Background(),
			map[string]any{"key": "name", "value": "Ada"}, GuestUserID)
		require.NoError(t, err)

		var payload saveResult
		require.NoError(t, json.Unmarshal([]byte(result), &payload))
		assert.Equal(t, "ignored", payload.Action)
		assert.Equal(t, "name", payload.Key)
		assert.Equal(t, "Ada", payload.Value)
		assert.Equal(t, "Memory not saved in guest mode.", payload.Message)
		assert.Zero(t, spy.saveCalls)
	})

	t.Run("upsert reports storage action", func(t *testing.T) {
		t.Parallel()

		spy := &storageSpy{saveAction: store.ActionUpdated}
		memory := NewMemory(spy)

		result, err := memory.Save(context.Background(),
			map[string]any{"key": "name", "value": "Ada", "category": "identity"}, "user-1")
		require.NoError(t, err)

		var payload saveResult
		require.NoError(t, json.Unmarshal([]byte(result), &payload))
		assert.Equal(t, store.ActionUpdated, payload.Action)
		assert.Equal(t, "identity", spy.gotCategory)
	})

	t.Run("category defaults to general", func(t *testing.T) {
		t.Parallel()

		spy := &storageSpy{saveAction: store.ActionSaved}
		memory := NewMemory(spy)

		_, err := memory.Save(context.Background(),
			map[string]any{"key": "name", "value": "Ada"}, "user-1")
		require.NoError(t, err)
		assert.Equal(t, defaultMemoryCategory, spy.gotCategory)
	})

	t.Run("missing key or value rejected", func(t *testing.T) {
		t.Parallel()

		memory := NewMemory(&storageSpy{})
		_, err := memory.Save(context.Background(), map[string]any{"key": "name"}, "user-1")
		assert.Error(t, err)

		_, err = memory.Save(context.Background(), map[string]any{"value": "Ada"}, "user-1")
		assert.Error(t, err)
	})
}
