package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReverseTurns(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	turns := []ChatTurn{
		{Role: "assistant", Content: "third", CreatedAt: base.Add(2 * time.Minute)},
		{Role: "user", Content: "second", CreatedAt: base.Add(time.Minute)},
		{Role: "user", Content: "first", CreatedAt: base},
	}

	reverseTurns(turns)

	assert.Equal(t, "first", turns[0].Content)
	assert.Equal(t, "second", turns[1].Content)
	assert.Equal(t, "third", turns[2].Content)
}

func TestReverseTurnsEmpty(t *testing.T) {
	t.Parallel()

	var turns []ChatTurn
	reverseTurns(turns)
	assert.Empty(t, turns)
}

func TestEscapeLike(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "coffee", "coffee"},
		{"percent", "100% done", `100\% done`},
		{"underscore", "snake_case", `snake\_case`},
		{"backslash", `a\b`, `a\\b`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, escapeLike(tt.input))
		})
	}
}
