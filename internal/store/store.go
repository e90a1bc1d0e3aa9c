// Package store persists chat history and long-term user memory in
// PostgreSQL. It is the write-shared resource between concurrent sessions;
// every operation is a single statement or upsert, so no explicit
// transactions are needed here.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Memory upsert actions reported by SaveMemory.
const (
	ActionSaved   = "saved"
	ActionUpdated = "updated"
)

// ChatTurn is one persisted message of a user's conversation history.
type ChatTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Memory is one long-term memory entry, keyed by (user, key).
type Memory struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Category  string    `json:"category"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store manages chat history and memory persistence.
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     querier
	logger *slog.Logger
}

// New creates a Store backed by the given pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: pool, logger: logger}, nil
}

// NewPool connects a pgx pool and verifies the connection.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// SaveMessage appends a chat turn to the user's history.
func (s *Store) SaveMessage(ctx context.Context, userID, role, content string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO chat_history (user_id, role, content) VALUES ($1, $2, $3)`,
		userID, role, content)
	if err != nil {
		return fmt.Errorf("saving chat message: %w", err)
	}
	return nil
}

// History returns the user's most recent turns, oldest-first.
// The newest `limit` rows are selected and then reversed so the result can be
// appended directly to a prompt sequence.
func (s *Store) History(ctx context.Context, userID string, limit int) ([]ChatTurn, error) {
	rows, err := s.db.Query(ctx,
		`SELECT role, content, created_at FROM chat_history
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading chat history: %w", err)
	}
	defer rows.Close()

	var turns []ChatTurn
	for rows.Next() {
		var t ChatTurn
		if err := rows.Scan(&t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chat turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chat history: %w", err)
	}

	reverseTurns(turns)
	return turns, nil
}

// ClearHistory deletes all chat turns for the user.
func (s *Store) ClearHistory(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM chat_history WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("clearing chat history: %w", err)
	}
	return nil
}

// SaveMemory upserts a memory entry by (user, key) and reports whether the
// entry was inserted (ActionSaved) or replaced (ActionUpdated).
// xmax = 0 distinguishes a fresh insert from a conflict-update row version.
func (s *Store) SaveMemory(ctx context.Context, userID, key, value, category string) (string, error) {
	var inserted bool
	err := s.db.QueryRow(ctx,
		`INSERT INTO long_term_memory (user_id, key, value, category)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, key)
		 DO UPDATE SET value = EXCLUDED.value, category = EXCLUDED.category, updated_at = now()
		 RETURNING (xmax = 0)`,
		userID, key, value, category).Scan(&inserted)
	if err != nil {
		return "", fmt.Errorf("saving memory: %w", err)
	}

	action := ActionUpdated
	if inserted {
		action = ActionSaved
	}
	s.logger.Debug("memory saved", "user_id", userID, "key", key, "action", action)
	return action, nil
}

// SearchMemories returns entries whose key or value matches the query
// (case-insensitive substring), newest-first.
func (s *Store) SearchMemories(ctx context.Context, userID, query string, limit int) ([]Memory, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.Query(ctx,
		`SELECT key, value, category, updated_at FROM long_term_memory
		 WHERE user_id = $1 AND (key ILIKE $2 OR value ILIKE $2)
		 ORDER BY updated_at DESC LIMIT $3`,
		userID, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching memories: %w", err)
	}
	defer rows.Close()

	var memories []Memory
	for rows.Next() {
		var m Memory
		if err := rows.Scan(&m.Key, &m.Value, &m.Category, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning memory: %w", err)
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading memories: %w", err)
	}
	return memories, nil
}

// reverseTurns flips newest-first query order into prompt order in place.
func reverseTurns(turns []ChatTurn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}

// escapeLike escapes LIKE/ILIKE metacharacters in user-supplied queries.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
