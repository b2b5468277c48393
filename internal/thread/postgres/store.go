// Package postgres provides a PostgreSQL-backed implementation of
// [thread.Store].
//
// Threads live in a single table with the message list stored as JSONB.
// [Migrate] is idempotent and safe to call on every application start.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Save(ctx, userID, threadID, messages, response)
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/tutorvox/internal/thread"
)

const ddlThreads = `
CREATE TABLE IF NOT EXISTS threads (
    id          TEXT         PRIMARY KEY,
    user_id     TEXT         NOT NULL,
    title       TEXT         NOT NULL,
    messages    JSONB        NOT NULL DEFAULT '[]',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_threads_user_id
    ON threads (user_id);

CREATE INDEX IF NOT EXISTS idx_threads_user_updated
    ON threads (user_id, updated_at DESC);
`

// Migrate creates or ensures the threads table exists. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlThreads); err != nil {
		return fmt.Errorf("thread migrate: %w", err)
	}
	return nil
}

// Store implements [thread.Store] backed by PostgreSQL.
//
// All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Compile-time assertion that Store satisfies the thread.Store interface.
var _ thread.Store = (*Store)(nil)

// NewStore connects to the database at dsn, runs [Migrate], and returns a
// ready Store.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("thread store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("thread store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// NewStoreWithPool wraps an existing connection pool without running
// migrations. The caller retains ownership of the pool.
func NewStoreWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Save implements [thread.Store]. The title is derived on first insert only;
// updates keep the existing title.
func (s *Store) Save(ctx context.Context, userID, threadID string, messages []thread.Message, assistantResponse string) error {
	full := make([]thread.Message, 0, len(messages)+1)
	full = append(full, messages...)
	full = append(full, thread.Message{Role: "assistant", Content: assistantResponse})

	payload, err := json.Marshal(full)
	if err != nil {
		return fmt.Errorf("thread store: marshal messages: %w", err)
	}

	const q = `
		INSERT INTO threads (id, user_id, title, messages)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET messages = EXCLUDED.messages,
		    updated_at = now()`

	_, err = s.pool.Exec(ctx, q, threadID, userID, thread.DeriveTitle(assistantResponse), payload)
	if err != nil {
		return fmt.Errorf("thread store: save %q: %w", threadID, err)
	}
	return nil
}

// Get implements [thread.Store].
func (s *Store) Get(ctx context.Context, threadID string) (thread.Thread, bool, error) {
	const q = `
		SELECT id, user_id, title, messages
		FROM   threads
		WHERE  id = $1`

	var (
		t       thread.Thread
		payload []byte
	)
	err := s.pool.QueryRow(ctx, q, threadID).Scan(&t.ID, &t.UserID, &t.Title, &payload)
	if err == pgx.ErrNoRows {
		return thread.Thread{}, false, nil
	}
	if err != nil {
		return thread.Thread{}, false, fmt.Errorf("thread store: get %q: %w", threadID, err)
	}
	if err := json.Unmarshal(payload, &t.Messages); err != nil {
		return thread.Thread{}, false, fmt.Errorf("thread store: unmarshal messages for %q: %w", threadID, err)
	}
	return t, true, nil
}

// Delete implements [thread.Store].
func (s *Store) Delete(ctx context.Context, threadID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM threads WHERE id = $1`, threadID)
	if err != nil {
		return false, fmt.Errorf("thread store: delete %q: %w", threadID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByUser returns all of a user's threads ordered by most recently updated.
// Message bodies are included; callers that only need titles can ignore them.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]thread.Thread, error) {
	const q = `
		SELECT id, user_id, title, messages
		FROM   threads
		WHERE  user_id = $1
		ORDER  BY updated_at DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("thread store: list for %q: %w", userID, err)
	}

	threads, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (thread.Thread, error) {
		var (
			t       thread.Thread
			payload []byte
		)
		if err := row.Scan(&t.ID, &t.UserID, &t.Title, &payload); err != nil {
			return thread.Thread{}, err
		}
		if err := json.Unmarshal(payload, &t.Messages); err != nil {
			return thread.Thread{}, err
		}
		return t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("thread store: scan rows: %w", err)
	}
	if threads == nil {
		threads = []thread.Thread{}
	}
	return threads, nil
}
