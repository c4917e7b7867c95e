// Package repository persists conversation state. It exposes exactly the
// operations the dispatcher needs: get, create, conditional update,
// conditional delete, and unconditional delete (reset). No other component
// touches the state table.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"safetyreport_backend/internal/conversation/domain"
	"safetyreport_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no conversation state exists for a user.
var ErrNotFound = apperr.NotFound("conversation state not found")

// ErrStateConflict is returned when a conditional write loses: the stored
// state tag no longer matches what the caller read. The caller treats the
// triggering message as a stale duplicate and drops it.
var ErrStateConflict = apperr.Conflict("conversation state conflict")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get loads the conversation state for a user key.
func (r *Repository) Get(ctx context.Context, userKey string) (domain.State, error) {
	var (
		state domain.State
		raw   []byte
	)

	err := r.pool.QueryRow(ctx, `
		SELECT user_key, state_tag, nonce, draft, created_at, updated_at
		FROM conversation_states
		WHERE user_key = $1
	`, userKey).Scan(&state.UserKey, &state.Tag, &state.Nonce, &raw, &state.CreatedAt, &state.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.State{}, ErrNotFound
	}
	if err != nil {
		return domain.State{}, err
	}

	if err := json.Unmarshal(raw, &state.Draft); err != nil {
		return domain.State{}, fmt.Errorf("decode draft: %w", err)
	}

	return state, nil
}

// Create inserts a fresh conversation state. A concurrent insert for the
// same user key wins and this call returns ErrStateConflict.
func (r *Repository) Create(ctx context.Context, state domain.State) error {
	raw, err := json.Marshal(state.Draft)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO conversation_states (user_key, state_tag, nonce, draft)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_key) DO NOTHING
	`, state.UserKey, state.Tag, state.Nonce, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStateConflict
	}

	return nil
}

// UpdateIf transitions the state only if the stored tag still matches
// expected. This conditional write is what serializes a user's conversation
// under at-least-once delivery.
func (r *Repository) UpdateIf(ctx context.Context, userKey string, expected, next domain.StateTag, draft domain.Draft) error {
	raw, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE conversation_states
		SET state_tag = $3, draft = $4, updated_at = now()
		WHERE user_key = $1 AND state_tag = $2
	`, userKey, expected, next, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStateConflict
	}

	return nil
}

// DeleteIf removes the state only if the stored tag still matches expected.
// Used at finalization so a replayed final message finds nothing to do.
func (r *Repository) DeleteIf(ctx context.Context, userKey string, expected domain.StateTag) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM conversation_states
		WHERE user_key = $1 AND state_tag = $2
	`, userKey, expected)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStateConflict
	}

	return nil
}

// Delete removes the state unconditionally (reset command, staleness).
func (r *Repository) Delete(ctx context.Context, userKey string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM conversation_states WHERE user_key = $1
	`, userKey)
	return err
}
