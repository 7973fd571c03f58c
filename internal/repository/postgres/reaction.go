package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/huddlehq/huddle/internal/models"
	"github.com/huddlehq/huddle/internal/repository"
)

type ReactionStore struct {
	pool *pgxpool.Pool
}

func NewReactionStore(pool *pgxpool.Pool) *ReactionStore {
	return &ReactionStore{pool: pool}
}

func (s *ReactionStore) Toggle(ctx context.Context, messageID, userID int64, emoji string) (*models.Reaction, bool, error) {
	// Delete-then-insert inside one transaction: if the triple exists the
	// DELETE removes it and we are done; otherwise the INSERT creates it.
	// Two toggles racing past the DELETE collide on the unique index and
	// the loser surfaces ErrConflict rather than double-inserting.
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin toggle: %w", err)
	}
	defer tx.Rollback(ctx)

	var deleted int64
	err = tx.QueryRow(ctx, `
		DELETE FROM reactions
		WHERE message_id = $1 AND user_id = $2 AND emoji = $3
		RETURNING id`, messageID, userID, emoji).Scan(&deleted)
	if err == nil {
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("commit toggle: %w", err)
		}
		return nil, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("delete reaction: %w", err)
	}

	query := `
		WITH inserted AS (
			INSERT INTO reactions (message_id, user_id, emoji, created_at)
			VALUES ($1, $2, $3, now())
			RETURNING id, message_id, user_id, emoji, created_at
		)
		SELECT r.id, r.message_id, r.user_id, r.emoji, r.created_at,
		       u.id, u.username, u.display_name, COALESCE(u.avatar_url, ''), u.status
		FROM inserted r
		JOIN users u ON u.id = r.user_id`

	var r models.Reaction
	err = tx.QueryRow(ctx, query, messageID, userID, emoji).Scan(
		&r.ID,
		&r.MessageID,
		&r.UserID,
		&r.Emoji,
		&r.CreatedAt,
		&r.User.ID,
		&r.User.Username,
		&r.User.DisplayName,
		&r.User.AvatarURL,
		&r.User.Status,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert reaction: %w", repository.TranslateError(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit toggle: %w", err)
	}
	return &r, true, nil
}

func (s *ReactionStore) ListByMessage(ctx context.Context, messageID int64) ([]models.Reaction, error) {
	// Insertion order (id ASC) so grouped output keeps first-encountered
	// emoji order.
	query := `
		SELECT r.id, r.message_id, r.user_id, r.emoji, r.created_at,
		       u.id, u.username, u.display_name, COALESCE(u.avatar_url, ''), u.status
		FROM reactions r
		JOIN users u ON u.id = r.user_id
		WHERE r.message_id = $1
		ORDER BY r.id ASC`

	rows, err := s.pool.Query(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	defer rows.Close()

	reactions := make([]models.Reaction, 0)
	for rows.Next() {
		var r models.Reaction
		if err := rows.Scan(
			&r.ID,
			&r.MessageID,
			&r.UserID,
			&r.Emoji,
			&r.CreatedAt,
			&r.User.ID,
			&r.User.Username,
			&r.User.DisplayName,
			&r.User.AvatarURL,
			&r.User.Status,
		); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		reactions = append(reactions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reactions: %w", err)
	}

	return reactions, nil
}
