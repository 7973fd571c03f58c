package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/huddlehq/huddle/internal/models"
	"github.com/huddlehq/huddle/internal/repository"
)

type ChannelStore struct {
	pool *pgxpool.Pool
}

func NewChannelStore(pool *pgxpool.Pool) *ChannelStore {
	return &ChannelStore{pool: pool}
}

func (s *ChannelStore) Create(ctx context.Context, name, description string, isPrivate bool, createdBy int64) (*models.Channel, error) {
	// The unique index on channels.name holds the duplicate-name invariant;
	// a violation surfaces as repository.ErrConflict.
	query := `
		INSERT INTO channels (name, description, is_private, created_by, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, now())
		RETURNING id, name, COALESCE(description, ''), is_private, created_by, created_at`

	var ch models.Channel
	err := s.pool.QueryRow(ctx, query, name, description, isPrivate, createdBy).Scan(
		&ch.ID,
		&ch.Name,
		&ch.Description,
		&ch.IsPrivate,
		&ch.CreatedByID,
		&ch.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert channel: %w", repository.TranslateError(err))
	}
	return &ch, nil
}

func (s *ChannelStore) GetByID(ctx context.Context, id int64) (*models.Channel, error) {
	query := `
		SELECT c.id, c.name, COALESCE(c.description, ''), c.is_private, c.created_by, c.created_at,
		       u.id, u.username, u.display_name, COALESCE(u.avatar_url, ''), u.status
		FROM channels c
		JOIN users u ON u.id = c.created_by
		WHERE c.id = $1`

	var ch models.Channel
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&ch.ID,
		&ch.Name,
		&ch.Description,
		&ch.IsPrivate,
		&ch.CreatedByID,
		&ch.CreatedAt,
		&ch.CreatedBy.ID,
		&ch.CreatedBy.Username,
		&ch.CreatedBy.DisplayName,
		&ch.CreatedBy.AvatarURL,
		&ch.CreatedBy.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", repository.TranslateError(err))
	}
	return &ch, nil
}

func (s *ChannelStore) List(ctx context.Context) ([]models.ChannelSummary, error) {
	query := `
		SELECT c.id, c.name, COALESCE(c.description, ''), c.is_private, c.created_by, c.created_at,
		       u.id, u.username, u.display_name, COALESCE(u.avatar_url, ''), u.status,
		       (SELECT COUNT(*) FROM channel_members m WHERE m.channel_id = c.id),
		       (SELECT COUNT(*) FROM messages msg WHERE msg.channel_id = c.id)
		FROM channels c
		JOIN users u ON u.id = c.created_by
		ORDER BY c.created_at ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	channels := make([]models.ChannelSummary, 0)
	for rows.Next() {
		var ch models.ChannelSummary
		if err := rows.Scan(
			&ch.ID,
			&ch.Name,
			&ch.Description,
			&ch.IsPrivate,
			&ch.CreatedByID,
			&ch.CreatedAt,
			&ch.CreatedBy.ID,
			&ch.CreatedBy.Username,
			&ch.CreatedBy.DisplayName,
			&ch.CreatedBy.AvatarURL,
			&ch.CreatedBy.Status,
			&ch.MemberCount,
			&ch.MessageCount,
		); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}

	return channels, nil
}
