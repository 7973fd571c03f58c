package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/huddlehq/huddle/internal/models"
	"github.com/huddlehq/huddle/internal/repository"
)

type MembershipStore struct {
	pool *pgxpool.Pool
}

func NewMembershipStore(pool *pgxpool.Pool) *MembershipStore {
	return &MembershipStore{pool: pool}
}

func (s *MembershipStore) Add(ctx context.Context, channelID, userID int64) error {
	// A duplicate (channel_id, user_id) hits the primary key and comes back
	// as ErrConflict; the join endpoint reports it as a 409.
	query := `
		INSERT INTO channel_members (channel_id, user_id, joined_at)
		VALUES ($1, $2, now())`

	if _, err := s.pool.Exec(ctx, query, channelID, userID); err != nil {
		return fmt.Errorf("add member: %w", repository.TranslateError(err))
	}
	return nil
}

func (s *MembershipStore) Remove(ctx context.Context, channelID, userID int64) error {
	// DELETE of a missing row removes nothing and returns no error, so
	// leaving twice is harmless.
	query := `
		DELETE FROM channel_members
		WHERE channel_id = $1 AND user_id = $2`

	if _, err := s.pool.Exec(ctx, query, channelID, userID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

func (s *MembershipStore) ListMembers(ctx context.Context, channelID int64) ([]models.UserSummary, error) {
	query := `
		SELECT u.id, u.username, u.display_name, COALESCE(u.avatar_url, ''), u.status
		FROM channel_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.channel_id = $1
		ORDER BY m.joined_at ASC`

	rows, err := s.pool.Query(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := make([]models.UserSummary, 0)
	for rows.Next() {
		var m models.UserSummary
		if err := rows.Scan(&m.ID, &m.Username, &m.DisplayName, &m.AvatarURL, &m.Status); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}

	return members, nil
}

func (s *MembershipStore) IsMember(ctx context.Context, channelID, userID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM channel_members
			WHERE channel_id = $1 AND user_id = $2
		)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, channelID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}
