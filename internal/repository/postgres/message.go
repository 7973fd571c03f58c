package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/huddlehq/huddle/internal/models"
	"github.com/huddlehq/huddle/internal/repository"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

const messageColumns = `
	m.id, m.channel_id, m.sender_id, m.content, COALESCE(m.file_url, ''), m.created_at,
	u.id, u.username, u.display_name, COALESCE(u.avatar_url, ''), u.status`

func scanMessage(row interface{ Scan(...any) error }) (*models.Message, error) {
	var m models.Message
	err := row.Scan(
		&m.ID,
		&m.ChannelID,
		&m.SenderID,
		&m.Content,
		&m.FileURL,
		&m.CreatedAt,
		&m.Sender.ID,
		&m.Sender.Username,
		&m.Sender.DisplayName,
		&m.Sender.AvatarURL,
		&m.Sender.Status,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MessageStore) Create(ctx context.Context, channelID, senderID int64, content, fileURL string) (*models.Message, error) {
	if content == "" && fileURL == "" {
		return nil, repository.ErrEmptyMessage
	}

	// The bigserial id assigned here is the message's position in the
	// channel's history; the sender join denormalizes the summary the
	// clients render.
	query := `
		WITH inserted AS (
			INSERT INTO messages (channel_id, sender_id, content, file_url, created_at)
			VALUES ($1, $2, $3, NULLIF($4, ''), now())
			RETURNING id, channel_id, sender_id, content, file_url, created_at
		)
		SELECT ` + messageColumns + `
		FROM inserted m
		JOIN users u ON u.id = m.sender_id`

	msg, err := scanMessage(s.pool.QueryRow(ctx, query, channelID, senderID, content, fileURL))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", repository.TranslateError(err))
	}
	return msg, nil
}

func (s *MessageStore) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.id = $1`

	msg, err := scanMessage(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get message: %w", repository.TranslateError(err))
	}
	return msg, nil
}

func (s *MessageStore) ListByChannel(ctx context.Context, channelID, before int64, limit int) ([]models.Message, error) {
	// Cursor pagination on the id order: fetch the newest `limit` rows below
	// the cursor, then reverse so the page reads oldest-to-newest. Paging
	// with before = the smallest id of the previous page walks history with
	// no overlap and no gap.
	var query string
	var args []any

	if before > 0 {
		query = `
			SELECT ` + messageColumns + `
			FROM messages m
			JOIN users u ON u.id = m.sender_id
			WHERE m.channel_id = $1 AND m.id < $2
			ORDER BY m.id DESC
			LIMIT $3`
		args = []any{channelID, before, limit}
	} else {
		query = `
			SELECT ` + messageColumns + `
			FROM messages m
			JOIN users u ON u.id = m.sender_id
			WHERE m.channel_id = $1
			ORDER BY m.id DESC
			LIMIT $2`
		args = []any{channelID, limit}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	reverse(messages)
	return messages, nil
}

func (s *MessageStore) Search(ctx context.Context, searchQuery string, channelID int64, limit int) ([]models.Message, error) {
	var query string
	var args []any

	pattern := "%" + searchQuery + "%"
	if channelID > 0 {
		query = `
			SELECT ` + messageColumns + `
			FROM messages m
			JOIN users u ON u.id = m.sender_id
			WHERE m.content ILIKE $1 AND m.channel_id = $2
			ORDER BY m.id DESC
			LIMIT $3`
		args = []any{pattern, channelID, limit}
	} else {
		query = `
			SELECT ` + messageColumns + `
			FROM messages m
			JOIN users u ON u.id = m.sender_id
			WHERE m.content ILIKE $1
			ORDER BY m.id DESC
			LIMIT $2`
		args = []any{pattern, limit}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
