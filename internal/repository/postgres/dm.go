package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/huddlehq/huddle/internal/models"
	"github.com/huddlehq/huddle/internal/repository"
)

type DirectMessageStore struct {
	pool *pgxpool.Pool
}

func NewDirectMessageStore(pool *pgxpool.Pool) *DirectMessageStore {
	return &DirectMessageStore{pool: pool}
}

const dmColumns = `
	d.id, d.sender_id, d.recipient_id, d.content, COALESCE(d.file_url, ''), d.is_read, d.created_at,
	u.id, u.username, u.display_name, COALESCE(u.avatar_url, ''), u.status`

func scanDM(row interface{ Scan(...any) error }) (*models.DirectMessage, error) {
	var d models.DirectMessage
	err := row.Scan(
		&d.ID,
		&d.SenderID,
		&d.RecipientID,
		&d.Content,
		&d.FileURL,
		&d.IsRead,
		&d.CreatedAt,
		&d.Sender.ID,
		&d.Sender.Username,
		&d.Sender.DisplayName,
		&d.Sender.AvatarURL,
		&d.Sender.Status,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DirectMessageStore) Create(ctx context.Context, senderID, recipientID int64, content, fileURL string) (*models.DirectMessage, error) {
	if content == "" && fileURL == "" {
		return nil, repository.ErrEmptyMessage
	}

	query := `
		WITH inserted AS (
			INSERT INTO direct_messages (sender_id, recipient_id, content, file_url, is_read, created_at)
			VALUES ($1, $2, $3, NULLIF($4, ''), false, now())
			RETURNING id, sender_id, recipient_id, content, file_url, is_read, created_at
		)
		SELECT ` + dmColumns + `
		FROM inserted d
		JOIN users u ON u.id = d.sender_id`

	dm, err := scanDM(s.pool.QueryRow(ctx, query, senderID, recipientID, content, fileURL))
	if err != nil {
		return nil, fmt.Errorf("insert direct message: %w", repository.TranslateError(err))
	}
	return dm, nil
}

func (s *DirectMessageStore) ListBetween(ctx context.Context, userID, otherID, before int64, limit int) ([]models.DirectMessage, error) {
	// Same cursor contract as channel messages: newest page below the
	// cursor, returned in ascending id order. The pair is unordered — both
	// directions of the conversation are one history.
	var query string
	var args []any

	if before > 0 {
		query = `
			SELECT ` + dmColumns + `
			FROM direct_messages d
			JOIN users u ON u.id = d.sender_id
			WHERE ((d.sender_id = $1 AND d.recipient_id = $2)
			    OR (d.sender_id = $2 AND d.recipient_id = $1))
			  AND d.id < $3
			ORDER BY d.id DESC
			LIMIT $4`
		args = []any{userID, otherID, before, limit}
	} else {
		query = `
			SELECT ` + dmColumns + `
			FROM direct_messages d
			JOIN users u ON u.id = d.sender_id
			WHERE (d.sender_id = $1 AND d.recipient_id = $2)
			   OR (d.sender_id = $2 AND d.recipient_id = $1)
			ORDER BY d.id DESC
			LIMIT $3`
		args = []any{userID, otherID, limit}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list direct messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.DirectMessage, 0)
	for rows.Next() {
		dm, err := scanDM(rows)
		if err != nil {
			return nil, fmt.Errorf("scan direct message: %w", err)
		}
		messages = append(messages, *dm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate direct messages: %w", err)
	}

	reverse(messages)
	return messages, nil
}

func (s *DirectMessageStore) MarkRead(ctx context.Context, recipientID, senderID int64) error {
	query := `
		UPDATE direct_messages
		SET is_read = true
		WHERE sender_id = $2 AND recipient_id = $1 AND is_read = false`

	if _, err := s.pool.Exec(ctx, query, recipientID, senderID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

func (s *DirectMessageStore) Conversations(ctx context.Context, userID int64) ([]models.Conversation, error) {
	// One row per peer: the latest message either way plus the count of the
	// peer's unread messages. DISTINCT ON keeps only the newest row per peer.
	query := `
		SELECT DISTINCT ON (peer_id) ` + dmColumns + `,
		       CASE WHEN d.sender_id = $1 THEN d.recipient_id ELSE d.sender_id END AS peer_id,
		       p.id, p.username, p.display_name, COALESCE(p.avatar_url, ''), p.status,
		       (SELECT COUNT(*) FROM direct_messages x
		        WHERE x.sender_id = CASE WHEN d.sender_id = $1 THEN d.recipient_id ELSE d.sender_id END
		          AND x.recipient_id = $1 AND x.is_read = false)
		FROM direct_messages d
		JOIN users u ON u.id = d.sender_id
		JOIN users p ON p.id = CASE WHEN d.sender_id = $1 THEN d.recipient_id ELSE d.sender_id END
		WHERE d.sender_id = $1 OR d.recipient_id = $1
		ORDER BY peer_id, d.id DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		var (
			last   models.DirectMessage
			peerID int64
			conv   models.Conversation
		)
		if err := rows.Scan(
			&last.ID,
			&last.SenderID,
			&last.RecipientID,
			&last.Content,
			&last.FileURL,
			&last.IsRead,
			&last.CreatedAt,
			&last.Sender.ID,
			&last.Sender.Username,
			&last.Sender.DisplayName,
			&last.Sender.AvatarURL,
			&last.Sender.Status,
			&peerID,
			&conv.User.ID,
			&conv.User.Username,
			&conv.User.DisplayName,
			&conv.User.AvatarURL,
			&conv.User.Status,
			&conv.UnreadCount,
		); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conv.LastMessage = &last
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	// Most recently active conversation first.
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastMessage.ID > conversations[j].LastMessage.ID
	})
	return conversations, nil
}
