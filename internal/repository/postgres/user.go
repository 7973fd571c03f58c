package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/huddlehq/huddle/internal/models"
	"github.com/huddlehq/huddle/internal/repository"
)

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id, username, display_name, password_hash, COALESCE(avatar_url, ''), status, role, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.DisplayName,
		&u.PasswordHash,
		&u.AvatarURL,
		&u.Status,
		&u.Role,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) Create(ctx context.Context, username, displayName, passwordHash string) (*models.User, error) {
	query := `
		INSERT INTO users (username, display_name, password_hash, status, role, created_at)
		VALUES ($1, $2, $3, 'offline', 'member', now())
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, query, username, displayName, passwordHash))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", repository.TranslateError(err))
	}
	return u, nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get user: %w", repository.TranslateError(err))
	}
	return u, nil
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, username))
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", repository.TranslateError(err))
	}
	return u, nil
}

func (s *UserStore) List(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY display_name ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

func (s *UserStore) UpdateProfile(ctx context.Context, id int64, displayName, avatarURL, status string) (*models.User, error) {
	query := `
		UPDATE users
		SET display_name = $2, avatar_url = NULLIF($3, ''), status = $4
		WHERE id = $1
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, query, id, displayName, avatarURL, status))
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", repository.TranslateError(err))
	}
	return u, nil
}

func (s *UserStore) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE users SET status = $2 WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, id, status); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}
