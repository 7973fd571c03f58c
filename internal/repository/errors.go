package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors every store translates driver failures into, so handlers
// can map them to status codes without importing pgx.
var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a unique constraint rejected the write: duplicate
	// channel name, duplicate membership, or a reaction insert losing a race.
	ErrConflict = errors.New("already exists")

	// ErrEmptyMessage rejects a message with neither text content nor an
	// attached file.
	ErrEmptyMessage = errors.New("message requires content or a file")
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// TranslateError maps pgx-level errors onto the sentinels above. A foreign
// key violation becomes ErrNotFound: the only FK targets on these inserts are
// the channel/user rows the write names, so a 23503 means the target does not
// exist. Unknown errors pass through unchanged so the %w chain stays intact.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return ErrConflict
		case foreignKeyViolation:
			return ErrNotFound
		}
	}
	return err
}
