package repository

import (
	"context"

	"github.com/huddlehq/huddle/internal/models"
)

// UserRepository handles workspace members.
type UserRepository interface {
	// Create inserts a new user. Returns ErrConflict on a taken username.
	Create(ctx context.Context, username, displayName, passwordHash string) (*models.User, error)

	// GetByID returns a user. Returns ErrNotFound when absent.
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// GetByUsername returns a user by handle. Returns ErrNotFound when absent.
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// List returns the whole directory, ordered by display name.
	List(ctx context.Context) ([]models.User, error)

	// UpdateProfile updates the mutable profile fields and returns the
	// updated row.
	UpdateProfile(ctx context.Context, id int64, displayName, avatarURL, status string) (*models.User, error)

	// UpdateStatus records a presence transition (online/offline).
	UpdateStatus(ctx context.Context, id int64, status string) error
}

// ChannelRepository handles channels. Names are expected pre-normalized.
type ChannelRepository interface {
	// Create inserts a channel. Returns ErrConflict when the normalized
	// name is taken.
	Create(ctx context.Context, name, description string, isPrivate bool, createdBy int64) (*models.Channel, error)

	// GetByID returns a channel. Returns ErrNotFound when absent.
	GetByID(ctx context.Context, id int64) (*models.Channel, error)

	// List returns all channels with member and message counts, oldest first.
	List(ctx context.Context) ([]models.ChannelSummary, error)
}

// MembershipRepository handles who belongs to which channel.
type MembershipRepository interface {
	// Add joins a user to a channel. Returns ErrConflict when already a member.
	Add(ctx context.Context, channelID, userID int64) error

	// Remove leaves a channel. No-op if not a member.
	Remove(ctx context.Context, channelID, userID int64) error

	// ListMembers returns the members of a channel.
	ListMembers(ctx context.Context, channelID int64) ([]models.UserSummary, error)

	// IsMember checks membership. Hot path before sends and subscribes.
	IsMember(ctx context.Context, channelID, userID int64) (bool, error)
}

// MessageRepository handles channel message persistence and search.
type MessageRepository interface {
	// Create persists a message and returns it with the id, timestamp and
	// denormalized sender populated. Returns ErrEmptyMessage when both
	// content and fileURL are empty.
	Create(ctx context.Context, channelID, senderID int64, content, fileURL string) (*models.Message, error)

	// GetByID returns a single message. Returns ErrNotFound when absent.
	GetByID(ctx context.Context, id int64) (*models.Message, error)

	// ListByChannel returns at most limit messages in ascending id order.
	// before > 0 restricts to ids strictly below it; before == 0 means the
	// most recent page.
	ListByChannel(ctx context.Context, channelID, before int64, limit int) ([]models.Message, error)

	// Search returns recent messages whose content matches the query,
	// optionally restricted to one channel, newest first.
	Search(ctx context.Context, query string, channelID int64, limit int) ([]models.Message, error)
}

// DirectMessageRepository handles one-to-one messages.
type DirectMessageRepository interface {
	// Create persists a DM. Same content rule as channel messages.
	Create(ctx context.Context, senderID, recipientID int64, content, fileURL string) (*models.DirectMessage, error)

	// ListBetween returns the conversation page between two users in
	// ascending id order, same cursor contract as ListByChannel.
	ListBetween(ctx context.Context, userID, otherID, before int64, limit int) ([]models.DirectMessage, error)

	// MarkRead flags every unread message from senderID to recipientID as
	// read. Callers invoke it after ListBetween so the returned page shows
	// read state as of the query.
	MarkRead(ctx context.Context, recipientID, senderID int64) error

	// Conversations returns the DM sidebar for a user: distinct peers with
	// last message and unread count, most recent conversation first.
	Conversations(ctx context.Context, userID int64) ([]models.Conversation, error)
}

// ReactionRepository handles emoji reactions on channel messages.
type ReactionRepository interface {
	// Toggle flips the (messageID, userID, emoji) triple. When it created
	// the reaction it returns (reaction, true, nil); when it removed an
	// existing one it returns (nil, false, nil).
	Toggle(ctx context.Context, messageID, userID int64, emoji string) (*models.Reaction, bool, error)

	// ListByMessage returns all reactions on a message in insertion order.
	ListByMessage(ctx context.Context, messageID int64) ([]models.Reaction, error)
}
