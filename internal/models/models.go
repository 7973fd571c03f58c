package models

import "time"

// User status values. Presence transitions flip between Online and Offline;
// Away is only ever set through a profile update.
const (
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusOffline = "offline"
)

// User is a member of the workspace.
//
// PasswordHash never leaves the server: `json:"-"` keeps it out of every
// response, so handlers can return the model directly.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	Status       string    `json:"status"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserSummary is the denormalized sender block embedded in messages and
// reactions, so clients can render without a second lookup.
type UserSummary struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Status      string `json:"status"`
}

// Channel is a named room in the workspace. Name is stored in normalized
// form (see NormalizeChannelName) and is unique.
type Channel struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	IsPrivate   bool        `json:"is_private"`
	CreatedByID int64       `json:"created_by_id"`
	CreatedBy   UserSummary `json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ChannelSummary is a Channel plus the counts the channel list renders.
type ChannelSummary struct {
	Channel
	MemberCount  int `json:"member_count"`
	MessageCount int `json:"message_count"`
}

// ChannelMember is the (channel, user) join row. The pair is the primary
// key, so a user joins at most once per channel.
type ChannelMember struct {
	ChannelID int64     `json:"channel_id"`
	UserID    int64     `json:"user_id"`
	JoinedAt  time.Time `json:"joined_at"`
}

// Message is a channel message. IDs come from a bigserial sequence, so they
// are strictly increasing and double as the pagination cursor; CreatedAt is
// informational only. Messages are immutable after creation.
type Message struct {
	ID        int64       `json:"id"`
	ChannelID int64       `json:"channel_id"`
	SenderID  int64       `json:"sender_id"`
	Content   string      `json:"content"`
	FileURL   string      `json:"file_url,omitempty"`
	Sender    UserSummary `json:"sender"`
	CreatedAt time.Time   `json:"created_at"`
}

// DirectMessage is a message between two users. IsRead is mutated only by
// the recipient's read path.
type DirectMessage struct {
	ID          int64       `json:"id"`
	SenderID    int64       `json:"sender_id"`
	RecipientID int64       `json:"recipient_id"`
	Content     string      `json:"content"`
	FileURL     string      `json:"file_url,omitempty"`
	IsRead      bool        `json:"is_read"`
	Sender      UserSummary `json:"sender"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Conversation is one entry in a user's DM sidebar: the peer, the latest
// message either way, and how many of the peer's messages are unread.
type Conversation struct {
	User        UserSummary    `json:"user"`
	LastMessage *DirectMessage `json:"last_message"`
	UnreadCount int            `json:"unread_count"`
}

// Reaction is a single user's emoji on a message. The
// (message_id, user_id, emoji) triple is unique — reacting is a toggle,
// never a counter.
type Reaction struct {
	ID        int64       `json:"id"`
	MessageID int64       `json:"message_id"`
	UserID    int64       `json:"user_id"`
	Emoji     string      `json:"emoji"`
	User      UserSummary `json:"user"`
	CreatedAt time.Time   `json:"created_at"`
}

// ReactionGroup is the aggregated view of one emoji on one message.
type ReactionGroup struct {
	Emoji       string        `json:"emoji"`
	Count       int           `json:"count"`
	Users       []UserSummary `json:"users"`
	UserReacted bool          `json:"user_reacted"`
}
