package realtime

import (
	"fmt"
	"strconv"
	"strings"
)

// RoomKind discriminates the two broadcast group shapes.
type RoomKind int

const (
	RoomChannel RoomKind = iota
	RoomDirect
)

// Room is a broadcast group: a channel, or a direct-message pair. The value
// carries its canonical key, so two Rooms built from the same participants
// compare equal no matter who built them.
type Room struct {
	kind RoomKind
	key  string

	channelID    int64
	userA, userB int64
}

// ChannelRoom is the room for a channel's messages and typing events.
func ChannelRoom(channelID int64) Room {
	return Room{
		kind:      RoomChannel,
		key:       "channel:" + strconv.FormatInt(channelID, 10),
		channelID: channelID,
	}
}

// DirectRoom is the room shared by a DM pair. The ids are sorted before the
// key is built, so DirectRoom(3, 7) and DirectRoom(7, 3) are the same room.
func DirectRoom(a, b int64) Room {
	if a > b {
		a, b = b, a
	}
	return Room{
		kind:  RoomDirect,
		key:   fmt.Sprintf("dm:%d-%d", a, b),
		userA: a,
		userB: b,
	}
}

// ParseRoom validates a client-supplied room key and rebuilds the canonical
// Room. Malformed keys and non-canonical DM keys (unsorted pair) are
// rejected rather than silently fixed, so a buggy client fails loudly.
func ParseRoom(key string) (Room, error) {
	switch {
	case strings.HasPrefix(key, "channel:"):
		id, err := strconv.ParseInt(strings.TrimPrefix(key, "channel:"), 10, 64)
		if err != nil || id <= 0 {
			return Room{}, fmt.Errorf("invalid channel room key %q", key)
		}
		return ChannelRoom(id), nil

	case strings.HasPrefix(key, "dm:"):
		pair := strings.TrimPrefix(key, "dm:")
		sep := strings.IndexByte(pair, '-')
		if sep < 0 {
			return Room{}, fmt.Errorf("invalid dm room key %q", key)
		}
		a, errA := strconv.ParseInt(pair[:sep], 10, 64)
		b, errB := strconv.ParseInt(pair[sep+1:], 10, 64)
		if errA != nil || errB != nil || a <= 0 || b <= 0 || a >= b {
			return Room{}, fmt.Errorf("invalid dm room key %q", key)
		}
		return DirectRoom(a, b), nil

	default:
		return Room{}, fmt.Errorf("unknown room key %q", key)
	}
}

// Key returns the canonical wire identifier for the room.
func (r Room) Key() string { return r.key }

// Kind reports whether the room is a channel or a DM pair.
func (r Room) Kind() RoomKind { return r.kind }

// ChannelID returns the channel id for channel rooms, 0 otherwise.
func (r Room) ChannelID() int64 { return r.channelID }

// Participants returns the sorted DM pair for direct rooms, (0, 0) otherwise.
func (r Room) Participants() (int64, int64) { return r.userA, r.userB }

// HasParticipant reports whether a user belongs to a direct room. Channel
// rooms answer false; membership there is the store's concern.
func (r Room) HasParticipant(userID int64) bool {
	return r.kind == RoomDirect && (r.userA == userID || r.userB == userID)
}

func (r Room) String() string { return r.key }
