package realtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testEnvelope(t *testing.T, typ EventType, room string) Envelope {
	t.Helper()
	env, err := NewEnvelope(typ, room, nil)
	require.NoError(t, err)
	return env
}

// drain pulls every queued event off a session without blocking.
func drain(s *Session) []Envelope {
	var out []Envelope
	for {
		select {
		case env, ok := <-s.Events():
			if !ok {
				return out
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestRegisterRefCountsPresence(t *testing.T) {
	h := NewHub(zap.NewNop())

	first := NewSession(1, "controller")
	second := NewSession(1, "controller")

	// Two connections for the same user: online only once.
	assert.True(t, h.Register(first))
	assert.False(t, h.Register(second))

	// Closing one of two does not take the user offline.
	assert.False(t, h.Unregister(first))
	assert.Equal(t, []int64{1}, h.OnlineUserIDs())

	// Closing the last one does, exactly once.
	assert.True(t, h.Unregister(second))
	assert.Empty(t, h.OnlineUserIDs())

	// Reaping an already-gone session is a no-op, not a second offline.
	assert.False(t, h.Unregister(second))
}

func TestJoinLeaveIdempotent(t *testing.T) {
	h := NewHub(zap.NewNop())
	s := NewSession(1, "controller")
	h.Register(s)
	room := ChannelRoom(5)

	h.Join(s, room)
	h.Join(s, room)
	assert.Equal(t, 1, h.RoomSize(room))

	h.Leave(s, room)
	h.Leave(s, room)
	assert.Equal(t, 0, h.RoomSize(room))
}

func TestJoinRequiresRegistration(t *testing.T) {
	h := NewHub(zap.NewNop())
	s := NewSession(1, "controller")

	h.Join(s, ChannelRoom(5))
	assert.Equal(t, 0, h.RoomSize(ChannelRoom(5)))
}

func TestPublishExcludesSender(t *testing.T) {
	h := NewHub(zap.NewNop())
	room := ChannelRoom(5)

	u1 := NewSession(1, "u1")
	u2 := NewSession(2, "u2")
	h.Register(u1)
	h.Register(u2)
	h.Join(u1, room)
	h.Join(u2, room)

	env := testEnvelope(t, EventNewMessage, room.Key())
	delivered := h.Publish(room, env, u1.ID)

	assert.Equal(t, 1, delivered)
	assert.Empty(t, drain(u1), "sender must not receive its own write's fan-out")

	got := drain(u2)
	require.Len(t, got, 1)
	assert.Equal(t, EventNewMessage, got[0].Type)
	assert.Equal(t, "channel:5", got[0].RoomKey)
}

func TestPublishOnlyReachesRoomMembers(t *testing.T) {
	h := NewHub(zap.NewNop())

	inRoom := NewSession(1, "u1")
	elsewhere := NewSession(2, "u2")
	h.Register(inRoom)
	h.Register(elsewhere)
	h.Join(inRoom, ChannelRoom(5))
	h.Join(elsewhere, ChannelRoom(6))

	h.Publish(ChannelRoom(5), testEnvelope(t, EventNewMessage, "channel:5"), uuid.Nil)

	assert.Len(t, drain(inRoom), 1)
	assert.Empty(t, drain(elsewhere))
}

func TestPublishAfterLeaveDeliversNothing(t *testing.T) {
	h := NewHub(zap.NewNop())
	room := ChannelRoom(5)
	s := NewSession(1, "u1")
	h.Register(s)
	h.Join(s, room)
	h.Leave(s, room)

	delivered := h.Publish(room, testEnvelope(t, EventNewMessage, room.Key()), uuid.Nil)
	assert.Equal(t, 0, delivered)
}

func TestUnregisterLeavesAllRooms(t *testing.T) {
	h := NewHub(zap.NewNop())
	s := NewSession(1, "u1")
	h.Register(s)
	h.Join(s, ChannelRoom(5))
	h.Join(s, DirectRoom(1, 2))

	h.Unregister(s)

	assert.Equal(t, 0, h.RoomSize(ChannelRoom(5)))
	assert.Equal(t, 0, h.RoomSize(DirectRoom(1, 2)))
}

func TestUnregisterClosesEventStream(t *testing.T) {
	h := NewHub(zap.NewNop())
	s := NewSession(1, "u1")
	h.Register(s)
	h.Unregister(s)

	_, ok := <-s.Events()
	assert.False(t, ok, "stream must be closed on unregister")
}

func TestPerSessionDeliveryOrder(t *testing.T) {
	h := NewHub(zap.NewNop())
	room := ChannelRoom(5)
	sender := NewSession(1, "u1")
	receiver := NewSession(2, "u2")
	h.Register(sender)
	h.Register(receiver)
	h.Join(receiver, room)

	for _, typ := range []EventType{EventNewMessage, EventUserTyping, EventUserStoppedTyping} {
		h.Publish(room, testEnvelope(t, typ, room.Key()), sender.ID)
	}

	got := drain(receiver)
	require.Len(t, got, 3)
	assert.Equal(t, EventNewMessage, got[0].Type)
	assert.Equal(t, EventUserTyping, got[1].Type)
	assert.Equal(t, EventUserStoppedTyping, got[2].Type)
}

func TestSlowSessionDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub(zap.NewNop())
	room := ChannelRoom(5)
	s := NewSession(1, "u1")
	h.Register(s)
	h.Join(s, room)

	env := testEnvelope(t, EventNewMessage, room.Key())
	for i := 0; i < sendBuffer; i++ {
		assert.Equal(t, 1, h.Publish(room, env, uuid.Nil))
	}
	// Buffer full: delivery is best-effort, the publish must not block.
	assert.Equal(t, 0, h.Publish(room, env, uuid.Nil))
}

func TestPublishExcludingUserSkipsEveryTab(t *testing.T) {
	h := NewHub(zap.NewNop())
	room := ChannelRoom(5)

	// The typist has two tabs in the room; neither gets the expiry stop.
	typistA := NewSession(1, "typist")
	typistB := NewSession(1, "typist")
	other := NewSession(2, "other")
	for _, s := range []*Session{typistA, typistB, other} {
		h.Register(s)
		h.Join(s, room)
	}

	delivered := h.PublishExcludingUser(room, testEnvelope(t, EventUserStoppedTyping, room.Key()), 1)

	assert.Equal(t, 1, delivered)
	assert.Empty(t, drain(typistA))
	assert.Empty(t, drain(typistB))
	assert.Len(t, drain(other), 1)
}

func TestBroadcastReachesEveryoneExceptExcluded(t *testing.T) {
	h := NewHub(zap.NewNop())
	a := NewSession(1, "a")
	b := NewSession(2, "b")
	c := NewSession(3, "c")
	for _, s := range []*Session{a, b, c} {
		h.Register(s)
	}

	h.Broadcast(testEnvelope(t, EventPresenceOnline, ""), a.ID)

	assert.Empty(t, drain(a))
	assert.Len(t, drain(b), 1)
	assert.Len(t, drain(c), 1)
}
