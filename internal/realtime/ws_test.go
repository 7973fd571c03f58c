package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/huddlehq/huddle/internal/auth"
	"github.com/huddlehq/huddle/internal/models"
	"github.com/huddlehq/huddle/internal/repository"
)

const testSecret = "ws-test-secret"

// fakeUsers records presence transitions.
type fakeUsers struct {
	mu       sync.Mutex
	statuses map[int64][]string
}

func (f *fakeUsers) Create(ctx context.Context, username, displayName, passwordHash string) (*models.User, error) {
	return nil, nil
}
func (f *fakeUsers) GetByID(ctx context.Context, id int64) (*models.User, error)     { return nil, nil }
func (f *fakeUsers) GetByUsername(ctx context.Context, u string) (*models.User, error) { return nil, nil }
func (f *fakeUsers) List(ctx context.Context) ([]models.User, error)                 { return nil, nil }
func (f *fakeUsers) UpdateProfile(ctx context.Context, id int64, d, a, s string) (*models.User, error) {
	return nil, nil
}
func (f *fakeUsers) UpdateStatus(ctx context.Context, id int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statuses == nil {
		f.statuses = make(map[int64][]string)
	}
	f.statuses[id] = append(f.statuses[id], status)
	return nil
}

// fakeMemberships treats everyone as a member unless a channel is locked.
type fakeMemberships struct {
	mu     sync.Mutex
	locked map[int64]bool
}

func (f *fakeMemberships) lock(channelID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locked == nil {
		f.locked = make(map[int64]bool)
	}
	f.locked[channelID] = true
}

func (f *fakeMemberships) Add(ctx context.Context, channelID, userID int64) error    { return nil }
func (f *fakeMemberships) Remove(ctx context.Context, channelID, userID int64) error { return nil }
func (f *fakeMemberships) ListMembers(ctx context.Context, channelID int64) ([]models.UserSummary, error) {
	return nil, nil
}
func (f *fakeMemberships) IsMember(ctx context.Context, channelID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.locked[channelID], nil
}

// fakeMessages assigns incrementing ids starting at 101; createErr, when set,
// fails every write with it.
type fakeMessages struct {
	mu        sync.Mutex
	nextID    int64
	createErr error
}

func (f *fakeMessages) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr = err
}

func (f *fakeMessages) Create(ctx context.Context, channelID, senderID int64, content, fileURL string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.nextID == 0 {
		f.nextID = 101
	}
	id := f.nextID
	f.nextID++
	return &models.Message{
		ID:        id,
		ChannelID: channelID,
		SenderID:  senderID,
		Content:   content,
		FileURL:   fileURL,
		Sender:    models.UserSummary{ID: senderID},
		CreatedAt: time.Now(),
	}, nil
}
func (f *fakeMessages) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	return nil, nil
}
func (f *fakeMessages) ListByChannel(ctx context.Context, c, b int64, l int) ([]models.Message, error) {
	return nil, nil
}
func (f *fakeMessages) Search(ctx context.Context, q string, c int64, l int) ([]models.Message, error) {
	return nil, nil
}

type fakeDMs struct{}

func (fakeDMs) Create(ctx context.Context, s, r int64, c, f string) (*models.DirectMessage, error) {
	return &models.DirectMessage{ID: 1, SenderID: s, RecipientID: r, Content: c}, nil
}
func (fakeDMs) ListBetween(ctx context.Context, u, o, b int64, l int) ([]models.DirectMessage, error) {
	return nil, nil
}
func (fakeDMs) MarkRead(ctx context.Context, r, s int64) error { return nil }
func (fakeDMs) Conversations(ctx context.Context, u int64) ([]models.Conversation, error) {
	return nil, nil
}

type wsFixture struct {
	hub         *Hub
	tracker     *TypingTracker
	users       *fakeUsers
	memberships *fakeMemberships
	messages    *fakeMessages
	server      *httptest.Server
}

func newWSFixture(t *testing.T, typingTTL time.Duration) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(zap.NewNop())
	tracker := NewTypingTracker(typingTTL, func(room Room, userID int64) {
		env, err := NewEnvelope(EventUserStoppedTyping, room.Key(), TypingPayload{UserID: userID})
		if err != nil {
			return
		}
		hub.PublishExcludingUser(room, env, userID)
	})
	t.Cleanup(tracker.Close)

	users := &fakeUsers{}
	memberships := &fakeMemberships{}
	messages := &fakeMessages{}
	handler := NewHandler(hub, tracker, users, memberships, messages, fakeDMs{}, nil, testSecret, zap.NewNop())

	engine := gin.New()
	engine.GET("/ws", handler.Serve)
	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)

	return &wsFixture{
		hub:         hub,
		tracker:     tracker,
		users:       users,
		memberships: memberships,
		messages:    messages,
		server:      server,
	}
}

func (f *wsFixture) dial(t *testing.T, userID int64, username string) *websocket.Conn {
	t.Helper()
	token, err := auth.GenerateToken(userID, username, testSecret, time.Hour)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ EventType, roomKey string, payload any) {
	t.Helper()
	env, err := NewEnvelope(typ, roomKey, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(env))
}

// readUntil reads envelopes, skipping unrelated ones, until the wanted type
// arrives or the deadline passes.
func readUntil(t *testing.T, conn *websocket.Conn, want EventType, timeout time.Duration) Envelope {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var env Envelope
		require.NoError(t, conn.ReadJSON(&env), "waiting for %s", want)
		if env.Type == want {
			return env
		}
	}
}

// readPresence waits for a presence transition about a specific user; other
// users' transitions (watcher's own included) are skipped.
func readPresence(t *testing.T, conn *websocket.Conn, want EventType, userID int64) PresencePayload {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var env Envelope
		require.NoError(t, conn.ReadJSON(&env), "waiting for %s about user %d", want, userID)
		if env.Type != want {
			continue
		}
		var p PresencePayload
		require.NoError(t, env.Decode(&p))
		if p.UserID == userID {
			return p
		}
	}
}

func identify(t *testing.T, f *wsFixture, conn *websocket.Conn, userID int64) {
	t.Helper()
	before := f.hub.SessionCount(userID)
	send(t, conn, EventIdentify, "", IdentifyPayload{UserID: userID})
	require.Eventually(t, func() bool {
		return f.hub.SessionCount(userID) == before+1
	}, time.Second, 5*time.Millisecond)
}

func TestDialRejectsMissingToken(t *testing.T) {
	f := newWSFixture(t, time.Minute)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIdentifyMismatchRejected(t *testing.T) {
	f := newWSFixture(t, time.Minute)
	conn := f.dial(t, 1, "u1")

	// Claim to be someone else than the token says.
	send(t, conn, EventIdentify, "", IdentifyPayload{UserID: 99})

	env := readUntil(t, conn, EventError, time.Second)
	var p ErrorPayload
	require.NoError(t, env.Decode(&p))
	assert.Equal(t, "identity mismatch", p.Error)
	assert.Empty(t, f.hub.OnlineUserIDs())
}

func TestEventsBeforeIdentifyRejected(t *testing.T) {
	f := newWSFixture(t, time.Minute)
	conn := f.dial(t, 1, "u1")

	send(t, conn, EventJoinRoom, "channel:5", nil)

	env := readUntil(t, conn, EventError, time.Second)
	var p ErrorPayload
	require.NoError(t, env.Decode(&p))
	assert.Equal(t, "not identified", p.Error)
	assert.Equal(t, 0, f.hub.RoomSize(ChannelRoom(5)))
}

func TestPresenceRefCountAcrossConnections(t *testing.T) {
	f := newWSFixture(t, time.Minute)

	watcher := f.dial(t, 9, "watcher")
	identify(t, f, watcher, 9)

	// Two tabs for user 1.
	tabA := f.dial(t, 1, "u1")
	identify(t, f, tabA, 1)
	p := readPresence(t, watcher, EventPresenceOnline, 1)
	assert.Equal(t, models.StatusOnline, p.Status)

	tabB := f.dial(t, 1, "u1")
	identify(t, f, tabB, 1)

	// Closing one of two tabs must not announce offline.
	tabA.Close()
	require.Never(t, func() bool {
		return f.hub.SessionCount(1) == 0
	}, 300*time.Millisecond, 20*time.Millisecond)

	// Closing the last one must.
	tabB.Close()
	p = readPresence(t, watcher, EventPresenceOffline, 1)
	assert.Equal(t, models.StatusOffline, p.Status)
}

func TestDirectRoomJoinRequiresParticipant(t *testing.T) {
	f := newWSFixture(t, time.Minute)
	conn := f.dial(t, 5, "u5")
	identify(t, f, conn, 5)

	send(t, conn, EventJoinRoom, "dm:1-2", nil)

	env := readUntil(t, conn, EventError, time.Second)
	var p ErrorPayload
	require.NoError(t, env.Decode(&p))
	assert.Equal(t, "not a participant of this room", p.Error)
	assert.Equal(t, 0, f.hub.RoomSize(DirectRoom(1, 2)))
}

// TestChannelScenario walks the whole flow: two users join a channel room,
// one writes, the other types and then drops without a stop.
func TestChannelScenario(t *testing.T) {
	f := newWSFixture(t, 500*time.Millisecond)
	room := ChannelRoom(5)

	u1 := f.dial(t, 1, "u1")
	identify(t, f, u1, 1)
	u2 := f.dial(t, 2, "u2")
	identify(t, f, u2, 2)

	send(t, u1, EventJoinRoom, room.Key(), nil)
	send(t, u2, EventJoinRoom, room.Key(), nil)
	require.Eventually(t, func() bool { return f.hub.RoomSize(room) == 2 }, time.Second, 5*time.Millisecond)

	// U1 writes "hello": committed id 101 fans out to U2; U1 gets exactly
	// its synchronous ack.
	send(t, u1, EventRoomMessage, room.Key(), RoomMessagePayload{Content: "hello"})

	var msg models.Message
	env := readUntil(t, u2, EventNewMessage, time.Second)
	require.NoError(t, env.Decode(&msg))
	assert.Equal(t, int64(101), msg.ID)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, room.Key(), env.RoomKey)

	ack := readUntil(t, u1, EventNewMessage, time.Second)
	require.NoError(t, ack.Decode(&msg))
	assert.Equal(t, int64(101), msg.ID)

	// U2 starts typing, then disconnects without a stop. U1 first sees the
	// flag with an expiry, then sees it clear within the TTL window.
	send(t, u2, EventTypingStart, room.Key(), nil)

	var typing TypingPayload
	env = readUntil(t, u1, EventUserTyping, time.Second)
	require.NoError(t, env.Decode(&typing))
	assert.Equal(t, int64(2), typing.UserID)
	assert.False(t, typing.ExpiresAt.IsZero(), "typing events must carry their expiry")

	u2.Close()

	env = readUntil(t, u1, EventUserStoppedTyping, 3*time.Second)
	require.NoError(t, env.Decode(&typing))
	assert.Equal(t, int64(2), typing.UserID)
}

func TestChannelRoomRequiresMembership(t *testing.T) {
	f := newWSFixture(t, time.Minute)
	f.memberships.lock(5)

	conn := f.dial(t, 1, "u1")
	identify(t, f, conn, 1)

	// Non-members can neither subscribe nor write.
	send(t, conn, EventJoinRoom, "channel:5", nil)
	env := readUntil(t, conn, EventError, time.Second)
	var p ErrorPayload
	require.NoError(t, env.Decode(&p))
	assert.Equal(t, "not a member of this channel", p.Error)
	assert.Equal(t, 0, f.hub.RoomSize(ChannelRoom(5)))

	send(t, conn, EventRoomMessage, "channel:5", RoomMessagePayload{Content: "hi"})
	env = readUntil(t, conn, EventError, time.Second)
	require.NoError(t, env.Decode(&p))
	assert.Equal(t, "not a member of this channel", p.Error)
}

func TestRoomMessageUnknownTargetSurfaces(t *testing.T) {
	f := newWSFixture(t, time.Minute)
	f.messages.failWith(fmt.Errorf("insert message: %w", repository.ErrNotFound))

	conn := f.dial(t, 1, "u1")
	identify(t, f, conn, 1)
	send(t, conn, EventJoinRoom, "channel:404", nil)

	// A write whose channel row is gone fails the insert's FK; the sender
	// gets the specific rejection, not a generic save failure.
	send(t, conn, EventRoomMessage, "channel:404", RoomMessagePayload{Content: "hello?"})

	env := readUntil(t, conn, EventError, time.Second)
	var p ErrorPayload
	require.NoError(t, env.Decode(&p))
	assert.Equal(t, "unknown message target", p.Error)
}

func TestRoomMessageValidation(t *testing.T) {
	f := newWSFixture(t, time.Minute)
	conn := f.dial(t, 1, "u1")
	identify(t, f, conn, 1)
	send(t, conn, EventJoinRoom, "channel:5", nil)

	// fakeMessages accepts anything; validation lives in the real store, so
	// here we only exercise the malformed-envelope paths.
	send(t, conn, EventRoomMessage, "not-a-room", RoomMessagePayload{Content: "x"})
	env := readUntil(t, conn, EventError, time.Second)
	var p ErrorPayload
	require.NoError(t, env.Decode(&p))
	assert.Equal(t, "invalid room key", p.Error)
}
