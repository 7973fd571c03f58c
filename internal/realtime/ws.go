package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/huddlehq/huddle/internal/auth"
	"github.com/huddlehq/huddle/internal/models"
	"github.com/huddlehq/huddle/internal/repository"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size.
	maxMessageSize = 4096

	// Budget for persistence work triggered by an inbound event.
	persistTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// PresenceMirror receives presence transitions so out-of-process readers
// (the REST presence endpoint) see the same online set the hub holds.
type PresenceMirror interface {
	SetOnline(ctx context.Context, userID int64) error
	SetOffline(ctx context.Context, userID int64) error
}

// Handler owns the websocket endpoint: it authenticates the handshake,
// runs the per-connection pumps, and dispatches inbound envelopes onto the
// hub, the stores and the typing tracker.
type Handler struct {
	hub         *Hub
	tracker     *TypingTracker
	users       repository.UserRepository
	memberships repository.MembershipRepository
	messages    repository.MessageRepository
	dms         repository.DirectMessageRepository
	mirror      PresenceMirror
	secret      string
	logger      *zap.Logger
}

func NewHandler(
	hub *Hub,
	tracker *TypingTracker,
	users repository.UserRepository,
	memberships repository.MembershipRepository,
	messages repository.MessageRepository,
	dms repository.DirectMessageRepository,
	mirror PresenceMirror,
	secret string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		hub:         hub,
		tracker:     tracker,
		users:       users,
		memberships: memberships,
		messages:    messages,
		dms:         dms,
		mirror:      mirror,
		secret:      secret,
		logger:      logger,
	}
}

// client binds one websocket connection to its (eventual) hub session.
type client struct {
	handler *Handler
	conn    *websocket.Conn

	// Verified at the handshake; every later event is trusted against it
	// for the lifetime of the connection.
	claims *auth.Claims

	// Set once a matching identify frame arrives. Only the read pump
	// touches it.
	sess *Session
}

// Serve handles GET /ws. The token travels as a query parameter because
// browser websocket clients cannot set headers; header form is accepted too.
func (h *Handler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = c.GetHeader("Authorization")
		if len(token) > 7 && token[:7] == "Bearer " {
			token = token[7:]
		}
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := auth.ParseToken(token, h.secret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{handler: h, conn: conn, claims: claims}
	go cl.readPump()
}

// readPump reads inbound envelopes and dispatches them one at a time. Each
// event's fan-out completes before the next event is read, which is what
// gives per-connection FIFO ordering downstream.
func (c *client) readPump() {
	defer c.teardown()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.handler.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.sendError("malformed envelope")
			continue
		}
		c.dispatch(env)
	}
}

// writePump drains the session's event stream onto the wire. It starts when
// the session registers; a closed stream (unregister) ends it.
func (c *client) writePump(sess *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case env, ok := <-sess.Events():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// teardown is the sole cancellation path: the disconnect unregisters the
// session (leaving every room) and re-evaluates presence.
func (c *client) teardown() {
	c.conn.Close()
	if c.sess == nil {
		return
	}
	if last := c.handler.hub.Unregister(c.sess); last {
		c.handler.announcePresence(c.sess.UserID, models.StatusOffline)
	}
	// Typing flags left behind expire on their own TTL; receivers have the
	// expiry and the sweeper publishes the stop.
}

func (c *client) dispatch(env Envelope) {
	h := c.handler

	if c.sess == nil && env.Type != EventIdentify {
		c.sendError("not identified")
		return
	}

	switch env.Type {
	case EventIdentify:
		c.identify(env)

	case EventJoinRoom:
		room, ok := c.authorizedRoom(env.RoomKey)
		if !ok {
			return
		}
		if !c.channelMember(room) {
			return
		}
		h.hub.Join(c.sess, room)

	case EventLeaveRoom:
		room, ok := c.authorizedRoom(env.RoomKey)
		if !ok {
			return
		}
		h.hub.Leave(c.sess, room)

	case EventRoomMessage:
		c.roomMessage(env)

	case EventTypingStart:
		room, ok := c.authorizedRoom(env.RoomKey)
		if !ok {
			return
		}
		expires := h.tracker.Start(room, c.sess.UserID)
		out, err := NewEnvelope(EventUserTyping, room.Key(), TypingPayload{
			UserID:    c.sess.UserID,
			ExpiresAt: expires,
		})
		if err != nil {
			h.logger.Error("encode typing event", zap.Error(err))
			return
		}
		// Typing events never echo to their sender.
		h.hub.Publish(room, out, c.sess.ID)

	case EventTypingStop:
		room, ok := c.authorizedRoom(env.RoomKey)
		if !ok {
			return
		}
		h.tracker.Stop(room, c.sess.UserID)
		out, err := NewEnvelope(EventUserStoppedTyping, room.Key(), TypingPayload{UserID: c.sess.UserID})
		if err != nil {
			h.logger.Error("encode typing event", zap.Error(err))
			return
		}
		h.hub.Publish(room, out, c.sess.ID)

	default:
		c.sendError("unknown event type")
	}
}

// identify completes registration. The asserted id must match the identity
// verified at the handshake; a mismatch is an auth failure and the
// connection is never joined to anything.
func (c *client) identify(env Envelope) {
	var p IdentifyPayload
	if err := env.Decode(&p); err != nil {
		c.sendError("malformed identify payload")
		return
	}
	if p.UserID != c.claims.UserID {
		c.sendError("identity mismatch")
		c.conn.Close()
		return
	}
	if c.sess != nil {
		return // already identified; repeat is a no-op
	}

	sess := NewSession(c.claims.UserID, c.claims.Username)
	c.sess = sess
	go c.writePump(sess)

	if first := c.handler.hub.Register(sess); first {
		c.handler.announcePresence(sess.UserID, models.StatusOnline)
	}
}

// roomMessage is the realtime write path: commit to the store first, then
// fan out the committed record. The author gets the result directly on its
// own stream; the room publish excludes the author so nothing arrives twice.
func (c *client) roomMessage(env Envelope) {
	h := c.handler

	room, ok := c.authorizedRoom(env.RoomKey)
	if !ok {
		return
	}
	if !c.channelMember(room) {
		return
	}
	var p RoomMessagePayload
	if err := env.Decode(&p); err != nil {
		c.sendError("malformed message payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	var record any
	var err error
	switch room.Kind() {
	case RoomChannel:
		record, err = h.messages.Create(ctx, room.ChannelID(), c.sess.UserID, p.Content, p.FileURL)
	case RoomDirect:
		a, b := room.Participants()
		recipient := a
		if recipient == c.sess.UserID {
			recipient = b
		}
		record, err = h.dms.Create(ctx, c.sess.UserID, recipient, p.Content, p.FileURL)
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmptyMessage):
			c.sendError("message requires content or a file")
		case errors.Is(err, repository.ErrNotFound):
			c.sendError("unknown message target")
		default:
			h.logger.Error("persist room message", zap.Error(err), zap.String("room", room.Key()))
			c.sendError("could not save message")
		}
		return
	}

	out, err := NewEnvelope(EventNewMessage, room.Key(), record)
	if err != nil {
		h.logger.Error("encode new-message event", zap.Error(err))
		return
	}

	// The author's copy is the synchronous result of the write.
	c.sess.enqueue(out)
	h.hub.Publish(room, out, c.sess.ID)
}

// authorizedRoom parses a client-supplied key and rejects direct rooms the
// session's user is not a participant of.
func (c *client) authorizedRoom(key string) (Room, bool) {
	room, err := ParseRoom(key)
	if err != nil {
		c.sendError("invalid room key")
		return Room{}, false
	}
	if room.Kind() == RoomDirect && !room.HasParticipant(c.sess.UserID) {
		c.sendError("not a participant of this room")
		return Room{}, false
	}
	return room, true
}

// channelMember gates channel rooms on store membership: only members may
// subscribe or write. Direct rooms answer true; authorizedRoom already did
// their participant check.
func (c *client) channelMember(room Room) bool {
	if room.Kind() != RoomChannel {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	ok, err := c.handler.memberships.IsMember(ctx, room.ChannelID(), c.sess.UserID)
	if err != nil {
		c.handler.logger.Error("check channel membership", zap.Error(err), zap.String("room", room.Key()))
		c.sendError("could not verify membership")
		return false
	}
	if !ok {
		c.sendError("not a member of this channel")
		return false
	}
	return true
}

// announcePresence applies a presence transition everywhere it is visible:
// the durable user row, the Redis mirror, and every connected session.
func (h *Handler) announcePresence(userID int64, status string) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := h.users.UpdateStatus(ctx, userID, status); err != nil {
		h.logger.Error("update user status", zap.Error(err), zap.Int64("user", userID))
	}
	if h.mirror != nil {
		var err error
		if status == models.StatusOnline {
			err = h.mirror.SetOnline(ctx, userID)
		} else {
			err = h.mirror.SetOffline(ctx, userID)
		}
		if err != nil {
			h.logger.Error("update presence mirror", zap.Error(err), zap.Int64("user", userID))
		}
	}

	eventType := EventPresenceOnline
	if status != models.StatusOnline {
		eventType = EventPresenceOffline
	}
	env, err := NewEnvelope(eventType, "", PresencePayload{UserID: userID, Status: status})
	if err != nil {
		h.logger.Error("encode presence event", zap.Error(err))
		return
	}
	h.hub.Broadcast(env, uuid.Nil)
}

// PublishToRoom lets the REST write paths fan out their committed records
// through the same router the websocket path uses. excludeSession carries
// the author's live session id (from the X-Session-ID header) so their own
// open tab does not receive a duplicate of a write it already has the
// response to; uuid.Nil excludes nobody.
func (h *Handler) PublishToRoom(room Room, t EventType, payload any, excludeSession uuid.UUID) {
	env, err := NewEnvelope(t, room.Key(), payload)
	if err != nil {
		h.logger.Error("encode event", zap.Error(err), zap.String("event", string(t)))
		return
	}
	h.hub.Publish(room, env, excludeSession)
}

func (c *client) sendError(msg string) {
	env, err := NewEnvelope(EventError, "", ErrorPayload{Error: msg})
	if err != nil {
		return
	}
	if c.sess != nil {
		c.sess.enqueue(env)
		return
	}
	// Not yet identified: no write pump exists, write directly.
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteJSON(env)
}
