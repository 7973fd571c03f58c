package realtime

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// sendBuffer is the per-session outbound queue depth. A session that cannot
// drain this many events is considered dead weight: further events to it are
// dropped (at-most-once delivery), and the session itself is reaped when its
// disconnect arrives.
const sendBuffer = 256

// Session is one live connection's subscription stream. Events pushed by
// the hub come out of Events() in publish order; the channel is closed when
// the session is unregistered, which cancels the subscription.
type Session struct {
	ID       uuid.UUID
	UserID   int64
	Username string

	send chan Envelope
}

func NewSession(userID int64, username string) *Session {
	return &Session{
		ID:       uuid.New(),
		UserID:   userID,
		Username: username,
		send:     make(chan Envelope, sendBuffer),
	}
}

// Events is the session's outbound stream. Exactly one consumer (the write
// pump) reads it, which is what keeps per-session delivery in FIFO order.
func (s *Session) Events() <-chan Envelope { return s.send }

// enqueue pushes without blocking. Dropping on a full buffer is deliberate:
// delivery is best-effort and a stalled peer must not stall the room.
func (s *Session) enqueue(env Envelope) bool {
	select {
	case s.send <- env:
		return true
	default:
		return false
	}
}

// Hub owns all real-time shared state: which sessions exist, which user each
// one belongs to, and which rooms each one has joined. One mutex guards the
// lot, so any mutation of a fan-out target set is atomic with respect to any
// publish computing one — a session is either fully in a room or fully out,
// never half-delivered-to.
//
// Presence is derived by reference counting: a user is online while they
// have at least one registered session, so a second tab neither re-announces
// online nor, when closed, falsely announces offline.
type Hub struct {
	logger *zap.Logger

	mu           sync.RWMutex
	sessions     map[uuid.UUID]*Session
	byUser       map[int64]map[uuid.UUID]*Session
	rooms        map[string]map[uuid.UUID]*Session
	sessionRooms map[uuid.UUID]map[string]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:       logger,
		sessions:     make(map[uuid.UUID]*Session),
		byUser:       make(map[int64]map[uuid.UUID]*Session),
		rooms:        make(map[string]map[uuid.UUID]*Session),
		sessionRooms: make(map[uuid.UUID]map[string]struct{}),
	}
}

// Register adds a session and reports whether it is the user's first live
// one — the caller announces presence-online only in that case.
func (h *Hub) Register(s *Session) (first bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sessions[s.ID] = s
	if h.byUser[s.UserID] == nil {
		h.byUser[s.UserID] = make(map[uuid.UUID]*Session)
	}
	h.byUser[s.UserID][s.ID] = s

	first = len(h.byUser[s.UserID]) == 1
	h.logger.Debug("session registered",
		zap.String("session", s.ID.String()),
		zap.Int64("user", s.UserID),
		zap.Bool("first", first),
	)
	return first
}

// Unregister removes a session, implicitly leaves all its rooms, and closes
// its event stream. It reports whether the user has no sessions left — the
// caller announces presence-offline only in that case. Unregistering an
// unknown session is a no-op (false).
func (h *Hub) Unregister(s *Session) (last bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s.ID]; !ok {
		return false
	}
	delete(h.sessions, s.ID)

	for key := range h.sessionRooms[s.ID] {
		delete(h.rooms[key], s.ID)
		if len(h.rooms[key]) == 0 {
			delete(h.rooms, key)
		}
	}
	delete(h.sessionRooms, s.ID)

	if peers := h.byUser[s.UserID]; peers != nil {
		delete(peers, s.ID)
		if len(peers) == 0 {
			delete(h.byUser, s.UserID)
			last = true
		}
	}

	close(s.send)
	h.logger.Debug("session unregistered",
		zap.String("session", s.ID.String()),
		zap.Int64("user", s.UserID),
		zap.Bool("last", last),
	)
	return last
}

// Join subscribes a session to a room. Idempotent: joining a room twice is
// a no-op. Joining with an unregistered session is ignored.
func (h *Hub) Join(s *Session, room Room) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s.ID]; !ok {
		return
	}
	key := room.Key()
	if h.rooms[key] == nil {
		h.rooms[key] = make(map[uuid.UUID]*Session)
	}
	h.rooms[key][s.ID] = s
	if h.sessionRooms[s.ID] == nil {
		h.sessionRooms[s.ID] = make(map[string]struct{})
	}
	h.sessionRooms[s.ID][key] = struct{}{}
}

// Leave unsubscribes a session from a room. Idempotent.
func (h *Hub) Leave(s *Session, room Room) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := room.Key()
	delete(h.rooms[key], s.ID)
	if len(h.rooms[key]) == 0 {
		delete(h.rooms, key)
	}
	delete(h.sessionRooms[s.ID], key)
}

// Publish delivers an event to every session currently joined to the room,
// except the excluded one (the originating connection of a write, which
// already has the result of its synchronous call). Pass uuid.Nil to exclude
// nobody. Returns how many sessions the event was queued for.
func (h *Hub) Publish(room Room, env Envelope, exclude uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for id, s := range h.rooms[room.Key()] {
		if id == exclude {
			continue
		}
		if s.enqueue(env) {
			delivered++
		} else {
			h.logger.Warn("dropping event for slow session",
				zap.String("session", id.String()),
				zap.String("event", string(env.Type)),
			)
		}
	}
	return delivered
}

// PublishExcludingUser delivers to every session in the room not belonging
// to userID. Typing expiry publishes through this: the lapsed typist has no
// originating session to name, but none of their tabs need their own stop.
func (h *Hub) PublishExcludingUser(room Room, env Envelope, userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for id, s := range h.rooms[room.Key()] {
		if s.UserID == userID {
			continue
		}
		if s.enqueue(env) {
			delivered++
		} else {
			h.logger.Warn("dropping event for slow session",
				zap.String("session", id.String()),
				zap.String("event", string(env.Type)),
			)
		}
	}
	return delivered
}

// Broadcast delivers an event to every registered session regardless of
// room membership. Presence transitions use this: everyone online cares.
func (h *Hub) Broadcast(env Envelope, exclude uuid.UUID) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, s := range h.sessions {
		if id == exclude {
			continue
		}
		s.enqueue(env)
	}
}

// OnlineUserIDs returns the users with at least one registered session.
func (h *Hub) OnlineUserIDs() []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]int64, 0, len(h.byUser))
	for id := range h.byUser {
		ids = append(ids, id)
	}
	return ids
}

// SessionCount returns how many live sessions a user has.
func (h *Hub) SessionCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

// RoomSize returns how many sessions are joined to a room.
func (h *Hub) RoomSize(room Room) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room.Key()])
}
