package realtime

import (
	"sync"
	"time"
)

type typingKey struct {
	room string
	user int64
}

type typingEntry struct {
	room    Room
	expires time.Time
}

// TypingTracker holds the ephemeral "who is typing where" state. Entries
// live only in memory and only for the TTL window: a Start refreshes the
// window, a Stop clears it, and the sweeper clears anything whose window
// lapsed — a client that crashes mid-keystroke never wedges a typing flag.
type TypingTracker struct {
	ttl      time.Duration
	onExpire func(room Room, userID int64)

	mu      sync.Mutex
	entries map[typingKey]typingEntry

	stop     chan struct{}
	stopOnce sync.Once
}

// NewTypingTracker creates a tracker whose sweeper runs until Close.
// onExpire fires for every entry that lapses without an explicit Stop,
// letting the caller publish the stopped-typing event.
func NewTypingTracker(ttl time.Duration, onExpire func(room Room, userID int64)) *TypingTracker {
	t := &TypingTracker{
		ttl:      ttl,
		onExpire: onExpire,
		entries:  make(map[typingKey]typingEntry),
		stop:     make(chan struct{}),
	}
	go t.run()
	return t
}

// Start sets or refreshes the typing flag and returns its expiry, which is
// forwarded to receivers so they can clear the flag locally even if no stop
// ever arrives.
func (t *TypingTracker) Start(room Room, userID int64) time.Time {
	expires := time.Now().Add(t.ttl)
	t.mu.Lock()
	t.entries[typingKey{room: room.Key(), user: userID}] = typingEntry{room: room, expires: expires}
	t.mu.Unlock()
	return expires
}

// Stop clears the typing flag. Returns false when there was none — a late
// stop after expiry is a no-op, not an error.
func (t *TypingTracker) Stop(room Room, userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := typingKey{room: room.Key(), user: userID}
	if _, ok := t.entries[key]; !ok {
		return false
	}
	delete(t.entries, key)
	return true
}

// Typists returns the users whose flag in the room is still live.
func (t *TypingTracker) Typists(room Room) []int64 {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	var ids []int64
	for key, e := range t.entries {
		if key.room == room.Key() && e.expires.After(now) {
			ids = append(ids, key.user)
		}
	}
	return ids
}

// Close stops the sweeper. Safe to call more than once.
func (t *TypingTracker) Close() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *TypingTracker) run() {
	ticker := time.NewTicker(t.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			t.sweep(now)
		case <-t.stop:
			return
		}
	}
}

// sweep removes every lapsed entry and fires onExpire for it. Callbacks run
// outside the lock; they publish to the hub, which takes its own locks.
func (t *TypingTracker) sweep(now time.Time) {
	var expired []typingEntry
	var users []int64

	t.mu.Lock()
	for key, e := range t.entries {
		if !e.expires.After(now) {
			delete(t.entries, key)
			expired = append(expired, e)
			users = append(users, key.user)
		}
	}
	t.mu.Unlock()

	if t.onExpire != nil {
		for i, e := range expired {
			t.onExpire(e.room, users[i])
		}
	}
}
