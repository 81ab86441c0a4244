package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// Subscriber is one live connection's outbox.
type Subscriber struct {
	UserID string
	Ch     chan Event
	Done   chan struct{}
}

// ConnInfo holds connection metadata
type ConnInfo struct {
	ID          ulid.ULID
	ConnectedAt time.Time
	Subscriber  *Subscriber
}

type userSubs struct {
	mu sync.RWMutex
	m  map[ulid.ULID]ConnInfo
}

// Hub fans account events out to every connection a user holds.
// Slow connections lose events instead of blocking publishers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*userSubs
	connIndex   map[ulid.ULID]string
	bufferSize  int
	dropped     uint64
	log         *slog.Logger
}

// NewHub creates a hub whose per-connection outbox holds bufferSize events.
func NewHub(bufferSize int, log *slog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]*userSubs),
		connIndex:   make(map[ulid.ULID]string),
		bufferSize:  bufferSize,
		log:         log,
	}
}

// Subscribe registers a connection for userID and returns its outbox and a cancel func.
func (h *Hub) Subscribe(connID ulid.ULID, userID string) (*Subscriber, func()) {
	h.debug("subscribing connection", "conn_id", connID.String(), "user_id", userID)

	h.mu.Lock()
	bucket, ok := h.subscribers[userID]
	if !ok {
		bucket = &userSubs{m: make(map[ulid.ULID]ConnInfo)}
		h.subscribers[userID] = bucket
	}
	h.connIndex[connID] = userID
	h.mu.Unlock()

	sub := &Subscriber{
		UserID: userID,
		Ch:     make(chan Event, h.bufferSize),
		Done:   make(chan struct{}),
	}

	bucket.mu.Lock()
	bucket.m[connID] = ConnInfo{ID: connID, ConnectedAt: time.Now(), Subscriber: sub}
	bucket.mu.Unlock()

	return sub, func() { h.Unsubscribe(connID) }
}

// Unsubscribe removes a connection and closes its outbox. Safe to call twice.
func (h *Hub) Unsubscribe(connID ulid.ULID) {
	h.debug("unsubscribing connection", "conn_id", connID.String())

	h.mu.RLock()
	uid, ok := h.connIndex[connID]
	bucket := h.subscribers[uid]
	h.mu.RUnlock()
	if !ok {
		return
	}

	var (
		info   ConnInfo
		exists bool
		empty  = true
	)
	if bucket != nil {
		bucket.mu.Lock()
		info, exists = bucket.m[connID]
		delete(bucket.m, connID)
		empty = len(bucket.m) == 0
		bucket.mu.Unlock()
	}

	if exists {
		close(info.Subscriber.Ch)
		close(info.Subscriber.Done)
	}

	h.mu.Lock()
	delete(h.connIndex, connID)
	if empty && h.subscribers[uid] == bucket {
		delete(h.subscribers, uid)
	}
	h.mu.Unlock()
}

// Publish delivers ev to every connection of userID.
func (h *Hub) Publish(userID string, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	h.debug("publishing event", "user_id", userID, "event_type", ev.Type)

	h.mu.RLock()
	bucket := h.subscribers[userID]
	h.mu.RUnlock()
	if bucket == nil {
		return
	}

	bucket.mu.RLock()
	defer bucket.mu.RUnlock()
	for _, info := range bucket.m {
		sendOrDrop(info.Subscriber.Ch, ev, func() {
			atomic.AddUint64(&h.dropped, 1)
			h.log.Warn("outbox full, dropping event", "conn_id", info.ID.String(), "user_id", userID, "event_type", ev.Type)
		})
	}
}

// sendOrDrop is the only place that can decide to drop an event.
func sendOrDrop(ch chan Event, ev Event, onDrop func()) {
	select {
	case ch <- ev:
	default:
		onDrop()
	}
}

// Stats returns the live connection count and the number of dropped events.
func (h *Hub) Stats() (subscribers int, dropped uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, bucket := range h.subscribers {
		bucket.mu.RLock()
		subscribers += len(bucket.m)
		bucket.mu.RUnlock()
	}
	return subscribers, atomic.LoadUint64(&h.dropped)
}

func (h *Hub) debug(msg string, args ...any) {
	if h.log.Enabled(context.Background(), slog.LevelDebug) {
		h.log.Debug(msg, args...)
	}
}
