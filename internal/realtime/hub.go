// Package realtime pushes live event updates to websocket clients. Updates
// travel over a Bus so that every instance serving watchers sees them.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 64
)

// Message is the websocket envelope.
type Message struct {
	Kind    string          `json:"kind"`
	EventID string          `json:"event_id"`
	Data    json.RawMessage `json:"data,omitempty"`
	At      time.Time       `json:"at"`
}

// Bus carries messages between instances. Subscribers on every instance,
// including the publisher's, receive each message once.
type Bus interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(eventID string, handler func(Message)) (cancel func(), err error)
}

// Hub tracks the clients watching each event.
type Hub struct {
	mu          sync.RWMutex
	rooms       map[string]map[string]*Client
	subs        map[string]func()
	subscribing map[string]struct{}
	bus         Bus
	logger      *zap.Logger
	now         func() time.Time
}

// NewHub creates a hub. With a nil bus updates stay on this instance.
func NewHub(bus Bus, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:       make(map[string]map[string]*Client),
		subs:        make(map[string]func()),
		subscribing: make(map[string]struct{}),
		bus:         bus,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Register adds c to its event's room. The first watcher of a room
// subscribes to the bus; a failed subscription is retried by the next
// Register and until then updates are delivered locally.
func (h *Hub) Register(c *Client) {
	eventID := c.EventID
	h.mu.Lock()
	room, ok := h.rooms[eventID]
	if !ok {
		room = make(map[string]*Client)
		h.rooms[eventID] = room
	}
	room[c.ID] = c
	subscribe := h.needsSubscription(eventID)
	if subscribe {
		h.subscribing[eventID] = struct{}{}
	}
	h.mu.Unlock()
	h.logger.Debug("watcher joined", zap.String("event_id", eventID), zap.String("user_id", c.UserID))

	if subscribe {
		h.subscribe(eventID)
	}
}

func (h *Hub) needsSubscription(eventID string) bool {
	if h.bus == nil {
		return false
	}
	if _, ok := h.subs[eventID]; ok {
		return false
	}
	_, inFlight := h.subscribing[eventID]
	return !inFlight
}

// subscribe runs without h.mu held, since handlers take it to broadcast.
func (h *Hub) subscribe(eventID string) {
	cancel, err := h.bus.Subscribe(eventID, func(m Message) { h.broadcast(m) })

	h.mu.Lock()
	delete(h.subscribing, eventID)
	if err != nil {
		h.mu.Unlock()
		h.logger.Warn("live subscribe failed", zap.String("event_id", eventID), zap.Error(err))
		return
	}
	if len(h.rooms[eventID]) == 0 {
		h.mu.Unlock()
		cancel()
		return
	}
	h.subs[eventID] = cancel
	h.mu.Unlock()
}

// Unregister removes c and drops the bus subscription with the last watcher.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.EventID]
	if !ok {
		return
	}
	if _, ok := room[c.ID]; !ok {
		return
	}
	delete(room, c.ID)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.EventID)
		if cancel, ok := h.subs[c.EventID]; ok {
			cancel()
			delete(h.subs, c.EventID)
		}
	}
	h.logger.Debug("watcher left", zap.String("event_id", c.EventID), zap.String("user_id", c.UserID))
}

// Watchers returns the number of clients on this instance watching eventID.
func (h *Hub) Watchers(eventID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}

// Publish sends an update to every watcher of eventID. With a bus the
// subscription delivers it, so local clients are not sent it twice. Rooms
// without a live subscription are served directly.
func (h *Hub) Publish(ctx context.Context, eventID, kind string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("live payload not encodable", zap.String("kind", kind), zap.Error(err))
		return
	}
	msg := Message{Kind: kind, EventID: eventID, Data: data, At: h.now()}
	if h.bus != nil {
		subscribed := h.subscribed(eventID)
		err := h.bus.Publish(ctx, msg)
		if err == nil && subscribed {
			return
		}
		if err != nil {
			h.logger.Warn("live publish failed, delivering locally", zap.String("event_id", eventID), zap.Error(err))
		}
	}
	h.broadcast(msg)
}

func (h *Hub) subscribed(eventID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subs[eventID]
	return ok
}

func (h *Hub) broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[msg.EventID] {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("watcher too slow, update dropped", zap.String("event_id", msg.EventID), zap.String("client_id", c.ID))
		}
	}
}
