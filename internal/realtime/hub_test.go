package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBus struct {
	mu       sync.Mutex
	handlers map[string]map[int]func(Message)
	next     int
	failPub  bool
	failSub  int
}

func newMemBus() *memBus {
	return &memBus{handlers: make(map[string]map[int]func(Message))}
}

func (b *memBus) Publish(_ context.Context, msg Message) error {
	b.mu.Lock()
	if b.failPub {
		b.mu.Unlock()
		return errors.New("bus down")
	}
	var hs []func(Message)
	for _, h := range b.handlers[msg.EventID] {
		hs = append(hs, h)
	}
	b.mu.Unlock()
	for _, h := range hs {
		h(msg)
	}
	return nil
}

func (b *memBus) Subscribe(eventID string, handler func(Message)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSub > 0 {
		b.failSub--
		return nil, errors.New("bus down")
	}
	if b.handlers[eventID] == nil {
		b.handlers[eventID] = make(map[int]func(Message))
	}
	id := b.next
	b.next++
	b.handlers[eventID][id] = handler
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[eventID], id)
	}, nil
}

func (b *memBus) subscribers(eventID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[eventID])
}

func watcher(h *Hub, id, eventID string) *Client {
	c := &Client{ID: id, EventID: eventID, UserID: "u-" + id, hub: h, send: make(chan Message, 4)}
	h.Register(c)
	return c
}

func drain(c *Client) []Message {
	var out []Message
	for {
		select {
		case m, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestHubDeliversOnlyToRoom(t *testing.T) {
	h := NewHub(nil, nil)
	a := watcher(h, "a", "e1")
	b := watcher(h, "b", "e1")
	other := watcher(h, "c", "e2")

	h.Publish(context.Background(), "e1", "registration_count", map[string]int{"registered_count": 3})

	for _, c := range []*Client{a, b} {
		msgs := drain(c)
		require.Len(t, msgs, 1)
		assert.Equal(t, "registration_count", msgs[0].Kind)
		assert.Equal(t, "e1", msgs[0].EventID)
		var body map[string]int
		require.NoError(t, json.Unmarshal(msgs[0].Data, &body))
		assert.Equal(t, 3, body["registered_count"])
	}
	assert.Empty(t, drain(other))
	assert.Equal(t, 2, h.Watchers("e1"))
}

func TestHubWithBusDeliversOnce(t *testing.T) {
	bus := newMemBus()
	h := NewHub(bus, nil)
	a := watcher(h, "a", "e1")
	watcher(h, "b", "e1")
	assert.Equal(t, 1, bus.subscribers("e1"))

	h.Publish(context.Background(), "e1", "poll_results", map[string]any{"total": 1})
	assert.Len(t, drain(a), 1)
}

func TestHubFallsBackWhenBusFails(t *testing.T) {
	bus := newMemBus()
	bus.failPub = true
	h := NewHub(bus, nil)
	a := watcher(h, "a", "e1")

	h.Publish(context.Background(), "e1", "attendance_count", map[string]int{"attending_count": 1})
	assert.Len(t, drain(a), 1)
}

func TestHubRetriesFailedSubscription(t *testing.T) {
	bus := newMemBus()
	bus.failSub = 1
	h := NewHub(bus, nil)
	a := watcher(h, "a", "e1")
	assert.Zero(t, bus.subscribers("e1"))

	h.Publish(context.Background(), "e1", "registration_count", map[string]int{"registered_count": 1})
	assert.Len(t, drain(a), 1)

	b := watcher(h, "b", "e1")
	assert.Equal(t, 1, bus.subscribers("e1"))

	h.Publish(context.Background(), "e1", "registration_count", map[string]int{"registered_count": 2})
	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
}

func TestHubUnregisterDropsSubscription(t *testing.T) {
	bus := newMemBus()
	h := NewHub(bus, nil)
	a := watcher(h, "a", "e1")
	b := watcher(h, "b", "e1")

	h.Unregister(a)
	assert.Equal(t, 1, bus.subscribers("e1"))
	h.Unregister(a)
	h.Unregister(b)
	assert.Zero(t, bus.subscribers("e1"))
	assert.Zero(t, h.Watchers("e1"))

	_, open := <-b.send
	assert.False(t, open)
}

func TestHubDropsForSlowWatcher(t *testing.T) {
	h := NewHub(nil, nil)
	a := watcher(h, "a", "e1")
	for i := 0; i < 10; i++ {
		h.Publish(context.Background(), "e1", "registration_count", i)
	}
	assert.Len(t, drain(a), cap(a.send))
}
