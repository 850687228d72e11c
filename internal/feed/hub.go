// Package feed delivers "room changed" notifications to live subscribers.
package feed

import (
	"context"
	"sync"
)

// Notifier publishes and listens for room change notifications.
// Notifications carry no payload: listeners re-read the room.
type Notifier interface {
	Publish(ctx context.Context, roomID string) error
	Listen(roomID string, fn func()) (cancel func())
}

// Hub manages listeners for rooms in this process.
// It maps room ids to one or more listener callbacks so a write can wake
// every live subscription of that room.
type Hub struct {
	mu        sync.RWMutex
	listeners map[string]map[int64]func()
	nextID    int64
}

// NewHub creates a new hub instance.
func NewHub() *Hub {
	return &Hub{listeners: make(map[string]map[int64]func())}
}

// Listen registers fn for roomID and returns a function that removes it.
// fn is called on the publisher's goroutine and must not block.
func (h *Hub) Listen(roomID string, fn func()) (cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.listeners[roomID]; !ok {
		h.listeners[roomID] = make(map[int64]func())
	}

	h.nextID++
	id := h.nextID
	h.listeners[roomID][id] = fn

	var once sync.Once
	return func() { once.Do(func() { h.remove(roomID, id) }) }
}

func (h *Hub) remove(roomID string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if fns, ok := h.listeners[roomID]; ok {
		delete(fns, id)
		if len(fns) == 0 {
			delete(h.listeners, roomID)
		}
	}
}

// Publish wakes every listener of roomID. A room nobody listens to is not
// an error: the write is persisted and will be read on the next subscribe.
func (h *Hub) Publish(_ context.Context, roomID string) error {
	h.mu.RLock()
	fns := make([]func(), 0, len(h.listeners[roomID]))
	for _, fn := range h.listeners[roomID] {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
	return nil
}

// Listeners returns how many listeners roomID has.
func (h *Hub) Listeners(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[roomID])
}
