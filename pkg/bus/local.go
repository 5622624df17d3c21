package bus

import (
	"context"
	"sync"
)

// Hub links every in-process context (tabs served by the same instance).
// Messages published by one member are delivered to all other members.
type Hub struct {
	mu      sync.RWMutex
	members []*LocalTransport
}

func NewHub() *Hub {
	return &Hub{}
}

// Transport registers and returns a new hub member.
func (h *Hub) Transport() *LocalTransport {
	t := &LocalTransport{hub: h}
	h.mu.Lock()
	h.members = append(h.members, t)
	h.mu.Unlock()
	return t
}

func (h *Hub) broadcast(from *LocalTransport, payload []byte) {
	h.mu.RLock()
	members := make([]*LocalTransport, len(h.members))
	copy(members, h.members)
	h.mu.RUnlock()

	for _, m := range members {
		if m == from {
			continue
		}
		m.deliver(payload)
	}
}

func (h *Hub) remove(t *LocalTransport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, m := range h.members {
		if m == t {
			h.members = append(h.members[:i], h.members[i+1:]...)
			return
		}
	}
}

// LocalTransport is the same-process adapter, the stand-in for a browser
// BroadcastChannel.
type LocalTransport struct {
	hub *Hub

	mu   sync.RWMutex
	sink func([]byte)
}

func (t *LocalTransport) Publish(ctx context.Context, payload []byte) error {
	t.hub.broadcast(t, payload)
	return nil
}

func (t *LocalTransport) Subscribe(ctx context.Context, sink func([]byte)) error {
	t.mu.Lock()
	t.sink = sink
	t.mu.Unlock()
	return nil
}

func (t *LocalTransport) Close() error {
	t.hub.remove(t)
	return nil
}

func (t *LocalTransport) deliver(payload []byte) {
	t.mu.RLock()
	sink := t.sink
	t.mu.RUnlock()
	if sink != nil {
		sink(payload)
	}
}
