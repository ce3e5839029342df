package engine

import (
	"context"

	"imulink/pkg/protocol"
)

// Hub fans decoded sensor events out to any number of subscribers. A
// subscriber that falls behind loses events instead of stalling the
// decode pipeline.
type Hub struct {
	broadcast  chan protocol.Event
	register   chan chan protocol.Event
	unregister chan chan protocol.Event
	clients    map[chan protocol.Event]struct{}
	clientBuf  int
}

type Option func(*Hub)

func WithBroadcastBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.broadcast = make(chan protocol.Event, size)
		}
	}
}

func WithClientBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.clientBuf = size
		}
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		broadcast:  make(chan protocol.Event, 256),
		register:   make(chan chan protocol.Event),
		unregister: make(chan chan protocol.Event),
		clients:    make(map[chan protocol.Event]struct{}),
		clientBuf:  100,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for ch := range h.clients {
				close(ch)
			}
			return
		case ch := <-h.register:
			h.clients[ch] = struct{}{}
		case ch := <-h.unregister:
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}
		case evt := <-h.broadcast:
			for ch := range h.clients {
				select {
				case ch <- evt:
				default:
				}
			}
		}
	}
}

func (h *Hub) Subscribe() chan protocol.Event {
	return h.SubscribeWithBuffer(h.clientBuf)
}

func (h *Hub) SubscribeWithBuffer(size int) chan protocol.Event {
	if size <= 0 {
		size = h.clientBuf
	}
	ch := make(chan protocol.Event, size)
	h.register <- ch
	return ch
}

func (h *Hub) Unsubscribe(ch chan protocol.Event) {
	h.unregister <- ch
}

func (h *Hub) Publish(evt protocol.Event) {
	h.broadcast <- evt
}
