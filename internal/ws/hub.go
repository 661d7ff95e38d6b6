// README: WebSocket hub: relays pub/sub topics to connected clients.
package ws

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"safar/internal/pubsub"
)

// Hub multiplexes broker topics onto websocket clients. One broker
// subscription is held per topic with at least one client; it is released
// when the last client leaves.
type Hub struct {
	broker pubsub.Broker
	log    *zap.Logger

	mu     sync.Mutex
	relays map[string]*relay
}

type relay struct {
	clients map[*Client]bool
	cancel  func()
}

func NewHub(broker pubsub.Broker, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{broker: broker, log: log, relays: make(map[string]*relay)}
}

func (h *Hub) join(topic string, c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.relays[topic]
	if !ok {
		// The relay outlives any single client; its lifetime ends when the
		// last client leaves, not when the first client's request does.
		events, cancel, err := h.broker.Subscribe(context.Background(), topic)
		if err != nil {
			return err
		}
		r = &relay{clients: make(map[*Client]bool), cancel: cancel}
		h.relays[topic] = r
		go h.pump(topic, events)
	}
	r.clients[c] = true
	return nil
}

func (h *Hub) leave(topic string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.relays[topic]
	if !ok {
		return
	}
	delete(r.clients, c)
	if len(r.clients) == 0 {
		r.cancel()
		delete(h.relays, topic)
	}
}

func (h *Hub) pump(topic string, events <-chan pubsub.Event) {
	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		h.mu.Lock()
		r, ok := h.relays[topic]
		if !ok {
			h.mu.Unlock()
			return
		}
		for c := range r.clients {
			select {
			case c.send <- data:
			default:
				// Slow client; drop the frame rather than block the relay.
			}
		}
		h.mu.Unlock()
	}
}
