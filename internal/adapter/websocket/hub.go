// Package websocket streams committed governance events to browser clients.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"

	"github.com/rs/zerolog"
)

// Filter selects the events a client receives. Zero values match everything.
type Filter struct {
	ProjectID *int64
	Account   string
}

func (f Filter) matches(ev domain.Event) bool {
	if f.ProjectID != nil && (ev.ProjectID == nil || *ev.ProjectID != *f.ProjectID) {
		return false
	}
	if f.Account != "" && ev.Account != f.Account {
		return false
	}
	return true
}

// Hub implements ports.EventSubscriber and fans events out to connected clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]Filter
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]Filter),
		log:     log,
	}
}

var _ ports.EventSubscriber = (*Hub)(nil)

func (h *Hub) Register(client *Client, filter Filter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = filter
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Name() string { return "websocket" }

// Handle broadcasts ev. Slow clients whose buffer is full miss the event
// and can catch up through the event feed.
func (h *Hub) Handle(_ context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", ev.ID, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	dropped := 0
	for client, filter := range h.clients {
		if !filter.matches(ev) {
			continue
		}
		select {
		case client.send <- payload:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.log.Warn().
			Int64("seq", ev.Seq).
			Int("dropped", dropped).
			Msg("websocket clients too slow, event dropped")
	}
	return nil
}
