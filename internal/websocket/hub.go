package websocket

import (
	"context"
	"errors"
	"log/slog"
)

// ErrHubClosed is returned by Register after Run has exited.
var ErrHubClosed = errors.New("websocket hub closed")

// Hub tracks the live chat clients so they can be shut down together.
// http.Server.Shutdown does not touch hijacked connections.
type Hub struct {
	// Registered clients, grouped by user. A user may hold several sessions.
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	count      chan chan int
	done       chan struct{}

	logger *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		logger:     logger.With("component", "websocket_hub"),
	}
}

// Register adds c. It fails once the hub has stopped.
func (h *Hub) Register(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// Unregister removes c; unknown clients are ignored.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Count returns the number of connected clients, or 0 after Run has exited.
func (h *Hub) Count() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Done is closed when Run returns.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Run serves registrations until ctx is cancelled, then cancels every
// remaining client session.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("websocket hub started")
	defer close(h.done)
	total := 0
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					c.cancel()
				}
			}
			h.logger.Info("websocket hub stopped", "closed_clients", total)
			return

		case c := <-h.register:
			set, ok := h.clients[c.UserID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[c.UserID] = set
			}
			set[c] = struct{}{}
			total++
			h.logger.Debug("client registered", "user_id", c.UserID, "peer_id", c.PeerID, "clients", total)

		case c := <-h.unregister:
			if set, ok := h.clients[c.UserID]; ok {
				if _, ok := set[c]; ok {
					delete(set, c)
					total--
				}
				if len(set) == 0 {
					delete(h.clients, c.UserID)
				}
			}
			h.logger.Debug("client unregistered", "user_id", c.UserID, "clients", total)

		case reply := <-h.count:
			reply <- total
		}
	}
}
