// Package realtime fans out "conversation changed" signals to live feeds.
package realtime

import (
	"context"
	"errors"
	"log/slog"
)

// ErrHubStopped is returned once the hub's Run loop has exited.
var ErrHubStopped = errors.New("realtime hub stopped")

// Notifier announces that the message set of a conversation changed.
type Notifier interface {
	Notify(ctx context.Context, conversationID string) error
}

// Subscription receives a signal each time its conversation changes.
// Signals coalesce: a burst of changes may arrive as a single signal.
type Subscription struct {
	ConversationID string
	signal         chan struct{}
}

// C returns the signal channel. It is never closed; watch Hub.Done instead.
func (s *Subscription) C() <-chan struct{} {
	return s.signal
}

// Hub maintains the set of active subscriptions per conversation.
// All state is owned by the Run goroutine.
type Hub struct {
	// conversationID -> subscriptions
	subs map[string]map[*Subscription]struct{}

	register   chan *Subscription
	unregister chan *Subscription
	publish    chan string
	done       chan struct{}

	logger *slog.Logger
}

// NewHub creates a new Hub. Run must be started before it is used.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:       make(map[string]map[*Subscription]struct{}),
		register:   make(chan *Subscription),
		unregister: make(chan *Subscription),
		publish:    make(chan string, 256),
		done:       make(chan struct{}),
		logger:     logger.With("component", "realtime_hub"),
	}
}

// Done is closed when Run returns.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Subscribe registers interest in conversationID. A Notify issued after
// Subscribe returns is guaranteed to reach the subscription.
func (h *Hub) Subscribe(ctx context.Context, conversationID string) (*Subscription, error) {
	if h.stopped() {
		return nil, ErrHubStopped
	}
	s := &Subscription{ConversationID: conversationID, signal: make(chan struct{}, 1)}
	select {
	case h.register <- s:
		return s, nil
	case <-h.done:
		return nil, ErrHubStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Unsubscribe removes s. Removing an unknown subscription is a no-op.
func (h *Hub) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// Notify implements Notifier for in-process delivery.
func (h *Hub) Notify(ctx context.Context, conversationID string) error {
	if h.stopped() {
		return ErrHubStopped
	}
	select {
	case h.publish <- conversationID:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the hub loop and blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("realtime hub started")
	defer func() {
		close(h.done)
		h.logger.Info("realtime hub stopped")
	}()
	for {
		select {
		case <-ctx.Done():
			return

		case s := <-h.register:
			set, ok := h.subs[s.ConversationID]
			if !ok {
				set = make(map[*Subscription]struct{})
				h.subs[s.ConversationID] = set
			}
			set[s] = struct{}{}
			h.logger.Debug("subscription registered", "conversation_id", s.ConversationID, "subscribers", len(set))

		case s := <-h.unregister:
			if set, ok := h.subs[s.ConversationID]; ok {
				delete(set, s)
				if len(set) == 0 {
					delete(h.subs, s.ConversationID)
				}
			}

		case id := <-h.publish:
			for s := range h.subs[id] {
				// 非阻塞发送；已有未处理信号时合并
				select {
				case s.signal <- struct{}{}:
				default:
				}
			}
		}
	}
}
