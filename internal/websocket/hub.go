package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dukerupert/mealplan/internal/metrics"
	"github.com/dukerupert/mealplan/internal/model"
)

const TypeProfileUpdated = "profile_updated"

// Message is pushed to a user's open sockets whenever their profile's
// subscription state changes.
type Message struct {
	Type         string            `json:"type"`
	Reason       string            `json:"reason,omitempty"`
	Subscription SubscriptionState `json:"subscription"`
}

type SubscriptionState struct {
	Active bool        `json:"subscriptionActive"`
	Tier   *model.Tier `json:"subscriptionTier"`
}

// ProfileUpdated builds the message for p. Reason is the event or action
// that caused the change.
func ProfileUpdated(reason string, p model.Profile) Message {
	return Message{
		Type:   TypeProfileUpdated,
		Reason: reason,
		Subscription: SubscriptionState{
			Active: p.SubscriptionActive,
			Tier:   p.SubscriptionTier,
		},
	}
}

// Hub tracks open sockets per user.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
	metrics.LiveConnections.Inc()
}

// Unregister removes c and closes its send channel. Calling it twice is safe.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	set := h.clients[c.userID]
	_, ok := set[c]
	if ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
		close(c.send)
	}
	h.mu.Unlock()
	if ok {
		metrics.LiveConnections.Dec()
	}
}

// PublishToUser queues msg on every socket userID has open and returns how
// many accepted it. Sockets with a full buffer miss the message.
func (h *Hub) PublishToUser(userID string, msg Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal live update", "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for c := range h.clients[userID] {
		select {
		case c.send <- data:
			n++
		default:
		}
	}
	return n
}

// ClientCount returns the number of open sockets across all users.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}
