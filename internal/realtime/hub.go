// Package realtime fans job-status, dashboard and system events out to
// WebSocket clients, filtered by each connection's subscription set.
package realtime

import (
	"sync"
	"time"

	"github.com/smallbiznis/invoicehub/internal/clock"
)

// Event types pushed to clients.
const (
	EventJobStatus     = "job_status"
	EventDashboardData = "dashboard_data"
	EventSystemStatus  = "system_status"
	EventNotification  = "notification"
	EventError         = "error"
)

const clientBuffer = 32

// Event is one pushed message.
type Event struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub tracks connected clients and fans published events out to the ones
// subscribed to each event's type.
type Hub struct {
	mu      sync.RWMutex
	clk     clock.Clock
	clients map[*Client]struct{}
}

// Client is one connected peer. A nil topic set means "everything"; a
// client narrows it with Subscribe/Unsubscribe.
type Client struct {
	hub    *Hub
	ch     chan Event
	done   chan struct{}
	closed sync.Once

	mu     sync.Mutex
	topics map[string]struct{}
}

// NewHub returns an empty hub.
func NewHub(clk clock.Clock) *Hub {
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &Hub{clk: clk, clients: make(map[*Client]struct{})}
}

// Register adds a client receiving all event types until it subscribes.
func (h *Hub) Register() *Client {
	c := &Client{hub: h, ch: make(chan Event, clientBuffer), done: make(chan struct{})}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish fans an event out to every subscribed client. Slow clients
// drop events rather than block the publisher.
func (h *Hub) Publish(eventType string, payload any) {
	if h == nil {
		return
	}
	ev := Event{Type: eventType, Payload: payload, Timestamp: h.clk.Now()}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c.wants(eventType) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.ch <- ev:
		default:
		}
	}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (c *Client) wants(eventType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.topics == nil {
		return true
	}
	_, ok := c.topics[eventType]
	return ok
}

// Subscribe narrows the client to the given event types (additive).
func (c *Client) Subscribe(eventTypes ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.topics == nil {
		c.topics = make(map[string]struct{})
	}
	for _, t := range eventTypes {
		c.topics[t] = struct{}{}
	}
}

// Unsubscribe removes event types from the client's set. Removing the
// last one leaves an empty set, which receives nothing.
func (c *Client) Unsubscribe(eventTypes ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.topics == nil {
		return
	}
	for _, t := range eventTypes {
		delete(c.topics, t)
	}
}

// Topics returns the client's current subscription set, nil meaning all.
func (c *Client) Topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.topics == nil {
		return nil
	}
	out := make([]string, 0, len(c.topics))
	for t := range c.topics {
		out = append(out, t)
	}
	return out
}

// Events is the client's receive channel.
func (c *Client) Events() <-chan Event {
	return c.ch
}

// Done is closed when the client detaches.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close detaches the client from the hub. The event channel is left open
// so a concurrent Publish never races a close; readers should select on
// Done instead of waiting for channel closure.
func (c *Client) Close() {
	c.closed.Do(func() {
		c.hub.unregister(c)
		close(c.done)
	})
}
