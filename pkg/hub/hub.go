package hub

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-marionette/internal/log"
)

// Hub maintains the set of clients subscribed to one topic and fans
// published frames out to them.
type Hub struct {
	// Topic served by this hub
	topic string

	logger *slog.Logger

	// Registered clients
	clients map[*Client]bool

	// Inbound messages to fan out
	broadcast chan Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	// Guards clients for read-only access from outside
	mu sync.RWMutex

	running atomic.Bool

	// Stats
	published   atomic.Uint64
	delivered   atomic.Uint64
	dropped     atomic.Uint64
	slowClients atomic.Uint64
}

// New creates a hub for topic. logger may be nil.
func New(topic string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = log.For("hub")
	}
	return &Hub{
		topic:      topic,
		logger:     logger.With("topic", topic),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Topic returns the topic this hub serves.
func (h *Hub) Topic() string {
	return h.topic
}

// Run starts the hub's main loop. It returns when ctx is cancelled, after
// closing every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
		h.mu.Unlock()
		h.running.Store(false)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", "client", client.id, "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", "client", client.id, "clients", count)

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

func (h *Hub) fanOut(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if client == message.from {
			continue
		}
		select {
		case client.send <- message:
			h.delivered.Add(1)
		default:
			// Client's buffer is full, they're too slow
			close(client.send)
			delete(h.clients, client)
			h.slowClients.Add(1)
			h.logger.Warn("dropped slow client", "client", client.id)
		}
	}
}

// Broadcast queues a message for every client. It never blocks; when the
// queue is full the message is dropped and Broadcast reports false.
func (h *Hub) Broadcast(msg Message) bool {
	msg.from = nil
	return h.publish(msg)
}

func (h *Hub) publish(msg Message) bool {
	select {
	case h.broadcast <- msg:
		h.published.Add(1)
		return true
	default:
		h.dropped.Add(1)
		h.logger.Warn("broadcast channel full, dropping message")
		return false
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning returns whether the hub loop is running.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Stats contains hub statistics.
type Stats struct {
	Topic       string `json:"topic"`
	Clients     int    `json:"clients"`
	Published   uint64 `json:"published"`
	Delivered   uint64 `json:"delivered"`
	Dropped     uint64 `json:"dropped"`
	SlowClients uint64 `json:"slow_clients"`
}

// GetStats returns hub statistics.
func (h *Hub) GetStats() Stats {
	return Stats{
		Topic:       h.topic,
		Clients:     h.ClientCount(),
		Published:   h.published.Load(),
		Delivered:   h.delivered.Load(),
		Dropped:     h.dropped.Load(),
		SlowClients: h.slowClients.Load(),
	}
}
