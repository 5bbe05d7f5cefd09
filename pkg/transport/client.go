package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-marionette/internal/log"
)

var (
	// ErrNotConnected is returned when publishing to a topic with no live
	// connection.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("transport: client closed")
)

// Message is a payload received on a topic.
type Message struct {
	Topic string
	Data  []byte
}

// topicConn is the connection for one topic. ws is nil while reconnecting.
type topicConn struct {
	topic string

	mu sync.Mutex // serializes writes and swaps of ws
	ws *websocket.Conn
}

func (t *topicConn) conn() *websocket.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ws
}

func (t *topicConn) clear() {
	t.mu.Lock()
	t.ws = nil
	t.mu.Unlock()
}

// attach installs ws as the live connection for tc. It closes ws and
// reports false if the client has been closed, so Close never misses a
// socket that was dialed while it ran.
func (c *Client) attach(tc *topicConn, ws *websocket.Conn) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if c.ctx.Err() != nil {
		ws.Close()
		return false
	}
	tc.ws = ws
	return true
}

// Client is a websocket pub/sub client.
type Client struct {
	cfg    Config
	logger *slog.Logger
	topics *Topics
	dialer *websocket.Dialer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	conns  map[string]*topicConn
	closed bool

	messages chan Message

	// Stats
	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
	messagesDropped  atomic.Int64
	reconnectCount   atomic.Int64
}

// New creates a client. Call Connect to open topic connections.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = log.For("transport")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = NewClientID("client")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:    cfg,
		logger: logger.With("client_id", cfg.ClientID),
		topics: NewTopics(cfg.Prefix),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[string]*topicConn),
		messages: make(chan Message, 256),
	}, nil
}

// ClientID returns the client's identifier.
func (c *Client) ClientID() string {
	return c.cfg.ClientID
}

// Topics returns the topics helper.
func (c *Client) Topics() *Topics {
	return c.topics
}

// Messages returns the channel of received payloads. It is closed by Close.
func (c *Client) Messages() <-chan Message {
	return c.messages
}

func (c *Client) topicURL(topic string) string {
	return strings.TrimRight(c.cfg.BrokerURL, "/") + "/ws/" + topic
}

func (c *Client) dial(ctx context.Context, topic string) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("X-Client-ID", c.cfg.ClientID)
	ws, _, err := c.dialer.DialContext(ctx, c.topicURL(topic), header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", topic, err)
	}
	return ws, nil
}

// Connect opens a connection for each topic that is not already connected.
// Payloads received on any of them are delivered on Messages.
func (c *Client) Connect(ctx context.Context, topics ...string) error {
	for _, topic := range topics {
		c.mu.RLock()
		closed := c.closed
		_, ok := c.conns[topic]
		c.mu.RUnlock()

		if closed {
			return ErrClosed
		}
		if ok {
			continue // Already connected
		}

		// Dial without holding c.mu so Publish and Stats stay responsive.
		c.logger.Info("connecting", "broker", c.cfg.BrokerURL, "topic", topic)
		ws, err := c.dial(ctx, topic)
		if err != nil {
			return err
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			ws.Close()
			return ErrClosed
		}
		if _, ok := c.conns[topic]; ok {
			c.mu.Unlock()
			ws.Close()
			continue
		}
		tc := &topicConn{topic: topic, ws: ws}
		c.conns[topic] = tc
		c.wg.Add(1)
		go c.readPump(tc, ws)
		c.mu.Unlock()

		c.logger.Info("connected", "topic", topic)
	}
	return nil
}

// ConnectWithRetry connects with automatic retry on failure.
func (c *Client) ConnectWithRetry(ctx context.Context, topics ...string) error {
	attempts := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := c.Connect(ctx, topics...)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrClosed) {
			return err
		}

		attempts++
		c.reconnectCount.Add(1)

		if c.cfg.MaxReconnectAttempts > 0 && attempts >= c.cfg.MaxReconnectAttempts {
			return fmt.Errorf("max reconnect attempts (%d) reached: %w", c.cfg.MaxReconnectAttempts, err)
		}

		c.logger.Warn("connection failed, retrying",
			"error", err,
			"attempt", attempts,
			"retry_in", c.cfg.ReconnectInterval,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.ReconnectInterval):
		}
	}
}

// IsConnected returns true if every topic has a live connection.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed || len(c.conns) == 0 {
		return false
	}
	for _, tc := range c.conns {
		if tc.conn() == nil {
			return false
		}
	}
	return true
}

// WatchConnection polls IsConnected every interval and calls onChange
// whenever the result differs from the previous poll. It blocks until ctx
// is cancelled or the client is closed.
func (c *Client) WatchConnection(ctx context.Context, every time.Duration, onChange func(connected bool)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	connected := c.IsConnected()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			now := c.IsConnected()
			if now == connected {
				continue
			}
			connected = now
			onChange(now)
		}
	}
}

// Publish sends data to a connected topic.
func (c *Client) Publish(ctx context.Context, topic string, data []byte) error {
	c.mu.RLock()
	tc, ok := c.conns[topic]
	closed := c.closed
	c.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if !ok {
		return fmt.Errorf("publish %s: %w", topic, ErrNotConnected)
	}

	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.ws == nil {
		return fmt.Errorf("publish %s: %w", topic, ErrNotConnected)
	}
	tc.ws.SetWriteDeadline(deadline)
	if err := tc.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	c.messagesSent.Add(1)
	return nil
}

// readPump delivers frames from ws until it fails, then reconnects.
func (c *Client) readPump(tc *topicConn, ws *websocket.Conn) {
	defer c.wg.Done()

	for {
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if c.ctx.Err() == nil {
					c.logger.Warn("connection lost", "topic", tc.topic, "error", err)
				}
				break
			}
			c.messagesReceived.Add(1)
			select {
			case c.messages <- Message{Topic: tc.topic, Data: data}:
			default:
				if c.messagesDropped.Add(1)%100 == 1 {
					c.logger.Warn("receive buffer full, dropping payload", "topic", tc.topic)
				}
			}
		}

		tc.clear()
		ws.Close()

		next, ok := c.reconnect(tc.topic)
		if ok {
			ok = c.attach(tc, next)
		}
		if !ok {
			c.mu.Lock()
			if c.conns[tc.topic] == tc {
				delete(c.conns, tc.topic)
			}
			c.mu.Unlock()
			return
		}
		ws = next
	}
}

// reconnect redials topic until it succeeds, the client is closed or the
// attempt limit is reached.
func (c *Client) reconnect(topic string) (*websocket.Conn, bool) {
	attempts := 0
	for {
		select {
		case <-c.ctx.Done():
			return nil, false
		case <-time.After(c.cfg.ReconnectInterval):
		}

		attempts++
		c.reconnectCount.Add(1)
		ws, err := c.dial(c.ctx, topic)
		if err == nil && c.ctx.Err() != nil {
			ws.Close()
			return nil, false
		}
		if err == nil {
			c.logger.Info("reconnected", "topic", topic, "attempts", attempts)
			return ws, true
		}
		if c.ctx.Err() != nil {
			return nil, false
		}
		if c.cfg.MaxReconnectAttempts > 0 && attempts >= c.cfg.MaxReconnectAttempts {
			c.logger.Error("giving up on topic", "topic", topic, "attempts", attempts, "error", err)
			return nil, false
		}
		c.logger.Debug("reconnect failed", "topic", topic, "attempt", attempts, "error", err)
	}
}

// Close closes every connection and the Messages channel.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cancel()

	for _, tc := range c.conns {
		tc.mu.Lock()
		if tc.ws != nil {
			tc.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			tc.ws.Close()
		}
		tc.mu.Unlock()
	}
	c.mu.Unlock()

	c.wg.Wait()
	close(c.messages)

	c.logger.Info("transport client closed")
	return nil
}

// Stats returns client statistics.
func (c *Client) Stats() ClientStats {
	return ClientStats{
		Connected:        c.IsConnected(),
		MessagesSent:     c.messagesSent.Load(),
		MessagesReceived: c.messagesReceived.Load(),
		MessagesDropped:  c.messagesDropped.Load(),
		ReconnectCount:   c.reconnectCount.Load(),
	}
}

// ClientStats contains client statistics.
type ClientStats struct {
	Connected        bool  `json:"connected"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesReceived int64 `json:"messages_received"`
	MessagesDropped  int64 `json:"messages_dropped"`
	ReconnectCount   int64 `json:"reconnect_count"`
}
