// Package relay provides a topic-based websocket pub/sub broker.
//
// A client connects to /ws/<topic>. Every frame it sends is forwarded to the
// other clients connected to the same topic. Topics are created on first
// use and kept for the life of the server.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/teslashibe/go-marionette/internal/log"
	"github.com/teslashibe/go-marionette/pkg/hub"
)

const version = "1.0.0"

// Config holds relay server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8090".
	Addr string `yaml:"addr" json:"addr"`

	// AllowOrigins is the CORS origin list for the HTTP API.
	AllowOrigins string `yaml:"allow_origins" json:"allow_origins"`

	// AccessLog enables the fiber request logger.
	AccessLog bool `yaml:"access_log" json:"access_log"`

	// MaxTopics caps the number of distinct topics. 0 means unlimited.
	MaxTopics int `yaml:"max_topics" json:"max_topics"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8090",
		AllowOrigins: "*",
		MaxTopics:    64,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.MaxTopics < 0 {
		return fmt.Errorf("max_topics must be non-negative, got %d", c.MaxTopics)
	}
	return nil
}

// Server is the relay broker.
type Server struct {
	cfg    Config
	logger *slog.Logger
	app    *fiber.App

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	hubs map[string]*hub.Hub

	started     time.Time
	connections atomic.Uint64
	rejected    atomic.Uint64
}

// New creates a relay server with its routes registered.
func New(cfg Config, lg *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid relay config: %w", err)
	}
	if lg == nil {
		lg = log.For("relay")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		logger:  lg,
		ctx:     ctx,
		cancel:  cancel,
		hubs:    make(map[string]*hub.Hub),
		started: time.Now(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "marionette-relay",
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	if cfg.AccessLog {
		app.Use(logger.New())
	}

	s.RegisterRoutes(app)
	s.RegisterAPIRoutes(app.Group("/api"))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"version": version,
			"topics":  s.TopicCount(),
		})
	})

	s.app = app
	return s, nil
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on the configured address. It blocks until Shutdown.
func (s *Server) Listen() error {
	s.logger.Info("relay listening", "addr", s.cfg.Addr)
	return s.app.Listen(s.cfg.Addr)
}

// Shutdown stops accepting connections and stops every topic hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.app.ShutdownWithContext(ctx)
}

// RegisterRoutes registers the websocket routes on a fiber app.
func (s *Server) RegisterRoutes(app *fiber.App) {
	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		topic := strings.Trim(strings.TrimPrefix(c.Path(), "/ws"), "/")
		if err := ValidateTopic(topic); err != nil {
			s.rejected.Add(1)
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		c.Locals("topic", topic)
		return c.Next()
	})

	app.Get("/ws/*", websocket.New(s.handleConn))
}

// handleConn attaches a websocket connection to its topic hub.
func (s *Server) handleConn(c *websocket.Conn) {
	topic, _ := c.Locals("topic").(string)
	h, err := s.hubFor(topic)
	if err != nil {
		s.rejected.Add(1)
		s.logger.Warn("rejecting connection", "topic", topic, "error", err)
		c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
		return
	}

	client := hub.NewClient(h, c, uuid.NewString())
	if client == nil {
		return
	}
	s.connections.Add(1)
	client.Run()
}

// hubFor returns the hub for topic, creating and starting it if needed.
func (s *Server) hubFor(topic string) (*hub.Hub, error) {
	s.mu.RLock()
	h, ok := s.hubs[topic]
	s.mu.RUnlock()
	if ok {
		return h, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.hubs[topic]; ok {
		return h, nil
	}
	if s.cfg.MaxTopics > 0 && len(s.hubs) >= s.cfg.MaxTopics {
		return nil, fmt.Errorf("topic limit %d reached", s.cfg.MaxTopics)
	}
	if s.ctx.Err() != nil {
		return nil, fmt.Errorf("relay shutting down")
	}

	h = hub.New(topic, s.logger)
	s.hubs[topic] = h
	go h.Run(s.ctx)
	s.logger.Info("topic created", "topic", topic)
	return h, nil
}

// ValidateTopic checks a topic name: non-empty slash-separated segments of
// printable characters, without MQTT-style wildcards.
func ValidateTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("topic is required")
	}
	if len(topic) > 256 {
		return fmt.Errorf("topic too long")
	}
	for _, seg := range strings.Split(topic, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("invalid topic segment %q in %q", seg, topic)
		}
	}
	for _, r := range topic {
		if r == '#' || r == '+' || r <= ' ' || r == 0x7f {
			return fmt.Errorf("invalid character %q in topic %q", r, topic)
		}
	}
	return nil
}

// Publish injects msg into topic as if a client had sent it. Every client
// on the topic receives it. The topic is created if needed.
func (s *Server) Publish(topic string, msg hub.Message) (int, error) {
	if err := ValidateTopic(topic); err != nil {
		return 0, err
	}
	h, err := s.hubFor(topic)
	if err != nil {
		return 0, err
	}
	if !h.Broadcast(msg) {
		return 0, fmt.Errorf("topic %s is congested", topic)
	}
	return h.ClientCount(), nil
}

// TopicCount returns the number of topics.
func (s *Server) TopicCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.hubs)
}

// Topics returns per-topic statistics sorted by topic name.
func (s *Server) Topics() []hub.Stats {
	s.mu.RLock()
	out := make([]hub.Stats, 0, len(s.hubs))
	for _, h := range s.hubs {
		out = append(out, h.GetStats())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out
}

// Stats contains relay statistics.
type Stats struct {
	Topics      int     `json:"topics"`
	Clients     int     `json:"clients"`
	Connections uint64  `json:"connections"`
	Rejected    uint64  `json:"rejected"`
	Published   uint64  `json:"published"`
	Delivered   uint64  `json:"delivered"`
	Dropped     uint64  `json:"dropped"`
	UptimeSec   float64 `json:"uptime_sec"`
}

// GetStats returns relay statistics.
func (s *Server) GetStats() Stats {
	st := Stats{
		Connections: s.connections.Load(),
		Rejected:    s.rejected.Load(),
		UptimeSec:   time.Since(s.started).Seconds(),
	}
	for _, t := range s.Topics() {
		st.Topics++
		st.Clients += t.Clients
		st.Published += t.Published
		st.Delivered += t.Delivered
		st.Dropped += t.Dropped
	}
	return st
}

// RegisterAPIRoutes registers the read-only HTTP API.
func (s *Server) RegisterAPIRoutes(api fiber.Router) {
	api.Get("/topics", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"topics": s.Topics(),
			"count":  s.TopicCount(),
		})
	})

	// POST /api/publish/<topic>: the request body is sent to every
	// subscriber. application/octet-stream bodies go out as binary frames.
	api.Post("/publish/*", func(c *fiber.Ctx) error {
		topic := c.Params("*")
		data := append([]byte(nil), c.Body()...)

		msg := hub.NewTextMessage(data)
		if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEOctetStream) {
			msg = hub.NewBinaryMessage(data)
		}

		if err := ValidateTopic(topic); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		clients, err := s.Publish(topic, msg)
		if err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"topic":   topic,
			"clients": clients,
		})
	})

	api.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(s.GetStats())
	})

	api.Get("/metrics", func(c *fiber.Ctx) error {
		st := s.GetStats()
		return c.SendString(fmt.Sprintf(`# HELP marionette_relay_topics Active topic count
# TYPE marionette_relay_topics gauge
marionette_relay_topics %d

# HELP marionette_relay_clients Connected client count
# TYPE marionette_relay_clients gauge
marionette_relay_clients %d

# HELP marionette_relay_published Frames published
# TYPE marionette_relay_published counter
marionette_relay_published %d

# HELP marionette_relay_delivered Frames delivered
# TYPE marionette_relay_delivered counter
marionette_relay_delivered %d
`, st.Topics, st.Clients, st.Published, st.Delivered))
	})
}
