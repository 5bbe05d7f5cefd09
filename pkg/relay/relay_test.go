package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-marionette/internal/log"
)

func newTestServer(t *testing.T, addr string) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Addr = addr
	s, err := New(cfg, log.Discard())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func startServer(t *testing.T, addr string) *Server {
	t.Helper()
	s := newTestServer(t, addr)
	go s.Listen()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})
	time.Sleep(100 * time.Millisecond)
	return s
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig() invalid: %v", err)
	}
	cfg.Addr = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty addr")
	}
	if _, err := New(cfg, nil); err == nil {
		t.Error("New should reject an invalid config")
	}
}

func TestValidateTopic(t *testing.T) {
	tests := []struct {
		topic string
		ok    bool
	}{
		{"mycontroller/controls", true},
		{"a", true},
		{"a/b/c", true},
		{"", false},
		{"a//b", false},
		{"a/../b", false},
		{"a/#", false},
		{"a/+/b", false},
		{"has space", false},
		{strings.Repeat("x", 300), false},
	}
	for _, tt := range tests {
		err := ValidateTopic(tt.topic)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateTopic(%q) error = %v, want ok=%v", tt.topic, err, tt.ok)
		}
	}
}

func TestAPI_Health(t *testing.T) {
	s := newTestServer(t, ":0")

	resp, err := s.App().Test(httptest.NewRequest("GET", "/healthz", nil))
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
}

func TestAPI_TopicsAndStats(t *testing.T) {
	s := newTestServer(t, ":0")

	for _, path := range []string{"/api/topics", "/api/stats", "/api/metrics"} {
		resp, err := s.App().Test(httptest.NewRequest("GET", path, nil))
		if err != nil {
			t.Fatalf("%s: request error: %v", path, err)
		}
		if resp.StatusCode != 200 {
			t.Errorf("%s: status = %d, want 200", path, resp.StatusCode)
		}
	}

	resp, _ := s.App().Test(httptest.NewRequest("GET", "/api/topics", nil))
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"count":0`) {
		t.Errorf("topics body = %s", body)
	}
}

func TestWS_RequiresUpgrade(t *testing.T) {
	s := newTestServer(t, ":0")

	resp, err := s.App().Test(httptest.NewRequest("GET", "/ws/mycontroller/controls", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 426 {
		t.Errorf("Status = %d, want 426 Upgrade Required", resp.StatusCode)
	}
}

func TestWS_FanOutWithinTopic(t *testing.T) {
	s := startServer(t, ":18090")

	pub := dial(t, "ws://localhost:18090/ws/mycontroller/controls")
	sub := dial(t, "ws://localhost:18090/ws/mycontroller/controls")
	other := dial(t, "ws://localhost:18090/ws/mycontroller/state")

	time.Sleep(50 * time.Millisecond)
	if s.TopicCount() != 2 {
		t.Fatalf("TopicCount = %d, want 2", s.TopicCount())
	}

	if err := pub.WriteMessage(websocket.TextMessage, []byte(`{"left":{"x":1,"y":0}}`)); err != nil {
		t.Fatal(err)
	}

	sub.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := sub.ReadMessage()
	if err != nil {
		t.Fatalf("subscriber read error: %v", err)
	}
	if string(data) != `{"left":{"x":1,"y":0}}` {
		t.Errorf("subscriber got %s", data)
	}

	// Neither the publisher nor a client on another topic sees the frame.
	pub.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := pub.ReadMessage(); err == nil {
		t.Error("publisher received its own frame")
	}
	other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("client on another topic received the frame")
	}

	stats := s.GetStats()
	if stats.Connections != 3 || stats.Published != 1 || stats.Delivered != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestWS_DisconnectUpdatesClients(t *testing.T) {
	s := startServer(t, ":18091")

	ws := dial(t, "ws://localhost:18091/ws/room")
	time.Sleep(50 * time.Millisecond)
	if got := s.GetStats().Clients; got != 1 {
		t.Fatalf("Clients = %d, want 1", got)
	}

	ws.Close()
	time.Sleep(100 * time.Millisecond)
	if got := s.GetStats().Clients; got != 0 {
		t.Errorf("Clients = %d, want 0 after disconnect", got)
	}
}

func TestAPI_PublishRejectsBadTopic(t *testing.T) {
	s := newTestServer(t, ":0")

	req := httptest.NewRequest("POST", "/api/publish/room+1", strings.NewReader(`{"button":"reset"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("Status = %d, want 400", resp.StatusCode)
	}
	if s.TopicCount() != 0 {
		t.Errorf("TopicCount = %d, want 0", s.TopicCount())
	}
}

func TestAPI_PublishReachesSubscribers(t *testing.T) {
	s := startServer(t, ":18092")

	sub := dial(t, "ws://localhost:18092/ws/mycontroller/controls")
	time.Sleep(50 * time.Millisecond)

	tests := []struct {
		name        string
		contentType string
		body        string
		wantType    int
	}{
		{"json as text", "application/json", `{"button":"cloak"}`, websocket.TextMessage},
		{"octet stream as binary", "application/octet-stream", "\x01\x02\x03", websocket.BinaryMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/publish/mycontroller/controls", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			resp, err := s.App().Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != 202 {
				t.Fatalf("Status = %d, want 202", resp.StatusCode)
			}

			var body map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body["topic"] != "mycontroller/controls" || body["clients"] != float64(1) {
				t.Errorf("response = %v", body)
			}

			sub.SetReadDeadline(time.Now().Add(time.Second))
			msgType, data, err := sub.ReadMessage()
			if err != nil {
				t.Fatalf("subscriber read error: %v", err)
			}
			if msgType != tt.wantType || string(data) != tt.body {
				t.Errorf("subscriber got type %d %q, want type %d %q", msgType, data, tt.wantType, tt.body)
			}
		})
	}
}
