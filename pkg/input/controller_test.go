package input

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/teslashibe/go-marionette/internal/log"
	"github.com/teslashibe/go-marionette/pkg/protocol"
)

// recordingPublisher records every published payload.
type recordingPublisher struct {
	mu      sync.Mutex
	topics  []string
	payload []string
	err     error
}

func (r *recordingPublisher) Publish(ctx context.Context, topic string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.topics = append(r.topics, topic)
	r.payload = append(r.payload, string(data))
	return nil
}

func (r *recordingPublisher) messages(t *testing.T) []protocol.ControlMessage {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.ControlMessage, 0, len(r.payload))
	for _, p := range r.payload {
		m, err := protocol.Decode([]byte(p))
		if err != nil {
			t.Fatalf("published payload %q does not decode: %v", p, err)
		}
		out = append(out, m)
	}
	return out
}

func newTestController(t *testing.T, pub Publisher) *Controller {
	t.Helper()
	c, err := NewController(DefaultConfig(), pub, "mycontroller/controls", log.Discard())
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	return c
}

func TestNewController_Validation(t *testing.T) {
	pub := &recordingPublisher{}
	if _, err := NewController(DefaultConfig(), nil, "t", nil); err == nil {
		t.Error("expected error for nil publisher")
	}
	if _, err := NewController(DefaultConfig(), pub, "", nil); err == nil {
		t.Error("expected error for empty topic")
	}
	bad := DefaultConfig()
	bad.PadKnobRatio = 1.5
	if _, err := NewController(bad, pub, "t", nil); err == nil {
		t.Error("expected error for bad knob ratio")
	}
}

func TestController_OneKeyPerMessage(t *testing.T) {
	pub := &recordingPublisher{}
	c := newTestController(t, pub)
	ctx := context.Background()

	if err := c.DragPad(ctx, Left, 40, 0); err != nil {
		t.Fatal(err)
	}
	if err := c.DragPad(ctx, Right, 0, -40); err != nil {
		t.Fatal(err)
	}
	if err := c.DragSlider(ctx, 20); err != nil {
		t.Fatal(err)
	}
	if err := c.Tap(ctx, protocol.ActionThrust); err != nil {
		t.Fatal(err)
	}
	if err := c.ReleasePad(ctx, Left); err != nil {
		t.Fatal(err)
	}

	msgs := pub.messages(t)
	if len(msgs) != 5 {
		t.Fatalf("published %d messages, want 5", len(msgs))
	}
	for i, p := range pub.payload {
		var keys map[string]json.RawMessage
		if err := json.Unmarshal([]byte(p), &keys); err != nil {
			t.Fatalf("payload %d: %v", i, err)
		}
		if len(keys) != 1 {
			t.Errorf("message %d has %d top-level keys: %s", i, len(keys), p)
		}
	}

	if msgs[0].Left == nil || msgs[0].Right != nil {
		t.Errorf("msg 0 = %+v, want left only", msgs[0])
	}
	if msgs[1].Right == nil || msgs[1].Left != nil {
		t.Errorf("msg 1 = %+v, want right only", msgs[1])
	}
	if msgs[2].Slider == nil || *msgs[2].Slider <= 0 {
		t.Errorf("msg 2 = %+v, want positive slider near the top", msgs[2])
	}
	if !msgs[3].Has(protocol.ActionThrust) {
		t.Errorf("msg 3 = %+v, want thrust", msgs[3])
	}
	if msgs[4].Left == nil || !msgs[4].Left.IsZero() {
		t.Errorf("msg 4 = %+v, want explicit left zero", msgs[4])
	}
	for _, topic := range pub.topics {
		if topic != "mycontroller/controls" {
			t.Errorf("topic = %q", topic)
		}
	}
}

func TestController_ButtonEdgeTriggered(t *testing.T) {
	pub := &recordingPublisher{}
	c := newTestController(t, pub)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := c.PressButton(ctx, protocol.ActionCloak); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(pub.messages(t)); got != 1 {
		t.Fatalf("holding cloak published %d messages, want 1", got)
	}

	c.ReleaseButton(protocol.ActionCloak)
	if err := c.PressButton(ctx, protocol.ActionCloak); err != nil {
		t.Fatal(err)
	}
	if got := len(pub.messages(t)); got != 2 {
		t.Errorf("second press published %d total, want 2", got)
	}
}

func TestController_ResetRecentersSlider(t *testing.T) {
	pub := &recordingPublisher{}
	c := newTestController(t, pub)
	ctx := context.Background()

	c.DragSlider(ctx, 0)
	if _, _, s := c.Values(); s != 1 {
		t.Fatalf("slider = %v, want 1 at the top", s)
	}

	c.Tap(ctx, protocol.ActionReset)
	if _, _, s := c.Values(); s != 0 {
		t.Errorf("slider after reset = %v, want 0", s)
	}

	msgs := pub.messages(t)
	last := msgs[len(msgs)-1]
	if !last.Has(protocol.ActionReset) || last.Slider != nil {
		t.Errorf("reset message = %+v, want reset only", last)
	}
}

func TestController_PublishError(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("offline")}
	c := newTestController(t, pub)

	err := c.DragPad(context.Background(), Left, 10, 10)
	if err == nil {
		t.Fatal("expected publish error")
	}
	if c.Failed() != 1 || c.Sent() != 0 {
		t.Errorf("Failed = %d, Sent = %d", c.Failed(), c.Sent())
	}
}
