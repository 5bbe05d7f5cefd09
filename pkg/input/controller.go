package input

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-marionette/pkg/protocol"
)

// Publisher sends an encoded message on a topic. The transport client
// satisfies it; tests use a recorder.
type Publisher interface {
	Publish(ctx context.Context, topic string, data []byte) error
}

// Controller glues the pads, slider and buttons of one touch surface to a
// Publisher. Every gesture publishes at most one single-key message.
type Controller struct {
	pub    Publisher
	topic  string
	logger *slog.Logger

	mu      sync.Mutex
	left    *Pad
	right   *Pad
	slider  *Slider
	buttons *Buttons

	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewController creates a controller publishing on topic.
func NewController(cfg Config, pub Publisher, topic string, logger *slog.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input config: %w", err)
	}
	if pub == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		pub:     pub,
		topic:   topic,
		logger:  logger,
		left:    NewPad(Left, cfg.PadSize, cfg.PadKnobRatio),
		right:   NewPad(Right, cfg.PadSize, cfg.PadKnobRatio),
		slider:  NewSlider(cfg.SliderHeight, cfg.SliderWidth, cfg.SliderKnobRatio, cfg.SliderMargin),
		buttons: NewButtons(),
	}, nil
}

func (c *Controller) pad(side Side) *Pad {
	if side == Left {
		return c.left
	}
	return c.right
}

// DragPad reports a drag offset (points from the pad centre).
func (c *Controller) DragPad(ctx context.Context, side Side, dx, dy float64) error {
	c.mu.Lock()
	msg, ok := c.pad(side).Drag(dx, dy)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return c.send(ctx, msg)
}

// ReleasePad reports the finger lifting off a pad.
func (c *Controller) ReleasePad(ctx context.Context, side Side) error {
	c.mu.Lock()
	msg := c.pad(side).Release()
	c.mu.Unlock()
	return c.send(ctx, msg)
}

// DragSlider reports the slider knob position (points from the track top).
func (c *Controller) DragSlider(ctx context.Context, y float64) error {
	c.mu.Lock()
	msg, ok := c.slider.DragTo(y)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return c.send(ctx, msg)
}

// PressButton reports a button going down. Repeated presses while held are
// swallowed.
func (c *Controller) PressButton(ctx context.Context, a protocol.Action) error {
	c.mu.Lock()
	msg, ok := c.buttons.Press(a)
	if ok && a == protocol.ActionReset {
		c.slider.Recenter()
	}
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return c.send(ctx, msg)
}

// ReleaseButton reports a button going up.
func (c *Controller) ReleaseButton(a protocol.Action) {
	c.mu.Lock()
	c.buttons.Release(a)
	c.mu.Unlock()
}

// Tap is a press immediately followed by a release.
func (c *Controller) Tap(ctx context.Context, a protocol.Action) error {
	err := c.PressButton(ctx, a)
	c.ReleaseButton(a)
	return err
}

// Values returns the controller-side view of the inputs.
func (c *Controller) Values() (left, right protocol.ControlVector, slider float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.left.Value(), c.right.Value(), c.slider.Value()
}

// Sent returns how many messages were published successfully.
func (c *Controller) Sent() uint64 {
	return c.sent.Load()
}

// Failed returns how many publishes failed.
func (c *Controller) Failed() uint64 {
	return c.failed.Load()
}

func (c *Controller) send(ctx context.Context, msg protocol.ControlMessage) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if err := c.pub.Publish(ctx, c.topic, data); err != nil {
		c.failed.Add(1)
		c.logger.Debug("publish failed", "topic", c.topic, "error", err)
		return fmt.Errorf("publish control message: %w", err)
	}
	c.sent.Add(1)
	c.logger.Debug("published", "topic", c.topic, "payload", string(data))
	return nil
}
