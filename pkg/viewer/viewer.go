// Package viewer connects the transport to the actuation runner: control
// payloads are decoded and queued, and pose snapshots are published back
// on the state topic.
package viewer

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-marionette/internal/log"
	"github.com/teslashibe/go-marionette/pkg/actuation"
	"github.com/teslashibe/go-marionette/pkg/protocol"
	"github.com/teslashibe/go-marionette/pkg/transport"
)

// Inbox accepts decoded control messages. *actuation.Runner implements it.
type Inbox interface {
	Offer(msg protocol.ControlMessage) bool
}

// Publisher sends a payload to a topic. *transport.Client implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, data []byte) error
}

// Forwarder decodes control payloads and queues them for the runner.
type Forwarder struct {
	inbox  Inbox
	topic  string
	logger *slog.Logger

	received  atomic.Uint64
	malformed atomic.Uint64
	empty     atomic.Uint64
	dropped   atomic.Uint64
}

// NewForwarder creates a forwarder for payloads arriving on topic.
func NewForwarder(inbox Inbox, topic string, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = log.For("viewer")
	}
	return &Forwarder{inbox: inbox, topic: topic, logger: logger}
}

// Handle decodes one payload and queues it. Malformed payloads are logged
// and dropped.
func (f *Forwarder) Handle(data []byte) {
	f.received.Add(1)

	msg, err := protocol.Decode(data)
	if err != nil {
		f.malformed.Add(1)
		f.logger.Warn("dropping malformed control message", "error", err, "bytes", len(data))
		return
	}
	if msg.IsEmpty() {
		f.empty.Add(1)
		return
	}
	if !f.inbox.Offer(msg) {
		f.dropped.Add(1)
	}
}

// Run forwards messages on the forwarder's topic until ctx is cancelled or
// messages is closed.
func (f *Forwarder) Run(ctx context.Context, messages <-chan transport.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-messages:
			if !ok {
				return nil
			}
			if m.Topic != f.topic {
				continue
			}
			f.Handle(m.Data)
		}
	}
}

// ForwarderStats contains forwarder statistics.
type ForwarderStats struct {
	Received  uint64 `json:"received"`
	Malformed uint64 `json:"malformed"`
	Empty     uint64 `json:"empty"`
	Dropped   uint64 `json:"dropped"`
}

// Stats returns forwarder statistics.
func (f *Forwarder) Stats() ForwarderStats {
	return ForwarderStats{
		Received:  f.received.Load(),
		Malformed: f.malformed.Load(),
		Empty:     f.empty.Load(),
		Dropped:   f.dropped.Load(),
	}
}

// StatePublisher publishes pose snapshots. It implements actuation.PoseSink.
type StatePublisher struct {
	pub     Publisher
	topic   string
	timeout time.Duration
	now     func() time.Time
}

// NewStatePublisher creates a sink publishing to topic.
func NewStatePublisher(pub Publisher, topic string, timeout time.Duration) *StatePublisher {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &StatePublisher{pub: pub, topic: topic, timeout: timeout, now: time.Now}
}

// SendPose encodes and publishes a snapshot.
func (s *StatePublisher) SendPose(snap actuation.Snapshot) error {
	data, err := protocol.EncodeState(snap.State(s.now()))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.pub.Publish(ctx, s.topic, data); err != nil {
		return fmt.Errorf("publish state: %w", err)
	}
	return nil
}

// Visibility logs visibility changes. It implements actuation.Visual.
type Visibility struct {
	logger  *slog.Logger
	visible atomic.Bool
}

// NewVisibility creates a visibility tracker.
func NewVisibility(logger *slog.Logger) *Visibility {
	if logger == nil {
		logger = log.For("viewer")
	}
	return &Visibility{logger: logger}
}

// SetVisible records and logs a visibility change.
func (v *Visibility) SetVisible(visible bool) {
	if v.visible.Swap(visible) != visible {
		v.logger.Info("visibility changed", "visible", visible)
	}
}

// Visible reports the last visibility set.
func (v *Visibility) Visible() bool {
	return v.visible.Load()
}
