package actuation

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-marionette/internal/log"
	"github.com/teslashibe/go-marionette/pkg/protocol"
)

// PoseSink receives snapshots that differ enough from the last one sent.
type PoseSink interface {
	SendPose(s Snapshot) error
}

// Runner owns a Machine and drives it from a single goroutine.
//
// Control messages are queued with Offer and applied in arrival order;
// on every tick the queue is drained before the machine is stepped, so a
// message never lands in the middle of a tick.
type Runner struct {
	machine *Machine
	sink    PoseSink
	logger  *slog.Logger
	now     func() time.Time

	inbox chan protocol.ControlMessage
	rate  time.Duration

	mu       sync.RWMutex
	snapshot Snapshot
	running  bool
	stop     chan struct{}
	stopOnce sync.Once

	// tick-goroutine only
	lastTick time.Time
	lastSent Snapshot
	hasSent  bool

	// Diagnostics
	ticks        atomic.Uint64
	applied      atomic.Uint64
	dropped      atomic.Uint64
	skippedTicks atomic.Uint64
	sinkErrors   atomic.Uint64
}

// NewRunner wraps m. sink may be nil.
func NewRunner(m *Machine, sink PoseSink, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = log.For("runner")
	}
	cfg := m.Config()
	return &Runner{
		machine:  m,
		sink:     sink,
		logger:   logger,
		now:      time.Now,
		inbox:    make(chan protocol.ControlMessage, cfg.InboxSize),
		rate:     cfg.TickRate,
		stop:     make(chan struct{}),
		snapshot: m.Snapshot(),
	}
}

// Offer queues a message without blocking. It reports false when the
// inbox is full and the message was dropped.
func (r *Runner) Offer(msg protocol.ControlMessage) bool {
	select {
	case r.inbox <- msg:
		return true
	default:
		if r.dropped.Add(1)%100 == 1 {
			r.logger.Warn("inbox full, dropping control message", "dropped", r.dropped.Load())
		}
		return false
	}
}

// Run starts the control loop. It blocks until ctx is cancelled or Stop is
// called.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.rate)
	defer ticker.Stop()

	r.mu.Lock()
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	r.logger.Info("actuation loop started", "hz", math.Round(1/r.rate.Seconds()))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("actuation loop stopped", "reason", ctx.Err())
			return ctx.Err()
		case <-r.stop:
			r.logger.Info("actuation loop stopped")
			return nil
		case msg := <-r.inbox:
			r.apply(msg)
		case <-ticker.C:
			r.drain()
			r.step()
		}
	}
}

// Stop halts the control loop. It is safe to call more than once.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// IsRunning reports whether Run is active.
func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Snapshot returns the state after the most recent tick.
func (r *Runner) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

func (r *Runner) apply(msg protocol.ControlMessage) {
	r.machine.Apply(msg, r.now())
	r.applied.Add(1)
}

func (r *Runner) drain() {
	for {
		select {
		case msg := <-r.inbox:
			r.apply(msg)
		default:
			return
		}
	}
}

// step executes one control cycle.
func (r *Runner) step() {
	now := r.now()
	dt := r.rate
	if !r.lastTick.IsZero() {
		dt = now.Sub(r.lastTick)
	}
	r.lastTick = now

	// 1. Advance the simulation
	r.machine.Step(now, dt)
	snap := r.machine.Snapshot()

	r.mu.Lock()
	r.snapshot = snap
	r.mu.Unlock()
	ticks := r.ticks.Add(1)

	// 2. Dead-zone filtering
	if r.sink == nil || !r.needsSend(snap) {
		r.skippedTicks.Add(1)
	} else if err := r.sink.SendPose(snap); err != nil {
		if r.sinkErrors.Add(1)%100 == 1 {
			r.logger.Warn("pose sink failed", "error", err, "errors", r.sinkErrors.Load())
		}
	} else {
		r.lastSent = snap
		r.hasSent = true
	}

	// 3. Periodic heartbeat
	if ticks%600 == 0 {
		p := snap.Pose.Position
		r.logger.Debug("heartbeat",
			"ticks", ticks,
			"skipped", r.skippedTicks.Load(),
			"phase", snap.Phase,
			"position", []float64{p.X(), p.Y(), p.Z()},
			"scale", snap.Pose.Scale)
	}
}

// needsSend returns true if the snapshot differs enough from the last one
// sent.
func (r *Runner) needsSend(s Snapshot) bool {
	const (
		positionThreshold = 0.001 // 1mm
		rotationThreshold = 0.05  // degrees
		scaleThreshold    = 0.0005
	)
	if !r.hasSent {
		return true
	}
	last := r.lastSent
	if s.Phase != last.Phase || s.Visible != last.Visible || s.Spawned != last.Spawned {
		return true
	}
	if s.Pose.Position.Sub(last.Pose.Position).Len() >= positionThreshold {
		return true
	}
	if angleDeg(s.Pose.Rotation, last.Pose.Rotation) >= rotationThreshold {
		return true
	}
	return math.Abs(s.Pose.Scale-last.Pose.Scale) >= scaleThreshold
}

// Stats is a snapshot of runner counters.
type Stats struct {
	Ticks        uint64 `json:"ticks"`
	Applied      uint64 `json:"applied"`
	Dropped      uint64 `json:"dropped"`
	SkippedTicks uint64 `json:"skipped_ticks"`
	SinkErrors   uint64 `json:"sink_errors"`
	Queued       int    `json:"queued"`
}

// Stats returns the runner's counters.
func (r *Runner) Stats() Stats {
	return Stats{
		Ticks:        r.ticks.Load(),
		Applied:      r.applied.Load(),
		Dropped:      r.dropped.Load(),
		SkippedTicks: r.skippedTicks.Load(),
		SinkErrors:   r.sinkErrors.Load(),
		Queued:       len(r.inbox),
	}
}
