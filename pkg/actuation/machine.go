// Package actuation turns control messages into the motion of a single
// remote object.
//
// A Machine holds the latched inputs and the integrated pose. It has no
// locking of its own: one goroutine (normally a Runner) applies messages and
// steps the simulation, so messages and ticks never interleave.
package actuation

import (
	"log/slog"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-marionette/internal/log"
	"github.com/teslashibe/go-marionette/pkg/protocol"
)

// Phase is the observable motion phase of the object.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseRotating    Phase = "rotating"
	PhaseTranslating Phase = "translating"
	PhaseCloaked     Phase = "cloaked"
	PhaseDespawned   Phase = "despawned"
)

// Pose is the object's transform.
type Pose struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Scale    float64
}

// Visual receives visibility changes. The viewer's renderer implements it.
type Visual interface {
	SetVisible(visible bool)
}

// Machine is the actuation state machine.
type Machine struct {
	cfg    Config
	visual Visual
	logger *slog.Logger

	spawned bool
	start   Pose

	// latched inputs
	moveInput   protocol.ControlVector
	rotateInput protocol.ControlVector
	targetScale float64

	// integrated state
	pose             Pose
	currentVelocity  mgl64.Vec3
	physicalVelocity mgl64.Vec3
	currentRotate    mgl64.Vec2
	phase            Phase

	cloaked       bool
	cloakDeadline time.Time
	resetPending  bool

	tick uint64

	ignoredThrusts uint64
	ignoredResets  uint64
}

// NewMachine creates a machine. It does nothing until Spawn is called.
// visual may be nil.
func NewMachine(cfg Config, visual Visual, logger *slog.Logger) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.For("actuation")
	}
	return &Machine{
		cfg:    cfg,
		visual: visual,
		logger: logger,
		phase:  PhaseDespawned,
	}, nil
}

// Config returns the machine's configuration.
func (m *Machine) Config() Config {
	return m.cfg
}

// Spawn places the object at start. A zero rotation is treated as
// identity and a non-positive scale as the configured initial scale.
//
// Only start.Position is kept as the reset target: a reset always returns
// to identity rotation and the configured initial scale, whatever
// rotation and scale the object was spawned with.
func (m *Machine) Spawn(start Pose) {
	if start.Rotation.Len() == 0 {
		start.Rotation = mgl64.QuatIdent()
	}
	start.Rotation = start.Rotation.Normalize()
	if start.Scale <= 0 {
		start.Scale = m.cfg.Scale.Initial
	}

	m.start = start
	m.spawned = true
	m.clear()
	m.pose = start
	m.targetScale = start.Scale
	m.setVisible(true)

	m.logger.Info("object spawned",
		"position", vecAttr(start.Position),
		"scale", start.Scale)
}

// SpawnDefault spawns the object at the configured spawn position with
// identity rotation and the initial scale.
func (m *Machine) SpawnDefault() {
	p := m.cfg.SpawnPosition
	m.Spawn(Pose{
		Position: mgl64.Vec3{p[0], p[1], p[2]},
		Rotation: mgl64.QuatIdent(),
		Scale:    m.cfg.Scale.Initial,
	})
}

// Despawn removes the object. Later messages and ticks are ignored until
// the next Spawn.
func (m *Machine) Despawn() {
	if !m.spawned {
		return
	}
	m.spawned = false
	m.clear()
	m.phase = PhaseDespawned
	m.setVisible(false)
	m.logger.Info("object despawned")
}

// clear zeroes every input and transient.
func (m *Machine) clear() {
	m.moveInput = protocol.ControlVector{}
	m.rotateInput = protocol.ControlVector{}
	m.currentVelocity = mgl64.Vec3{}
	m.physicalVelocity = mgl64.Vec3{}
	m.currentRotate = mgl64.Vec2{}
	m.cloaked = false
	m.cloakDeadline = time.Time{}
	m.resetPending = false
	m.phase = PhaseIdle
}

// Apply latches the fields present in msg and fires its actions. Absent
// fields keep their previous value. Continuous fields are applied before
// actions, so a reset in the same message wins.
func (m *Machine) Apply(msg protocol.ControlMessage, now time.Time) {
	if !m.spawned {
		return
	}
	if msg.Left != nil {
		m.moveInput = m.sanitize(*msg.Left)
	}
	if msg.Right != nil {
		m.rotateInput = m.sanitize(*msg.Right)
	}
	if msg.Slider != nil {
		m.targetScale = m.cfg.Scale.Target(*msg.Slider)
	}
	for _, a := range msg.Actions {
		switch a {
		case protocol.ActionThrust:
			m.thrust()
		case protocol.ActionCloak:
			m.cloak(now)
		case protocol.ActionReset:
			m.reset()
		}
	}
}

// sanitize clamps v to the unit disc and zeroes it inside the dead-zone.
func (m *Machine) sanitize(v protocol.ControlVector) protocol.ControlVector {
	v = v.ClampToDisc()
	if v.Magnitude() < m.cfg.DeadZone {
		return protocol.ControlVector{}
	}
	return v
}

func (m *Machine) thrust() {
	if m.cloaked {
		m.ignoredThrusts++
		m.logger.Debug("thrust ignored while cloaked")
		return
	}
	m.physicalVelocity = m.physicalVelocity.Add(up.Mul(m.cfg.ThrustImpulse / m.cfg.Mass))
}

func (m *Machine) cloak(now time.Time) {
	if m.cloaked {
		return
	}
	m.cloaked = true
	m.cloakDeadline = now.Add(m.cfg.CloakDuration)
	m.phase = PhaseCloaked
	m.setVisible(false)
	m.logger.Debug("cloaked", "until", m.cloakDeadline)
}

func (m *Machine) reset() {
	if m.cloaked {
		if m.cfg.ResetPolicy == ResetDefer {
			m.resetPending = true
			m.logger.Debug("reset deferred until cloak expires")
			return
		}
		m.ignoredResets++
		m.logger.Debug("reset ignored while cloaked")
		return
	}
	m.restore()
}

// restore puts the object back at its spawn position with identity
// rotation and the initial scale, and zeroes all inputs.
func (m *Machine) restore() {
	m.pose = Pose{
		Position: m.start.Position,
		Rotation: mgl64.QuatIdent(),
		Scale:    m.cfg.Scale.Initial,
	}
	m.targetScale = m.cfg.Scale.Initial
	m.moveInput = protocol.ControlVector{}
	m.rotateInput = protocol.ControlVector{}
	m.currentVelocity = mgl64.Vec3{}
	m.physicalVelocity = mgl64.Vec3{}
	m.currentRotate = mgl64.Vec2{}
	m.phase = PhaseIdle
	m.logger.Debug("reset to spawn pose")
}

// Step advances the simulation by dt. now is used only for the cloak
// deadline.
func (m *Machine) Step(now time.Time, dt time.Duration) {
	if !m.spawned {
		return
	}
	m.tick++
	secs := dt.Seconds()
	if secs < 0 {
		secs = 0
	}

	if m.cloaked && !now.Before(m.cloakDeadline) {
		m.uncloak()
	}

	if !m.cloaked {
		target := m.face()
		m.integrate(target, secs)
		m.spin(secs)
	}

	m.pose.Scale = lerp(m.pose.Scale, m.targetScale, m.cfg.ScaleBlend)
}

func (m *Machine) uncloak() {
	m.cloaked = false
	m.cloakDeadline = time.Time{}
	m.phase = PhaseIdle
	m.setVisible(true)
	m.logger.Debug("cloak expired")
	if m.resetPending {
		m.resetPending = false
		m.restore()
	}
}

// face turns toward the movement direction and returns the target
// velocity. Translation is held at zero until the object faces within
// the configured threshold.
func (m *Machine) face() mgl64.Vec3 {
	if m.moveInput.Magnitude() <= m.cfg.DeadZone {
		m.phase = PhaseIdle
		return mgl64.Vec3{}
	}

	dir := mgl64.Vec3{m.moveInput.X, 0, m.moveInput.Y}.Normalize()
	desired := lookRotation(dir.Mul(-1))
	if angleDeg(m.pose.Rotation, desired) > m.cfg.FacingThresholdDeg {
		m.phase = PhaseRotating
		m.pose.Rotation = slerp(m.pose.Rotation, desired, m.cfg.FacingBlend)
		return mgl64.Vec3{}
	}

	m.phase = PhaseTranslating
	return dir.Mul(m.cfg.MoveSpeed)
}

// integrate smooths the commanded velocity toward target and moves the
// object by both the commanded and the impulse velocity.
func (m *Machine) integrate(target mgl64.Vec3, secs float64) {
	alpha := 1.0
	if tau := m.cfg.VelocitySmoothTime.Seconds(); tau > 0 {
		alpha = clamp(secs/tau, 0, 1)
	}
	m.currentVelocity = lerpVec3(m.currentVelocity, target, alpha)

	m.pose.Position = m.pose.Position.
		Add(m.currentVelocity.Mul(secs)).
		Add(m.physicalVelocity.Mul(secs))

	if m.cfg.Drag > 0 {
		m.physicalVelocity = m.physicalVelocity.Mul(1 / (1 + m.cfg.Drag*secs))
	}
}

// spin applies the smoothed rotate input as yaw about world up. Positive
// x turns clockwise seen from above.
func (m *Machine) spin(secs float64) {
	in := mgl64.Vec2{m.rotateInput.X, m.rotateInput.Y}
	m.currentRotate = lerpVec2(m.currentRotate, in, m.cfg.RotateBlend)

	step := m.currentRotate.X() * m.cfg.RotateSpeedDeg * secs
	if step == 0 {
		return
	}
	yaw := mgl64.QuatRotate(mgl64.DegToRad(-step), up)
	m.pose.Rotation = yaw.Mul(m.pose.Rotation).Normalize()
}

func (m *Machine) setVisible(v bool) {
	if m.visual != nil {
		m.visual.SetVisible(v)
	}
}

// Snapshot is a read-only view of the machine.
type Snapshot struct {
	Tick        uint64
	Phase       Phase
	Spawned     bool
	Pose        Pose
	Visible     bool
	Cloaked     bool
	CloakUntil  time.Time
	MoveInput   protocol.ControlVector
	RotateInput protocol.ControlVector
	TargetScale float64
	Velocity    mgl64.Vec3
	Impulse     mgl64.Vec3
	ResetQueued bool
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		Tick:        m.tick,
		Phase:       m.phase,
		Spawned:     m.spawned,
		Pose:        m.pose,
		Visible:     m.spawned && !m.cloaked,
		Cloaked:     m.cloaked,
		CloakUntil:  m.cloakDeadline,
		MoveInput:   m.moveInput,
		RotateInput: m.rotateInput,
		TargetScale: m.targetScale,
		Velocity:    m.currentVelocity,
		Impulse:     m.physicalVelocity,
		ResetQueued: m.resetPending,
	}
}

// State converts the snapshot to its wire form.
func (s Snapshot) State(now time.Time) protocol.State {
	q := s.Pose.Rotation
	return protocol.State{
		Tick:      s.Tick,
		Timestamp: now.UnixMilli(),
		Phase:     string(s.Phase),
		Position:  [3]float64{s.Pose.Position.X(), s.Pose.Position.Y(), s.Pose.Position.Z()},
		Rotation:  [4]float64{q.W, q.X(), q.Y(), q.Z()},
		YawDeg:    yawDeg(q),
		Scale:     s.Pose.Scale,
		Visible:   s.Visible,
		Cloaked:   s.Cloaked,
	}
}

func vecAttr(v mgl64.Vec3) []float64 {
	return []float64{v.X(), v.Y(), v.Z()}
}
