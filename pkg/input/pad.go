package input

import (
	"math"

	"github.com/teslashibe/go-marionette/pkg/protocol"
)

// Side identifies one of the two joystick pads.
type Side int

const (
	// Left drives movement.
	Left Side = iota
	// Right drives yaw.
	Right
)

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// NormalizeDrag maps a drag offset from the pad centre to a ControlVector.
//
// Offsets inside maxRadius scale linearly (delta / maxRadius). Offsets
// outside are projected onto the circle along the same angle, so diagonals
// keep their proportions. A non-positive maxRadius yields zero.
func NormalizeDrag(dx, dy, maxRadius float64) protocol.ControlVector {
	if maxRadius <= 0 || math.IsNaN(maxRadius) || math.IsNaN(dx) || math.IsNaN(dy) {
		return protocol.ControlVector{}
	}
	dist := math.Hypot(dx, dy)
	if dist <= maxRadius {
		return protocol.ControlVector{X: dx / maxRadius, Y: dy / maxRadius}
	}
	if math.IsInf(dist, 0) {
		return protocol.ControlVector{}
	}
	return protocol.ControlVector{X: dx / dist, Y: dy / dist}
}

// Pad is one joystick pad. Y grows downwards, as on screen; the viewer maps
// it onto the ground plane unchanged.
type Pad struct {
	side      Side
	maxRadius float64

	last     protocol.ControlVector
	dragging bool
}

// NewPad creates a pad whose knob travels within (size - knob) / 2.
func NewPad(side Side, size, knobRatio float64) *Pad {
	knob := size * knobRatio
	return &Pad{
		side:      side,
		maxRadius: (size - knob) / 2,
	}
}

// MaxRadius returns the usable knob travel.
func (p *Pad) MaxRadius() float64 {
	return p.maxRadius
}

// Value returns the last emitted vector.
func (p *Pad) Value() protocol.ControlVector {
	return p.last
}

// Drag updates the pad from a raw offset. The bool is false when the
// normalized vector did not change, in which case nothing should be sent.
func (p *Pad) Drag(dx, dy float64) (protocol.ControlMessage, bool) {
	v := NormalizeDrag(dx, dy, p.maxRadius)
	changed := !p.dragging || v != p.last
	p.dragging = true
	p.last = v
	if !changed {
		return protocol.ControlMessage{}, false
	}
	return p.message(v), true
}

// Release returns the pad to centre. It always yields an explicit zero.
func (p *Pad) Release() protocol.ControlMessage {
	p.dragging = false
	p.last = protocol.ControlVector{}
	return p.message(p.last)
}

func (p *Pad) message(v protocol.ControlVector) protocol.ControlMessage {
	if p.side == Left {
		return protocol.LeftMessage(v)
	}
	return protocol.RightMessage(v)
}
