// Package protocol defines the wire messages exchanged between the handheld
// controller and the viewer.
//
// Control messages are partial updates: every field is optional and an
// absent field means "unchanged", never "zero". There is no envelope; a
// message is a bare JSON object such as
//
//	{"left":{"x":0.5,"y":-0.25}}
//	{"slider":0.3}
//	{"button":"cloak"}
package protocol

import "math"

// ControlVector is a normalized 2-axis input (joystick pad).
// Both components are in [-1, 1] and the magnitude never exceeds 1.
type ControlVector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Magnitude returns the Euclidean length of v.
func (v ControlVector) Magnitude() float64 {
	return math.Hypot(v.X, v.Y)
}

// IsZero reports whether both components are exactly zero.
func (v ControlVector) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// ClampToDisc projects v onto the unit disc, keeping its direction.
// Non-finite components collapse the vector to zero.
func (v ControlVector) ClampToDisc() ControlVector {
	if !finite(v.X) || !finite(v.Y) {
		return ControlVector{}
	}
	m := v.Magnitude()
	if m <= 1 {
		return v
	}
	return ControlVector{X: v.X / m, Y: v.Y / m}
}

// Action is a one-shot, edge-triggered command.
type Action string

const (
	ActionThrust Action = "thrust" // upward impulse
	ActionCloak  Action = "cloak"  // hide for a fixed duration
	ActionReset  Action = "reset"  // restore the spawn pose
)

// Actions lists every known action in decode precedence order.
var Actions = []Action{ActionThrust, ActionCloak, ActionReset}

// ParseAction returns the Action named s.
func ParseAction(s string) (Action, bool) {
	for _, a := range Actions {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

// ControlMessage is one partial control update.
// Nil pointers mean the field was not present on the wire.
type ControlMessage struct {
	Left    *ControlVector
	Right   *ControlVector
	Slider  *float64
	Actions []Action
}

// IsEmpty reports whether the message carries nothing (a no-op).
func (m ControlMessage) IsEmpty() bool {
	return m.Left == nil && m.Right == nil && m.Slider == nil && len(m.Actions) == 0
}

// Has reports whether the message carries action a.
func (m ControlMessage) Has(a Action) bool {
	for _, got := range m.Actions {
		if got == a {
			return true
		}
	}
	return false
}

// LeftMessage returns a message carrying only the left pad vector.
func LeftMessage(v ControlVector) ControlMessage {
	return ControlMessage{Left: &v}
}

// RightMessage returns a message carrying only the right pad vector.
func RightMessage(v ControlVector) ControlMessage {
	return ControlMessage{Right: &v}
}

// SliderMessage returns a message carrying only the slider value.
func SliderMessage(value float64) ControlMessage {
	return ControlMessage{Slider: &value}
}

// ActionMessage returns a message carrying a single action.
func ActionMessage(a Action) ControlMessage {
	return ControlMessage{Actions: []Action{a}}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
