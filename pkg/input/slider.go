package input

import (
	"math"

	"github.com/teslashibe/go-marionette/pkg/protocol"
)

// Slider is the vertical scale slider. Its value is signed: +1 at the top
// of the usable track, -1 at the bottom, 0 in the middle.
type Slider struct {
	minY, maxY float64
	value      float64
}

// NewSlider derives the usable track from the layout: the knob centre stays
// margin + knob/2 away from either end.
func NewSlider(height, width, knobRatio, margin float64) *Slider {
	knob := width * knobRatio
	return &Slider{
		minY: margin + knob/2,
		maxY: height - margin - knob/2,
	}
}

// Value returns the current slider value.
func (s *Slider) Value() float64 {
	return s.value
}

// Range returns the usable knob centre range (top, bottom).
func (s *Slider) Range() (minY, maxY float64) {
	return s.minY, s.maxY
}

// ValueAt maps a knob position to [-1, 1], clamping to the track.
// A degenerate track maps everything to 0.
func (s *Slider) ValueAt(y float64) float64 {
	span := s.maxY - s.minY
	if span <= 0 || math.IsNaN(y) {
		return 0
	}
	if y < s.minY {
		y = s.minY
	}
	if y > s.maxY {
		y = s.maxY
	}
	return 1 - 2*((y-s.minY)/span)
}

// DragTo moves the knob. A message is produced on every change.
func (s *Slider) DragTo(y float64) (protocol.ControlMessage, bool) {
	v := s.ValueAt(y)
	if v == s.value {
		return protocol.ControlMessage{}, false
	}
	s.value = v
	return protocol.SliderMessage(v), true
}

// Recenter puts the knob back in the middle without emitting anything.
// The viewer's reset restores the scale on its own.
func (s *Slider) Recenter() {
	s.value = 0
}
