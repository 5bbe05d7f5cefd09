// Package input converts raw touch gestures from the handheld controller
// into bounded control vectors and the minimal wire messages that carry them.
//
// The package knows nothing about the receiver. Every gesture produces at
// most one single-key protocol.ControlMessage:
//   - pad drags become {"left":…} or {"right":…}, clamped to the unit disc
//   - pad release becomes an explicit zero vector
//   - slider drags become {"slider":…} in [-1, 1]
//   - button presses become {"button":…}, once per press
package input

import "fmt"

// Config holds the touch surface geometry, in screen points.
type Config struct {
	// PadSize is the side of the square joystick pads.
	PadSize float64 `yaml:"pad_size" json:"pad_size"`

	// PadKnobRatio is the knob diameter as a fraction of PadSize.
	PadKnobRatio float64 `yaml:"pad_knob_ratio" json:"pad_knob_ratio"`

	// SliderHeight is the full track height of the vertical slider.
	SliderHeight float64 `yaml:"slider_height" json:"slider_height"`

	// SliderWidth is the track width; the knob is sized from it.
	SliderWidth float64 `yaml:"slider_width" json:"slider_width"`

	// SliderKnobRatio is the knob diameter as a fraction of SliderWidth.
	SliderKnobRatio float64 `yaml:"slider_knob_ratio" json:"slider_knob_ratio"`

	// SliderMargin is kept free at the top and bottom of the track.
	SliderMargin float64 `yaml:"slider_margin" json:"slider_margin"`
}

// DefaultConfig returns the geometry of a landscape phone layout.
func DefaultConfig() Config {
	return Config{
		PadSize:         300,
		PadKnobRatio:    0.13,
		SliderHeight:    280,
		SliderWidth:     32,
		SliderKnobRatio: 0.7,
		SliderMargin:    12,
	}
}

// Validate checks that the geometry is usable. Degenerate but non-negative
// layouts are allowed; they normalize to zero.
func (c *Config) Validate() error {
	if c.PadSize < 0 || c.SliderHeight < 0 || c.SliderWidth < 0 || c.SliderMargin < 0 {
		return fmt.Errorf("input geometry must be non-negative")
	}
	if c.PadKnobRatio < 0 || c.PadKnobRatio >= 1 {
		return fmt.Errorf("pad_knob_ratio must be in [0, 1), got %v", c.PadKnobRatio)
	}
	if c.SliderKnobRatio < 0 {
		return fmt.Errorf("slider_knob_ratio must be non-negative, got %v", c.SliderKnobRatio)
	}
	return nil
}
