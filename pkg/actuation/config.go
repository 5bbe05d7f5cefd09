package actuation

import (
	"fmt"
	"math"
	"time"
)

// ResetPolicy decides what a reset does while the object is cloaked.
type ResetPolicy string

const (
	// ResetIgnore drops resets received while cloaked.
	ResetIgnore ResetPolicy = "ignore"
	// ResetDefer remembers the reset and applies it when the cloak expires.
	ResetDefer ResetPolicy = "defer"
)

// ScaleMapping turns the signed slider value into a uniform scale.
//
//	slider >= 0: Initial + slider * (Max - Initial)
//	slider <  0: Initial + slider * (Initial - Min)
//
// so -1 maps to Min, 0 to Initial and +1 to Max.
type ScaleMapping struct {
	Min     float64 `yaml:"min" json:"min"`
	Initial float64 `yaml:"initial" json:"initial"`
	Max     float64 `yaml:"max" json:"max"`
}

// Target returns the scale for a slider value. The value is clamped to
// [-1, 1]; NaN maps to Initial.
func (s ScaleMapping) Target(slider float64) float64 {
	if math.IsNaN(slider) {
		return s.Initial
	}
	slider = clamp(slider, -1, 1)
	if slider >= 0 {
		return s.Initial + slider*(s.Max-s.Initial)
	}
	return s.Initial + slider*(s.Initial-s.Min)
}

// Config holds all tunable parameters of the actuation state machine.
// Blend factors are per tick; speeds are per second.
type Config struct {
	// Movement
	MoveSpeed          float64       `yaml:"move_speed" json:"move_speed"`                     // units per second
	DeadZone           float64       `yaml:"dead_zone" json:"dead_zone"`                       // input magnitude treated as zero
	FacingThresholdDeg float64       `yaml:"facing_threshold_deg" json:"facing_threshold_deg"` // rotate-to-face gate
	FacingBlend        float64       `yaml:"facing_blend" json:"facing_blend"`                 // slerp factor while turning to face
	VelocitySmoothTime time.Duration `yaml:"velocity_smooth_time" json:"velocity_smooth_time"`

	// Independent yaw
	RotateSpeedDeg float64 `yaml:"rotate_speed_deg" json:"rotate_speed_deg"` // degrees per second at full stick
	RotateBlend    float64 `yaml:"rotate_blend" json:"rotate_blend"`

	// Scale
	Scale      ScaleMapping `yaml:"scale" json:"scale"`
	ScaleBlend float64      `yaml:"scale_blend" json:"scale_blend"`

	// Impulse body
	ThrustImpulse float64 `yaml:"thrust_impulse" json:"thrust_impulse"`
	Mass          float64 `yaml:"mass" json:"mass"`
	Drag          float64 `yaml:"drag" json:"drag"` // linear drag per second

	// Cloak
	CloakDuration time.Duration `yaml:"cloak_duration" json:"cloak_duration"`
	ResetPolicy   ResetPolicy   `yaml:"reset_policy" json:"reset_policy"`

	// Spawn
	SpawnPosition [3]float64 `yaml:"spawn_position" json:"spawn_position"`

	// Loop
	TickRate  time.Duration `yaml:"tick_rate" json:"tick_rate"`
	InboxSize int           `yaml:"inbox_size" json:"inbox_size"`
}

// DefaultConfig returns the tuning the viewer ships with.
func DefaultConfig() Config {
	return Config{
		MoveSpeed:          2,
		DeadZone:           0.1,
		FacingThresholdDeg: 0.1,
		FacingBlend:        0.05,
		VelocitySmoothTime: 100 * time.Millisecond,

		RotateSpeedDeg: 100,
		RotateBlend:    0.2,

		Scale:      ScaleMapping{Min: 0.05, Initial: 0.1, Max: 0.25},
		ScaleBlend: 0.08,

		ThrustImpulse: 5,
		Mass:          1,
		Drag:          3,

		CloakDuration: 3 * time.Second,
		ResetPolicy:   ResetIgnore,

		SpawnPosition: [3]float64{0, 0, 2}, // 2m in front of the camera

		TickRate:  time.Second / 60,
		InboxSize: 64,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.MoveSpeed < 0 || c.RotateSpeedDeg < 0 {
		return fmt.Errorf("speeds must be non-negative")
	}
	if c.DeadZone < 0 || c.DeadZone >= 1 {
		return fmt.Errorf("dead_zone must be in [0, 1), got %v", c.DeadZone)
	}
	if c.FacingThresholdDeg <= 0 {
		return fmt.Errorf("facing_threshold_deg must be positive, got %v", c.FacingThresholdDeg)
	}
	for name, b := range map[string]float64{
		"facing_blend": c.FacingBlend,
		"rotate_blend": c.RotateBlend,
		"scale_blend":  c.ScaleBlend,
	} {
		if b <= 0 || b > 1 {
			return fmt.Errorf("%s must be in (0, 1], got %v", name, b)
		}
	}
	if c.VelocitySmoothTime < 0 {
		return fmt.Errorf("velocity_smooth_time must be non-negative")
	}
	if c.Scale.Min <= 0 || c.Scale.Min > c.Scale.Initial || c.Scale.Initial > c.Scale.Max {
		return fmt.Errorf("scale must satisfy 0 < min <= initial <= max, got %+v", c.Scale)
	}
	if c.Mass <= 0 {
		return fmt.Errorf("mass must be positive, got %v", c.Mass)
	}
	if c.Drag < 0 {
		return fmt.Errorf("drag must be non-negative, got %v", c.Drag)
	}
	if c.CloakDuration < 0 {
		return fmt.Errorf("cloak_duration must be non-negative")
	}
	if c.ResetPolicy != ResetIgnore && c.ResetPolicy != ResetDefer {
		return fmt.Errorf("reset_policy must be %q or %q, got %q", ResetIgnore, ResetDefer, c.ResetPolicy)
	}
	if c.TickRate <= 0 {
		return fmt.Errorf("tick_rate must be positive")
	}
	if c.InboxSize <= 0 {
		return fmt.Errorf("inbox_size must be positive")
	}
	return nil
}

// clamp restricts v to the range [min, max].
func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
