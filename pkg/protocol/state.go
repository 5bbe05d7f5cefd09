package protocol

import (
	"encoding/json"
	"fmt"
)

// State is a pose snapshot the viewer publishes on the observer topic.
// The controller never subscribes to it.
type State struct {
	Tick      uint64     `json:"tick"`
	Timestamp int64      `json:"ts"` // Unix milliseconds
	Phase     string     `json:"phase"`
	Position  [3]float64 `json:"position"`
	Rotation  [4]float64 `json:"rotation"` // w, x, y, z
	YawDeg    float64    `json:"yaw_deg"`
	Scale     float64    `json:"scale"`
	Visible   bool       `json:"visible"`
	Cloaked   bool       `json:"cloaked"`
}

// EncodeState serializes a snapshot.
func EncodeState(s State) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

// DecodeState parses a snapshot.
func DecodeState(data []byte) (State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return s, nil
}
