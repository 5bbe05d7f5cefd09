package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned by Decode for payloads that are not a JSON object
// of the expected shape. Callers drop such messages.
var ErrMalformed = errors.New("malformed control message")

// wireVector keeps missing components distinguishable from explicit zeros
// while decoding; a missing component reads as 0.
type wireVector struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func (w *wireVector) vector() *ControlVector {
	if w == nil {
		return nil
	}
	var v ControlVector
	if w.X != nil {
		v.X = *w.X
	}
	if w.Y != nil {
		v.Y = *w.Y
	}
	return &v
}

// flag accepts true, "true", 1 and their negatives. Anything else is false.
type flag bool

func (f *flag) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(strings.Trim(string(bytes.TrimSpace(data)), `"`)) {
	case "true", "1":
		*f = true
	default:
		*f = false
	}
	return nil
}

type wireIn struct {
	Left   *wireVector `json:"left"`
	Right  *wireVector `json:"right"`
	Slider *float64    `json:"slider"`
	Button *string     `json:"button"`

	// Legacy per-action flags, e.g. {"thrust":true}.
	Thrust flag `json:"thrust"`
	Cloak  flag `json:"cloak"`
	Reset  flag `json:"reset"`
}

type wireOut struct {
	Left   *ControlVector `json:"left,omitempty"`
	Right  *ControlVector `json:"right,omitempty"`
	Slider *float64       `json:"slider,omitempty"`
	Button Action         `json:"button,omitempty"`
	Thrust bool           `json:"thrust,omitempty"`
	Cloak  bool           `json:"cloak,omitempty"`
	Reset  bool           `json:"reset,omitempty"`
}

// Encode serializes m. A single action is written as {"button":"<name>"};
// several actions fall back to one boolean flag each so none is lost.
func Encode(m ControlMessage) ([]byte, error) {
	for _, v := range []*ControlVector{m.Left, m.Right} {
		if v != nil && (!finite(v.X) || !finite(v.Y)) {
			return nil, fmt.Errorf("encode control message: non-finite vector %+v", *v)
		}
	}
	if m.Slider != nil && !finite(*m.Slider) {
		return nil, fmt.Errorf("encode control message: non-finite slider %v", *m.Slider)
	}

	out := wireOut{Left: m.Left, Right: m.Right, Slider: m.Slider}
	actions := dedupe(m.Actions)
	switch len(actions) {
	case 0:
	case 1:
		out.Button = actions[0]
	default:
		for _, a := range actions {
			switch a {
			case ActionThrust:
				out.Thrust = true
			case ActionCloak:
				out.Cloak = true
			case ActionReset:
				out.Reset = true
			default:
				return nil, fmt.Errorf("encode control message: unknown action %q", a)
			}
		}
	}
	if out.Button != "" {
		if _, ok := ParseAction(string(out.Button)); !ok {
			return nil, fmt.Errorf("encode control message: unknown action %q", out.Button)
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode control message: %w", err)
	}
	return data, nil
}

// Decode parses a control message. Unknown fields and unknown button names
// are ignored. Absent fields stay nil. Any payload that is not a JSON object
// yields an error wrapping ErrMalformed.
func Decode(data []byte) (ControlMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ControlMessage{}, fmt.Errorf("%w: not a JSON object", ErrMalformed)
	}

	var in wireIn
	if err := json.Unmarshal(trimmed, &in); err != nil {
		return ControlMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	msg := ControlMessage{
		Left:   in.Left.vector(),
		Right:  in.Right.vector(),
		Slider: in.Slider,
	}
	if in.Button != nil {
		if a, ok := ParseAction(strings.ToLower(strings.TrimSpace(*in.Button))); ok {
			msg.Actions = append(msg.Actions, a)
		}
	}
	if in.Thrust {
		msg.Actions = append(msg.Actions, ActionThrust)
	}
	if in.Cloak {
		msg.Actions = append(msg.Actions, ActionCloak)
	}
	if in.Reset {
		msg.Actions = append(msg.Actions, ActionReset)
	}
	msg.Actions = dedupe(msg.Actions)
	return msg, nil
}

func dedupe(actions []Action) []Action {
	if len(actions) < 2 {
		return actions
	}
	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		seen := false
		for _, o := range out {
			if o == a {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, a)
		}
	}
	return out
}
