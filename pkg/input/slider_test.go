package input

import (
	"math"
	"testing"

	"github.com/teslashibe/go-marionette/pkg/protocol"
)

func TestSlider_ValueAt(t *testing.T) {
	// knob = 20, usable centre range = [20, 180]
	s := NewSlider(200, 20, 1.0, 10)
	minY, maxY := s.Range()
	if minY != 20 || maxY != 180 {
		t.Fatalf("Range() = (%v, %v), want (20, 180)", minY, maxY)
	}

	tests := []struct {
		y    float64
		want float64
	}{
		{20, 1},
		{180, -1},
		{100, 0},
		{60, 0.5},
		{140, -0.5},
		{-50, 1},  // clamped to top
		{999, -1}, // clamped to bottom
	}
	for _, tt := range tests {
		if got := s.ValueAt(tt.y); !floatEquals(got, tt.want) {
			t.Errorf("ValueAt(%v) = %v, want %v", tt.y, got, tt.want)
		}
	}
}

func TestSlider_DegenerateTrack(t *testing.T) {
	s := NewSlider(20, 20, 1.0, 10)
	for _, y := range []float64{0, 10, 20, math.NaN()} {
		if got := s.ValueAt(y); got != 0 {
			t.Errorf("ValueAt(%v) on degenerate track = %v, want 0", y, got)
		}
	}
}

func TestSlider_DragEmitsOnEveryChange(t *testing.T) {
	s := NewSlider(200, 20, 1.0, 10)

	var sent []float64
	for _, y := range []float64{60, 61, 61, 62, 100} {
		if msg, ok := s.DragTo(y); ok {
			if msg.Slider == nil || msg.Left != nil || msg.Right != nil {
				t.Fatalf("slider message should carry only slider: %+v", msg)
			}
			sent = append(sent, *msg.Slider)
		}
	}
	if len(sent) != 4 {
		t.Errorf("sent %d slider messages (%v), want 4", len(sent), sent)
	}
	if sent[len(sent)-1] != 0 {
		t.Errorf("last value = %v, want 0 at the centre", sent[len(sent)-1])
	}
}

func TestButtons_UnknownActionIgnored(t *testing.T) {
	b := NewButtons()
	if _, ok := b.Press(protocol.Action("jump")); ok {
		t.Error("unknown action should not emit")
	}
	if _, ok := b.Press(protocol.ActionThrust); !ok {
		t.Error("thrust should emit")
	}
	if !b.Held(protocol.ActionThrust) {
		t.Error("thrust should be held")
	}
	b.Release(protocol.ActionThrust)
	if b.Held(protocol.ActionThrust) {
		t.Error("thrust should be released")
	}
}
