package input

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-marionette/pkg/protocol"
)

func TestParseGesture(t *testing.T) {
	tests := []struct {
		line    string
		want    Gesture
		wantErr bool
	}{
		{line: "drag left 30 -12", want: Gesture{Kind: GestureDrag, Side: Left, DX: 30, DY: -12}},
		{line: "DRAG r 1.5 2", want: Gesture{Kind: GestureDrag, Side: Right, DX: 1.5, DY: 2}},
		{line: "release right", want: Gesture{Kind: GestureRelease, Side: Right}},
		{line: "slider 80", want: Gesture{Kind: GestureSlider, Y: 80}},
		{line: "press thrust", want: Gesture{Kind: GesturePress, Action: protocol.ActionThrust}},
		{line: "lift thrust", want: Gesture{Kind: GestureLift, Action: protocol.ActionThrust}},
		{line: "tap Cloak", want: Gesture{Kind: GestureTap, Action: protocol.ActionCloak}},
		{line: "wait 250ms", want: Gesture{Kind: GestureWait, Wait: 250 * time.Millisecond}},
		{line: "drag up 1 2", wantErr: true},
		{line: "drag left 1", wantErr: true},
		{line: "drag left a b", wantErr: true},
		{line: "tap jump", wantErr: true},
		{line: "wait soon", wantErr: true},
		{line: "wait -1s", wantErr: true},
		{line: "wiggle", wantErr: true},
		{line: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseGesture(tt.line)
			if tt.wantErr {
				if !errors.Is(err, ErrBadGesture) {
					t.Errorf("ParseGesture(%q) error = %v, want ErrBadGesture", tt.line, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseGesture(%q) error = %v", tt.line, err)
			}
			if got != tt.want {
				t.Errorf("ParseGesture(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestRunScript(t *testing.T) {
	pub := &recordingPublisher{}
	c := newTestController(t, pub)

	script := `
# move, turn, then cloak
drag left 40 0
drag right 0 -40
wait 1ms
release right
tap cloak
press thrust
press thrust
lift thrust
`
	if err := RunScript(context.Background(), strings.NewReader(script), c, nil); err != nil {
		t.Fatalf("RunScript() error = %v", err)
	}

	msgs := pub.messages(t)
	if len(msgs) != 5 {
		t.Fatalf("published %d messages, want 5", len(msgs))
	}
	if msgs[2].Right == nil || !msgs[2].Right.IsZero() {
		t.Errorf("msg 2 = %+v, want right zero", msgs[2])
	}
	if !msgs[3].Has(protocol.ActionCloak) || !msgs[4].Has(protocol.ActionThrust) {
		t.Errorf("actions = %+v, %+v", msgs[3], msgs[4])
	}
}

func TestRunScript_ParseErrorStops(t *testing.T) {
	pub := &recordingPublisher{}
	c := newTestController(t, pub)

	err := RunScript(context.Background(), strings.NewReader("tap thrust\nbogus\ntap cloak\n"), c, nil)
	if !errors.Is(err, ErrBadGesture) {
		t.Fatalf("RunScript() error = %v, want ErrBadGesture", err)
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error should name the line: %v", err)
	}
	if got := len(pub.messages(t)); got != 1 {
		t.Errorf("published %d messages before the error, want 1", got)
	}
}

func TestRunScript_PublishErrorsContinue(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("offline")}
	c := newTestController(t, pub)

	var lines []int
	err := RunScript(context.Background(), strings.NewReader("tap thrust\ntap cloak\n"), c, func(line int, err error) {
		lines = append(lines, line)
	})
	if err != nil {
		t.Fatalf("RunScript() error = %v", err)
	}
	if len(lines) != 2 || lines[0] != 1 || lines[1] != 2 {
		t.Errorf("error lines = %v, want [1 2]", lines)
	}
}

func TestRunScript_ContextCancelled(t *testing.T) {
	pub := &recordingPublisher{}
	c := newTestController(t, pub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunScript(ctx, strings.NewReader("wait 1h\n"), c, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RunScript() error = %v, want context.Canceled", err)
	}
}
