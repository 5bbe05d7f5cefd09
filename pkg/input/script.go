package input

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/teslashibe/go-marionette/pkg/protocol"
)

// ErrBadGesture is returned for script lines that cannot be parsed.
var ErrBadGesture = errors.New("bad gesture")

// GestureKind enumerates the script verbs.
type GestureKind int

const (
	GestureDrag GestureKind = iota
	GestureRelease
	GestureSlider
	GesturePress
	GestureLift
	GestureTap
	GestureWait
)

// Gesture is one parsed script line.
type Gesture struct {
	Kind   GestureKind
	Side   Side
	DX, DY float64
	Y      float64
	Action protocol.Action
	Wait   time.Duration
}

// ParseGesture parses one line of the gesture script:
//
//	drag left 30 -12     pad offset in points
//	release right        finger lifted from a pad
//	slider 80            slider knob y in points
//	press thrust         button down
//	lift thrust          button up
//	tap cloak            press + lift
//	wait 250ms           pause
func ParseGesture(line string) (Gesture, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Gesture{}, fmt.Errorf("%w: empty line", ErrBadGesture)
	}

	verb := strings.ToLower(fields[0])
	args := fields[1:]
	switch verb {
	case "drag":
		if len(args) != 3 {
			return Gesture{}, fmt.Errorf("%w: drag wants <side> <dx> <dy>", ErrBadGesture)
		}
		side, err := parseSide(args[0])
		if err != nil {
			return Gesture{}, err
		}
		dx, err1 := strconv.ParseFloat(args[1], 64)
		dy, err2 := strconv.ParseFloat(args[2], 64)
		if err1 != nil || err2 != nil {
			return Gesture{}, fmt.Errorf("%w: drag offsets must be numbers", ErrBadGesture)
		}
		return Gesture{Kind: GestureDrag, Side: side, DX: dx, DY: dy}, nil

	case "release":
		if len(args) != 1 {
			return Gesture{}, fmt.Errorf("%w: release wants <side>", ErrBadGesture)
		}
		side, err := parseSide(args[0])
		if err != nil {
			return Gesture{}, err
		}
		return Gesture{Kind: GestureRelease, Side: side}, nil

	case "slider":
		if len(args) != 1 {
			return Gesture{}, fmt.Errorf("%w: slider wants <y>", ErrBadGesture)
		}
		y, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return Gesture{}, fmt.Errorf("%w: slider y must be a number", ErrBadGesture)
		}
		return Gesture{Kind: GestureSlider, Y: y}, nil

	case "press", "lift", "tap":
		if len(args) != 1 {
			return Gesture{}, fmt.Errorf("%w: %s wants <action>", ErrBadGesture, verb)
		}
		a, ok := protocol.ParseAction(strings.ToLower(args[0]))
		if !ok {
			return Gesture{}, fmt.Errorf("%w: unknown action %q", ErrBadGesture, args[0])
		}
		kind := GestureTap
		switch verb {
		case "press":
			kind = GesturePress
		case "lift":
			kind = GestureLift
		}
		return Gesture{Kind: kind, Action: a}, nil

	case "wait":
		if len(args) != 1 {
			return Gesture{}, fmt.Errorf("%w: wait wants <duration>", ErrBadGesture)
		}
		d, err := time.ParseDuration(args[0])
		if err != nil || d < 0 {
			return Gesture{}, fmt.Errorf("%w: bad duration %q", ErrBadGesture, args[0])
		}
		return Gesture{Kind: GestureWait, Wait: d}, nil
	}

	return Gesture{}, fmt.Errorf("%w: unknown verb %q", ErrBadGesture, fields[0])
}

func parseSide(s string) (Side, error) {
	switch strings.ToLower(s) {
	case "left", "l":
		return Left, nil
	case "right", "r":
		return Right, nil
	}
	return Left, fmt.Errorf("%w: unknown pad %q", ErrBadGesture, s)
}

// Apply performs g on the controller. Waits honour ctx.
func (c *Controller) Apply(ctx context.Context, g Gesture) error {
	switch g.Kind {
	case GestureDrag:
		return c.DragPad(ctx, g.Side, g.DX, g.DY)
	case GestureRelease:
		return c.ReleasePad(ctx, g.Side)
	case GestureSlider:
		return c.DragSlider(ctx, g.Y)
	case GesturePress:
		return c.PressButton(ctx, g.Action)
	case GestureLift:
		c.ReleaseButton(g.Action)
		return nil
	case GestureTap:
		return c.Tap(ctx, g.Action)
	case GestureWait:
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.Wait):
			return nil
		}
	}
	return fmt.Errorf("%w: unknown kind %d", ErrBadGesture, g.Kind)
}

// RunScript reads gestures line by line and applies them. Blank lines and
// lines starting with '#' are skipped. Parse errors stop the script;
// publish errors are reported through onError and the script continues,
// since the link is best-effort anyway.
func RunScript(ctx context.Context, r io.Reader, c *Controller, onError func(line int, err error)) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		g, err := ParseGesture(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := c.Apply(ctx, g); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if onError != nil {
				onError(lineNo, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	return nil
}
