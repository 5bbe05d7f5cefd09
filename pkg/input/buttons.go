package input

import "github.com/teslashibe/go-marionette/pkg/protocol"

// Buttons tracks the one-shot action buttons. A press emits exactly once;
// holding the button emits nothing more until it is released.
type Buttons struct {
	held map[protocol.Action]bool
}

// NewButtons creates a button bank with every action released.
func NewButtons() *Buttons {
	return &Buttons{held: make(map[protocol.Action]bool, len(protocol.Actions))}
}

// Press returns the action message on the released→pressed edge only.
func (b *Buttons) Press(a protocol.Action) (protocol.ControlMessage, bool) {
	if _, ok := protocol.ParseAction(string(a)); !ok {
		return protocol.ControlMessage{}, false
	}
	if b.held[a] {
		return protocol.ControlMessage{}, false
	}
	b.held[a] = true
	return protocol.ActionMessage(a), true
}

// Release re-arms the button.
func (b *Buttons) Release(a protocol.Action) {
	delete(b.held, a)
}

// Held reports whether a is currently pressed.
func (b *Buttons) Held(a protocol.Action) bool {
	return b.held[a]
}
