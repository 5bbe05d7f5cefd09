package transport

import "fmt"

// TopicControls carries control messages from the controller to the viewer.
const TopicControls = "controls"

// TopicState carries pose snapshots from the viewer to observers.
const TopicState = "state"

// Topics is a helper to build fully-qualified topic names.
type Topics struct {
	prefix string
}

// NewTopics creates a Topics helper with the given prefix.
func NewTopics(prefix string) *Topics {
	return &Topics{prefix: prefix}
}

// Controls returns the full control topic path.
func (t *Topics) Controls() string {
	return fmt.Sprintf("%s/%s", t.prefix, TopicControls)
}

// State returns the full state topic path.
func (t *Topics) State() string {
	return fmt.Sprintf("%s/%s", t.prefix, TopicState)
}
