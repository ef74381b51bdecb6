package event

import "github.com/lixenwraith/jamplug/status"

// Type identifies a UI event variant
type Type uint8

const (
	// TypeStatusChanged signals a connection state transition.
	// Payload: State, Err (empty unless failed)
	TypeStatusChanged Type = iota

	// TypeUserInfoChanged signals that the peer/channel registry mutated;
	// the UI should re-copy its snapshot. Payload: none
	TypeUserInfoChanged

	// TypeTopicChanged carries the session topic. Payload: Text
	TypeTopicChanged

	// TypeChatMessage carries one chat line. Payload: User, Text
	TypeChatMessage

	// TypeCapacityWarning signals a subscription rejected for exceeding
	// preallocated playback slots. Payload: User, Text (channel name)
	TypeCapacityWarning
)

// UIEvent is the flat variant pushed by the worker and drained by the UI.
// Flat fields keep pushes allocation-free.
type UIEvent struct {
	Type  Type
	State status.ConnState
	Err   string
	User  string
	Text  string
}
