package status

import "sync/atomic"

// ConnState is the connection lifecycle tag. Transitions happen only on
// the worker thread; audio and UI threads observe through a Mirror.
type ConnState int32

const (
	StateIdle ConnState = iota
	StateResolving
	StateHandshaking
	StateAuthenticating
	StateAwaitingLicense
	StateJoined
	StateDisconnecting
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateHandshaking:
		return "handshaking"
	case StateAuthenticating:
		return "authenticating"
	case StateAwaitingLicense:
		return "awaiting license"
	case StateJoined:
		return "joined"
	case StateDisconnecting:
		return "disconnecting"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Mirror publishes the engine's connection state for lock-free observers.
// Store uses release semantics, Load acquire (Go atomics are seq-cst,
// which subsumes both).
type Mirror struct {
	v atomic.Int32
}

// Store publishes a new state. Worker thread only.
func (m *Mirror) Store(s ConnState) {
	m.v.Store(int32(s))
}

// Load returns the current state. Safe from any thread.
func (m *Mirror) Load() ConnState {
	return ConnState(m.v.Load())
}
