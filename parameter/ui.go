package parameter

import "time"

// UI Event Queue
const (
	// EventQueueSize must be a power of two (index masking)
	EventQueueSize  = 256
	EventBufferMask = EventQueueSize - 1
)

// License Rendezvous
const (
	// LicenseTimeout is the hard cap on the worker's wait for a UI answer
	LicenseTimeout = 60 * time.Second
)

// Worker Pacing
const (
	// WorkerSleepActive between ticks while joined or handshaking
	WorkerSleepActive = 1 * time.Millisecond

	// WorkerSleepIdle between ticks while idle; upper bound keeps UI
	// actions responsive
	WorkerSleepIdle = 10 * time.Millisecond
)
