package status

import "sync/atomic"

// Snapshot is the flat record of word-sized atomics the UI samples each
// frame. Transport fields are written by the worker after each network
// tick; VU fields by the audio thread during the render call. All stores
// and loads are independent; mild skew between fields is acceptable for
// metering and beat display.
type Snapshot struct {
	BPM AtomicFloat
	BPI atomic.Int32

	IntervalPosition atomic.Int64
	IntervalLength   atomic.Int64
	BeatPosition     atomic.Int32

	MasterVU StereoPeak
	LocalVU  StereoPeak
}

// Reset clears transport fields to the not-joined state. VU decays on its
// own as the audio thread keeps storing.
func (s *Snapshot) Reset() {
	s.BPM.Set(0)
	s.BPI.Store(0)
	s.IntervalPosition.Store(0)
	s.IntervalLength.Store(0)
	s.BeatPosition.Store(0)
}
