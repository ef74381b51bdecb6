package ninjam

import (
	"math"
	"sync/atomic"

	"github.com/lixenwraith/jamplug/status"
)

// intervalFrames derives the interval length in frames from tempo
func intervalFrames(sampleRate int, bpm float64, bpi int) int64 {
	if bpm <= 0 || bpi <= 0 {
		return 0
	}
	return int64(math.Round(float64(sampleRate) * 60 * float64(bpi) / bpm))
}

// intervalClock is the shared interval position. The audio thread
// advances it each block; the worker and UI read it through atomics.
// Tempo changes mid-session are adopted only at the next boundary, so
// the running interval keeps its original length.
type intervalClock struct {
	position atomic.Int64
	length   atomic.Int64
	bpi      atomic.Int32
	bpm      status.AtomicFloat

	// count increments at every boundary; the worker detects interval
	// rollover by comparing against its last observed value
	count atomic.Uint64

	pendingSet    atomic.Bool
	pendingLength atomic.Int64
	pendingBPI    atomic.Int32
	pendingBPM    status.AtomicFloat
}

// configure applies tempo immediately. Worker thread, before the first
// interval runs.
func (c *intervalClock) configure(sampleRate int, bpm float64, bpi int) {
	c.bpm.Set(bpm)
	c.bpi.Store(int32(bpi))
	c.length.Store(intervalFrames(sampleRate, bpm, bpi))
	c.position.Store(0)
	c.pendingSet.Store(false)
}

// schedule stages tempo for adoption at the next boundary. Worker thread.
func (c *intervalClock) schedule(sampleRate int, bpm float64, bpi int) {
	c.pendingBPM.Set(bpm)
	c.pendingBPI.Store(int32(bpi))
	c.pendingLength.Store(intervalFrames(sampleRate, bpm, bpi))
	c.pendingSet.Store(true)
}

// advance moves the position by frames, wrapping at the boundary and
// adopting any staged tempo there. Audio thread only; no allocation.
// Returns true when a boundary was crossed.
func (c *intervalClock) advance(frames int64) bool {
	length := c.length.Load()
	if length <= 0 {
		return false
	}

	pos := c.position.Load() + frames
	if pos < length {
		c.position.Store(pos)
		return false
	}
	pos -= length

	if c.pendingSet.Swap(false) {
		length = c.pendingLength.Load()
		c.bpm.Set(c.pendingBPM.Get())
		c.bpi.Store(c.pendingBPI.Load())
		c.length.Store(length)
	}
	if length > 0 && pos >= length {
		pos %= length
	}

	c.position.Store(pos)
	c.count.Add(1)
	return true
}

// beat returns the current beat index within the interval
func (c *intervalClock) beat() int32 {
	length := c.length.Load()
	if length <= 0 {
		return 0
	}
	return int32(c.position.Load() * int64(c.bpi.Load()) / length)
}

// reset clears the clock to the not-joined state. Worker thread, with no
// concurrent audio rendering against the session.
func (c *intervalClock) reset() {
	c.position.Store(0)
	c.length.Store(0)
	c.bpi.Store(0)
	c.bpm.Set(0)
	c.pendingSet.Store(false)
}
