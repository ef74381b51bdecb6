package status

import (
	"math"
	"sync/atomic"
)

// AtomicFloat provides atomic float64 operations using bit conversion.
// Zero value is ready to use (represents 0.0)
type AtomicFloat struct {
	bits atomic.Uint64
}

// Set stores a float64 value atomically
func (f *AtomicFloat) Set(val float64) {
	f.bits.Store(math.Float64bits(val))
}

// Get loads the float64 value atomically
func (f *AtomicFloat) Get() float64 {
	return math.Float64frombits(f.bits.Load())
}

// StereoPeak packs a left/right float32 pair into one word so VU meters
// never observe a torn pair.
// Zero value is ready to use (silence)
type StereoPeak struct {
	bits atomic.Uint64
}

// Set stores both channel peaks in a single atomic word
func (p *StereoPeak) Set(left, right float32) {
	p.bits.Store(uint64(math.Float32bits(left))<<32 | uint64(math.Float32bits(right)))
}

// Get loads both channel peaks from a single atomic word
func (p *StereoPeak) Get() (left, right float32) {
	v := p.bits.Load()
	return math.Float32frombits(uint32(v >> 32)), math.Float32frombits(uint32(v))
}
