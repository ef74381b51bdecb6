package audio

import "sync/atomic"

// Ring is a lock-free single-producer, single-consumer ring of stereo
// float32 frames.
//
// Two monotonically increasing atomic counters and a power-of-two frame
// count with bitwise masking. No mutexes, no CAS loops. The producer
// stores writePos after writing frames; the consumer loads writePos
// before reading them, so the consumer always sees fully written frames.
//
// Thread assignment is fixed at the call site:
//   - Write: producer only
//   - Read, Skip: consumer only
type Ring struct {
	// Counters on separate cache lines to prevent false sharing
	writePos atomic.Uint64
	_        [56]byte
	readPos  atomic.Uint64
	_        [56]byte

	left  []float32
	right []float32
	mask  uint64
}

// NewRing creates a ring holding at least minFrames stereo frames,
// rounded up to the next power of two. All allocation happens here.
func NewRing(minFrames int) *Ring {
	size := 1
	for size < minFrames {
		size <<= 1
	}
	return &Ring{
		left:  make([]float32, size),
		right: make([]float32, size),
		mask:  uint64(size - 1),
	}
}

// Write copies up to len(left) frames into the ring. Returns the number
// of frames actually written. Non-blocking, producer only.
func (r *Ring) Write(left, right []float32) int {
	w := r.writePos.Load()
	rd := r.readPos.Load()

	free := uint64(len(r.left)) - (w - rd)
	if free == 0 {
		return 0
	}

	n := uint64(len(left))
	if n > free {
		n = free
	}

	pos := w & r.mask
	first := uint64(len(r.left)) - pos
	if first >= n {
		copy(r.left[pos:pos+n], left[:n])
		copy(r.right[pos:pos+n], right[:n])
	} else {
		copy(r.left[pos:], left[:first])
		copy(r.right[pos:], right[:first])
		copy(r.left[:n-first], left[first:n])
		copy(r.right[:n-first], right[first:n])
	}

	r.writePos.Store(w + n)
	return int(n)
}

// Read copies up to len(left) frames out of the ring. Returns the number
// of frames actually read. Non-blocking, consumer only.
func (r *Ring) Read(left, right []float32) int {
	rd := r.readPos.Load()
	w := r.writePos.Load()

	available := w - rd
	if available == 0 {
		return 0
	}

	n := uint64(len(left))
	if n > available {
		n = available
	}

	pos := rd & r.mask
	first := uint64(len(r.left)) - pos
	if first >= n {
		copy(left[:n], r.left[pos:pos+n])
		copy(right[:n], r.right[pos:pos+n])
	} else {
		copy(left[:first], r.left[pos:])
		copy(right[:first], r.right[pos:])
		copy(left[first:n], r.left[:n-first])
		copy(right[first:n], r.right[:n-first])
	}

	r.readPos.Store(rd + n)
	return int(n)
}

// Skip discards up to n frames. Returns the number discarded.
// Consumer only.
func (r *Ring) Skip(n int) int {
	rd := r.readPos.Load()
	w := r.writePos.Load()

	available := w - rd
	if uint64(n) > available {
		n = int(available)
	}
	r.readPos.Store(rd + uint64(n))
	return n
}

// Available returns the number of frames available to read.
func (r *Ring) Available() int {
	return int(r.writePos.Load() - r.readPos.Load())
}

// Free returns the number of frames available to write.
func (r *Ring) Free() int {
	return len(r.left) - r.Available()
}
