package event

import (
	"sync/atomic"

	"github.com/lixenwraith/jamplug/parameter"
)

// Queue is a lock-free SPSC ring buffer for UI events
// Thread-Safety:
//   - TryPush: single producer (worker thread)
//   - Drain: single consumer (UI thread)
//   - Monotonic head/tail counters with power-of-two masking
//
// Overflow: TryPush reports false and the event is dropped; events are
// advisory
type Queue struct {
	events [parameter.EventQueueSize]UIEvent

	// Counters on separate cache lines to prevent false sharing between
	// producer and consumer
	tail atomic.Uint64 // write index, producer only
	_    [56]byte
	head atomic.Uint64 // read index, consumer only
	_    [56]byte
}

// TryPush appends an event. Returns false when full. Producer only
func (q *Queue) TryPush(ev UIEvent) bool {
	tail := q.tail.Load()
	head := q.head.Load()

	if tail-head == parameter.EventQueueSize {
		return false
	}

	q.events[tail&parameter.EventBufferMask] = ev
	q.tail.Store(tail + 1) // slot write must precede this store
	return true
}

// Drain pops every pending event in FIFO order, visiting each.
// Returns the number visited. Consumer only
func (q *Queue) Drain(visit func(UIEvent)) int {
	head := q.head.Load()
	tail := q.tail.Load()

	n := 0
	for ; head != tail; head++ {
		visit(q.events[head&parameter.EventBufferMask])
		n++
	}
	q.head.Store(head)
	return n
}

// Len returns the approximate pending event count
func (q *Queue) Len() int {
	tail := q.tail.Load()
	head := q.head.Load()
	if tail <= head {
		return 0
	}
	return int(tail - head)
}
