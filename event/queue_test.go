package event

import (
	"fmt"
	"testing"

	"github.com/lixenwraith/jamplug/parameter"
	"github.com/lixenwraith/jamplug/status"
)

// TestQueueFIFO verifies events drain in push order
func TestQueueFIFO(t *testing.T) {
	q := &Queue{}

	for i := 0; i < 10; i++ {
		ok := q.TryPush(UIEvent{Type: TypeTopicChanged, Text: fmt.Sprintf("t%d", i)})
		if !ok {
			t.Fatalf("push %d rejected on non-full queue", i)
		}
	}

	if q.Len() != 10 {
		t.Errorf("expected Len 10, got %d", q.Len())
	}

	i := 0
	n := q.Drain(func(ev UIEvent) {
		want := fmt.Sprintf("t%d", i)
		if ev.Text != want {
			t.Errorf("event %d: expected %q, got %q", i, want, ev.Text)
		}
		i++
	})
	if n != 10 {
		t.Errorf("expected 10 drained, got %d", n)
	}
	if q.Len() != 0 {
		t.Errorf("expected empty queue after drain, got %d", q.Len())
	}
}

// TestQueueFullDrops verifies TryPush reports false at capacity and the
// queued events survive intact
func TestQueueFullDrops(t *testing.T) {
	q := &Queue{}

	for i := 0; i < parameter.EventQueueSize; i++ {
		if !q.TryPush(UIEvent{Type: TypeUserInfoChanged}) {
			t.Fatalf("push %d rejected before capacity", i)
		}
	}

	if q.TryPush(UIEvent{Type: TypeStatusChanged}) {
		t.Error("expected push to fail on full queue")
	}

	n := q.Drain(func(ev UIEvent) {
		if ev.Type != TypeUserInfoChanged {
			t.Errorf("unexpected event type %d after overflow", ev.Type)
		}
	})
	if n != parameter.EventQueueSize {
		t.Errorf("expected %d events, got %d", parameter.EventQueueSize, n)
	}
}

// TestQueueConcurrentSPSC exercises one producer against one consumer.
// Run with -race
func TestQueueConcurrentSPSC(t *testing.T) {
	q := &Queue{}
	const total = 20000

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < total; {
			if q.TryPush(UIEvent{Type: TypeStatusChanged, State: status.ConnState(i % 8)}) {
				i++
			}
		}
	}()

	seen := 0
	for seen < total {
		seen += q.Drain(func(UIEvent) {})
	}
	<-done

	if seen != total {
		t.Errorf("expected %d events, saw %d", total, seen)
	}
}
