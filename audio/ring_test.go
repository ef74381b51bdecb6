package audio

import "testing"

// TestRingWrapAround verifies frames survive crossing the buffer end
func TestRingWrapAround(t *testing.T) {
	r := NewRing(8) // rounds to 8

	l := []float32{1, 2, 3, 4, 5, 6}
	rr := []float32{-1, -2, -3, -4, -5, -6}
	if n := r.Write(l, rr); n != 6 {
		t.Fatalf("expected 6 written, got %d", n)
	}

	outL := make([]float32, 4)
	outR := make([]float32, 4)
	if n := r.Read(outL, outR); n != 4 {
		t.Fatalf("expected 4 read, got %d", n)
	}

	// Next write wraps past index 8
	if n := r.Write([]float32{7, 8, 9, 10}, []float32{-7, -8, -9, -10}); n != 4 {
		t.Fatalf("expected 4 written after partial drain, got %d", n)
	}

	outL = make([]float32, 6)
	outR = make([]float32, 6)
	if n := r.Read(outL, outR); n != 6 {
		t.Fatalf("expected 6 read, got %d", n)
	}
	wantL := []float32{5, 6, 7, 8, 9, 10}
	for i := range wantL {
		if outL[i] != wantL[i] || outR[i] != -wantL[i] {
			t.Errorf("frame %d: got (%v,%v), want (%v,%v)", i, outL[i], outR[i], wantL[i], -wantL[i])
		}
	}
}

// TestRingFullRejects verifies writes stop at capacity
func TestRingFullRejects(t *testing.T) {
	r := NewRing(4)

	buf := make([]float32, 4)
	if n := r.Write(buf, buf); n != 4 {
		t.Fatalf("expected 4 written, got %d", n)
	}
	if n := r.Write(buf[:1], buf[:1]); n != 0 {
		t.Errorf("expected full ring to reject write, wrote %d", n)
	}
	if r.Free() != 0 {
		t.Errorf("expected Free 0, got %d", r.Free())
	}

	if n := r.Skip(2); n != 2 {
		t.Errorf("expected Skip 2, got %d", n)
	}
	if r.Free() != 2 {
		t.Errorf("expected Free 2 after skip, got %d", r.Free())
	}
}

// TestRingConcurrentSPSC streams frames through a small ring from one
// producer to one consumer. Run with -race
func TestRingConcurrentSPSC(t *testing.T) {
	r := NewRing(64)
	const total = 50000

	go func() {
		buf := make([]float32, 16)
		sent := 0
		for sent < total {
			n := len(buf)
			if total-sent < n {
				n = total - sent
			}
			for i := 0; i < n; i++ {
				buf[i] = float32(sent + i)
			}
			w := r.Write(buf[:n], buf[:n])
			sent += w
		}
	}()

	got := 0
	outL := make([]float32, 16)
	outR := make([]float32, 16)
	for got < total {
		n := r.Read(outL, outR)
		for i := 0; i < n; i++ {
			if outL[i] != float32(got+i) {
				t.Fatalf("frame %d: got %v", got+i, outL[i])
			}
		}
		got += n
	}
}
