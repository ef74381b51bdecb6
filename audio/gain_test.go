package audio

import (
	"math"
	"testing"
)

// TestPanGainsEqualPower verifies the pan law at endpoints and center
func TestPanGainsEqualPower(t *testing.T) {
	l, r := PanGains(-1)
	if math.Abs(l-1) > 1e-9 || math.Abs(r) > 1e-9 {
		t.Errorf("hard left: got (%v, %v)", l, r)
	}

	l, r = PanGains(1)
	if math.Abs(l) > 1e-9 || math.Abs(r-1) > 1e-9 {
		t.Errorf("hard right: got (%v, %v)", l, r)
	}

	l, r = PanGains(0)
	center := math.Sqrt2 / 2
	if math.Abs(l-center) > 1e-9 || math.Abs(r-center) > 1e-9 {
		t.Errorf("center: got (%v, %v), want %v each", l, r, center)
	}

	// Power sums to one everywhere
	for pan := -1.0; pan <= 1.0; pan += 0.125 {
		l, r = PanGains(pan)
		if p := l*l + r*r; math.Abs(p-1) > 1e-9 {
			t.Errorf("pan %v: power %v, want 1", pan, p)
		}
	}
}

// TestVolumeDBMapping verifies the display mapping and its edge at zero
func TestVolumeDBMapping(t *testing.T) {
	if db := VolumeToDB(1.0); math.Abs(db) > 1e-9 {
		t.Errorf("unity: %v dB, want 0", db)
	}
	if db := VolumeToDB(2.0); math.Abs(db-6.0206) > 0.001 {
		t.Errorf("2.0: %v dB, want ~6.02", db)
	}
	if db := VolumeToDB(0); !math.IsInf(db, -1) {
		t.Errorf("zero: %v, want -Inf", db)
	}
	if v := DBToVolume(math.Inf(-1)); v != 0 {
		t.Errorf("-Inf dB: %v, want 0", v)
	}
}

// TestWireVolumeRoundTrip verifies dB-cents wire encoding survives a trip
func TestWireVolumeRoundTrip(t *testing.T) {
	for _, v := range []float64{0, 0.25, 0.5, 1.0, 1.5, 2.0} {
		got := VolumeFromWire(WireVolume(v))
		if math.Abs(got-v) > v*0.001+1e-9 {
			t.Errorf("volume %v round-tripped to %v", v, got)
		}
	}
}

// TestWirePanRoundTrip verifies pan byte encoding
func TestWirePanRoundTrip(t *testing.T) {
	for _, p := range []float64{-1, -0.5, 0, 0.5, 1} {
		got := PanFromWire(WirePan(p))
		if math.Abs(got-p) > 0.01 {
			t.Errorf("pan %v round-tripped to %v", p, got)
		}
	}
}

// TestPeak verifies absolute peak detection
func TestPeak(t *testing.T) {
	if p := Peak([]float32{0.1, -0.9, 0.5}); p != 0.9 {
		t.Errorf("expected 0.9, got %v", p)
	}
	if p := Peak(nil); p != 0 {
		t.Errorf("expected 0 for empty buffer, got %v", p)
	}
}
