package plug

import (
	"math"
	"testing"

	"github.com/lixenwraith/jamplug/ninjam/ninjamtest"
	"github.com/lixenwraith/jamplug/status"
)

func newActive(t *testing.T) *Instance {
	t.Helper()
	p := New(Options{})
	if err := p.Activate(48000, 512); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	t.Cleanup(p.Deactivate)
	return p
}

// TestProcessBypassIsBitExact verifies pass-through while disconnected
func TestProcessBypassIsBitExact(t *testing.T) {
	p := newActive(t)

	in := []float32{1.0, -1.0, 0.5, -0.25, 0.125, 0, 1e-30, -3.5}
	inR := make([]float32, len(in))
	copy(inR, in)
	outL := make([]float32, len(in))
	outR := make([]float32, len(in))

	if err := p.Process(in, inR, outL, outR, nil); err != nil {
		t.Fatalf("Process: %v", err)
	}
	for i := range in {
		if outL[i] != in[i] || outR[i] != in[i] {
			t.Fatalf("sample %d altered in bypass: %v %v", i, outL[i], outR[i])
		}
	}

	// Master VU still tracks the bypassed output
	l, r := p.Snapshot().MasterVU.Get()
	if l != 3.5 || r != 3.5 {
		t.Errorf("master VU = %v, %v, want 3.5", l, r)
	}
}

// TestProcessZeroFrames verifies an empty block mutates nothing
func TestProcessZeroFrames(t *testing.T) {
	p := newActive(t)

	if err := p.Process([]float32{}, []float32{}, []float32{}, []float32{}, nil); err != nil {
		t.Fatalf("Process: %v", err)
	}
}

// TestProcessNilBuffer verifies the nil-pointer guard
func TestProcessNilBuffer(t *testing.T) {
	p := newActive(t)

	buf := make([]float32, 16)
	if err := p.Process(nil, buf, buf, buf, nil); err == nil {
		t.Fatal("nil input accepted")
	}
	if err := p.Process(buf, buf, nil, buf, nil); err == nil {
		t.Fatal("nil output accepted")
	}
}

// TestProcessParamEventApplies verifies a timestamped event lands during
// the block and is visible to readback afterwards
func TestProcessParamEventApplies(t *testing.T) {
	p := newActive(t)

	in := make([]float32, 512)
	out := make([]float32, 512)
	ev := []ParamEvent{{ID: ParamMasterVolume, Value: 0.5, Frame: 128}}
	if err := p.Process(in, in, out, out, ev); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := p.GetParam(ParamMasterVolume); got != 0.5 {
		t.Errorf("param after event = %v, want 0.5", got)
	}
}

// TestProcessGainAutomationIsFrameAccurate verifies a mid-block master
// volume event scales the rendered output from its frame onward, not
// just the readback value
func TestProcessGainAutomationIsFrameAccurate(t *testing.T) {
	srv, err := ninjamtest.Start(ninjamtest.Options{BPM: 120, BPI: 8})
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	defer srv.Close()

	p := newActive(t)
	p.SetParam(ParamMetronomeMute, 1)
	if err := p.Connect(srv.Addr(), "alice", ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitState(t, p, status.StateJoined, "join")

	const frames = 512
	const split = 128
	in := make([]float32, frames)
	for i := range in {
		in[i] = 1.0
	}
	outL := make([]float32, frames)
	outR := make([]float32, frames)
	ev := []ParamEvent{{ID: ParamMasterVolume, Value: 0.5, Frame: split}}
	if err := p.Process(in, in, outL, outR, ev); err != nil {
		t.Fatalf("Process: %v", err)
	}

	// The local monitor at unity volume and center pan puts cos(pi/4)
	// of the input on each side; the master stage scales that
	base := float32(math.Cos(math.Pi / 4))
	near := func(got, want float32) bool {
		d := got - want
		if d < 0 {
			d = -d
		}
		return d < 1e-3
	}
	for i := 0; i < split-1; i++ {
		if !near(outL[i], base) || !near(outR[i], base) {
			t.Fatalf("frame %d before event: %v %v, want %v", i, outL[i], outR[i], base)
		}
	}
	for i := split + 1; i < frames; i++ {
		if !near(outL[i], base*0.5) || !near(outR[i], base*0.5) {
			t.Fatalf("frame %d after event: %v %v, want %v", i, outL[i], outR[i], base*0.5)
		}
	}
}

// TestSetParamClampsAndFormats verifies range clamping and dB display
func TestSetParamClampsAndFormats(t *testing.T) {
	p := newActive(t)

	p.SetParam(ParamMasterVolume, 5.0)
	if got := p.GetParam(ParamMasterVolume); got != 2.0 {
		t.Errorf("overdriven volume = %v, want clamp to 2.0", got)
	}

	if got := FormatParam(ParamMasterVolume, 1.0); got != "0.0 dB" {
		t.Errorf("unity display = %q", got)
	}
	if got := FormatParam(ParamMasterVolume, 0); got != "-inf dB" {
		t.Errorf("silence display = %q", got)
	}
	if got := FormatParam(ParamMasterMute, 1); got != "on" {
		t.Errorf("mute display = %q", got)
	}
}
