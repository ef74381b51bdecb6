package audio

import (
	"fmt"
	"sync/atomic"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"

	"github.com/lixenwraith/jamplug/parameter"
	"github.com/lixenwraith/jamplug/status"
)

// Metronome places synthesized clicks at beat boundaries. Click buffers
// are rendered once at construction; Mix performs no allocation and reads
// only atomics, so it is safe on the audio thread.
//
// Beat frames use integer math on the interval length to prevent drift
// over long sessions.
type Metronome struct {
	volume status.AtomicFloat
	mute   atomic.Bool

	accent []float32 // beat 0 of each interval
	click  []float32 // every other beat
}

// NewMetronome renders the click buffers for the given sample rate.
func NewMetronome(sampleRate int) (*Metronome, error) {
	m := &Metronome{}
	m.volume.Set(parameter.DefaultMetronomeVolume)

	var err error
	if m.accent, err = renderClick(sampleRate, parameter.ClickAccentHz); err != nil {
		return nil, fmt.Errorf("render accent click: %w", err)
	}
	if m.click, err = renderClick(sampleRate, parameter.ClickBeatHz); err != nil {
		return nil, fmt.Errorf("render beat click: %w", err)
	}
	return m, nil
}

// renderClick synthesizes one decaying sine click.
func renderClick(sampleRate int, freq float64) ([]float32, error) {
	tone, err := generators.SineTone(beep.SampleRate(sampleRate), freq)
	if err != nil {
		return nil, err
	}

	frames := sampleRate * parameter.ClickDurationMs / 1000
	buf := make([][2]float64, frames)
	if n, _ := tone.Stream(buf); n < frames {
		return nil, fmt.Errorf("tone generator yielded %d of %d frames", n, frames)
	}

	out := make([]float32, frames)
	for i, s := range buf {
		env := 1 - float64(i)/float64(frames)
		out[i] = float32(s[0] * env * env)
	}
	return out, nil
}

// SetVolume sets click gain (linear, clamped)
func (m *Metronome) SetVolume(v float64) {
	m.volume.Set(ClampVolume(v))
}

// Volume returns the current click gain
func (m *Metronome) Volume() float64 {
	return m.volume.Get()
}

// SetMute toggles the metronome
func (m *Metronome) SetMute(mute bool) {
	m.mute.Store(mute)
}

// Muted reports the mute flag
func (m *Metronome) Muted() bool {
	return m.mute.Load()
}

// Mix adds clicks for the block [pos, pos+len(outL)) of an interval of
// the given length and beat count. Audio thread only; no allocation.
// A block that wraps the interval boundary is mixed as two segments.
func (m *Metronome) Mix(outL, outR []float32, pos, length int64, bpi int32) {
	if m.mute.Load() || length <= 0 || bpi <= 0 {
		return
	}
	vol := float32(m.volume.Get())
	if vol <= 0 {
		return
	}

	n := int64(len(outL))
	first := length - pos
	if first >= n {
		m.mixSegment(outL, outR, pos, length, bpi, vol)
		return
	}
	m.mixSegment(outL[:first], outR[:first], pos, length, bpi, vol)
	m.mixSegment(outL[first:], outR[first:], 0, length, bpi, vol)
}

// mixSegment adds click overlap for a segment that does not cross the
// interval boundary.
func (m *Metronome) mixSegment(outL, outR []float32, segStart, length int64, bpi int32, vol float32) {
	segEnd := segStart + int64(len(outL))
	clickLen := int64(len(m.click))

	for b := int64(0); b < int64(bpi); b++ {
		beatFrame := b * length / int64(bpi)
		if beatFrame+clickLen <= segStart || beatFrame >= segEnd {
			continue
		}

		buf := m.click
		if b == 0 {
			buf = m.accent
		}

		from := beatFrame
		if from < segStart {
			from = segStart
		}
		to := beatFrame + clickLen
		if to > segEnd {
			to = segEnd
		}
		for f := from; f < to; f++ {
			s := buf[f-beatFrame] * vol
			outL[f-segStart] += s
			outR[f-segStart] += s
		}
	}
}
