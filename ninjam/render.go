package ninjam

import (
	"github.com/lixenwraith/jamplug/audio"
)

// Render mixes one block on the audio thread: capture the input for
// transmission, monitor it locally, mix peer playback and the metronome,
// apply master gain, and advance the interval clock.
//
// Real-time safe: no locks, no allocation, no channel operations. All
// shared state is read through atomics and SPSC rings. Buffers must all
// be the same length, at most the maxBlock given to Activate.
func (c *Client) Render(inL, inR, outL, outR []float32) {
	frames := len(outL)
	if frames > len(c.scratchL) {
		frames = len(c.scratchL)
	}
	outL = outL[:frames]
	outR = outR[:frames]

	for i := range outL {
		outL[i] = 0
		outR[i] = 0
	}

	if c.transmitActive.Load() {
		c.up.ring.Write(inL[:frames], inR[:frames])
	}

	solo := c.soloMask.Load()
	audible := func(bit int) bool {
		return solo == 0 || solo&(1<<bit) != 0
	}

	// Local monitor
	mon := &c.local.mon
	if !mon.mute.Load() && audible(0) {
		gl, gr := audio.PanGains(mon.pan.Get())
		v := float32(mon.volume.Get())
		gL := float32(gl) * v
		gR := float32(gr) * v
		var peakL, peakR float32
		for i := 0; i < frames; i++ {
			l := inL[i] * gL
			r := inR[i] * gR
			outL[i] += l
			outR[i] += r
			if l < 0 {
				l = -l
			}
			if r < 0 {
				r = -r
			}
			if l > peakL {
				peakL = l
			}
			if r > peakR {
				peakR = r
			}
		}
		c.snap.LocalVU.Set(peakL, peakR)
	} else {
		c.snap.LocalVU.Set(0, 0)
	}

	// Peer playback lanes
	for i := range c.slots {
		s := &c.slots[i]
		if !s.active.Load() {
			// Residue from a released lane must not replay on reuse;
			// drop it and acknowledge the release generation so the
			// worker may hand the lane out again
			g := s.gen.Load()
			if s.ring.Available() > 0 {
				s.ring.Skip(s.ring.Available())
			}
			s.drained.Store(g)
			continue
		}

		n := s.ring.Read(c.scratchL[:frames], c.scratchR[:frames])
		if n == 0 {
			s.peak.Set(0, 0)
			continue
		}

		if s.mon.mute.Load() || !audible(1+i) {
			s.peak.Set(0, 0)
			continue
		}

		gl, gr := audio.PanGains(s.mon.pan.Get())
		v := float32(s.mon.volume.Get())
		gL := float32(gl) * v
		gR := float32(gr) * v
		var peakL, peakR float32
		for j := 0; j < n; j++ {
			l := c.scratchL[j] * gL
			r := c.scratchR[j] * gR
			outL[j] += l
			outR[j] += r
			if l < 0 {
				l = -l
			}
			if r < 0 {
				r = -r
			}
			if l > peakL {
				peakL = l
			}
			if r > peakR {
				peakR = r
			}
		}
		s.peak.Set(peakL, peakR)
	}

	// Metronome rides the interval clock, pre-master
	length := c.clock.length.Load()
	if length > 0 && c.metronome != nil {
		c.metronome.Mix(outL, outR, c.clock.position.Load(), length, c.clock.bpi.Load())
	}

	// Master stage
	if c.masterMute.Load() {
		for i := range outL {
			outL[i] = 0
			outR[i] = 0
		}
	} else if mv := float32(c.masterVolume.Get()); mv != 1 {
		for i := range outL {
			outL[i] *= mv
			outR[i] *= mv
		}
	}

	if length > 0 {
		c.clock.advance(int64(frames))
	}
}
