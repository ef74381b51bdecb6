package plug

import (
	"errors"

	"github.com/lixenwraith/jamplug/status"
)

var errNilBuffer = errors.New("nil audio buffer")

// Process renders one host block on the audio thread. Parameter events
// are applied segment-wise at their timestamped frames. When the session
// is not joined the input passes through bit-exact; the engine mix runs
// only while joined.
//
// Real-time safe: no locks, no allocation. Blocks longer than the
// activation maxBlock are truncated to it.
func (p *Instance) Process(inL, inR, outL, outR []float32, events []ParamEvent) error {
	if inL == nil || inR == nil || outL == nil || outR == nil {
		return errNilBuffer
	}
	frames := len(outL)
	if frames == 0 {
		return nil
	}
	if frames > p.maxBlock {
		frames = p.maxBlock
	}

	joined := p.client.State() == status.StateJoined

	// Events arrive ordered by frame; render the gap before each one,
	// apply it, continue
	start := 0
	for _, ev := range events {
		at := ev.Frame
		if at < start {
			at = start
		} else if at > frames {
			at = frames
		}
		p.renderSegment(inL, inR, outL, outR, start, at, joined)
		p.applyEvent(ev)
		start = at
	}
	p.renderSegment(inL, inR, outL, outR, start, frames, joined)

	p.publishMasterVU(outL[:frames], outR[:frames])
	return nil
}

func (p *Instance) renderSegment(inL, inR, outL, outR []float32, from, to int, joined bool) {
	if to <= from {
		return
	}
	if joined {
		p.client.Render(inL[from:to], inR[from:to], outL[from:to], outR[from:to])
		return
	}
	copy(outL[from:to], inL[from:to])
	copy(outR[from:to], inR[from:to])
}

// applyEvent is SetParam minus anything that could block; both paths
// end in atomics so they share the implementation
func (p *Instance) applyEvent(ev ParamEvent) {
	p.SetParam(ev.ID, ev.Value)
}

func (p *Instance) publishMasterVU(outL, outR []float32) {
	var peakL, peakR float32
	for i := range outL {
		l, r := outL[i], outR[i]
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
	p.snap.MasterVU.Set(peakL, peakR)
}
