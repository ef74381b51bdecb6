package ninjam

import (
	"github.com/google/uuid"

	"github.com/lixenwraith/jamplug/audio"
	"github.com/lixenwraith/jamplug/codec"
	"github.com/lixenwraith/jamplug/protocol"
)

// uploader drains the audio thread's capture ring into per-interval
// encoders and streams the chunks out. Worker thread only, except the
// ring's producer side.
type uploader struct {
	ring *audio.Ring
	enc  codec.Encoder
	guid uuid.UUID

	// framesLeft counts PCM frames still owed to the open interval
	framesLeft int64

	// announced tracks whether the server believes the channel is
	// sounding; the zero-guid cancel is sent once on the way to silence
	announced bool

	scratchL []float32
	scratchR []float32
}

// tickUploadLocked advances the transmit pipeline by whatever PCM the
// capture ring holds, rotating encoders at interval edges
func (c *Client) tickUploadLocked() error {
	up := &c.up

	if !c.transmitActive.Load() {
		if up.enc != nil {
			if err := c.finishUploadLocked(); err != nil {
				return err
			}
		}
		if up.announced {
			silent := protocol.IntervalBegin{FourCC: [4]byte(c.cfg.Encoder.FourCC())}
			if err := c.sendLocked(protocol.MsgUploadBegin, silent.MarshalUploadPayload()); err != nil {
				return err
			}
			up.announced = false
		}
		// Stale capture must not leak into a later interval
		up.ring.Skip(up.ring.Available())
		return nil
	}

	length := c.clock.length.Load()
	if length <= 0 {
		return nil
	}

	if up.enc == nil {
		// Joining mid-interval: this first transfer covers only the
		// remainder, keeping later rotations on the boundary
		if err := c.beginUploadLocked(length - c.clock.position.Load()); err != nil {
			return err
		}
	}

	for {
		want := int64(len(up.scratchL))
		if want > up.framesLeft {
			want = up.framesLeft
		}
		if want <= 0 {
			break
		}
		n := up.ring.Read(up.scratchL[:want], up.scratchR[:want])
		if n == 0 {
			break
		}
		if err := up.enc.WritePCM(up.scratchL[:n], up.scratchR[:n]); err != nil {
			// One bad interval never ends the session; restart the
			// stream for whatever frames are still owed
			c.log.Warn("transmit encode failed", "err", err)
			remaining := up.framesLeft - int64(n)
			if remaining <= 0 {
				remaining = c.clock.length.Load()
			}
			if err := c.finishUploadLocked(); err != nil {
				return err
			}
			if err := c.beginUploadLocked(remaining); err != nil {
				return err
			}
			continue
		}
		up.framesLeft -= int64(n)
		if err := c.pumpUploadChunksLocked(); err != nil {
			return err
		}
		if up.framesLeft == 0 {
			if err := c.finishUploadLocked(); err != nil {
				return err
			}
			if err := c.beginUploadLocked(c.clock.length.Load()); err != nil {
				return err
			}
		}
	}
	return nil
}

// beginUploadLocked opens a new interval transfer covering frames
func (c *Client) beginUploadLocked(frames int64) error {
	up := &c.up

	enc, err := c.cfg.Encoder.NewEncoder(c.sampleRate, c.local.bitrate)
	if err != nil {
		return newError(ErrCodec, "upload begin", err)
	}
	up.enc = enc
	up.guid = uuid.New()
	up.framesLeft = frames
	up.announced = true

	b := protocol.IntervalBegin{
		GUID:   up.guid,
		FourCC: [4]byte(c.cfg.Encoder.FourCC()),
	}
	return c.sendLocked(protocol.MsgUploadBegin, b.MarshalUploadPayload())
}

// pumpUploadChunksLocked ships whatever the encoder has ready
func (c *Client) pumpUploadChunksLocked() error {
	up := &c.up
	for {
		chunk := up.enc.ReadChunk()
		if chunk == nil {
			return nil
		}
		w := protocol.IntervalWrite{GUID: up.guid, Data: chunk}
		if err := c.sendLocked(protocol.MsgUploadWrite, w.MarshalPayload()); err != nil {
			return err
		}
	}
}

// finishUploadLocked flushes the encoder and sends the terminating chunk
func (c *Client) finishUploadLocked() error {
	up := &c.up

	tail, err := up.enc.Finalize()
	up.enc = nil
	if err != nil {
		c.log.Warn("transmit finalize failed", "err", err)
		tail = nil
	}
	w := protocol.IntervalWrite{GUID: up.guid, Flags: protocol.IntervalEnd, Data: tail}
	return c.sendLocked(protocol.MsgUploadWrite, w.MarshalPayload())
}

// resetUploadLocked abandons any open transfer on teardown
func (c *Client) resetUploadLocked() {
	up := &c.up
	up.enc = nil
	up.framesLeft = 0
	up.announced = false
	if up.ring != nil {
		up.ring.Skip(up.ring.Available())
	}
}
