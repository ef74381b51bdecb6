package ninjam

import (
	"github.com/google/uuid"

	"github.com/lixenwraith/jamplug/codec"
	"github.com/lixenwraith/jamplug/protocol"
)

// download is one in-flight interval transfer from a peer channel
type download struct {
	key  chanKey
	guid uuid.UUID
	dec  codec.Decoder
}

// handleDownloadBeginLocked opens (or cancels) a peer interval stream
func (c *Client) handleDownloadBeginLocked(p []byte) error {
	b, err := protocol.ParseIntervalBegin(p, true)
	if err != nil {
		return c.failLocked(ErrProtocol, "download begin", err)
	}

	key := chanKey{user: b.Username, ch: b.ChannelIndex}
	if b.Zero() {
		// Channel went silent; drop any pending transfer
		c.cancelDownloadLocked(key)
		return nil
	}

	u := c.users[b.Username]
	if u == nil {
		return nil
	}
	ch := u.channels[b.ChannelIndex]
	if ch == nil || !ch.subscribed || ch.slot < 0 {
		return nil
	}

	dec, err := codec.DecoderFor(codec.FourCC(b.FourCC), c.sampleRate)
	if err != nil {
		c.log.Warn("unsupported interval format", "user", b.Username,
			"channel", b.ChannelIndex, "fourcc", string(b.FourCC[:]))
		return nil
	}

	// A begin for a channel with a transfer already open supersedes it
	c.cancelDownloadLocked(key)
	d := &download{key: key, guid: b.GUID, dec: dec}
	c.downloads[b.GUID] = d
	c.chanDownloads[key] = b.GUID
	return nil
}

// handleDownloadWriteLocked appends one chunk; the terminating chunk
// decodes the interval and stages it for the next playback boundary
func (c *Client) handleDownloadWriteLocked(p []byte) error {
	w, err := protocol.ParseIntervalWrite(p)
	if err != nil {
		return c.failLocked(ErrProtocol, "download write", err)
	}

	d := c.downloads[w.GUID]
	if d == nil {
		// Stale guid after a cancel or an unsubscribed channel
		return nil
	}

	if len(w.Data) > 0 {
		if err := d.dec.Write(w.Data); err != nil {
			c.dropDownloadLocked(d, err)
			return nil
		}
	}
	if !w.End() {
		return nil
	}

	delete(c.downloads, d.guid)
	delete(c.chanDownloads, d.key)

	if err := d.dec.Finish(); err != nil {
		c.log.Warn("interval decode failed", "user", d.key.user,
			"channel", d.key.ch, "err", err)
		return nil
	}
	c.stageDecodedLocked(d)
	return nil
}

// stageDecodedLocked drains the decoder into a ready buffer on the
// channel's slot. The buffer plays starting at the next boundary.
func (c *Client) stageDecodedLocked(d *download) {
	u := c.users[d.key.user]
	if u == nil {
		return
	}
	ch := u.channels[d.key.ch]
	if ch == nil || ch.slot < 0 {
		return
	}
	s := &c.slots[ch.slot]

	var left, right []float32
	buf := make([]float32, 2048)
	bufR := make([]float32, 2048)
	for {
		n, err := d.dec.ReadPCM(buf, bufR)
		if n > 0 {
			left = append(left, buf[:n]...)
			right = append(right, bufR[:n]...)
		}
		if err != nil {
			c.log.Warn("interval decode failed", "user", d.key.user,
				"channel", d.key.ch, "err", err)
			return
		}
		if n == 0 {
			break
		}
	}

	s.readyL = append(s.readyL, left)
	s.readyR = append(s.readyR, right)
}

// dropDownloadLocked abandons a corrupt transfer; the session continues
func (c *Client) dropDownloadLocked(d *download, cause error) {
	c.log.Warn("interval chunk rejected", "user", d.key.user,
		"channel", d.key.ch, "err", cause)
	delete(c.downloads, d.guid)
	delete(c.chanDownloads, d.key)
}

// cancelDownloadLocked forgets any in-flight transfer for the channel
func (c *Client) cancelDownloadLocked(key chanKey) {
	if guid, ok := c.chanDownloads[key]; ok {
		delete(c.downloads, guid)
		delete(c.chanDownloads, key)
	}
}

// flushReadyLocked moves staged intervals into playback rings at each
// boundary. Every active slot gets exactly one interval length of frames
// per boundary, zero-padded or truncated, so slots stay aligned to the
// shared clock even across missing intervals.
func (c *Client) flushReadyLocked() {
	cnt := c.clock.count.Load()
	if cnt == c.lastFlushInterval {
		return
	}
	c.lastFlushInterval = cnt

	length := int(c.clock.length.Load())
	if length <= 0 {
		return
	}
	c.growSilence(length)

	for i := range c.slots {
		s := &c.slots[i]
		if c.slotOwner[i] == nil || !s.active.Load() {
			continue
		}
		if s.ring.Free() < length {
			c.log.Warn("playback ring overflow, dropping interval", "slot", i)
			if len(s.readyL) > 0 {
				s.readyL = s.readyL[1:]
				s.readyR = s.readyR[1:]
			}
			continue
		}

		if len(s.readyL) == 0 {
			s.ring.Write(c.silenceL[:length], c.silenceR[:length])
			continue
		}

		left, right := s.readyL[0], s.readyR[0]
		s.readyL = s.readyL[1:]
		s.readyR = s.readyR[1:]

		n := len(left)
		if n > length {
			n = length
		}
		s.ring.Write(left[:n], right[:n])
		if n < length {
			s.ring.Write(c.silenceL[:length-n], c.silenceR[:length-n])
		}
	}
}

// growSilence keeps the zero-fill scratch at least n frames long
func (c *Client) growSilence(n int) {
	if len(c.silenceL) < n {
		c.silenceL = make([]float32, n)
		c.silenceR = make([]float32, n)
	}
}
