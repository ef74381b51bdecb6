package ninjam

import (
	"sort"
	"sync/atomic"

	"github.com/lixenwraith/jamplug/audio"
	"github.com/lixenwraith/jamplug/parameter"
	"github.com/lixenwraith/jamplug/status"
)

// monitorParams are the per-channel mix controls the audio thread reads.
// All fields are word-sized atomics.
type monitorParams struct {
	volume status.AtomicFloat
	pan    status.AtomicFloat
	mute   atomic.Bool
}

func (m *monitorParams) set(volume, pan float64, mute bool) {
	m.volume.Set(audio.ClampVolume(volume))
	m.pan.Set(pan)
	m.mute.Store(mute)
}

// localChannel is the single stereo input stream this core transmits
// and monitors. Identity fields mutate under the client mutex; monitor
// params are atomics.
type localChannel struct {
	name     string
	transmit bool
	bitrate  int
	mon      monitorParams
	solo     bool
}

// playbackSlot is one preallocated peer playback lane. The audio thread
// iterates the fixed slot array reading only atomics and the SPSC ring;
// the worker assigns and releases slots.
type playbackSlot struct {
	active atomic.Bool
	ring   *audio.Ring
	mon    monitorParams
	peak   status.StereoPeak

	// Drain handshake for lane reuse. The worker bumps gen on release;
	// the audio thread echoes it into drained after skipping the ring's
	// residue. A lane is reusable only once drained catches up, so a
	// new occupant never hears the previous one's tail.
	gen     atomic.Uint32
	drained atomic.Uint32

	// Decoded intervals awaiting their playback boundary. Worker only.
	readyL [][]float32
	readyR [][]float32
}

// peerChannel mirrors one remote channel announced by the server.
// Client mutex.
type peerChannel struct {
	name       string
	index      uint8
	active     bool
	subscribed bool
	slot       int // -1 when no playback lane is held

	// Monitor params for when no slot is held; pushed into slot.mon on
	// assignment
	volume float64
	pan    float64
	mute   bool
	solo   bool
}

// peerUser is one remote user and their channel set. Client mutex.
type peerUser struct {
	name     string
	channels map[uint8]*peerChannel
}

func (u *peerUser) mask() uint32 {
	var m uint32
	for idx, ch := range u.channels {
		if ch.subscribed && ch.active {
			m |= 1 << idx
		}
	}
	return m
}

// ChannelSnapshot is the UI's copy of one peer channel
type ChannelSnapshot struct {
	Name       string
	Index      uint8
	Subscribed bool
	Volume     float64
	Pan        float64
	Mute       bool
	Solo       bool
	PeakL      float32
	PeakR      float32
}

// UserSnapshot is the UI's copy of one peer
type UserSnapshot struct {
	Name     string
	Channels []ChannelSnapshot
}

// Users returns a sorted copy of the peer registry for UI display
func (c *Client) Users() []UserSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]UserSnapshot, 0, len(c.users))
	for _, u := range c.users {
		us := UserSnapshot{Name: u.name}
		for _, ch := range u.channels {
			if !ch.active {
				continue
			}
			cs := ChannelSnapshot{
				Name:       ch.name,
				Index:      ch.index,
				Subscribed: ch.subscribed,
				Volume:     ch.volume,
				Pan:        ch.pan,
				Mute:       ch.mute,
				Solo:       ch.solo,
			}
			if ch.slot >= 0 {
				cs.PeakL, cs.PeakR = c.slots[ch.slot].peak.Get()
			}
			us.Channels = append(us.Channels, cs)
		}
		sort.Slice(us.Channels, func(i, j int) bool {
			return us.Channels[i].Index < us.Channels[j].Index
		})
		out = append(out, us)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// assignSlotLocked claims a free playback lane for ch.
// Returns false when every slot is taken or still draining.
func (c *Client) assignSlotLocked(ch *peerChannel) bool {
	for i := range c.slots {
		if c.slotOwner[i] != nil {
			continue
		}
		s := &c.slots[i]
		if s.gen.Load() != s.drained.Load() {
			// Released but the audio thread has not drained it yet.
			// An empty ring has nothing left to replay; claim it and
			// settle the handshake here.
			if s.ring.Available() != 0 {
				continue
			}
			s.drained.Store(s.gen.Load())
		}
		s.readyL = s.readyL[:0]
		s.readyR = s.readyR[:0]
		s.mon.set(ch.volume, ch.pan, ch.mute)
		s.peak.Set(0, 0)
		c.slotOwner[i] = ch
		ch.slot = i
		c.setSoloBitLocked(1+i, ch.solo)
		s.active.Store(true)
		return true
	}
	return false
}

// releaseSlotLocked returns ch's lane to the pool. The audio thread
// drains any residue once it observes the inactive flag.
func (c *Client) releaseSlotLocked(ch *peerChannel) {
	if ch.slot < 0 {
		return
	}
	s := &c.slots[ch.slot]
	s.active.Store(false)
	s.gen.Add(1)
	s.readyL = s.readyL[:0]
	s.readyR = s.readyR[:0]
	c.setSoloBitLocked(1+ch.slot, false)
	c.slotOwner[ch.slot] = nil
	ch.slot = -1
}

// setSoloBitLocked maintains the global solo mask. Bit 0 is the local
// channel; bit 1+i is playback slot i.
func (c *Client) setSoloBitLocked(bit int, solo bool) {
	for {
		old := c.soloMask.Load()
		var next uint32
		if solo {
			next = old | 1<<bit
		} else {
			next = old &^ (1 << bit)
		}
		if old == next || c.soloMask.CompareAndSwap(old, next) {
			return
		}
	}
}

// PeerChannelOpts selects which peer channel fields to change; nil
// fields are left as they are.
type PeerChannelOpts struct {
	Subscribe *bool
	Volume    *float64
	Pan       *float64
	Mute      *bool
	Solo      *bool
}

// SetPeerChannel mutates the registry immediately. Subscription changes
// re-send the user's subscription mask. Subscribing beyond the
// preallocated lane count returns ErrCapacityExceeded and emits a
// warning event; nothing is allocated.
func (c *Client) SetPeerChannel(user string, index uint8, opts PeerChannelOpts) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, ok := c.users[user]
	if !ok {
		return newError(ErrProtocol, "set peer channel", errUnknownUser)
	}
	ch, ok := u.channels[index]
	if !ok {
		return newError(ErrProtocol, "set peer channel", errUnknownChannel)
	}

	if opts.Volume != nil {
		ch.volume = audio.ClampVolume(*opts.Volume)
	}
	if opts.Pan != nil {
		ch.pan = *opts.Pan
	}
	if opts.Mute != nil {
		ch.mute = *opts.Mute
	}
	if ch.slot >= 0 {
		c.slots[ch.slot].mon.set(ch.volume, ch.pan, ch.mute)
	}
	if opts.Solo != nil {
		ch.solo = *opts.Solo
		if ch.slot >= 0 {
			c.setSoloBitLocked(1+ch.slot, ch.solo)
		}
	}

	if opts.Subscribe != nil && *opts.Subscribe != ch.subscribed {
		if *opts.Subscribe {
			if !c.assignSlotLocked(ch) {
				c.emitCapacityWarningLocked(user, ch.name)
				return newError(ErrCapacityExceeded, "set peer channel", nil)
			}
			ch.subscribed = true
		} else {
			ch.subscribed = false
			c.cancelDownloadLocked(chanKey{user: user, ch: index})
			c.releaseSlotLocked(ch)
		}
		c.sendUsermaskLocked(u)
	}
	return nil
}

// SetLocalChannelInfo updates the transmitted channel's identity.
// Idempotent: a wire message goes out only when a field changed since
// the last send.
func (c *Client) SetLocalChannelInfo(name string, transmit bool, bitrate int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if bitrate < parameter.MinBitrateKbps {
		bitrate = parameter.MinBitrateKbps
	} else if bitrate > parameter.MaxBitrateKbps {
		bitrate = parameter.MaxBitrateKbps
	}

	c.local.name = name
	c.local.transmit = transmit
	c.local.bitrate = bitrate
	c.refreshTransmitLocked()

	return c.sendChannelInfoLocked()
}

// LocalChannelInfo returns the transmitted channel's identity
func (c *Client) LocalChannelInfo() (name string, transmit bool, bitrate int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local.name, c.local.transmit, c.local.bitrate
}

// SetLocalMonitor adjusts the local channel's monitor mix
func (c *Client) SetLocalMonitor(volume, pan float64, mute bool) {
	c.local.mon.set(volume, pan, mute)
}

// SetLocalSolo toggles solo on the local channel
func (c *Client) SetLocalSolo(solo bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local.solo = solo
	c.setSoloBitLocked(0, solo)
}

// SetMasterVolume sets the post-mix gain (linear, clamped)
func (c *Client) SetMasterVolume(v float64) {
	c.masterVolume.Set(audio.ClampVolume(v))
}

// SetMasterMute short-circuits the mix to silence
func (c *Client) SetMasterMute(mute bool) {
	c.masterMute.Store(mute)
}

// Metronome exposes the click generator's controls
func (c *Client) Metronome() *audio.Metronome {
	return c.metronome
}
