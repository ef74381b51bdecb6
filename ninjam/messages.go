package ninjam

import (
	"errors"
	"fmt"

	"github.com/lixenwraith/jamplug/audio"
	"github.com/lixenwraith/jamplug/parameter"
	"github.com/lixenwraith/jamplug/protocol"
	"github.com/lixenwraith/jamplug/status"
)

// handleMessageLocked dispatches one inbound frame. Returns prompt=true
// when the caller must run the license callback with the mutex dropped.
func (c *Client) handleMessageLocked(m *protocol.Message) (prompt bool, err error) {
	switch m.Type {
	case protocol.MsgServerAuthChallenge:
		return c.handleChallengeLocked(m.Payload)

	case protocol.MsgServerAuthReply:
		return false, c.handleAuthReplyLocked(m.Payload)

	case protocol.MsgServerConfigChange:
		return false, c.handleConfigChangeLocked(m.Payload)

	case protocol.MsgServerUserInfo:
		return false, c.handleUserInfoLocked(m.Payload)

	case protocol.MsgDownloadBegin:
		return false, c.handleDownloadBeginLocked(m.Payload)

	case protocol.MsgDownloadWrite:
		return false, c.handleDownloadWriteLocked(m.Payload)

	case protocol.MsgChat:
		return false, c.handleChatLocked(m.Payload)

	case protocol.MsgKeepalive:
		return false, nil
	}

	// Unknown types are skipped by frame length, not fatal
	c.log.Debug("ignoring unknown message", "type", fmt.Sprintf("0x%02x", byte(m.Type)))
	return false, nil
}

func (c *Client) handleChallengeLocked(p []byte) (bool, error) {
	if c.mirror.Load() != status.StateHandshaking {
		return false, c.failLocked(ErrProtocol, "auth challenge", errors.New("unexpected state"))
	}

	ch, err := protocol.ParseAuthChallenge(p)
	if err != nil {
		return false, c.failLocked(ErrProtocol, "auth challenge", err)
	}

	c.challenge = ch.Challenge
	c.keepalive = ch.KeepaliveInterval()

	if ch.HasLicense() && ch.License != "" {
		c.licenseText = ch.License
		c.setStateLocked(status.StateAwaitingLicense, nil)
		return true, nil
	}
	return false, c.sendAuthLocked(false)
}

// completeLicenseLocked resumes the handshake once the UI answered. The
// connection may have died while the mutex was dropped.
func (c *Client) completeLicenseLocked(resp LicenseResponse) error {
	if c.io == nil || c.mirror.Load() != status.StateAwaitingLicense {
		return nil
	}
	switch resp {
	case LicenseAccept:
		return c.sendAuthLocked(true)
	case LicenseTimeout:
		return c.failLocked(ErrLicenseTimeout, "license", nil)
	default:
		return c.failLocked(ErrLicenseRejected, "license", nil)
	}
}

func (c *Client) sendAuthLocked(agree bool) error {
	auth := protocol.NewAuthUser(c.user, c.pass, c.challenge, agree)
	if err := c.sendLocked(protocol.MsgClientAuthUser, auth.MarshalPayload()); err != nil {
		return c.failLocked(ErrNetworkDropped, "auth", err)
	}
	c.setStateLocked(status.StateAuthenticating, nil)
	return nil
}

func (c *Client) handleAuthReplyLocked(p []byte) error {
	if c.mirror.Load() != status.StateAuthenticating {
		return c.failLocked(ErrProtocol, "auth reply", errors.New("unexpected state"))
	}

	r, err := protocol.ParseAuthReply(p)
	if err != nil {
		return c.failLocked(ErrProtocol, "auth reply", err)
	}
	if !r.Success() {
		return c.failLocked(ErrAuthFailed, "auth reply", errors.New(r.Message))
	}

	// Server may rewrite the username (anonymous suffixing)
	if r.Message != "" {
		c.user = r.Message
	}

	c.setStateLocked(status.StateJoined, nil)
	c.refreshTransmitLocked()
	return c.sendChannelInfoLocked()
}

func (c *Client) handleConfigChangeLocked(p []byte) error {
	cfg, err := protocol.ParseConfigChange(p)
	if err != nil {
		return c.failLocked(ErrProtocol, "config change", err)
	}

	// First tempo applies immediately; later ones wait for the boundary
	// so the running interval keeps its length
	if c.clock.length.Load() == 0 {
		c.clock.configure(c.sampleRate, cfg.BPM, cfg.BPI)
	} else {
		c.clock.schedule(c.sampleRate, cfg.BPM, cfg.BPI)
	}
	c.log.Info("tempo", "bpm", cfg.BPM, "bpi", cfg.BPI)
	return nil
}

// handleUserInfoLocked applies an incremental channel roster update.
// Newly active channels are auto-subscribed while playback lanes remain.
func (c *Client) handleUserInfoLocked(p []byte) error {
	entries, err := protocol.ParseUserInfo(p)
	if err != nil {
		return c.failLocked(ErrProtocol, "user info", err)
	}

	changedMask := make(map[string]bool)
	for _, e := range entries {
		if e.ChannelIndex >= parameter.MaxUserChannels {
			continue
		}
		if e.Active {
			u := c.users[e.Username]
			if u == nil {
				u = &peerUser{name: e.Username, channels: make(map[uint8]*peerChannel)}
				c.users[e.Username] = u
			}
			ch := u.channels[e.ChannelIndex]
			if ch == nil {
				ch = &peerChannel{
					index:  e.ChannelIndex,
					slot:   -1,
					volume: audio.VolumeFromWire(e.Volume),
					pan:    audio.PanFromWire(e.Pan),
				}
				u.channels[e.ChannelIndex] = ch
			}
			ch.name = e.ChannelName
			if !ch.active {
				ch.active = true
				if c.assignSlotLocked(ch) {
					ch.subscribed = true
					changedMask[e.Username] = true
				} else {
					c.emitCapacityWarningLocked(e.Username, e.ChannelName)
				}
			}
		} else if u := c.users[e.Username]; u != nil {
			if ch := u.channels[e.ChannelIndex]; ch != nil {
				c.cancelDownloadLocked(chanKey{user: e.Username, ch: e.ChannelIndex})
				if ch.subscribed {
					changedMask[e.Username] = true
				}
				c.releaseSlotLocked(ch)
				delete(u.channels, e.ChannelIndex)
			}
			if len(u.channels) == 0 {
				delete(c.users, e.Username)
				delete(changedMask, e.Username)
			}
		}
	}

	for name := range changedMask {
		if u := c.users[name]; u != nil {
			c.sendUsermaskLocked(u)
		}
	}
	if c.cb.OnUserInfo != nil {
		c.cb.OnUserInfo()
	}
	return nil
}

func (c *Client) handleChatLocked(p []byte) error {
	msg, err := protocol.ParseChat(p)
	if err != nil || msg.Command() == "" {
		return nil
	}
	switch msg.Command() {
	case protocol.ChatTopic:
		if c.cb.OnTopic != nil {
			c.cb.OnTopic(msg.Arg(1))
		}
	case protocol.ChatMsg:
		if c.cb.OnChat != nil {
			c.cb.OnChat(msg.Arg(0), msg.Arg(1))
		}
	}
	return nil
}

// sendUsermaskLocked pushes one user's subscription bits to the server.
// Write failures here are deferred to the keepalive check.
func (c *Client) sendUsermaskLocked(u *peerUser) {
	if c.io == nil {
		return
	}
	payload := protocol.MarshalSetUsermask([]protocol.UsermaskEntry{
		{Username: u.name, Mask: u.mask()},
	})
	if err := c.sendLocked(protocol.MsgClientSetUsermask, payload); err != nil {
		c.log.Warn("usermask send failed", "user", u.name, "err", err)
	}
}

// sendChannelInfoLocked announces the local channel, skipping the wire
// when nothing changed since the last announcement
func (c *Client) sendChannelInfoLocked() error {
	if c.io == nil || c.mirror.Load() != status.StateJoined {
		return nil
	}

	info := protocol.ChannelInfo{
		Name:   c.local.name,
		Volume: audio.WireVolume(c.local.mon.volume.Get()),
		Pan:    audio.WirePan(c.local.mon.pan.Get()),
	}
	if c.local.transmit {
		info.Flags |= protocol.ChannelFlagTransmit
	}
	if c.lastSentInfo != nil && *c.lastSentInfo == info {
		return nil
	}

	payload := protocol.MarshalSetChannelInfo([]protocol.ChannelInfo{info})
	if err := c.sendLocked(protocol.MsgClientSetChannel, payload); err != nil {
		return c.failLocked(ErrNetworkDropped, "channel info", err)
	}
	c.lastSentInfo = &info
	return nil
}

// SendChat broadcasts a chat line to the session
func (c *Client) SendChat(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mirror.Load() != status.StateJoined {
		return errors.New("not joined")
	}
	return c.sendLocked(protocol.MsgChat, protocol.MarshalChat(protocol.ChatMsg, text))
}

func (c *Client) emitCapacityWarningLocked(user, channel string) {
	c.log.Warn("playback capacity exhausted", "user", user, "channel", channel)
	if c.cb.OnCapacity != nil {
		c.cb.OnCapacity(user, channel)
	}
}
