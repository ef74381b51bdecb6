package protocol

import (
	"encoding/binary"
	"fmt"
)

// ConfigChange carries the server's tempo settings. BPM and BPI apply at
// the next interval boundary once a session is running.
type ConfigChange struct {
	BPM float64
	BPI int
}

// ParseConfigChange decodes a MsgServerConfigChange payload
func ParseConfigChange(p []byte) (*ConfigChange, error) {
	if len(p) < 4 {
		return nil, fmt.Errorf("%w: config change %d bytes", ErrTruncated, len(p))
	}
	return &ConfigChange{
		BPM: float64(binary.LittleEndian.Uint16(p[0:2])),
		BPI: int(binary.LittleEndian.Uint16(p[2:4])),
	}, nil
}

// MarshalPayload encodes the config change (fixture servers and tests)
func (c *ConfigChange) MarshalPayload() []byte {
	p := make([]byte, 4)
	binary.LittleEndian.PutUint16(p[0:2], uint16(c.BPM))
	binary.LittleEndian.PutUint16(p[2:4], uint16(c.BPI))
	return p
}

// UserInfo flags
const (
	UserInfoFlagSolo = 1 << 0
)

// UserInfoEntry describes one remote channel's existence and monitoring
// defaults. A notify payload carries zero or more entries.
type UserInfoEntry struct {
	Active       bool
	ChannelIndex uint8
	Volume       int16 // hundredths of a dB
	Pan          int8
	Flags        uint8
	Username     string
	ChannelName  string
}

// ParseUserInfo decodes a MsgServerUserInfo payload
func ParseUserInfo(p []byte) ([]UserInfoEntry, error) {
	var entries []UserInfoEntry
	off := 0
	for off < len(p) {
		if len(p)-off < 6 {
			return nil, fmt.Errorf("%w: userinfo entry header", ErrTruncated)
		}
		e := UserInfoEntry{
			Active:       p[off] != 0,
			ChannelIndex: p[off+1],
			Volume:       int16(binary.LittleEndian.Uint16(p[off+2 : off+4])),
			Pan:          int8(p[off+4]),
			Flags:        p[off+5],
		}
		off += 6

		var err error
		if e.Username, off, err = readCString(p, off); err != nil {
			return nil, fmt.Errorf("userinfo username: %w", err)
		}
		if e.ChannelName, off, err = readCString(p, off); err != nil {
			return nil, fmt.Errorf("userinfo channel name: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// MarshalUserInfo encodes entries (fixture servers and tests)
func MarshalUserInfo(entries []UserInfoEntry) []byte {
	var p []byte
	for _, e := range entries {
		active := byte(0)
		if e.Active {
			active = 1
		}
		p = append(p, active, e.ChannelIndex)
		p = binary.LittleEndian.AppendUint16(p, uint16(e.Volume))
		p = append(p, byte(e.Pan), e.Flags)
		p = appendCString(p, e.Username)
		p = appendCString(p, e.ChannelName)
	}
	return p
}

// UsermaskEntry records which of a user's channels the client wants to
// receive. Bit i of Mask subscribes channel index i.
type UsermaskEntry struct {
	Username string
	Mask     uint32
}

// MarshalSetUsermask encodes a MsgClientSetUsermask payload
func MarshalSetUsermask(entries []UsermaskEntry) []byte {
	var p []byte
	for _, e := range entries {
		p = appendCString(p, e.Username)
		p = binary.LittleEndian.AppendUint32(p, e.Mask)
	}
	return p
}

// ParseSetUsermask decodes a MsgClientSetUsermask payload (fixtures)
func ParseSetUsermask(p []byte) ([]UsermaskEntry, error) {
	var entries []UsermaskEntry
	off := 0
	for off < len(p) {
		name, next, err := readCString(p, off)
		if err != nil {
			return nil, fmt.Errorf("usermask username: %w", err)
		}
		if len(p)-next < 4 {
			return nil, fmt.Errorf("%w: usermask bits", ErrTruncated)
		}
		entries = append(entries, UsermaskEntry{
			Username: name,
			Mask:     binary.LittleEndian.Uint32(p[next : next+4]),
		})
		off = next + 4
	}
	return entries, nil
}

// Channel info flags
const (
	ChannelFlagTransmit = 1 << 0
)

// ChannelInfo announces one local channel to the server
type ChannelInfo struct {
	Name   string
	Volume int16 // hundredths of a dB
	Pan    int8
	Flags  uint8
}

// channelParamSize is the fixed-width tail per channel record
const channelParamSize = 4

// MarshalSetChannelInfo encodes a MsgClientSetChannel payload
func MarshalSetChannelInfo(channels []ChannelInfo) []byte {
	p := binary.LittleEndian.AppendUint16(nil, channelParamSize)
	for _, c := range channels {
		p = appendCString(p, c.Name)
		p = binary.LittleEndian.AppendUint16(p, uint16(c.Volume))
		p = append(p, byte(c.Pan), c.Flags)
	}
	return p
}

// ParseSetChannelInfo decodes a MsgClientSetChannel payload (fixtures)
func ParseSetChannelInfo(p []byte) ([]ChannelInfo, error) {
	if len(p) < 2 {
		return nil, fmt.Errorf("%w: channel info param size", ErrTruncated)
	}
	paramSize := int(binary.LittleEndian.Uint16(p[0:2]))
	if paramSize < channelParamSize {
		return nil, fmt.Errorf("channel info param size %d too small", paramSize)
	}

	var channels []ChannelInfo
	off := 2
	for off < len(p) {
		name, next, err := readCString(p, off)
		if err != nil {
			return nil, fmt.Errorf("channel info name: %w", err)
		}
		if len(p)-next < paramSize {
			return nil, fmt.Errorf("%w: channel info params", ErrTruncated)
		}
		channels = append(channels, ChannelInfo{
			Name:   name,
			Volume: int16(binary.LittleEndian.Uint16(p[next : next+2])),
			Pan:    int8(p[next+2]),
			Flags:  p[next+3],
		})
		off = next + paramSize
	}
	return channels, nil
}
