package protocol

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/lixenwraith/jamplug/parameter"
)

// Server capability bits (auth challenge)
const (
	ServerCapLicense = 1 << 0 // license agreement text present

	// Keepalive period in seconds occupies caps bits 8-15
	serverCapKeepaliveShift = 8
	serverCapKeepaliveMask  = 0xff
)

// Client capability bits (auth user)
const (
	ClientCapAgree = 1 << 0 // user accepted the license agreement
)

// AuthChallenge is the server's hello: an 8-byte challenge for password
// hashing, capability bits, protocol version, and the optional license
// agreement text.
type AuthChallenge struct {
	Challenge       [8]byte
	ServerCaps      uint32
	ProtocolVersion uint32
	License         string
}

// HasLicense reports whether the server requires license agreement
func (c *AuthChallenge) HasLicense() bool {
	return c.ServerCaps&ServerCapLicense != 0
}

// KeepaliveInterval returns the server-announced keepalive period, or the
// default when the server announces none
func (c *AuthChallenge) KeepaliveInterval() time.Duration {
	secs := (c.ServerCaps >> serverCapKeepaliveShift) & serverCapKeepaliveMask
	if secs == 0 {
		return parameter.DefaultKeepalive
	}
	return time.Duration(secs) * time.Second
}

// ParseAuthChallenge decodes a MsgServerAuthChallenge payload
func ParseAuthChallenge(p []byte) (*AuthChallenge, error) {
	if len(p) < 16 {
		return nil, fmt.Errorf("%w: auth challenge %d bytes", ErrTruncated, len(p))
	}
	c := &AuthChallenge{}
	copy(c.Challenge[:], p[0:8])
	c.ServerCaps = binary.LittleEndian.Uint32(p[8:12])
	c.ProtocolVersion = binary.LittleEndian.Uint32(p[12:16])

	if c.HasLicense() {
		license, _, err := readCString(p, 16)
		if err != nil {
			return nil, fmt.Errorf("auth challenge license: %w", err)
		}
		c.License = license
	}
	return c, nil
}

// MarshalPayload encodes the challenge (fixture servers and tests)
func (c *AuthChallenge) MarshalPayload() []byte {
	p := make([]byte, 16, 16+len(c.License)+1)
	copy(p[0:8], c.Challenge[:])
	binary.LittleEndian.PutUint32(p[8:12], c.ServerCaps)
	binary.LittleEndian.PutUint32(p[12:16], c.ProtocolVersion)
	if c.HasLicense() {
		p = appendCString(p, c.License)
	}
	return p
}

// AuthReply is the server's verdict: success flag, an error message or
// MOTD, and the channel count ceiling.
type AuthReply struct {
	Flags       uint8
	Message     string
	MaxChannels uint8
}

// Success reports whether authentication was accepted
func (r *AuthReply) Success() bool {
	return r.Flags&1 != 0
}

// ParseAuthReply decodes a MsgServerAuthReply payload
func ParseAuthReply(p []byte) (*AuthReply, error) {
	if len(p) < 1 {
		return nil, fmt.Errorf("%w: empty auth reply", ErrTruncated)
	}
	r := &AuthReply{Flags: p[0]}

	off := 1
	if off < len(p) {
		msg, next, err := readCString(p, off)
		if err != nil {
			return nil, fmt.Errorf("auth reply message: %w", err)
		}
		r.Message = msg
		off = next
	}
	if off < len(p) {
		r.MaxChannels = p[off]
	}
	return r, nil
}

// MarshalPayload encodes the reply (fixture servers and tests)
func (r *AuthReply) MarshalPayload() []byte {
	p := []byte{r.Flags}
	p = appendCString(p, r.Message)
	return append(p, r.MaxChannels)
}

// AuthUser is the client's credential message. The password never
// crosses the wire; only the challenge-salted digest does.
type AuthUser struct {
	PassHash      [20]byte
	Username      string
	ClientCaps    uint32
	ClientVersion uint32
}

// NewAuthUser derives the challenge response:
// SHA1(SHA1(user ":" pass) || challenge)
func NewAuthUser(username, password string, challenge [8]byte, agree bool) *AuthUser {
	inner := sha1.Sum([]byte(username + ":" + password))

	outer := sha1.New()
	outer.Write(inner[:])
	outer.Write(challenge[:])

	a := &AuthUser{
		Username:      username,
		ClientVersion: parameter.ProtocolVersion,
	}
	copy(a.PassHash[:], outer.Sum(nil))
	if agree {
		a.ClientCaps |= ClientCapAgree
	}
	return a
}

// MarshalPayload encodes a MsgClientAuthUser payload
func (a *AuthUser) MarshalPayload() []byte {
	p := make([]byte, 0, 20+len(a.Username)+1+8)
	p = append(p, a.PassHash[:]...)
	p = appendCString(p, a.Username)
	p = binary.LittleEndian.AppendUint32(p, a.ClientCaps)
	p = binary.LittleEndian.AppendUint32(p, a.ClientVersion)
	return p
}

// ParseAuthUser decodes a MsgClientAuthUser payload (fixture servers)
func ParseAuthUser(p []byte) (*AuthUser, error) {
	if len(p) < 20 {
		return nil, fmt.Errorf("%w: auth user %d bytes", ErrTruncated, len(p))
	}
	a := &AuthUser{}
	copy(a.PassHash[:], p[0:20])

	user, off, err := readCString(p, 20)
	if err != nil {
		return nil, fmt.Errorf("auth user name: %w", err)
	}
	a.Username = user

	if len(p) < off+8 {
		return nil, fmt.Errorf("%w: auth user caps", ErrTruncated)
	}
	a.ClientCaps = binary.LittleEndian.Uint32(p[off : off+4])
	a.ClientVersion = binary.LittleEndian.Uint32(p[off+4 : off+8])
	return a, nil
}
