// Package protocol implements NINJAM wire framing and payload codecs.
// Bit layout follows the public protocol so the client stays
// wire-compatible with existing servers.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/lixenwraith/jamplug/parameter"
)

// MessageType identifies the semantic meaning of a frame
type MessageType uint8

const (
	// Server messages
	MsgServerAuthChallenge MessageType = 0x00
	MsgServerAuthReply     MessageType = 0x01
	MsgServerConfigChange  MessageType = 0x02
	MsgServerUserInfo      MessageType = 0x03
	MsgDownloadBegin       MessageType = 0x04
	MsgDownloadWrite       MessageType = 0x05

	// Client messages
	MsgClientAuthUser    MessageType = 0x80
	MsgClientSetUsermask MessageType = 0x81
	MsgClientSetChannel  MessageType = 0x82
	MsgUploadBegin       MessageType = 0x83
	MsgUploadWrite       MessageType = 0x84

	// Bidirectional
	MsgChat      MessageType = 0xc0
	MsgKeepalive MessageType = 0xfd
)

// HeaderSize precedes every payload: [Type:1][Len:4 LE]
const HeaderSize = 5

var (
	ErrPayloadTooLarge = errors.New("payload exceeds maximum size")
	ErrTruncated       = errors.New("truncated payload")
)

// Message is one framed protocol unit
type Message struct {
	Type    MessageType
	Payload []byte
}

// Encode writes the frame with its length prefix
func (m *Message) Encode(w io.Writer) error {
	if len(m.Payload) > parameter.MaxPayloadBytes {
		return ErrPayloadTooLarge
	}

	var header [HeaderSize]byte
	header[0] = byte(m.Type)
	binary.LittleEndian.PutUint32(header[1:], uint32(len(m.Payload)))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(m.Payload) > 0 {
		if _, err := w.Write(m.Payload); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads one frame. The length prefix is validated before any
// payload allocation.
func Decode(r io.Reader) (*Message, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	payloadLen := binary.LittleEndian.Uint32(header[1:])
	if payloadLen > parameter.MaxPayloadBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, payloadLen)
	}

	m := &Message{Type: MessageType(header[0])}
	if payloadLen > 0 {
		m.Payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// readCString consumes a NUL-terminated string starting at off.
// Returns the string and the offset past the terminator.
func readCString(p []byte, off int) (string, int, error) {
	for i := off; i < len(p); i++ {
		if p[i] == 0 {
			return string(p[off:i]), i + 1, nil
		}
	}
	return "", 0, fmt.Errorf("%w: unterminated string", ErrTruncated)
}

// appendCString appends s plus its NUL terminator
func appendCString(p []byte, s string) []byte {
	p = append(p, s...)
	return append(p, 0)
}
