package protocol

import (
	"bytes"
	"io"
	"testing"

	"github.com/lixenwraith/jamplug/parameter"
)

// TestMessageEncodeDecode verifies framing round-trips across a stream
func TestMessageEncodeDecode(t *testing.T) {
	var buf bytes.Buffer

	msgs := []*Message{
		{Type: MsgKeepalive},
		{Type: MsgServerConfigChange, Payload: []byte{0x78, 0x00, 0x10, 0x00}},
		{Type: MsgUploadWrite, Payload: bytes.Repeat([]byte{0xab}, 300)},
	}
	for _, m := range msgs {
		if err := m.Encode(&buf); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	for i, want := range msgs {
		got, err := Decode(&buf)
		if err != nil {
			t.Fatalf("Decode %d: %v", i, err)
		}
		if got.Type != want.Type {
			t.Errorf("message %d: type 0x%02x, want 0x%02x", i, got.Type, want.Type)
		}
		if !bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("message %d: payload differs", i)
		}
	}

	if _, err := Decode(&buf); err != io.EOF {
		t.Errorf("expected EOF on drained stream, got %v", err)
	}
}

// TestDecodeRejectsOversizedPayload verifies the length prefix is
// validated before allocation
func TestDecodeRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(byte(MsgUploadWrite))
	buf.Write([]byte{0xff, 0xff, 0xff, 0x7f}) // ~2GB claim

	if _, err := Decode(&buf); err == nil {
		t.Fatal("expected error for oversized length prefix")
	}
}

// TestDecodeTruncated verifies short reads surface as errors
func TestDecodeTruncated(t *testing.T) {
	// Header promises 10 bytes, stream carries 3
	var buf bytes.Buffer
	buf.WriteByte(byte(MsgChat))
	buf.Write([]byte{10, 0, 0, 0})
	buf.Write([]byte{1, 2, 3})

	if _, err := Decode(&buf); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

// TestEncodeRejectsOversizedPayload verifies the sender-side guard
func TestEncodeRejectsOversizedPayload(t *testing.T) {
	m := &Message{Type: MsgUploadWrite, Payload: make([]byte, parameter.MaxPayloadBytes+1)}
	if err := m.Encode(io.Discard); err == nil {
		t.Fatal("expected error for oversized payload")
	}
}
