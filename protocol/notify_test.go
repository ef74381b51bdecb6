package protocol

import (
	"testing"

	"github.com/google/uuid"
)

// TestUserInfoMultipleEntries verifies a notify payload carrying several
// channel records parses field-for-field
func TestUserInfoMultipleEntries(t *testing.T) {
	in := []UserInfoEntry{
		{Active: true, ChannelIndex: 0, Volume: 0, Pan: 0, Username: "alice", ChannelName: "gtr"},
		{Active: true, ChannelIndex: 1, Volume: -600, Pan: -64, Flags: UserInfoFlagSolo, Username: "alice", ChannelName: "vox"},
		{Active: false, ChannelIndex: 0, Volume: 0, Pan: 127, Username: "bob", ChannelName: "keys"},
	}

	got, err := ParseUserInfo(MarshalUserInfo(in))
	if err != nil {
		t.Fatalf("ParseUserInfo: %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("expected %d entries, got %d", len(in), len(got))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("entry %d: %+v, want %+v", i, got[i], in[i])
		}
	}
}

// TestUserInfoEmptyPayload verifies zero entries is a valid notify
func TestUserInfoEmptyPayload(t *testing.T) {
	got, err := ParseUserInfo(nil)
	if err != nil {
		t.Fatalf("ParseUserInfo: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no entries, got %d", len(got))
	}
}

// TestUsermaskRoundTrip verifies the subscription mask layout
func TestUsermaskRoundTrip(t *testing.T) {
	in := []UsermaskEntry{
		{Username: "alice", Mask: 0b101},
		{Username: "bob", Mask: 0},
	}
	got, err := ParseSetUsermask(MarshalSetUsermask(in))
	if err != nil {
		t.Fatalf("ParseSetUsermask: %v", err)
	}
	if len(got) != 2 || got[0] != in[0] || got[1] != in[1] {
		t.Errorf("usermask entries mangled: %+v", got)
	}
}

// TestChannelInfoRoundTrip verifies the variable-param channel layout
// survives including an unknown larger param size
func TestChannelInfoRoundTrip(t *testing.T) {
	in := []ChannelInfo{{Name: "gtr", Volume: -150, Pan: 10, Flags: ChannelFlagTransmit}}
	got, err := ParseSetChannelInfo(MarshalSetChannelInfo(in))
	if err != nil {
		t.Fatalf("ParseSetChannelInfo: %v", err)
	}
	if len(got) != 1 || got[0] != in[0] {
		t.Errorf("channel info mangled: %+v", got)
	}
}

// TestIntervalBeginForms verifies upload and download layouts and the
// silent-channel zero form
func TestIntervalBeginForms(t *testing.T) {
	guid := uuid.MustParse("8f14e45f-ceea-467f-a8cb-9f1a2b3c4d5e")
	b := &IntervalBegin{
		GUID:          guid,
		EstimatedSize: 1234,
		FourCC:        [4]byte{'O', 'G', 'G', 'v'},
		ChannelIndex:  2,
		Username:      "alice",
	}

	up, err := ParseIntervalBegin(b.MarshalUploadPayload(), false)
	if err != nil {
		t.Fatalf("parse upload begin: %v", err)
	}
	if up.GUID != guid || up.EstimatedSize != 1234 || up.ChannelIndex != 2 || up.Username != "" {
		t.Errorf("upload begin mangled: %+v", up)
	}

	down, err := ParseIntervalBegin(b.MarshalDownloadPayload(), true)
	if err != nil {
		t.Fatalf("parse download begin: %v", err)
	}
	if down.Username != "alice" || down.GUID != guid {
		t.Errorf("download begin mangled: %+v", down)
	}
	if down.Zero() {
		t.Error("non-nil guid reported Zero")
	}

	silent := &IntervalBegin{ChannelIndex: 1}
	got, err := ParseIntervalBegin(silent.MarshalUploadPayload(), false)
	if err != nil {
		t.Fatalf("parse silent begin: %v", err)
	}
	if !got.Zero() {
		t.Error("zero guid not reported as silent form")
	}
}

// TestIntervalWriteEndFlag verifies the terminating chunk flag
func TestIntervalWriteEndFlag(t *testing.T) {
	guid := uuid.New()
	w := &IntervalWrite{GUID: guid, Flags: IntervalEnd, Data: []byte{9, 8, 7}}

	got, err := ParseIntervalWrite(w.MarshalPayload())
	if err != nil {
		t.Fatalf("ParseIntervalWrite: %v", err)
	}
	if got.GUID != guid || !got.End() || len(got.Data) != 3 {
		t.Errorf("interval write mangled: %+v", got)
	}

	mid := &IntervalWrite{GUID: guid, Data: nil}
	got, err = ParseIntervalWrite(mid.MarshalPayload())
	if err != nil {
		t.Fatalf("ParseIntervalWrite: %v", err)
	}
	if got.End() {
		t.Error("mid-interval chunk reported End")
	}
}

// TestChatTopicParsing verifies TOPIC extraction and tolerance of an
// unterminated final field
func TestChatTopicParsing(t *testing.T) {
	c, err := ParseChat(MarshalChat(ChatTopic, "server", "welcome to the jam"))
	if err != nil {
		t.Fatalf("ParseChat: %v", err)
	}
	if c.Command() != ChatTopic || c.Arg(1) != "welcome to the jam" {
		t.Errorf("chat fields: %+v", c.Fields)
	}

	// Trailing field without NUL
	raw := append(MarshalChat(ChatMsg, "bob"), []byte("hi there")...)
	c, err = ParseChat(raw)
	if err != nil {
		t.Fatalf("ParseChat: %v", err)
	}
	if c.Arg(1) != "hi there" {
		t.Errorf("unterminated field: %+v", c.Fields)
	}
}
