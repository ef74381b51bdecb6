package protocol

import (
	"crypto/sha1"
	"testing"
	"time"
)

// TestAuthChallengeRoundTrip verifies challenge layout including the
// license text and keepalive caps bits
func TestAuthChallengeRoundTrip(t *testing.T) {
	c := &AuthChallenge{
		Challenge:       [8]byte{1, 2, 3, 4, 5, 6, 7, 8},
		ServerCaps:      ServerCapLicense | 5<<8,
		ProtocolVersion: 0x00020000,
		License:         "TERMS",
	}

	got, err := ParseAuthChallenge(c.MarshalPayload())
	if err != nil {
		t.Fatalf("ParseAuthChallenge: %v", err)
	}
	if got.Challenge != c.Challenge {
		t.Error("challenge bytes differ")
	}
	if !got.HasLicense() {
		t.Error("license flag lost")
	}
	if got.License != "TERMS" {
		t.Errorf("license %q, want TERMS", got.License)
	}
	if got.KeepaliveInterval() != 5*time.Second {
		t.Errorf("keepalive %v, want 5s", got.KeepaliveInterval())
	}
}

// TestAuthChallengeDefaultKeepalive verifies the fallback when the server
// announces no period
func TestAuthChallengeDefaultKeepalive(t *testing.T) {
	c := &AuthChallenge{}
	got, err := ParseAuthChallenge(c.MarshalPayload())
	if err != nil {
		t.Fatalf("ParseAuthChallenge: %v", err)
	}
	if got.HasLicense() {
		t.Error("unexpected license flag")
	}
	if got.KeepaliveInterval() <= 0 {
		t.Error("expected positive default keepalive")
	}
}

// TestAuthUserPassHash verifies the challenge-salted digest derivation
func TestAuthUserPassHash(t *testing.T) {
	challenge := [8]byte{0xde, 0xad, 0xbe, 0xef, 1, 2, 3, 4}
	a := NewAuthUser("alice", "secret", challenge, true)

	inner := sha1.Sum([]byte("alice:secret"))
	outer := sha1.New()
	outer.Write(inner[:])
	outer.Write(challenge[:])
	var want [20]byte
	copy(want[:], outer.Sum(nil))

	if a.PassHash != want {
		t.Error("passhash does not match reference derivation")
	}
	if a.ClientCaps&ClientCapAgree == 0 {
		t.Error("agree bit not set")
	}

	// Round trip through the wire layout
	got, err := ParseAuthUser(a.MarshalPayload())
	if err != nil {
		t.Fatalf("ParseAuthUser: %v", err)
	}
	if got.Username != "alice" || got.PassHash != want || got.ClientVersion != a.ClientVersion {
		t.Error("auth user fields lost in round trip")
	}
}

// TestAuthReplyVerdicts verifies both success and failure forms
func TestAuthReplyVerdicts(t *testing.T) {
	ok := &AuthReply{Flags: 1, Message: "welcome", MaxChannels: 2}
	got, err := ParseAuthReply(ok.MarshalPayload())
	if err != nil {
		t.Fatalf("ParseAuthReply: %v", err)
	}
	if !got.Success() || got.Message != "welcome" || got.MaxChannels != 2 {
		t.Errorf("success reply mangled: %+v", got)
	}

	bad := &AuthReply{Flags: 0, Message: "invalid login"}
	got, err = ParseAuthReply(bad.MarshalPayload())
	if err != nil {
		t.Fatalf("ParseAuthReply: %v", err)
	}
	if got.Success() {
		t.Error("failure reply parsed as success")
	}
	if got.Message != "invalid login" {
		t.Errorf("message %q", got.Message)
	}
}
