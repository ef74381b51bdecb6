package ninjam

import (
	"sync"
	"testing"
	"time"

	"github.com/lixenwraith/jamplug/ninjam/ninjamtest"
	"github.com/lixenwraith/jamplug/status"
)

// driveUntil runs worker ticks until cond holds or the deadline passes
func driveUntil(t *testing.T, c *Client, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		c.Run()
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s (state %v)", what, c.State())
}

// lastError captures the failure delivered with a state transition
type lastError struct {
	mu  sync.Mutex
	err error
}

func (l *lastError) set(_ status.ConnState, err error) {
	l.mu.Lock()
	if err != nil {
		l.err = err
	}
	l.mu.Unlock()
}

func (l *lastError) get() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// TestConnectJoinsAndAdoptsTempo walks the full cold handshake: dial,
// challenge, auth, join, tempo adoption into the snapshot
func TestConnectJoinsAndAdoptsTempo(t *testing.T) {
	srv, err := ninjamtest.Start(ninjamtest.Options{BPM: 120, BPI: 8})
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	defer srv.Close()

	snap := &status.Snapshot{}
	c := NewClient(Config{}, Callbacks{}, snap)
	if err := c.Activate(48000, 512); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	defer c.Deactivate()

	if err := c.Connect(srv.Addr(), "alice", ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	driveUntil(t, c, func() bool { return c.State() == status.StateJoined }, "join")

	// Tempo lands on a later tick than the join itself
	driveUntil(t, c, func() bool { return snap.BPM.Get() == 120 }, "tempo")
	if got := snap.BPI.Load(); got != 8 {
		t.Errorf("snapshot BPI = %d, want 8", got)
	}
	if got := snap.IntervalLength.Load(); got != 192000 {
		t.Errorf("interval length = %d, want 192000", got)
	}

	c.Disconnect()
	driveUntil(t, c, func() bool { return c.State() == status.StateIdle }, "disconnect")
	if got := snap.IntervalLength.Load(); got != 0 {
		t.Errorf("snapshot not reset on disconnect: length %d", got)
	}
}

// TestConnectRequiresActivation verifies the session precondition
func TestConnectRequiresActivation(t *testing.T) {
	c := NewClient(Config{}, Callbacks{}, nil)
	if err := c.Connect("127.0.0.1:1", "alice", ""); err == nil {
		t.Fatal("Connect before Activate succeeded")
	}
}

// TestAuthRejection verifies a bad credential surfaces as an auth
// failure and a Failed terminal state
func TestAuthRejection(t *testing.T) {
	srv, err := ninjamtest.Start(ninjamtest.Options{
		Users: map[string]string{"alice": "secret"},
	})
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	defer srv.Close()

	var last lastError
	c := NewClient(Config{}, Callbacks{OnStatus: last.set}, nil)
	if err := c.Activate(48000, 512); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	defer c.Deactivate()

	c.Connect(srv.Addr(), "alice", "wrong")
	driveUntil(t, c, func() bool { return c.State() == status.StateFailed }, "failure")

	if got := Kind(last.get()); got != ErrAuthFailed {
		t.Errorf("failure kind = %v, want %v", got, ErrAuthFailed)
	}
}

// TestLicenseAccept verifies the prompt fires with the server's text and
// acceptance continues to a join
func TestLicenseAccept(t *testing.T) {
	const terms = "be excellent to each other"
	srv, err := ninjamtest.Start(ninjamtest.Options{License: terms})
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	defer srv.Close()

	var gotText string
	cb := Callbacks{
		OnLicense: func(text string) LicenseResponse {
			gotText = text
			return LicenseAccept
		},
	}
	c := NewClient(Config{}, cb, nil)
	if err := c.Activate(48000, 512); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	defer c.Deactivate()

	c.Connect(srv.Addr(), "alice", "")
	driveUntil(t, c, func() bool { return c.State() == status.StateJoined }, "join")

	if gotText != terms {
		t.Errorf("license text %q, want %q", gotText, terms)
	}
}

// TestLicenseReject verifies a declined license ends the session with
// the rejection kind and no credentials sent
func TestLicenseReject(t *testing.T) {
	srv, err := ninjamtest.Start(ninjamtest.Options{License: "terms"})
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	defer srv.Close()

	var last lastError
	cb := Callbacks{
		OnStatus:  last.set,
		OnLicense: func(string) LicenseResponse { return LicenseReject },
	}
	c := NewClient(Config{}, cb, nil)
	if err := c.Activate(48000, 512); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	defer c.Deactivate()

	c.Connect(srv.Addr(), "alice", "")
	driveUntil(t, c, func() bool { return c.State() == status.StateFailed }, "failure")

	if got := Kind(last.get()); got != ErrLicenseRejected {
		t.Errorf("failure kind = %v, want %v", got, ErrLicenseRejected)
	}
}

// TestLicenseTimeout verifies an expired prompt ends the session with
// the timeout kind
func TestLicenseTimeout(t *testing.T) {
	srv, err := ninjamtest.Start(ninjamtest.Options{License: "terms"})
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	defer srv.Close()

	var last lastError
	cb := Callbacks{
		OnStatus:  last.set,
		OnLicense: func(string) LicenseResponse { return LicenseTimeout },
	}
	c := NewClient(Config{}, cb, nil)
	if err := c.Activate(48000, 512); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	defer c.Deactivate()

	c.Connect(srv.Addr(), "alice", "")
	driveUntil(t, c, func() bool { return c.State() == status.StateFailed }, "failure")

	if got := Kind(last.get()); got != ErrLicenseTimeout {
		t.Errorf("failure kind = %v, want %v", got, ErrLicenseTimeout)
	}
}

// TestChatRelay verifies MSG and TOPIC traffic reaches the callbacks
func TestChatRelay(t *testing.T) {
	srv, err := ninjamtest.Start(ninjamtest.Options{})
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	defer srv.Close()

	type chat struct{ user, text string }
	var mu sync.Mutex
	var got []chat
	cbB := Callbacks{
		OnChat: func(user, text string) {
			mu.Lock()
			got = append(got, chat{user, text})
			mu.Unlock()
		},
	}

	a := NewClient(Config{}, Callbacks{}, nil)
	b := NewClient(Config{}, cbB, nil)
	for _, c := range []*Client{a, b} {
		if err := c.Activate(48000, 512); err != nil {
			t.Fatalf("Activate: %v", err)
		}
		defer c.Deactivate()
	}

	a.Connect(srv.Addr(), "alice", "")
	b.Connect(srv.Addr(), "bob", "")
	driveUntil(t, a, func() bool { return a.State() == status.StateJoined }, "alice join")
	driveUntil(t, b, func() bool { return b.State() == status.StateJoined }, "bob join")

	if err := a.SendChat("hello jam"); err != nil {
		t.Fatalf("SendChat: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		a.Run()
		b.Run()
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) == 0 {
		t.Fatal("chat never delivered")
	}
	if got[0].user != "alice" || got[0].text != "hello jam" {
		t.Errorf("chat = %+v", got[0])
	}
}
