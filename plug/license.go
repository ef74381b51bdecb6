package plug

import (
	"sync"
	"time"

	"github.com/lixenwraith/jamplug/ninjam"
	"github.com/lixenwraith/jamplug/parameter"
)

// LicenseSlot is the one-shot rendezvous between the worker (which
// blocks on the server's license prompt) and the UI (which answers it).
// At most one request is in flight; each request resolves exactly once,
// by the UI's response, the hard timeout, or slot shutdown.
type LicenseSlot struct {
	mu   sync.Mutex
	cond *sync.Cond

	timeout time.Duration

	pending  bool
	text     string
	response ninjam.LicenseResponse
	answered bool
	closed   bool
}

// newLicenseSlot builds a slot with the given wait bound; zero selects
// the default
func newLicenseSlot(timeout time.Duration) *LicenseSlot {
	if timeout <= 0 {
		timeout = parameter.LicenseTimeout
	}
	s := &LicenseSlot{timeout: timeout}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Request publishes the prompt and blocks the calling worker until the
// UI responds or the timeout fires. A request while another is pending,
// or after shutdown, resolves immediately as a rejection; the slot is
// singular.
func (s *LicenseSlot) Request(text string) ninjam.LicenseResponse {
	s.mu.Lock()
	if s.pending || s.closed {
		s.mu.Unlock()
		return ninjam.LicenseReject
	}
	s.pending = true
	s.text = text
	s.answered = false

	timer := time.AfterFunc(s.timeout, func() {
		s.mu.Lock()
		if s.pending && !s.answered {
			s.answered = true
			s.response = ninjam.LicenseTimeout
			s.cond.Broadcast()
		}
		s.mu.Unlock()
	})

	for !s.answered {
		s.cond.Wait()
	}
	timer.Stop()

	resp := s.response
	s.pending = false
	s.text = ""
	s.mu.Unlock()
	return resp
}

// Pending reports whether a prompt awaits the UI
func (s *LicenseSlot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending && !s.answered
}

// Text returns the pending license text, or ""
func (s *LicenseSlot) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending || s.answered {
		return ""
	}
	return s.text
}

// Respond resolves the pending prompt. A response with nothing pending
// is ignored.
func (s *LicenseSlot) Respond(accept bool) {
	s.mu.Lock()
	if s.pending && !s.answered {
		s.answered = true
		if accept {
			s.response = ninjam.LicenseAccept
		} else {
			s.response = ninjam.LicenseReject
		}
		s.cond.Broadcast()
	}
	s.mu.Unlock()
}

// shutdown rejects the pending prompt and every later request, so a
// worker racing a new prompt against deactivation cannot block the join
func (s *LicenseSlot) shutdown() {
	s.mu.Lock()
	s.closed = true
	if s.pending && !s.answered {
		s.answered = true
		s.response = ninjam.LicenseReject
		s.cond.Broadcast()
	}
	s.mu.Unlock()
}

// reopen accepts requests again after a shutdown
func (s *LicenseSlot) reopen() {
	s.mu.Lock()
	s.closed = false
	s.mu.Unlock()
}
