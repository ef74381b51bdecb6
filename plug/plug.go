// Package plug is the host-facing plugin instance: it owns the protocol
// engine, the worker thread, the UI event queue, the license rendezvous,
// and the host parameter surface. One Instance per plugin instantiation;
// nothing is shared between instances.
package plug

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/jamplug/codec"
	"github.com/lixenwraith/jamplug/event"
	"github.com/lixenwraith/jamplug/ninjam"
	"github.com/lixenwraith/jamplug/parameter"
	"github.com/lixenwraith/jamplug/status"
)

// Options configures a plugin instance
type Options struct {
	// Encoder selects the transmit codec; nil uses raw PCM
	Encoder codec.Factory

	// LicenseTimeout bounds the wait for a license answer; zero uses
	// the default
	LicenseTimeout time.Duration

	Log *slog.Logger
}

// Instance is one plugin instantiation. The host calls Activate,
// Process, and Deactivate; the UI thread calls everything else.
type Instance struct {
	log     *slog.Logger
	client  *ninjam.Client
	snap    *status.Snapshot
	events  *event.Queue
	license *LicenseSlot

	// Parameter readback atomics, mirrored into the engine on write
	paramMasterVolume    status.AtomicFloat
	paramMasterMute      atomic.Bool
	paramMetronomeVolume status.AtomicFloat
	paramMetronomeMute   atomic.Bool

	// Session bookkeeping for persisted state
	mu       sync.Mutex
	server   string
	username string

	active   atomic.Bool
	maxBlock int
	stop     atomic.Bool
	wg       sync.WaitGroup
}

// New builds an inactive instance
func New(opts Options) *Instance {
	log := opts.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	p := &Instance{
		log:     log,
		snap:    &status.Snapshot{},
		events:  &event.Queue{},
		license: newLicenseSlot(opts.LicenseTimeout),
	}
	p.paramMasterVolume.Set(parameter.DefaultMasterVolume)
	p.paramMetronomeVolume.Set(parameter.DefaultMetronomeVolume)

	cb := ninjam.Callbacks{
		OnStatus: func(s status.ConnState, err error) {
			ev := event.UIEvent{Type: event.TypeStatusChanged, State: s}
			if err != nil {
				ev.Err = err.Error()
			}
			p.push(ev)
		},
		OnUserInfo: func() {
			p.push(event.UIEvent{Type: event.TypeUserInfoChanged})
		},
		OnTopic: func(topic string) {
			p.push(event.UIEvent{Type: event.TypeTopicChanged, Text: topic})
		},
		OnChat: func(user, text string) {
			p.push(event.UIEvent{Type: event.TypeChatMessage, User: user, Text: text})
		},
		OnCapacity: func(user, channel string) {
			p.push(event.UIEvent{Type: event.TypeCapacityWarning, User: user, Text: channel})
		},
		OnLicense: p.license.Request,
	}
	p.client = ninjam.NewClient(ninjam.Config{Encoder: opts.Encoder, Log: log}, cb, p.snap)
	return p
}

func (p *Instance) push(ev event.UIEvent) {
	if !p.events.TryPush(ev) {
		p.log.Warn("ui event dropped", "type", ev.Type)
	}
}

// Activate binds the host's audio session and spawns the worker thread
func (p *Instance) Activate(sampleRate, maxBlock int) error {
	if p.active.Load() {
		return errors.New("already active")
	}
	if err := p.client.Activate(sampleRate, maxBlock); err != nil {
		return err
	}
	p.maxBlock = maxBlock
	p.license.reopen()
	p.stop.Store(false)
	p.wg.Add(1)
	go p.workerLoop()
	p.active.Store(true)
	return nil
}

// Deactivate joins the worker and releases the audio session. The host
// guarantees Process is no longer running.
func (p *Instance) Deactivate() {
	if !p.active.Load() {
		return
	}
	p.stop.Store(true)
	// The worker may be blocked on a license prompt, or about to block
	// on one; shutdown resolves the pending prompt and short-circuits
	// any later one so the join below is bounded
	p.license.shutdown()
	p.wg.Wait()
	p.client.Deactivate()
	p.active.Store(false)
}

// Connect starts a session to host:port with the given credentials.
// The password is used for the handshake only and never persisted.
func (p *Instance) Connect(server, username, password string) error {
	p.mu.Lock()
	p.server = server
	p.username = username
	p.mu.Unlock()
	return p.client.Connect(server, username, password)
}

// Disconnect requests session teardown
func (p *Instance) Disconnect() {
	p.client.Disconnect()
}

// DrainEvents delivers queued worker events to the UI in FIFO order
func (p *Instance) DrainEvents(visit func(event.UIEvent)) int {
	return p.events.Drain(visit)
}

// Snapshot exposes the transport and VU atomics for UI sampling
func (p *Instance) Snapshot() *status.Snapshot {
	return p.snap
}

// License exposes the rendezvous slot for the UI's modal
func (p *Instance) License() *LicenseSlot {
	return p.license
}

// Engine exposes the protocol engine for imperative channel actions
func (p *Instance) Engine() *ninjam.Client {
	return p.client
}

// State returns the connection state mirror
func (p *Instance) State() status.ConnState {
	return p.client.State()
}

// workerLoop drives the engine until Deactivate. Sleep adapts to the
// connection state so UI actions stay responsive while idle sessions
// stay cheap.
func (p *Instance) workerLoop() {
	defer p.wg.Done()
	for !p.stop.Load() {
		res, _ := p.client.Run()

		d := parameter.WorkerSleepIdle
		switch p.client.State() {
		case status.StateIdle, status.StateFailed:
		default:
			d = parameter.WorkerSleepActive
		}
		if res == ninjam.TickProgressed {
			d = parameter.WorkerSleepActive
		}
		time.Sleep(d)
	}
}
