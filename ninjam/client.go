// Package ninjam implements the NINJAM client protocol engine: the
// connection state machine, the interval-delay transfer paths, and the
// real-time mix entry. All protocol state mutates on the worker thread's
// Run tick or under the client mutex from brief UI actions; the audio
// thread touches only atomics and preallocated lock-free rings.
package ninjam

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lixenwraith/jamplug/audio"
	"github.com/lixenwraith/jamplug/codec"
	"github.com/lixenwraith/jamplug/parameter"
	"github.com/lixenwraith/jamplug/protocol"
	"github.com/lixenwraith/jamplug/status"
)

var (
	errUnknownUser    = errors.New("unknown user")
	errUnknownChannel = errors.New("unknown channel")
	errNotActivated   = errors.New("client not activated")
	errBusy           = errors.New("connection already in progress")
)

// LicenseResponse is the UI's answer to a license prompt
type LicenseResponse int

const (
	LicenseAccept LicenseResponse = iota
	LicenseReject
	LicenseTimeout
)

// TickResult reports what one Run tick accomplished
type TickResult int

const (
	TickIdle TickResult = iota
	TickProgressed
)

// Callbacks deliver engine activity to the owner. All fire on the worker
// thread during Run; OnLicense may block (the engine drops its own mutex
// around the call).
type Callbacks struct {
	OnStatus   func(s status.ConnState, err error)
	OnUserInfo func()
	OnTopic    func(topic string)
	OnChat     func(user, text string)
	OnCapacity func(user, channel string)
	OnLicense  func(text string) LicenseResponse
}

// Config selects the engine's collaborators
type Config struct {
	// Encoder builds the transmit codec. Nil selects the raw-PCM factory.
	Encoder codec.Factory

	// Dialer overrides TCP dialing (loopback fixtures). Nil uses
	// net.DialTimeout.
	Dialer func(addr string) (net.Conn, error)

	Log *slog.Logger
}

// connIO bundles one live connection's I/O machinery. A dedicated read
// goroutine decodes frames so Run never blocks on the socket.
type connIO struct {
	conn net.Conn
	recv chan *protocol.Message
	errs chan error
	stop chan struct{}
}

type dialResult struct {
	conn net.Conn
	err  error
}

type connectRequest struct {
	host, user, pass string
}

type chanKey struct {
	user string
	ch   uint8
}

// Client is the protocol engine. One per plugin instance.
type Client struct {
	cfg Config
	cb  Callbacks
	log *slog.Logger

	mu     sync.Mutex
	mirror status.Mirror
	snap   *status.Snapshot

	// Session (set by Activate)
	activated  bool
	sampleRate int
	maxBlock   int
	metronome  *audio.Metronome
	scratchL   []float32
	scratchR   []float32

	// Connection
	io            *connIO
	dialCh        chan dialResult
	pending       *connectRequest
	disconnectReq atomic.Bool
	user, pass    string
	challenge     [8]byte
	licenseText   string
	keepalive     time.Duration
	lastRecv      time.Time
	lastSend      time.Time

	// Transport
	clock          intervalClock
	masterVolume   status.AtomicFloat
	masterMute     atomic.Bool
	soloMask       atomic.Uint32
	transmitActive atomic.Bool

	// Channels
	local        localChannel
	lastSentInfo *protocol.ChannelInfo
	users        map[string]*peerUser
	slots        [parameter.MaxPeerChannels]playbackSlot
	slotOwner    [parameter.MaxPeerChannels]*peerChannel

	// Interval transfer
	up                uploader
	downloads         map[uuid.UUID]*download
	chanDownloads     map[chanKey]uuid.UUID
	lastFlushInterval uint64
	silenceL          []float32
	silenceR          []float32
}

// NewClient creates an engine with the given collaborators
func NewClient(cfg Config, cb Callbacks, snap *status.Snapshot) *Client {
	if cfg.Encoder == nil {
		cfg.Encoder = codec.PCMFactory{}
	}
	if cfg.Log == nil {
		cfg.Log = slog.New(slog.DiscardHandler)
	}
	if snap == nil {
		snap = &status.Snapshot{}
	}
	c := &Client{
		cfg:           cfg,
		cb:            cb,
		log:           cfg.Log,
		snap:          snap,
		users:         make(map[string]*peerUser),
		downloads:     make(map[uuid.UUID]*download),
		chanDownloads: make(map[chanKey]uuid.UUID),
	}
	c.local = localChannel{
		name:     parameter.DefaultChannelName,
		transmit: parameter.DefaultTransmit,
		bitrate:  parameter.DefaultBitrateKbps,
	}
	c.local.mon.set(parameter.DefaultChannelVolume, 0, false)
	c.masterVolume.Set(parameter.DefaultMasterVolume)
	return c
}

// State returns the lock-free connection state mirror
func (c *Client) State() status.ConnState {
	return c.mirror.Load()
}

// Activate binds the engine to a session. All audio-thread memory is
// allocated here; a sample-rate change requires Deactivate first.
func (c *Client) Activate(sampleRate, maxBlock int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activated {
		return errors.New("already activated; deactivate before changing session")
	}
	if maxBlock <= 0 {
		maxBlock = parameter.DefaultMaxBlock
	}

	m, err := audio.NewMetronome(sampleRate)
	if err != nil {
		return err
	}

	c.sampleRate = sampleRate
	c.maxBlock = maxBlock
	c.metronome = m
	c.scratchL = make([]float32, maxBlock)
	c.scratchR = make([]float32, maxBlock)
	c.up.ring = audio.NewRing(parameter.TransmitRingFrames)
	c.up.scratchL = make([]float32, maxBlock)
	c.up.scratchR = make([]float32, maxBlock)
	for i := range c.slots {
		if c.slots[i].ring == nil {
			c.slots[i].ring = audio.NewRing(parameter.PeerRingFrames)
		}
	}
	c.activated = true
	return nil
}

// Deactivate tears down any session and releases the engine from the
// host's audio configuration. The caller must have stopped calling
// Render.
func (c *Client) Deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.io != nil || c.mirror.Load() != status.StateIdle {
		c.teardownLocked()
		c.setStateLocked(status.StateIdle, nil)
	}
	c.activated = false
}

// Connect requests a session. The actual resolve/dial runs on the
// worker's next tick so this returns immediately.
func (c *Client) Connect(host, user, pass string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.activated {
		return errNotActivated
	}
	switch c.mirror.Load() {
	case status.StateIdle, status.StateFailed:
	default:
		return errBusy
	}
	c.pending = &connectRequest{host: host, user: user, pass: pass}
	return nil
}

// Disconnect requests teardown; the worker observes it at its next tick
func (c *Client) Disconnect() {
	c.disconnectReq.Store(true)
}

// Run is the worker's cooperative tick: absorb one connection event or
// message, then advance transfers and keepalive. Returns promptly.
func (c *Client) Run() (TickResult, error) {
	c.mu.Lock()

	res := TickIdle
	var tickErr error

	if c.disconnectReq.Swap(false) && c.mirror.Load() != status.StateIdle {
		c.setStateLocked(status.StateDisconnecting, nil)
		c.teardownLocked()
		c.setStateLocked(status.StateIdle, nil)
		res = TickProgressed
	}

	if c.pending != nil && c.io == nil && c.dialCh == nil {
		req := c.pending
		c.pending = nil
		c.user, c.pass = req.user, req.pass
		c.setStateLocked(status.StateResolving, nil)
		c.startDialLocked(req.host)
		res = TickProgressed
	}

	if c.dialCh != nil {
		select {
		case r := <-c.dialCh:
			c.dialCh = nil
			if r.err != nil {
				tickErr = c.failLocked(ErrResolveFailed, "dial", r.err)
			} else {
				c.attachLocked(r.conn)
				c.setStateLocked(status.StateHandshaking, nil)
			}
			res = TickProgressed
		default:
		}
	}

	if c.io != nil {
		select {
		case err := <-c.io.errs:
			tickErr = c.failLocked(ErrNetworkDropped, "read", err)
			res = TickProgressed
		case msg := <-c.io.recv:
			c.lastRecv = time.Now()
			prompt, err := c.handleMessageLocked(msg)
			if err != nil {
				tickErr = err
			}
			if prompt {
				// The license wait can take a minute; never hold the
				// engine mutex across it.
				text := c.licenseText
				c.mu.Unlock()
				resp := LicenseAccept
				if c.cb.OnLicense != nil {
					resp = c.cb.OnLicense(text)
				}
				c.mu.Lock()
				tickErr = c.completeLicenseLocked(resp)
			}
			res = TickProgressed
		default:
		}
	}

	if c.io != nil && c.mirror.Load() == status.StateJoined {
		c.flushReadyLocked()
		if err := c.tickUploadLocked(); err != nil {
			tickErr = c.failLocked(ErrNetworkDropped, "upload", err)
		} else if err := c.tickKeepaliveLocked(); err != nil {
			tickErr = err
		}
	}

	c.publishSnapshotLocked()
	c.mu.Unlock()
	return res, tickErr
}

// startDialLocked resolves and dials off-thread so Run stays prompt
func (c *Client) startDialLocked(host string) {
	ch := make(chan dialResult, 1)
	c.dialCh = ch
	dialer := c.cfg.Dialer
	go func() {
		var conn net.Conn
		var err error
		if dialer != nil {
			conn, err = dialer(host)
		} else {
			conn, err = net.DialTimeout("tcp", host, parameter.ConnectTimeout)
		}
		ch <- dialResult{conn: conn, err: err}
	}()
}

// attachLocked wires a fresh connection's read goroutine
func (c *Client) attachLocked(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
		tc.SetReadBuffer(parameter.ReadBufferSize)
		tc.SetWriteBuffer(parameter.WriteBufferSize)
	}
	io := &connIO{
		conn: conn,
		recv: make(chan *protocol.Message, parameter.RecvQueueSize),
		errs: make(chan error, 1),
		stop: make(chan struct{}),
	}
	c.io = io
	c.lastRecv = time.Now()
	c.lastSend = time.Now()
	c.keepalive = parameter.DefaultKeepalive
	go readLoop(io)
}

// readLoop decodes frames until the connection dies or stop closes
func readLoop(io *connIO) {
	for {
		msg, err := protocol.Decode(io.conn)
		if err != nil {
			select {
			case io.errs <- err:
			default:
			}
			return
		}
		select {
		case io.recv <- msg:
		case <-io.stop:
			return
		}
	}
}

// sendLocked writes one frame with a bounded deadline
func (c *Client) sendLocked(t protocol.MessageType, payload []byte) error {
	if c.io == nil {
		return errors.New("not connected")
	}
	m := &protocol.Message{Type: t, Payload: payload}
	c.io.conn.SetWriteDeadline(time.Now().Add(parameter.WriteTimeout))
	if err := m.Encode(c.io.conn); err != nil {
		return err
	}
	c.lastSend = time.Now()
	return nil
}

// setStateLocked publishes a transition on the mirror and to the owner
func (c *Client) setStateLocked(s status.ConnState, err error) {
	c.mirror.Store(s)
	c.log.Info("connection state", "state", s.String(), "err", err)
	if c.cb.OnStatus != nil {
		c.cb.OnStatus(s, err)
	}
}

// failLocked closes the session and surfaces the taxonomy error
func (c *Client) failLocked(kind ErrorKind, where string, cause error) error {
	err := newError(kind, where, cause)
	c.teardownLocked()
	c.setStateLocked(status.StateFailed, err)
	return err
}

// teardownLocked closes the socket and resets all session state
func (c *Client) teardownLocked() {
	if c.io != nil {
		close(c.io.stop)
		c.io.conn.Close()
		c.io = nil
	}
	if ch := c.dialCh; ch != nil {
		// A dial still in flight may yet succeed; reap its socket
		go func() {
			if r := <-ch; r.conn != nil {
				r.conn.Close()
			}
		}()
		c.dialCh = nil
	}
	c.pending = nil
	c.pass = ""
	c.licenseText = ""

	for _, u := range c.users {
		for _, ch := range u.channels {
			c.releaseSlotLocked(ch)
		}
	}
	c.users = make(map[string]*peerUser)
	c.downloads = make(map[uuid.UUID]*download)
	c.chanDownloads = make(map[chanKey]uuid.UUID)
	c.lastSentInfo = nil
	c.resetUploadLocked()
	c.clock.reset()
	c.transmitActive.Store(false)
	if c.snap != nil {
		c.snap.Reset()
	}
}

// publishSnapshotLocked refreshes the UI's transport atomics so position
// and length are sampled as a consistent pair per tick
func (c *Client) publishSnapshotLocked() {
	if c.snap == nil {
		return
	}
	c.snap.BPM.Set(c.clock.bpm.Get())
	c.snap.BPI.Store(c.clock.bpi.Load())
	c.snap.IntervalPosition.Store(c.clock.position.Load())
	c.snap.IntervalLength.Store(c.clock.length.Load())
	c.snap.BeatPosition.Store(c.clock.beat())
}

// tickKeepaliveLocked sends idle keepalives and detects a dead link
func (c *Client) tickKeepaliveLocked() error {
	now := time.Now()
	if now.Sub(c.lastRecv) > c.keepalive*parameter.KeepaliveMissLimit {
		return c.failLocked(ErrNetworkDropped, "keepalive", errors.New("server silent"))
	}
	if now.Sub(c.lastSend) > c.keepalive/2 {
		if err := c.sendLocked(protocol.MsgKeepalive, nil); err != nil {
			return c.failLocked(ErrNetworkDropped, "keepalive", err)
		}
	}
	return nil
}

// refreshTransmitLocked recomputes the audio thread's capture flag
func (c *Client) refreshTransmitLocked() {
	c.transmitActive.Store(c.local.transmit && c.mirror.Load() == status.StateJoined)
}
