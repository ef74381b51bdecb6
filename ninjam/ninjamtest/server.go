// Package ninjamtest provides an in-process NINJAM server fixture.
// It speaks the real wire protocol on a loopback listener so engine
// tests exercise the full frame path without a network.
package ninjamtest

import (
	"crypto/rand"
	"net"
	"sync"

	"github.com/lixenwraith/jamplug/protocol"
)

// Options configures the fixture's behavior
type Options struct {
	// License text offered in the auth challenge; empty disables the
	// license requirement
	License string

	// RejectAuth fails every authentication attempt
	RejectAuth bool

	// Users maps accepted usernames to passwords; empty accepts anyone
	Users map[string]string

	// Tempo announced after a successful join
	BPM float64
	BPI int

	// KeepaliveSecs announced in the challenge caps; 0 omits it
	KeepaliveSecs int
}

// Server is one fixture instance. Interval uploads from any client are
// relayed to every other client, mirroring a public server's routing.
type Server struct {
	opts Options
	ln   net.Listener

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	srv  *Server
	conn net.Conn

	writeMu sync.Mutex
	user    string
	joined  bool

	// channels announced by this client, broadcast to later joiners
	channels        []protocol.ChannelInfo
	setChannelCount int
}

// Start listens on an ephemeral loopback port
func Start(opts Options) (*Server, error) {
	if opts.BPM == 0 {
		opts.BPM = 120
	}
	if opts.BPI == 0 {
		opts.BPI = 8
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &Server{
		opts:    opts,
		ln:      ln,
		clients: make(map[*client]struct{}),
	}
	go s.acceptLoop()
	return s, nil
}

// Addr returns the listener's host:port
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Close stops the listener and drops every client
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	for c := range s.clients {
		c.conn.Close()
	}
	s.mu.Unlock()
	s.ln.Close()
}

// SetChannelCount reports how many channel announcements a user has
// sent, for idempotence assertions
func (s *Server) SetChannelCount(user string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if c.user == user {
			return c.setChannelCount
		}
	}
	return 0
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		c := &client{srv: s, conn: conn}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.clients[c] = struct{}{}
		s.mu.Unlock()
		go c.serve()
	}
}

func (c *client) send(t protocol.MessageType, payload []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	m := &protocol.Message{Type: t, Payload: payload}
	m.Encode(c.conn)
}

func (c *client) serve() {
	defer c.close()

	var challenge [8]byte
	rand.Read(challenge[:])

	caps := uint32(c.srv.opts.KeepaliveSecs&0xff) << 8
	if c.srv.opts.License != "" {
		caps |= protocol.ServerCapLicense
	}
	hello := &protocol.AuthChallenge{
		Challenge:       challenge,
		ServerCaps:      caps,
		ProtocolVersion: 0x00020000,
		License:         c.srv.opts.License,
	}
	c.send(protocol.MsgServerAuthChallenge, hello.MarshalPayload())

	for {
		m, err := protocol.Decode(c.conn)
		if err != nil {
			return
		}
		switch m.Type {
		case protocol.MsgClientAuthUser:
			if !c.handleAuth(m.Payload, challenge) {
				return
			}
		case protocol.MsgClientSetChannel:
			c.handleSetChannel(m.Payload)
		case protocol.MsgUploadBegin:
			c.relayBegin(m.Payload)
		case protocol.MsgUploadWrite:
			c.relay(protocol.MsgDownloadWrite, m.Payload)
		case protocol.MsgChat:
			c.relayChat(m.Payload)
		case protocol.MsgClientSetUsermask, protocol.MsgKeepalive:
			// accepted silently; relay routing is unconditional
		}
	}
}

func (c *client) handleAuth(p []byte, challenge [8]byte) bool {
	a, err := protocol.ParseAuthUser(p)
	if err != nil {
		return false
	}

	deny := func(msg string) bool {
		r := &protocol.AuthReply{Message: msg}
		c.send(protocol.MsgServerAuthReply, r.MarshalPayload())
		return false
	}

	if c.srv.opts.RejectAuth {
		return deny("authentication rejected")
	}
	if c.srv.opts.License != "" && a.ClientCaps&protocol.ClientCapAgree == 0 {
		return deny("license not accepted")
	}
	if users := c.srv.opts.Users; len(users) > 0 {
		pass, ok := users[a.Username]
		if !ok {
			return deny("unknown user")
		}
		want := protocol.NewAuthUser(a.Username, pass, challenge, false)
		if want.PassHash != a.PassHash {
			return deny("bad password")
		}
	}

	c.user = a.Username
	c.joined = true

	reply := &protocol.AuthReply{Flags: 1, Message: a.Username, MaxChannels: 32}
	c.send(protocol.MsgServerAuthReply, reply.MarshalPayload())

	cfg := &protocol.ConfigChange{BPM: c.srv.opts.BPM, BPI: c.srv.opts.BPI}
	c.send(protocol.MsgServerConfigChange, cfg.MarshalPayload())

	// Introduce existing channels to the newcomer
	var entries []protocol.UserInfoEntry
	c.srv.mu.Lock()
	for other := range c.srv.clients {
		if other == c || !other.joined {
			continue
		}
		for i, ch := range other.channels {
			entries = append(entries, protocol.UserInfoEntry{
				Active:       true,
				ChannelIndex: uint8(i),
				Volume:       ch.Volume,
				Pan:          ch.Pan,
				Username:     other.user,
				ChannelName:  ch.Name,
			})
		}
	}
	c.srv.mu.Unlock()
	if len(entries) > 0 {
		c.send(protocol.MsgServerUserInfo, protocol.MarshalUserInfo(entries))
	}
	return true
}

func (c *client) handleSetChannel(p []byte) {
	channels, err := protocol.ParseSetChannelInfo(p)
	if err != nil {
		return
	}
	c.srv.mu.Lock()
	c.channels = channels
	c.setChannelCount++
	c.srv.mu.Unlock()

	var entries []protocol.UserInfoEntry
	for i, ch := range channels {
		entries = append(entries, protocol.UserInfoEntry{
			Active:       true,
			ChannelIndex: uint8(i),
			Volume:       ch.Volume,
			Pan:          ch.Pan,
			Username:     c.user,
			ChannelName:  ch.Name,
		})
	}
	c.relay(protocol.MsgServerUserInfo, protocol.MarshalUserInfo(entries))
}

// relayBegin rewrites an upload begin into the download form carrying
// the sender's username
func (c *client) relayBegin(p []byte) {
	b, err := protocol.ParseIntervalBegin(p, false)
	if err != nil {
		return
	}
	b.Username = c.user
	c.relay(protocol.MsgDownloadBegin, b.MarshalDownloadPayload())
}

func (c *client) relayChat(p []byte) {
	msg, err := protocol.ParseChat(p)
	if err != nil || msg.Command() != protocol.ChatMsg {
		return
	}
	out := protocol.MarshalChat(protocol.ChatMsg, c.user, msg.Arg(0))
	c.relay(protocol.MsgChat, out)
}

// relay sends a frame to every other joined client
func (c *client) relay(t protocol.MessageType, payload []byte) {
	c.srv.mu.Lock()
	peers := make([]*client, 0, len(c.srv.clients))
	for other := range c.srv.clients {
		if other != c && other.joined {
			peers = append(peers, other)
		}
	}
	c.srv.mu.Unlock()

	for _, p := range peers {
		p.send(t, payload)
	}
}

func (c *client) close() {
	c.conn.Close()
	c.srv.mu.Lock()
	delete(c.srv.clients, c)
	wasJoined := c.joined
	user := c.user
	nchan := len(c.channels)
	c.srv.mu.Unlock()

	if !wasJoined {
		return
	}
	// Announce departure
	var entries []protocol.UserInfoEntry
	for i := 0; i < nchan; i++ {
		entries = append(entries, protocol.UserInfoEntry{
			Active:       false,
			ChannelIndex: uint8(i),
			Username:     user,
		})
	}
	if len(entries) > 0 {
		c.relay(protocol.MsgServerUserInfo, protocol.MarshalUserInfo(entries))
	}
}
