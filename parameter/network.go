package parameter

import "time"

// Protocol Identity
const (
	// ProtocolVersion is the NINJAM client version word sent during auth
	ProtocolVersion = 0x00020000

	// MaxPayloadBytes rejects absurd length prefixes before allocation
	MaxPayloadBytes = 1 << 20
)

// Connection Timing
const (
	ConnectTimeout = 5 * time.Second

	// WriteTimeout bounds a single frame write on the worker thread
	WriteTimeout = 3 * time.Second

	// DefaultKeepalive applies when the server announces no period
	DefaultKeepalive = 3 * time.Second

	// KeepaliveMissLimit silent periods before the link counts as dropped
	KeepaliveMissLimit = 3
)

// Socket Buffers
const (
	ReadBufferSize  = 64 * 1024
	WriteBufferSize = 64 * 1024

	// RecvQueueSize decouples the socket read goroutine from Run ticks
	RecvQueueSize = 64
)
