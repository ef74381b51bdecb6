package parameter

// Audio Format
const (
	AudioChannels = 2 // stereo in, stereo out

	// DefaultMaxBlock caps per-callback frame counts when the host does
	// not announce a maximum at activation
	DefaultMaxBlock = 4096
)

// Real-Time Buffering
const (
	// TransmitRingFrames buffers audio-thread PCM for the worker's
	// encoder. Power of two. ~1.4s at 48kHz
	TransmitRingFrames = 1 << 16

	// PeerRingFrames holds decoded peer PCM awaiting mix-in.
	// Power of two. Covers two long intervals (~10s at 48kHz)
	PeerRingFrames = 1 << 19

	// MaxPeerChannels is the playback slot preallocation cap across all
	// remote users. Subscriptions beyond this are rejected, never allocated
	MaxPeerChannels = 16

	// MaxUserChannels per remote user, protocol channel index width
	MaxUserChannels = 32
)

// Gain Law
const (
	MinVolume = 0.0
	MaxVolume = 2.0

	DefaultMasterVolume    = 1.0
	DefaultMetronomeVolume = 0.5
	DefaultChannelVolume   = 1.0
)

// Metronome Click
const (
	// ClickDurationMs bounds the synthesized click envelope
	ClickDurationMs = 15

	// ClickAccentHz sounds on beat 0 of each interval
	ClickAccentHz = 1760.0

	// ClickBeatHz sounds on every other beat
	ClickBeatHz = 880.0
)

// Local Channel Defaults
const (
	DefaultChannelName    = "channel0"
	DefaultBitrateKbps    = 64
	MinBitrateKbps        = 32
	MaxBitrateKbps        = 320
	DefaultTransmit       = true
)
