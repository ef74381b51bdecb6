// Package codec isolates interval payload compression behind capability
// interfaces. The engine never touches codec internals; variants are
// selected at construction (transmit) or by received fourcc (receive).
package codec

import "fmt"

// FourCC identifies an interval payload format on the wire.
type FourCC [4]byte

var (
	// FourCCVorbis marks Ogg Vorbis intervals, the format public NINJAM
	// servers relay between stock clients.
	FourCCVorbis = FourCC{'O', 'G', 'G', 'v'}

	// FourCCRawPCM marks uncompressed float32 intervals. Servers route
	// fourcc opaquely, so loopback sessions and tests can use it.
	FourCCRawPCM = FourCC{'F', 'P', 'C', 'M'}
)

func (f FourCC) String() string {
	return string(f[:])
}

// Encoder compresses one interval of stereo PCM. One encoder per
// interval; Finalize ends the stream and the encoder is discarded.
type Encoder interface {
	// WritePCM buffers one block of stereo frames.
	WritePCM(left, right []float32) error

	// ReadChunk returns the next compressed chunk ready for transmission,
	// or nil when nothing is pending.
	ReadChunk() []byte

	// Finalize flushes the stream and returns any terminal bytes.
	Finalize() ([]byte, error)
}

// Decoder reassembles one interval from compressed chunks. Chunks arrive
// in order; Finish marks the end of the stream, after which ReadPCM
// drains decoded frames.
type Decoder interface {
	// Write appends one compressed chunk.
	Write(chunk []byte) error

	// Finish marks the interval complete and decodes any remainder.
	Finish() error

	// ReadPCM copies decoded stereo frames into left/right, returning the
	// frame count. Zero means drained.
	ReadPCM(left, right []float32) (int, error)
}

// Factory builds encoder/decoder pairs for one payload format.
type Factory interface {
	FourCC() FourCC
	NewEncoder(sampleRate, bitrateKbps int) (Encoder, error)
	NewDecoder(sampleRate int) (Decoder, error)
}

// DecoderFor selects a decoder by received fourcc. Unknown formats are a
// codec error; the engine drops the interval and the session continues.
func DecoderFor(fourcc FourCC, sampleRate int) (Decoder, error) {
	switch fourcc {
	case FourCCRawPCM:
		return newPCMDecoder(), nil
	case FourCCVorbis:
		return newVorbisDecoder(), nil
	}
	return nil, fmt.Errorf("unknown interval format %q", fourcc)
}
