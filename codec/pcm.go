package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// pcmChunkFrames is the transmit granularity of the raw-PCM codec.
const pcmChunkFrames = 2048

// PCMFactory builds the uncompressed float32 variant. Interleaved LE
// frames, 8 bytes each. Used for loopback sessions and as the transmit
// default where no compressed encoder is wired in.
type PCMFactory struct{}

func (PCMFactory) FourCC() FourCC {
	return FourCCRawPCM
}

func (PCMFactory) NewEncoder(sampleRate, bitrateKbps int) (Encoder, error) {
	return &pcmEncoder{}, nil
}

func (PCMFactory) NewDecoder(sampleRate int) (Decoder, error) {
	return newPCMDecoder(), nil
}

type pcmEncoder struct {
	buf []byte
}

func (e *pcmEncoder) WritePCM(left, right []float32) error {
	if len(left) != len(right) {
		return fmt.Errorf("channel length mismatch: %d vs %d", len(left), len(right))
	}
	for i := range left {
		var frame [8]byte
		binary.LittleEndian.PutUint32(frame[0:4], math.Float32bits(left[i]))
		binary.LittleEndian.PutUint32(frame[4:8], math.Float32bits(right[i]))
		e.buf = append(e.buf, frame[:]...)
	}
	return nil
}

func (e *pcmEncoder) ReadChunk() []byte {
	const chunkBytes = pcmChunkFrames * 8
	if len(e.buf) < chunkBytes {
		return nil
	}
	chunk := e.buf[:chunkBytes:chunkBytes]
	e.buf = e.buf[chunkBytes:]
	return chunk
}

func (e *pcmEncoder) Finalize() ([]byte, error) {
	rest := e.buf
	e.buf = nil
	return rest, nil
}

type pcmDecoder struct {
	pending  []byte // partial frame carry-over between chunks
	left     []float32
	right    []float32
	pos      int
	finished bool
}

func newPCMDecoder() *pcmDecoder {
	return &pcmDecoder{}
}

func (d *pcmDecoder) Write(chunk []byte) error {
	if d.finished {
		return fmt.Errorf("write after finish")
	}
	d.pending = append(d.pending, chunk...)
	n := len(d.pending) / 8
	for i := 0; i < n; i++ {
		off := i * 8
		d.left = append(d.left, math.Float32frombits(binary.LittleEndian.Uint32(d.pending[off:off+4])))
		d.right = append(d.right, math.Float32frombits(binary.LittleEndian.Uint32(d.pending[off+4:off+8])))
	}
	d.pending = d.pending[n*8:]
	return nil
}

func (d *pcmDecoder) Finish() error {
	if len(d.pending) != 0 {
		return fmt.Errorf("interval ends mid-frame: %d trailing bytes", len(d.pending))
	}
	d.finished = true
	return nil
}

func (d *pcmDecoder) ReadPCM(left, right []float32) (int, error) {
	n := len(d.left) - d.pos
	if n > len(left) {
		n = len(left)
	}
	copy(left[:n], d.left[d.pos:d.pos+n])
	copy(right[:n], d.right[d.pos:d.pos+n])
	d.pos += n
	return n, nil
}
