package codec

import (
	"bytes"
	"fmt"

	"github.com/jfreymuth/oggvorbis"
)

// vorbisDecoder reassembles an Ogg Vorbis interval. Chunks accumulate
// until the terminating chunk arrives, then the whole stream decodes in
// one pass; playback only begins at the next interval boundary anyway,
// so chunk-granular decode buys nothing.
type vorbisDecoder struct {
	raw      bytes.Buffer
	left     []float32
	right    []float32
	pos      int
	finished bool
}

func newVorbisDecoder() *vorbisDecoder {
	return &vorbisDecoder{}
}

func (d *vorbisDecoder) Write(chunk []byte) error {
	if d.finished {
		return fmt.Errorf("write after finish")
	}
	d.raw.Write(chunk)
	return nil
}

func (d *vorbisDecoder) Finish() error {
	d.finished = true
	if d.raw.Len() == 0 {
		return nil
	}

	interleaved, format, err := oggvorbis.ReadAll(bytes.NewReader(d.raw.Bytes()))
	if err != nil {
		return fmt.Errorf("vorbis decode: %w", err)
	}

	switch format.Channels {
	case 1:
		d.left = interleaved
		d.right = interleaved
	case 2:
		frames := len(interleaved) / 2
		d.left = make([]float32, frames)
		d.right = make([]float32, frames)
		for i := 0; i < frames; i++ {
			d.left[i] = interleaved[2*i]
			d.right[i] = interleaved[2*i+1]
		}
	default:
		return fmt.Errorf("vorbis decode: %d channels unsupported", format.Channels)
	}
	return nil
}

func (d *vorbisDecoder) ReadPCM(left, right []float32) (int, error) {
	n := len(d.left) - d.pos
	if n > len(left) {
		n = len(left)
	}
	copy(left[:n], d.left[d.pos:d.pos+n])
	copy(right[:n], d.right[d.pos:d.pos+n])
	d.pos += n
	return n, nil
}
