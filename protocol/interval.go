package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Interval write flags
const (
	IntervalEnd = 1 << 0 // terminating chunk of the interval
)

// IntervalBegin opens one interval transfer. Upload (client→server)
// omits the username; download (server→client) carries the originating
// user. A begin with the zero GUID cancels the channel's pending
// transfer (the channel went silent).
type IntervalBegin struct {
	GUID          uuid.UUID
	EstimatedSize uint32
	FourCC        [4]byte
	ChannelIndex  uint8
	Username      string // download only
}

// Zero reports the silent-channel cancel form
func (b *IntervalBegin) Zero() bool {
	return b.GUID == uuid.Nil
}

// MarshalUploadPayload encodes a MsgUploadBegin payload
func (b *IntervalBegin) MarshalUploadPayload() []byte {
	p := make([]byte, 0, 25)
	p = append(p, b.GUID[:]...)
	p = binary.LittleEndian.AppendUint32(p, b.EstimatedSize)
	p = append(p, b.FourCC[:]...)
	return append(p, b.ChannelIndex)
}

// MarshalDownloadPayload encodes a MsgDownloadBegin payload (fixtures)
func (b *IntervalBegin) MarshalDownloadPayload() []byte {
	p := b.MarshalUploadPayload()
	return appendCString(p, b.Username)
}

// ParseIntervalBegin decodes either begin form; hasUsername selects the
// download layout.
func ParseIntervalBegin(p []byte, hasUsername bool) (*IntervalBegin, error) {
	if len(p) < 25 {
		return nil, fmt.Errorf("%w: interval begin %d bytes", ErrTruncated, len(p))
	}
	b := &IntervalBegin{}
	copy(b.GUID[:], p[0:16])
	b.EstimatedSize = binary.LittleEndian.Uint32(p[16:20])
	copy(b.FourCC[:], p[20:24])
	b.ChannelIndex = p[24]

	if hasUsername {
		user, _, err := readCString(p, 25)
		if err != nil {
			return nil, fmt.Errorf("interval begin username: %w", err)
		}
		b.Username = user
	}
	return b, nil
}

// IntervalWrite carries one chunk of an interval's compressed payload
type IntervalWrite struct {
	GUID  uuid.UUID
	Flags uint8
	Data  []byte
}

// End reports the terminating chunk
func (w *IntervalWrite) End() bool {
	return w.Flags&IntervalEnd != 0
}

// MarshalPayload encodes an upload or download write payload
func (w *IntervalWrite) MarshalPayload() []byte {
	p := make([]byte, 0, 17+len(w.Data))
	p = append(p, w.GUID[:]...)
	p = append(p, w.Flags)
	return append(p, w.Data...)
}

// ParseIntervalWrite decodes a write payload. Data aliases p.
func ParseIntervalWrite(p []byte) (*IntervalWrite, error) {
	if len(p) < 17 {
		return nil, fmt.Errorf("%w: interval write %d bytes", ErrTruncated, len(p))
	}
	w := &IntervalWrite{Flags: p[16]}
	copy(w.GUID[:], p[0:16])
	w.Data = p[17:]
	return w, nil
}
