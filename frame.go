package blobframe

import (
	"encoding/binary"
	"math"
)

// Framer splits a blob into a lazy sequence of transport packets behind a
// 4-byte big-endian length header. The concatenation of every packet
// yielded by Next equals the framed buffer byte-for-byte; the sequence is
// finite and is restarted only by calling Reset with a new blob.
type Framer struct {
	framed []byte
	offset int
}

// NewFramer builds the framed buffer for blob and returns a Framer
// positioned at its first packet. It returns ErrFrameTooLarge if the
// framed length would not fit in the 4-byte header.
func NewFramer(blob []byte) (*Framer, error) {
	f := &Framer{}
	if err := f.Reset(blob); err != nil {
		return nil, err
	}
	return f, nil
}

// Reset rebuilds the Framer around a new blob, discarding any packets left
// unread from the previous one.
func (f *Framer) Reset(blob []byte) error {
	total := uint64(HeaderSize) + uint64(len(blob))
	if total > math.MaxUint32 {
		return ErrFrameTooLarge
	}

	framed := make([]byte, total)
	binary.BigEndian.PutUint32(framed[:HeaderSize], uint32(total))
	copy(framed[HeaderSize:], blob)

	f.framed = framed
	f.offset = 0
	return nil
}

// Next returns the next transport packet, at most MaxPacketSize bytes, or
// (nil, false) once the framed buffer is exhausted. No allocation occurs
// per packet beyond the one framed buffer built by Reset/NewFramer.
func (f *Framer) Next() ([]byte, bool) {
	if f.offset >= len(f.framed) {
		return nil, false
	}

	end := f.offset + MaxPacketSize
	if end > len(f.framed) {
		end = len(f.framed)
	}

	packet := f.framed[f.offset:end]
	f.offset = end
	return packet, true
}

// Remaining reports how many bytes of the framed buffer have not yet been
// yielded by Next.
func (f *Framer) Remaining() int {
	return len(f.framed) - f.offset
}
