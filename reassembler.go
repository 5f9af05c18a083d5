// Package blobframe implements a length-prefixed byte-stream framing codec:
// an encoder that splits an in-memory blob into fixed-size transport
// packets behind a 4-byte big-endian length header, and a decoder that
// reassembles those packets back into the original blob. The decoder is
// push-fed and never reads from or blocks on a transport; wiring it to an
// actual socket is the job of Conn and Server in this package.
package blobframe

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	// HeaderSize is the length in bytes of the length prefix at the start
	// of every framed blob.
	HeaderSize = 4
	// MaxPacketSize is the maximum size of a single transport packet.
	// It is a protocol constant, not a runtime option: changing it breaks
	// wire compatibility with any peer built against a different value.
	MaxPacketSize = 4096
)

// CompletionFunc is invoked once per fully reassembled, non-empty blob.
// blob is owned by the Reassembler for the duration of the call; callers
// that need to retain the data must copy it before returning.
type CompletionFunc func(id uint32, blob []byte, size int)

// ErrorFunc is invoked when a Reassembler detects a malformed or oversize
// stream and quiesces. No corresponding callback is required; a nil
// ErrorFunc simply means such conditions are ignored, matching the
// no-error-channel contract of Feed.
type ErrorFunc func(id uint32, err error)

// Reassembler is a stateful, single-threaded decoder that reconstructs
// framed blobs from an input stream whose chunk boundaries are arbitrary.
// A caller may deliver a single framed blob split across many Feed calls,
// several framed blobs concatenated in one call, or any mixture of the
// two; the reassembled blob and the transport-packet accounting are the
// same regardless of how the caller chunked the input.
//
// A Reassembler is not safe for concurrent Feed calls from multiple
// goroutines. Reentrant Feed calls from within the CompletionFunc are
// well-defined: by the time the callback runs, the Reassembler has already
// returned to its idle state.
type Reassembler struct {
	onComplete CompletionFunc
	onError    ErrorFunc

	keepHeader  bool
	maxBlobSize uint32

	id uint32

	headerBuf    [HeaderSize]byte
	headerOffset uint8

	blobBuffer []byte
	blobSize   uint32
	blobOffset uint32

	packetBuffer [MaxPacketSize]byte
	packetOffset uint32
	packetIndex  uint32
	totalPackets uint32

	quiesced bool
}

// NewReassembler creates a Reassembler in the initial (idle) state.
// keepHeader controls whether the 4-byte length prefix is retained as part
// of the blob delivered to onComplete or stripped before delivery.
func NewReassembler(onComplete CompletionFunc, keepHeader bool, opts ...ReassemblerOption) *Reassembler {
	r := &Reassembler{
		onComplete: onComplete,
		keepHeader: keepHeader,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetID sets the correlation id passed to the completion and error
// callbacks. It may be called at any time without disturbing an
// in-progress blob.
func (r *Reassembler) SetID(id uint32) {
	r.id = id
}

// Reset returns the Reassembler to the idle state, discarding any partial
// blob and clearing the quiesced (oversize/malformed) state. It does not
// free packetBuffer, which is a fixed-size array owned by the value itself.
// Reset is idempotent: calling it twice in a row is indistinguishable from
// calling it once.
func (r *Reassembler) Reset() {
	r.clearBlobState()
	r.quiesced = false
}

// Feed ingests an arbitrary-length chunk. It never blocks and never
// returns an error; it may invoke onComplete zero or more times before
// returning, once for every blob that becomes fully assembled during this
// call.
func (r *Reassembler) Feed(data []byte) {
	for {
		if r.quiesced {
			return
		}

		if r.blobBuffer == nil {
			if len(data) == 0 {
				return
			}
			n := copy(r.headerBuf[r.headerOffset:], data)
			r.headerOffset += uint8(n)
			data = data[n:]
			if r.headerOffset < HeaderSize {
				return
			}

			if !r.beginBlob() {
				return
			}
			r.headerOffset = 0

			if r.blobSize == 0 {
				r.completeBlob()
				continue
			}
			if r.keepHeader {
				// The header bytes are themselves part of the retained
				// blob; feed them through packet staging before the rest
				// of data.
				r.stagePacket(r.headerBuf[:])
				if r.blobBuffer == nil {
					continue
				}
			}
			continue
		}

		if len(data) == 0 {
			return
		}
		consumed := r.stagePacket(data)
		data = data[consumed:]
	}
}

// beginBlob parses the just-completed headerBuf into blobSize/totalPackets
// and allocates blobBuffer. It returns false if the Reassembler quiesced
// instead (oversize frame or a header that cannot be satisfied).
func (r *Reassembler) beginBlob() bool {
	h := binary.BigEndian.Uint32(r.headerBuf[:])

	var blobSize uint32
	if r.keepHeader {
		// Reproduces the source's observed off-by-one: a corrected
		// implementation would use blobSize = h. See DESIGN.md.
		blobSize = h + HeaderSize + 1
	} else {
		if h < HeaderSize {
			r.quiesce(errors.Wrapf(ErrBlobSizeUnderflow, "id=%d header=%d", r.id, h))
			return false
		}
		blobSize = h - HeaderSize
	}

	if r.maxBlobSize > 0 && blobSize > r.maxBlobSize {
		r.quiesce(errors.Wrapf(ErrFrameTooLarge, "id=%d blobSize=%d max=%d", r.id, blobSize, r.maxBlobSize))
		return false
	}

	r.blobSize = blobSize
	r.totalPackets = blobSize / MaxPacketSize
	r.allocateBlobBuffer(blobSize)
	r.blobOffset = 0
	r.packetOffset = 0
	r.packetIndex = 0
	return true
}

// allocateBlobBuffer reuses the existing blobBuffer when it already has
// enough capacity, zeroing it first; otherwise it allocates a new one.
func (r *Reassembler) allocateBlobBuffer(size uint32) {
	if uint32(cap(r.blobBuffer)) >= size {
		r.blobBuffer = r.blobBuffer[:size]
		for i := range r.blobBuffer {
			r.blobBuffer[i] = 0
		}
		return
	}
	r.blobBuffer = make([]byte, size)
}

// stagePacket copies as much of data as needed to complete the current
// transport packet, commits the packet into blobBuffer when it is
// complete, and fires the completion callback when that packet was the
// blob's last one. It returns the number of bytes consumed from data.
func (r *Reassembler) stagePacket(data []byte) int {
	isFirstPacket := r.packetIndex == 0 && r.packetOffset == 0 &&
		r.blobSize > MaxPacketSize-HeaderSize
	// The last packet carries whatever blob bytes are still missing, once
	// they fit in one packet.
	isLastPacket := !isFirstPacket && r.blobSize-r.blobOffset <= MaxPacketSize

	var packetSize, bytesToFinish uint32
	switch {
	case isFirstPacket:
		if r.keepHeader {
			packetSize = MaxPacketSize
		} else {
			packetSize = MaxPacketSize - HeaderSize
		}
		bytesToFinish = packetSize
	case isLastPacket:
		packetSize = r.blobSize - r.blobOffset
		bytesToFinish = packetSize - r.packetOffset
	default:
		packetSize = MaxPacketSize
		bytesToFinish = MaxPacketSize - r.packetOffset
	}

	bytesToCopy := uint32(len(data))
	if bytesToCopy > bytesToFinish {
		bytesToCopy = bytesToFinish
	}
	if r.packetOffset+bytesToCopy > MaxPacketSize {
		bytesToCopy = MaxPacketSize - r.packetOffset
	}
	if bytesToCopy > 0 {
		copy(r.packetBuffer[r.packetOffset:], data[:bytesToCopy])
		r.packetOffset += bytesToCopy
	}

	packetReceived := uint32(len(data)) >= bytesToFinish
	if packetReceived {
		commitSize := packetSize
		if r.blobOffset+commitSize > r.blobSize {
			commitSize = r.blobSize - r.blobOffset
		}
		copy(r.blobBuffer[r.blobOffset:], r.packetBuffer[:commitSize])
		r.blobOffset += commitSize
		r.packetOffset = 0
		r.packetIndex++

		if isLastPacket {
			r.completeBlob()
		}
	}

	return int(bytesToCopy)
}

// completeBlob returns to idle and then fires onComplete for the
// just-finished blob (suppressing zero-length deliveries, matching the
// wrapping façade's contract even when a Reassembler is used directly).
func (r *Reassembler) completeBlob() {
	blob, id := r.blobBuffer[:r.blobSize], r.id
	r.clearBlobState()
	if r.onComplete != nil && len(blob) > 0 {
		r.onComplete(id, blob, len(blob))
	}
}

// quiesce marks the Reassembler as refusing further input until Reset,
// discards any partial blob, and reports err via onError if configured.
func (r *Reassembler) quiesce(err error) {
	r.quiesced = true
	r.blobBuffer = nil
	if r.onError != nil {
		r.onError(r.id, err)
	}
}

// clearBlobState resets all per-blob bookkeeping but leaves id,
// keepHeader, maxBlobSize, the callbacks, and packetBuffer's backing array
// untouched.
func (r *Reassembler) clearBlobState() {
	r.blobBuffer = nil
	r.blobSize = 0
	r.blobOffset = 0
	r.packetOffset = 0
	r.packetIndex = 0
	r.totalPackets = 0
	r.headerOffset = 0
}
