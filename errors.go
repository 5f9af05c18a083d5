package blobframe

import "github.com/pkg/errors"

// Sentinel errors surfaced by the codec and transport layers. These are
// built with github.com/pkg/errors; a Reassembler wraps them with
// errors.Wrapf before handing them to its ErrorFunc, so those errors carry
// a stack trace back to the wrap site. Conn passes read and write errors
// on unwrapped.
var (
	// ErrFrameTooLarge is returned by Framer when a blob's framed length
	// would not fit in the 4-byte header, and delivered to a
	// Reassembler's ErrorFunc when a parsed header advertises a blob
	// larger than its configured cap.
	ErrFrameTooLarge = errors.New("blobframe: frame exceeds the maximum representable or configured size")

	// ErrBlobSizeUnderflow is delivered to a Reassembler's ErrorFunc when
	// keepHeader is false and the parsed header advertises a length
	// smaller than the header itself, which would otherwise underflow
	// blobSize.
	ErrBlobSizeUnderflow = errors.New("blobframe: header advertises a size smaller than the header itself")

	// ErrInvalidOnBlob is returned by NewConn when no blob handler was
	// supplied.
	ErrInvalidOnBlob = errors.New("blobframe: invalid on-blob callback")

	// ErrConnectionClosed is returned when operating on a closed Conn.
	ErrConnectionClosed = errors.New("blobframe: connection closed")

	// ErrBufferFull is returned by Conn.SendBlob when the send queue is
	// full; the caller's blob was not queued.
	ErrBufferFull = errors.New("blobframe: send buffer full")
)
