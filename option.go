package blobframe

import "time"

// ReassemblerOption configures a Reassembler at construction time.
type ReassemblerOption func(*Reassembler)

// WithMaxBlobSize caps the blob size a Reassembler will allocate for. A
// parsed header advertising a larger blob quiesces the Reassembler instead
// of allocating. A cap of 0 (the default) means unbounded.
func WithMaxBlobSize(max uint32) ReassemblerOption {
	return func(r *Reassembler) {
		r.maxBlobSize = max
	}
}

// WithOnError sets the callback invoked when a Reassembler quiesces due to
// a malformed or oversize stream.
func WithOnError(fn ErrorFunc) ReassemblerOption {
	return func(r *Reassembler) {
		r.onError = fn
	}
}

// ErrorAction defines the action a Conn takes when an error occurs on its
// read or write loop.
type ErrorAction int

const (
	// Disconnect closes the connection when an error occurs.
	Disconnect ErrorAction = iota
	// Continue suppresses the error and keeps the connection open.
	Continue
)

// connOptions holds the configuration for a Conn.
type connOptions struct {
	logger      Logger
	onBlob      func(id uint32, blob []byte) error
	onError     func(error) ErrorAction
	keepHeader  bool
	bufferSize  int
	maxBlobSize uint32
	idleTimeout time.Duration
}

// ConnOption configures a Conn.
type ConnOption func(*connOptions)

// BufferSizeOption sets the size of the outgoing blob queue.
func BufferSizeOption(size int) ConnOption {
	return func(o *connOptions) {
		o.bufferSize = size
	}
}

// IdleTimeoutOption sets the read/write deadline baseline; Conn doubles it
// for the actual deadline, matching the teacher's heartbeat convention.
func IdleTimeoutOption(d time.Duration) ConnOption {
	return func(o *connOptions) {
		o.idleTimeout = d
	}
}

// MaxBlobSizeOption caps the size of blobs the Conn's Reassembler will
// accept; see WithMaxBlobSize.
func MaxBlobSizeOption(max uint32) ConnOption {
	return func(o *connOptions) {
		o.maxBlobSize = max
	}
}

// KeepHeaderOption controls whether the Conn's Reassembler retains the
// 4-byte length prefix on delivered blobs.
func KeepHeaderOption(keep bool) ConnOption {
	return func(o *connOptions) {
		o.keepHeader = keep
	}
}

// OnBlobOption sets the handler invoked for each blob the Conn's
// Reassembler completes. It is required.
func OnBlobOption(cb func(id uint32, blob []byte) error) ConnOption {
	return func(o *connOptions) {
		o.onBlob = cb
	}
}

// OnErrorOption sets the callback invoked on read/write/reassembly
// errors. Return Disconnect to close the connection, or Continue to
// suppress the error and keep going.
func OnErrorOption(cb func(error) ErrorAction) ConnOption {
	return func(o *connOptions) {
		o.onError = cb
	}
}

// LoggerOption sets the Conn's logger. If not set, the default slog
// logger is used.
func LoggerOption(logger Logger) ConnOption {
	return func(o *connOptions) {
		o.logger = logger
	}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server.
func ServerLoggerOption(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// ServerShutdownTimeoutOption sets how long Serve waits after the context
// is canceled before it stops accepting and returns (the listener stays
// open until Close), giving in-flight connections a
// chance to finish. Default is 0 (immediate shutdown). Call Close to
// bypass the remaining timeout.
func ServerShutdownTimeoutOption(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.shutdownTimeout = timeout
	}
}
