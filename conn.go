package blobframe

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Default configuration values, mirrored from the transport defaults this
// module's teacher uses for its own Conn.
const (
	defaultBufferSize  = 1
	defaultIdleTimeout = 30 * time.Second
	readChunkSize      = MaxPacketSize
)

// Conn wraps a TCP connection with a Reassembler on the read side and a
// Framer-driven send queue on the write side. Bytes arriving on the wire are
// fed straight into the Reassembler via Feed; blobs queued with SendBlob are
// split into MaxPacketSize packets by a Framer before being written out.
type Conn struct {
	rawConn *net.TCPConn
	codec   *Codec
	logger  Logger

	opts connOptions

	sendBlob chan []byte
	closed   atomic.Bool
	cancel   context.CancelFunc

	readErr atomic.Value
}

// NewConn creates a Conn around the given TCP connection. opts must include
// OnBlobOption; all other options fall back to defaults. Returns an error if
// no blob handler was supplied.
func NewConn(conn *net.TCPConn, opt ...ConnOption) (*Conn, error) {
	var opts connOptions
	for _, o := range opt {
		o(&opts)
	}

	if err := checkConnOptions(&opts); err != nil {
		return nil, err
	}

	return newConnWithOptions(conn, opts), nil
}

// checkConnOptions validates and fills in defaults for connOptions.
func checkConnOptions(opts *connOptions) error {
	if opts.onBlob == nil {
		return ErrInvalidOnBlob
	}

	if opts.bufferSize <= 0 {
		opts.bufferSize = defaultBufferSize
	}

	if opts.idleTimeout <= 0 {
		opts.idleTimeout = defaultIdleTimeout
	}

	if opts.onError == nil {
		opts.onError = func(error) ErrorAction { return Disconnect }
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	return nil
}

// newConnWithOptions wires a Conn's Codec so that each completed blob is
// handed to opts.onBlob. The Codec's correlation id is never set, so every
// blob reaches onBlob with id 0; a single Conn reassembles one blob stream.
func newConnWithOptions(c *net.TCPConn, opts connOptions) *Conn {
	cc := &Conn{
		rawConn:  c,
		logger:   opts.logger,
		opts:     opts,
		sendBlob: make(chan []byte, opts.bufferSize),
	}

	cc.codec = NewCodec(
		func(id uint32, blob []byte, size int) {
			if err := opts.onBlob(id, blob[:size]); err != nil {
				cc.readErr.Store(errWrapper{err})
			}
		},
		opts.keepHeader,
		WithMaxBlobSize(opts.maxBlobSize),
		WithOnError(func(id uint32, err error) {
			cc.readErr.Store(errWrapper{err})
		}),
	)

	return cc
}

// errWrapper lets an arbitrary error be stored in an atomic.Value, which
// requires a concrete, consistent type across Store calls.
type errWrapper struct{ err error }

// Run starts the connection's read and write loops and blocks until either
// returns, propagating the first error through an errgroup the way the
// teacher's Conn.Run does.
func (c *Conn) Run(ctx context.Context) error {
	c.logger.Info("connection established", "addr", c.Addr())
	c.logger.Debug("connection options", "addr", c.Addr(),
		"buffer_size", c.opts.bufferSize,
		"idle_timeout", c.opts.idleTimeout,
		"keep_header", c.opts.keepHeader)

	ctx, c.cancel = context.WithCancel(ctx)
	group, child := errgroup.WithContext(ctx)

	group.Go(func() error {
		return c.readLoop(child)
	})

	group.Go(func() error {
		return c.writeLoop(child)
	})

	err := group.Wait()
	c.closeConn()

	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Info("connection closed with error", "addr", c.Addr(), "error", err)
	} else {
		c.logger.Info("connection closed", "addr", c.Addr())
	}

	return err
}

// Close gracefully closes the connection. Safe to call multiple times.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	return c.rawConn.Close()
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// SendBlob queues blob for framing and transmission without blocking.
//
// Returns:
//   - nil: blob was successfully queued (not yet sent)
//   - ErrBufferFull: send buffer is full, blob was NOT queued
//   - ErrConnectionClosed: connection is closed
func (c *Conn) SendBlob(blob []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	select {
	case c.sendBlob <- blob:
		return nil
	default:
		return ErrBufferFull
	}
}

// SendBlobBlocking queues blob, blocking until it is accepted or ctx is
// canceled.
func (c *Conn) SendBlobBlocking(ctx context.Context, blob []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	select {
	case c.sendBlob <- blob:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Addr returns the remote address of the connection.
func (c *Conn) Addr() net.Addr {
	return c.rawConn.RemoteAddr()
}

// readLoop reads raw bytes off the wire in MaxPacketSize-sized chunks and
// feeds them straight to the Codec; Feed is the decoder's only entry point,
// so there is no message-at-a-time decode step to call here.
func (c *Conn) readLoop(ctx context.Context) error {
	// Closing the connection once ctx is done unblocks a pending Read, so
	// canceling Run's context ends the loop without waiting for the read
	// deadline.
	go func() {
		<-ctx.Done()
		_ = c.rawConn.Close()
	}()

	buf := make([]byte, readChunkSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			_ = c.rawConn.SetReadDeadline(time.Now().Add(c.opts.idleTimeout * 2))

			n, err := c.rawConn.Read(buf)
			if n > 0 {
				_ = c.codec.Feed(buf[:n])
				if stored, ok := c.readErr.Swap(errWrapper{}).(errWrapper); ok && stored.err != nil {
					c.logger.Debug("blob error", "addr", c.Addr(), "error", stored.err)
					if c.opts.onError(stored.err) == Disconnect {
						return stored.err
					}
				}
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Debug("read error", "addr", c.Addr(), "error", err)
				if c.opts.onError(err) == Disconnect {
					return err
				}
			}
		}
	}
}

// writeLoop drains sendBlob, framing and writing each queued blob in turn.
func (c *Conn) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case blob := <-c.sendBlob:
			if err := c.writeBlob(blob); err != nil {
				return err
			}
		}
	}
}

// writeBlob frames blob and writes its packets to the connection in order.
func (c *Conn) writeBlob(blob []byte) error {
	framer, err := NewFramer(blob)
	if err != nil {
		c.logger.Debug("frame error", "addr", c.Addr(), "error", err)
		if c.opts.onError(err) == Disconnect {
			return err
		}
		return nil
	}

	for packet, ok := framer.Next(); ok; packet, ok = framer.Next() {
		if err := c.write(packet); err != nil {
			return err
		}
	}
	return nil
}

// write sends one packet with a deadline, consulting onError on failure.
func (c *Conn) write(data []byte) error {
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(c.opts.idleTimeout * 2))

	_, err := c.rawConn.Write(data)
	if err != nil {
		c.logger.Debug("write error", "addr", c.Addr(), "error", err)
		if c.opts.onError(err) == Disconnect {
			return err
		}
	}

	return nil
}

// closeConn marks the connection as closed and closes the underlying TCP
// connection.
func (c *Conn) closeConn() {
	c.closed.Store(true)
	_ = c.rawConn.Close()
}
