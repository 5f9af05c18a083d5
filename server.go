package blobframe

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Handler is the interface for handling incoming TCP connections. Handle
// receives the bare accepted connection, the same as the teacher's Handler,
// so an implementation is free to build its Conn with options that close
// over per-connection state (a connection id, a per-client registry entry)
// the way example/echo.go does.
type Handler interface {
	// Handle is called for each new connection. The implementation is
	// responsible for wrapping conn in a Conn (via NewConn) and managing
	// its lifecycle, typically by calling Conn.Run.
	Handle(conn *net.TCPConn)
}

// Server listens for incoming TCP connections and dispatches each to a
// Handler.
type Server struct {
	listener        *net.TCPListener
	logger          Logger
	shutdownTimeout time.Duration

	mu          sync.Mutex
	shutdown    bool
	shutdownNow chan struct{}
}

// New creates a new blob server bound to addr.
func New(addr *net.TCPAddr, opts ...ServerOption) (*Server, error) {
	listener, err := net.ListenTCP(addr.Network(), addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		listener:    listener,
		logger:      slog.Default(),
		shutdownNow: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Serve accepts connections and dispatches them to handler. It blocks until
// ctx is canceled or an unrecoverable error occurs. If
// ServerShutdownTimeoutOption is set, Serve waits up to that duration before
// stopping, letting in-flight handlers finish; Close bypasses the remaining
// timeout.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	s.logger.Info("server started", "addr", s.listener.Addr())

	go func() {
		<-ctx.Done()

		if s.shutdownTimeout > 0 {
			s.logger.Info("graceful shutdown initiated", "timeout", s.shutdownTimeout)
			select {
			case <-time.After(s.shutdownTimeout):
			case <-s.shutdownNow:
				s.logger.Debug("shutdown timeout bypassed via Close()")
			}
		}

		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = s.listener.SetDeadline(time.Now())
	}()

	for {
		rawConn, err := s.listener.AcceptTCP()
		if err != nil {
			s.mu.Lock()
			isShutdown := s.shutdown
			s.mu.Unlock()

			if isShutdown {
				s.logger.Info("server stopped", "addr", s.listener.Addr())
				return ctx.Err()
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Error("accept error", "error", err)
			return err
		}

		s.logger.Debug("accepted connection", "remote_addr", rawConn.RemoteAddr())
		_ = rawConn.SetNoDelay(true)

		go handler.Handle(rawConn)
	}
}

// Close stops the server by closing the underlying listener. Bypasses any
// remaining shutdown timeout. Blocked Accept calls return with an error.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	select {
	case s.shutdownNow <- struct{}{}:
	default:
	}

	return s.listener.Close()
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
