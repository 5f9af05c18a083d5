package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/Zereker/blobframe"
)

// handler echoes every blob it receives back to the same connection.
type handler struct {
	connID int64

	sync.RWMutex
	conns map[int64]*blobframe.Conn
}

func newHandler() *handler {
	return &handler{conns: make(map[int64]*blobframe.Conn)}
}

func (h *handler) Handle(rawConn *net.TCPConn) {
	connID := atomic.AddInt64(&h.connID, 1)

	errorOption := blobframe.OnErrorOption(func(err error) blobframe.ErrorAction {
		slog.Error("connection error", "connID", connID, "error", err)
		return blobframe.Disconnect
	})

	// Echo: hand the blob straight back to the sender.
	onBlobOption := blobframe.OnBlobOption(func(id uint32, blob []byte) error {
		conn := h.getConn(connID)
		if conn == nil {
			return nil
		}
		return conn.SendBlob(blob)
	})

	conn, err := blobframe.NewConn(rawConn, errorOption, onBlobOption)
	if err != nil {
		slog.Error("conn setup error", "error", err)
		_ = rawConn.Close()
		return
	}

	h.addConn(connID, conn)

	if err := conn.Run(context.Background()); err != nil {
		slog.Debug("connection ended", "connID", connID, "error", err)
	}
	h.deleteConn(connID)
}

func (h *handler) addConn(connID int64, conn *blobframe.Conn) {
	h.Lock()
	defer h.Unlock()

	slog.Info("new connection", "connID", connID, "addr", conn.Addr())
	h.conns[connID] = conn
}

func (h *handler) deleteConn(connID int64) {
	h.Lock()
	defer h.Unlock()

	delete(h.conns, connID)
}

func (h *handler) getConn(connID int64) *blobframe.Conn {
	h.RLock()
	defer h.RUnlock()

	return h.conns[connID]
}

func main() {
	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:12345")
	if err != nil {
		panic(err)
	}

	server, err := blobframe.New(addr)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutting down server...")
		cancel()
	}()

	slog.Info("server start", "addr", addr.String())
	if err := server.Serve(ctx, newHandler()); err != nil {
		slog.Error("server error", "error", err)
	}
}
