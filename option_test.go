package blobframe

import (
	"errors"
	"testing"
	"time"
)

func TestWithMaxBlobSize(t *testing.T) {
	opt := WithMaxBlobSize(1024)

	var r Reassembler
	opt(&r)

	if r.maxBlobSize != 1024 {
		t.Errorf("maxBlobSize = %d, want 1024", r.maxBlobSize)
	}
}

func TestWithOnError(t *testing.T) {
	called := false
	opt := WithOnError(func(id uint32, err error) {
		called = true
	})

	var r Reassembler
	opt(&r)

	if r.onError == nil {
		t.Fatal("onError is nil")
	}
	r.onError(0, errors.New("test"))
	if !called {
		t.Error("onError callback not called")
	}
}

func TestErrorAction(t *testing.T) {
	if Disconnect != 0 {
		t.Errorf("Disconnect = %d, want 0", Disconnect)
	}
	if Continue != 1 {
		t.Errorf("Continue = %d, want 1", Continue)
	}
}

func TestBufferSizeOption(t *testing.T) {
	opt := BufferSizeOption(100)

	var o connOptions
	opt(&o)

	if o.bufferSize != 100 {
		t.Errorf("bufferSize = %d, want 100", o.bufferSize)
	}
}

func TestIdleTimeoutOption(t *testing.T) {
	timeout := time.Minute * 5
	opt := IdleTimeoutOption(timeout)

	var o connOptions
	opt(&o)

	if o.idleTimeout != timeout {
		t.Errorf("idleTimeout = %v, want %v", o.idleTimeout, timeout)
	}
}

func TestMaxBlobSizeOption(t *testing.T) {
	opt := MaxBlobSizeOption(4096)

	var o connOptions
	opt(&o)

	if o.maxBlobSize != 4096 {
		t.Errorf("maxBlobSize = %d, want 4096", o.maxBlobSize)
	}
}

func TestKeepHeaderOption(t *testing.T) {
	opt := KeepHeaderOption(true)

	var o connOptions
	opt(&o)

	if !o.keepHeader {
		t.Error("keepHeader not set to true")
	}
}

func TestOnBlobOption(t *testing.T) {
	called := false
	onBlob := func(id uint32, blob []byte) error {
		called = true
		return nil
	}
	opt := OnBlobOption(onBlob)

	var o connOptions
	opt(&o)

	if o.onBlob == nil {
		t.Fatal("onBlob is nil")
	}
	o.onBlob(0, nil)
	if !called {
		t.Error("onBlob callback not called")
	}
}

func TestOnErrorOption(t *testing.T) {
	called := false
	onError := func(err error) ErrorAction {
		called = true
		return Disconnect
	}
	opt := OnErrorOption(onError)

	var o connOptions
	opt(&o)

	if o.onError == nil {
		t.Fatal("onError is nil")
	}
	o.onError(nil)
	if !called {
		t.Error("onError callback not called")
	}
}

func TestLoggerOption(t *testing.T) {
	logger := &mockLogger{}
	opt := LoggerOption(logger)

	var o connOptions
	opt(&o)

	if o.logger != logger {
		t.Error("logger not set correctly")
	}
}

func TestConnOptions_MultipleOptions(t *testing.T) {
	logger := &mockLogger{}
	onBlob := func(id uint32, blob []byte) error { return nil }
	onError := func(err error) ErrorAction { return Continue }
	idleTimeout := time.Second * 45

	var o connOptions
	opts := []ConnOption{
		OnBlobOption(onBlob),
		OnErrorOption(onError),
		IdleTimeoutOption(idleTimeout),
		BufferSizeOption(50),
		MaxBlobSizeOption(8192),
		KeepHeaderOption(true),
		LoggerOption(logger),
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.onBlob == nil {
		t.Error("onBlob not set")
	}
	if o.onError == nil {
		t.Error("onError not set")
	}
	if o.idleTimeout != idleTimeout {
		t.Errorf("idleTimeout = %v, want %v", o.idleTimeout, idleTimeout)
	}
	if o.bufferSize != 50 {
		t.Errorf("bufferSize = %d, want 50", o.bufferSize)
	}
	if o.maxBlobSize != 8192 {
		t.Errorf("maxBlobSize = %d, want 8192", o.maxBlobSize)
	}
	if !o.keepHeader {
		t.Error("keepHeader not set")
	}
	if o.logger != logger {
		t.Error("logger not set")
	}
}

func TestServerLoggerOption(t *testing.T) {
	logger := &mockLogger{}
	opt := ServerLoggerOption(logger)

	var s Server
	opt(&s)

	if s.logger != logger {
		t.Error("logger not set correctly")
	}
}

func TestServerShutdownTimeoutOption(t *testing.T) {
	timeout := time.Second * 10
	opt := ServerShutdownTimeoutOption(timeout)

	var s Server
	opt(&s)

	if s.shutdownTimeout != timeout {
		t.Errorf("shutdownTimeout = %v, want %v", s.shutdownTimeout, timeout)
	}
}
