package blobframe

import (
	"bytes"
	"testing"
)

func TestCodec_FeedDeliversBlob(t *testing.T) {
	var got []byte
	c := NewCodec(func(id uint32, blob []byte, size int) {
		got = append([]byte(nil), blob[:size]...)
	}, false)

	if err := c.Feed(frameBytes([]byte("payload"))); err != nil {
		t.Fatalf("Feed returned error: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("got = %q, want %q", got, "payload")
	}
}

func TestCodec_SuppressesEmptyDeliveries(t *testing.T) {
	called := false
	c := NewCodec(func(id uint32, blob []byte, size int) {
		called = true
	}, false)

	if err := c.Feed(frameBytes(nil)); err != nil {
		t.Fatalf("Feed returned error: %v", err)
	}
	if called {
		t.Error("onComplete should not be called for a zero-length blob")
	}
}

func TestCodec_SetID(t *testing.T) {
	var gotID uint32
	c := NewCodec(func(id uint32, blob []byte, size int) {
		gotID = id
	}, false)
	c.SetID(99)

	if err := c.Feed(frameBytes([]byte("x"))); err != nil {
		t.Fatalf("Feed returned error: %v", err)
	}
	if gotID != 99 {
		t.Errorf("id = %d, want 99", gotID)
	}
}

func TestCodec_Reset(t *testing.T) {
	c := NewCodec(func(id uint32, blob []byte, size int) {
		t.Fatal("onComplete should not fire for a partial blob after Reset")
	}, false)

	framed := frameBytes([]byte("this won't complete"))
	_ = c.Feed(framed[:len(framed)-1])

	c.Reset()

	// Feeding the same trailing byte now starts a fresh header parse
	// instead of completing the abandoned blob.
	_ = c.Feed(framed[len(framed)-1:])
}

func TestCodec_Clone_IsIndependent(t *testing.T) {
	var originalGot, cloneGot []byte
	c := NewCodec(func(id uint32, blob []byte, size int) {
		originalGot = append([]byte(nil), blob[:size]...)
	}, false)

	framed := frameBytes([]byte("split across clone"))
	_ = c.Feed(framed[:5])

	clone := c.Clone()
	clone.reassembler.onComplete = func(id uint32, blob []byte, size int) {
		cloneGot = append([]byte(nil), blob[:size]...)
	}

	_ = c.Feed(framed[5:])
	if string(originalGot) != "split across clone" {
		t.Fatalf("original got = %q, want %q", originalGot, "split across clone")
	}

	// The clone started from the same partial state, so feeding it the
	// same remainder independently completes its own copy.
	_ = clone.Feed(framed[5:])
	if string(cloneGot) != "split across clone" {
		t.Fatalf("clone got = %q, want %q", cloneGot, "split across clone")
	}
}

func TestCodec_Clone_DoesNotShareBlobBuffer(t *testing.T) {
	c := NewCodec(nil, false)
	framed := frameBytes(bytes.Repeat([]byte{0x01}, 20))
	_ = c.Feed(framed[:10])

	clone := c.Clone()

	// Mutating the clone's in-progress buffer must not affect the
	// original's.
	for i := range clone.reassembler.blobBuffer {
		clone.reassembler.blobBuffer[i] = 0xFF
	}

	for _, b := range c.reassembler.blobBuffer {
		if b == 0xFF {
			t.Fatal("Clone shared backing array with the original Codec")
		}
	}
}
