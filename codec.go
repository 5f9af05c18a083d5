package blobframe

// Codec is a thin façade owning exactly one Reassembler. It exposes the
// identify/reset/feed operations applications call directly, and is the
// seam where the zero-length-delivery suppression contract is guaranteed
// even if a caller supplies a CompletionFunc that does not check size
// itself.
type Codec struct {
	reassembler *Reassembler
	keepHeader  bool
}

// NewCodec creates a Codec wrapping a new Reassembler configured with
// keepHeader and opts.
func NewCodec(onComplete CompletionFunc, keepHeader bool, opts ...ReassemblerOption) *Codec {
	return &Codec{
		reassembler: NewReassembler(suppressEmpty(onComplete), keepHeader, opts...),
		keepHeader:  keepHeader,
	}
}

// suppressEmpty wraps fn so that zero-size deliveries never reach it, per
// spec: "the wrapping façade suppresses empty deliveries."
func suppressEmpty(fn CompletionFunc) CompletionFunc {
	if fn == nil {
		return nil
	}
	return func(id uint32, blob []byte, size int) {
		if size == 0 {
			return
		}
		fn(id, blob, size)
	}
}

// SetID sets the correlation id surfaced to the completion callback.
func (c *Codec) SetID(id uint32) {
	c.reassembler.SetID(id)
}

// Reset discards any in-progress blob and returns the Codec to idle.
func (c *Codec) Reset() {
	c.reassembler.Reset()
}

// Feed ingests data. The error return exists for the façade's Go-idiomatic
// boundary; it is always nil today, since malformed/oversize conditions
// surface through the ErrorFunc configured via ReassemblerOption rather
// than through Feed itself, matching the no-errors-out-of-feed policy.
func (c *Codec) Feed(data []byte) error {
	c.reassembler.Feed(data)
	return nil
}

// Clone returns a deep copy of the Codec, including any in-progress blob
// and packet buffers. The clone shares no memory with the original.
func (c *Codec) Clone() *Codec {
	cloned := *c.reassembler
	cloned.blobBuffer = append([]byte(nil), c.reassembler.blobBuffer...)
	return &Codec{
		reassembler: &cloned,
		keepHeader:  c.keepHeader,
	}
}
