package logcontext

import (
	"bytes"
	"sync"
)

// stackBufferSize is the capacity a pooled encode buffer starts life with.
// Messages that encode larger than this still work; the buffer just grows
// onto the heap like any other bytes.Buffer. A buffer whose capacity has
// grown past four times this size is discarded rather than returned to the
// pool (see putEncodeBuffer below) so the pool doesn't accumulate oversized
// buffers.
const stackBufferSize = 128 * 1024

var encodeBufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 0, stackBufferSize)
		return bytes.NewBuffer(buf)
	},
}

func getEncodeBuffer() *bytes.Buffer {
	buf := encodeBufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putEncodeBuffer(buf *bytes.Buffer) {
	if buf.Cap() > stackBufferSize*4 {
		// Don't let one oversized message permanently bloat the pool.
		return
	}
	encodeBufferPool.Put(buf)
}

// Encodable is implemented by message types that know how to serialize
// themselves for a TypedChannel.
type Encodable interface {
	// Encode writes the wire representation of the message to buf.
	Encode(buf *bytes.Buffer) error
}

// TypedChannel wraps a Channel with a compile-time message type, so
// producers can't accidentally log a value the channel's schema doesn't
// describe.
type TypedChannel[T Encodable] struct {
	channel *Channel
}

// NewTypedChannel constructs a channel for T and registers it with ctx.
// If ctx is nil, the channel is created standalone (see NewChannel).
func NewTypedChannel[T Encodable](ctx *Context, topic, messageEncoding string, schema *Schema, metadata map[string]string) (*TypedChannel[T], error) {
	if ctx == nil {
		return &TypedChannel[T]{channel: NewChannel(topic, messageEncoding, schema, metadata)}, nil
	}
	ch, err := ctx.NewChannel(topic, messageEncoding, schema, metadata)
	if err != nil {
		return nil, err
	}
	return &TypedChannel[T]{channel: ch}, nil
}

// Channel exposes the underlying untyped Channel, e.g. for Close.
func (t *TypedChannel[T]) Channel() *Channel { return t.channel }

// Log encodes msg and publishes it to every sink attached to the channel.
// Encoding is skipped entirely when there are no sinks attached, matching
// Channel.Log's fast path.
func (t *TypedChannel[T]) Log(msg T) error {
	return t.LogWithMeta(msg, PartialMetadata{})
}

// LogWithMeta is Log with explicit metadata overrides.
func (t *TypedChannel[T]) LogWithMeta(msg T, opts PartialMetadata) error {
	if t.channel.sinks.isEmpty() {
		return nil
	}
	buf := getEncodeBuffer()
	defer putEncodeBuffer(buf)

	if err := msg.Encode(buf); err != nil {
		return err
	}
	t.channel.Log(buf.Bytes(), opts)
	return nil
}

// Close detaches the channel from its sinks. See Channel.Close for the
// ownership contract.
func (t *TypedChannel[T]) Close() {
	t.channel.Close()
}
