package logcontext

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// nextChannelID is a process-wide counter; every Channel gets a unique,
// never-reused id regardless of which Context (if any) it's registered
// with.
var nextChannelID atomic.Uint64

func init() {
	nextChannelID.Store(1)
}

// Channel is a named, typed stream that messages are logged on. A Channel
// can exist without ever being attached to a Context — in that case Log is
// a cheap no-op, since there are no sinks to dispatch to.
type Channel struct {
	id              uint64
	topic           string
	messageEncoding string
	schema          *Schema
	metadata        map[string]string

	sequence atomic.Uint32
	sinks    *sinkSet

	closeOnce sync.Once
}

// NewChannel constructs a standalone channel. It is not registered with any
// Context; call Context.AddChannel to make it receive a context's sinks.
func NewChannel(topic, messageEncoding string, schema *Schema, metadata map[string]string) *Channel {
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	c := &Channel{
		id:              nextChannelID.Add(1) - 1,
		topic:           topic,
		messageEncoding: messageEncoding,
		schema:          schema,
		metadata:        md,
		sinks:           newSinkSet(),
	}
	c.sequence.Store(1)
	return c
}

func (c *Channel) ID() uint64              { return c.id }
func (c *Channel) Topic() string           { return c.topic }
func (c *Channel) MessageEncoding() string { return c.messageEncoding }
func (c *Channel) Schema() *Schema         { return c.schema }

// MetadataMap returns a copy of the channel's key/value metadata.
func (c *Channel) MetadataMap() map[string]string {
	md := make(map[string]string, len(c.metadata))
	for k, v := range c.metadata {
		md[k] = v
	}
	return md
}

// SortedMetadata returns the channel's metadata as key-sorted pairs, useful
// for any caller that needs deterministic ordering (e.g. a sink writing a
// stable on-disk representation).
func (c *Channel) SortedMetadata() []struct{ Key, Value string } {
	keys := make([]string, 0, len(c.metadata))
	for k := range c.metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]struct{ Key, Value string }, len(keys))
	for i, k := range keys {
		out[i] = struct{ Key, Value string }{k, c.metadata[k]}
	}
	return out
}

// nextSequence returns the next sequence number for this channel, starting
// at 1 and incrementing on every call.
func (c *Channel) nextSequence() uint32 {
	return c.sequence.Add(1) - 1
}

// Log dispatches data to every sink currently attached to the channel,
// filling in sequence/log-time/publish-time for any field opts doesn't
// specify. If the channel has no sinks attached, Log returns immediately
// without doing any work.
func (c *Channel) Log(data []byte, opts PartialMetadata) {
	if c.sinks.isEmpty() {
		return
	}
	metadata := opts.resolve(c.nextSequence)
	c.sinks.forEach(func(sink Sink) {
		if err := sink.Log(c, data, metadata); err != nil {
			log.Warn().
				Err(err).
				Str("topic", c.topic).
				Uint64("channel_id", c.id).
				Msg("sink failed to log message")
		}
	})
}

// Close detaches the channel from every sink it's currently attached to.
// It's safe to call more than once; only the first call has any effect.
//
// Ownership model: the component that created the channel (directly, or
// via Context.NewChannel) is responsible for calling Close exactly once
// when it's done publishing. Anything else holding a *Channel — a sink
// iterating its channel list, a subscriber reading ChannelView — is an
// observer and must not call Close.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		c.sinks.forEach(func(sink Sink) {
			if observer, ok := sink.(ChannelObserver); ok {
				observer.RemoveChannel(c)
			}
		})
		c.sinks.clear()
	})
}
