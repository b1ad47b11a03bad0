package logcontext

import "sync"

// Context is a registry tying together a set of channels and a set of
// sinks: every sink added to a Context is attached to every channel
// registered with it, and every channel subsequently registered picks up
// every sink already present.
//
// The zero value is not usable; construct one with NewContext. Most
// programs only need the process-wide singleton returned by Global.
type Context struct {
	mu       sync.RWMutex
	channels map[string]*Channel // by topic
	byID     map[uint64]*Channel

	sinks *sinkSet
}

// NewContext returns a fresh, empty Context.
func NewContext() *Context {
	return &Context{
		channels: make(map[string]*Channel),
		byID:     make(map[uint64]*Channel),
		sinks:    newSinkSet(),
	}
}

var (
	globalOnce sync.Once
	globalCtx  *Context
)

// Global returns the process-wide default Context, creating it on first
// use.
func Global() *Context {
	globalOnce.Do(func() {
		globalCtx = NewContext()
	})
	return globalCtx
}

// NewChannel creates a channel and registers it with the context in one
// step, returning ErrDuplicateTopic if a channel for that topic is already
// registered.
func (c *Context) NewChannel(topic, messageEncoding string, schema *Schema, metadata map[string]string) (*Channel, error) {
	ch := NewChannel(topic, messageEncoding, schema, metadata)
	if err := c.AddChannel(ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// AddChannel registers an existing channel with the context, attaching
// every currently-registered sink to it.
func (c *Context) AddChannel(ch *Channel) error {
	c.mu.Lock()
	if _, exists := c.channels[ch.topic]; exists {
		c.mu.Unlock()
		return ErrDuplicateTopic
	}
	c.channels[ch.topic] = ch
	c.byID[ch.id] = ch
	c.mu.Unlock()

	c.sinks.forEach(func(sink Sink) {
		if ch.sinks.add(sink) {
			if observer, ok := sink.(ChannelObserver); ok {
				observer.AddChannel(ch)
			}
		}
	})
	return nil
}

// RemoveChannelForTopic detaches and forgets the channel registered under
// topic, if any, returning whether one was found.
func (c *Context) RemoveChannelForTopic(topic string) bool {
	c.mu.Lock()
	ch, exists := c.channels[topic]
	if exists {
		delete(c.channels, topic)
		delete(c.byID, ch.id)
	}
	c.mu.Unlock()
	if !exists {
		return false
	}

	c.sinks.forEach(func(sink Sink) {
		if ch.sinks.remove(sink) {
			if observer, ok := sink.(ChannelObserver); ok {
				observer.RemoveChannel(ch)
			}
		}
	})
	return true
}

// GetChannelByTopic returns the channel registered under topic, if any.
func (c *Context) GetChannelByTopic(topic string) (*Channel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.channels[topic]
	return ch, ok
}

// GetChannelByID returns the channel with the given id, if any is
// currently registered with this context.
func (c *Context) GetChannelByID(id uint64) (*Channel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.byID[id]
	return ch, ok
}

// Channels returns a snapshot of every channel currently registered.
func (c *Context) Channels() []*Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		out = append(out, ch)
	}
	return out
}

// AddSink attaches sink to the context, and to every channel already
// registered with it. Returns false if the sink was already attached.
func (c *Context) AddSink(sink Sink) bool {
	if !c.sinks.add(sink) {
		return false
	}
	for _, ch := range c.Channels() {
		if ch.sinks.add(sink) {
			if observer, ok := sink.(ChannelObserver); ok {
				observer.AddChannel(ch)
			}
		}
	}
	return true
}

// RemoveSink detaches sink from the context and from every channel
// currently registered with it.
//
// Known limitation (carried over from the reference SDK, unfixed): if the
// same sink was also added directly to one of this context's channels via
// a second Context, this call removes it from the channel's sink set
// regardless — the channel has no notion of which Context attached a given
// sink, only that it's attached. Fixing this would require tracking the
// owning context(s) per channel-sink pairing.
func (c *Context) RemoveSink(sink Sink) bool {
	if !c.sinks.remove(sink) {
		return false
	}
	for _, ch := range c.Channels() {
		if ch.sinks.remove(sink) {
			if observer, ok := sink.(ChannelObserver); ok {
				observer.RemoveChannel(ch)
			}
		}
	}
	return true
}

// Clear detaches every sink from every channel, forgets all channels, and
// removes all sinks from the context itself. Intended mainly for tests
// that share the global Context.
func (c *Context) Clear() {
	c.mu.Lock()
	channels := make([]*Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		channels = append(channels, ch)
	}
	c.channels = make(map[string]*Channel)
	c.byID = make(map[uint64]*Channel)
	c.mu.Unlock()

	c.sinks.forEach(func(sink Sink) {
		for _, ch := range channels {
			ch.sinks.clear()
			if observer, ok := sink.(ChannelObserver); ok {
				observer.RemoveChannel(ch)
			}
		}
	})
	c.sinks.clear()
}
