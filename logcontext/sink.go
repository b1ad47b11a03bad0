package logcontext

// Sink receives messages logged on every channel it has been attached to.
//
// Log is called synchronously on the logging goroutine for each message;
// implementations that need to do anything slow (write to disk, push to a
// network socket) must buffer or offload internally — Channel.Log calls
// sinks one at a time, in attachment order, and waits for each Log call to
// return before calling the next one.
//
// A Sink that returns an error from Log is not detached automatically; the
// error is only used for logging the failure. This matches the behavior of
// the reference SDK, where a sink failing on one message must still receive
// the next one.
type Sink interface {
	Log(channel *Channel, data []byte, metadata Metadata) error
}

// ChannelObserver is an optional interface a Sink may implement to learn
// about channels as they're attached to or detached from it. AddChannel is
// called when the sink is newly associated with a channel (either because
// the channel was just created, or because the sink was just added to a
// Context that already had the channel registered). RemoveChannel is called
// when that association ends.
type ChannelObserver interface {
	AddChannel(channel *Channel)
	RemoveChannel(channel *Channel)
}
