package logcontext

import "errors"

// Sentinel errors returned by Context, Channel and Sink implementations.
//
// These mirror the FoxgloveError taxonomy of the original SDK: callers can
// compare against these with errors.Is rather than parsing message strings.
var (
	// ErrDuplicateTopic is returned by Context.AddChannel when a channel for
	// the same topic is already registered in that context.
	ErrDuplicateTopic = errors.New("logcontext: channel already registered for topic")

	// ErrSinkClosed is returned when logging to a sink after it has been
	// closed.
	ErrSinkClosed = errors.New("logcontext: sink is closed")

	// ErrPathExists is returned by sinks that create a new file exclusively,
	// when the destination path already exists.
	ErrPathExists = errors.New("logcontext: destination path already exists")
)
