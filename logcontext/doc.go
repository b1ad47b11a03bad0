// Package logcontext implements the in-process publish side of the
// telemetry SDK: channels, the copy-on-write sink sets attached to them,
// and the Context registry that ties a set of channels to a set of sinks.
package logcontext
