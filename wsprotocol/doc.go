// Package wsprotocol implements the wire codec for the server's WebSocket
// fan-out sub-protocol: JSON control messages in both directions, and
// length-prefixed binary frames for message data, time broadcast, and
// service calls.
package wsprotocol
