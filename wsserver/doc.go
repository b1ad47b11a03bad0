// Package wsserver implements a foxglove.sdk.v1 WebSocket server: it
// attaches to a logcontext.Context as a sink, advertises published channels
// and hosted services to connected clients, and fans out logged messages to
// whichever clients have subscribed to them.
package wsserver
