package wsserver

import (
	"sync/atomic"

	"github.com/odin-telemetry/telemetry-sdk/logcontext"
	"github.com/odin-telemetry/telemetry-sdk/wsprotocol"
)

// ClientID uniquely identifies a connected client for the lifetime of a
// server process.
type ClientID uint64

var nextClientID atomic.Uint64

func init() {
	nextClientID.Store(1)
}

func newClientID() ClientID {
	return ClientID(nextClientID.Add(1) - 1)
}

// Default bounded-queue sizes, matching the reference server's backlog
// allowances for data and control-plane traffic.
const (
	DefaultDataQueueSize    = 1024
	DefaultControlQueueSize = 64

	// DefaultMaxInFlightServiceCalls bounds how many service calls a single
	// client may have outstanding at once.
	DefaultMaxInFlightServiceCalls = 32
)

// Listener receives notifications about client activity: subscriptions,
// client-published data, client-advertised channels, and the parameters and
// asset sub-protocols. Every method has a default no-op behavior; embed
// NoopListener to implement only the callbacks you need.
//
// Methods are always invoked outside any of the session's internal locks,
// so a Listener is free to call back into the Server (e.g. to look up
// channels) without risking deadlock.
type Listener interface {
	OnSubscribe(client ClientID, channelID uint64)
	OnUnsubscribe(client ClientID, channelID uint64)

	// OnMessageData is called for every MessageData frame a client sends on
	// a channel it previously advertised. The server does not log the
	// payload anywhere on its own; a Listener that wants client-published
	// data to reach the rest of the process must call channel.Log itself.
	OnMessageData(client ClientID, channel *logcontext.Channel, payload []byte)

	// OnClientAdvertise is called after the server has created or resolved
	// the backing channel for a client-advertised topic.
	OnClientAdvertise(client ClientID, clientChannelID uint32, channel *logcontext.Channel)
	OnClientUnadvertise(client ClientID, clientChannelID uint32)

	OnGetParameters(client ClientID, names []string)
	OnSetParameters(client ClientID, parameters []wsprotocol.Parameter)
	OnParametersSubscribe(client ClientID, names []string)
	OnParametersUnsubscribe(client ClientID, names []string)

	OnFetchAsset(client ClientID, uri string)
}

// NoopListener is a Listener that ignores every event.
type NoopListener struct{}

func (NoopListener) OnSubscribe(ClientID, uint64)   {}
func (NoopListener) OnUnsubscribe(ClientID, uint64) {}

func (NoopListener) OnMessageData(ClientID, *logcontext.Channel, []byte) {}

func (NoopListener) OnClientAdvertise(ClientID, uint32, *logcontext.Channel) {}
func (NoopListener) OnClientUnadvertise(ClientID, uint32)                   {}

func (NoopListener) OnGetParameters(ClientID, []string)               {}
func (NoopListener) OnSetParameters(ClientID, []wsprotocol.Parameter) {}
func (NoopListener) OnParametersSubscribe(ClientID, []string)         {}
func (NoopListener) OnParametersUnsubscribe(ClientID, []string)       {}

func (NoopListener) OnFetchAsset(ClientID, string) {}

// capabilitySet is a small helper for membership checks against the
// server's advertised capabilities.
type capabilitySet map[wsprotocol.Capability]struct{}

func newCapabilitySet(caps []wsprotocol.Capability) capabilitySet {
	s := make(capabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

func (s capabilitySet) has(c wsprotocol.Capability) bool {
	_, ok := s[c]
	return ok
}

func (s capabilitySet) slice() []wsprotocol.Capability {
	out := make([]wsprotocol.Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	return out
}
