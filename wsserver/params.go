package wsserver

import (
	"sync"

	"github.com/odin-telemetry/telemetry-sdk/wsprotocol"
)

// paramStore is a minimal in-memory parameter store backing the
// getParameters/setParameters/subscribeParameterUpdates sub-protocol. The
// reference SDK's Rust/Python implementations leave parameter storage to
// the embedding application; this server supplements that with a process-
// local store so the capability is usable out of the box.
type paramStore struct {
	mu          sync.RWMutex
	values      map[string]wsprotocol.Parameter
	subscribers map[ClientID]*clientSession
}

func newParamStore() *paramStore {
	return &paramStore{
		values:      make(map[string]wsprotocol.Parameter),
		subscribers: make(map[ClientID]*clientSession),
	}
}

func (p *paramStore) get(names []string) []wsprotocol.Parameter {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(names) == 0 {
		out := make([]wsprotocol.Parameter, 0, len(p.values))
		for _, v := range p.values {
			out = append(out, v)
		}
		return out
	}
	out := make([]wsprotocol.Parameter, 0, len(names))
	for _, name := range names {
		if v, ok := p.values[name]; ok {
			out = append(out, v)
		}
	}
	return out
}

// set stores parameters and returns the values that were stored, for the
// caller to pass to notifySubscribers.
func (p *paramStore) set(params []wsprotocol.Parameter) []wsprotocol.Parameter {
	p.mu.Lock()
	for _, param := range params {
		p.values[param.Name] = param
	}
	p.mu.Unlock()
	return params
}

func (p *paramStore) subscribe(cs *clientSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers[cs.id] = cs
}

func (p *paramStore) unsubscribe(cs *clientSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subscribers, cs.id)
}

func (p *paramStore) notifySubscribers(changed []wsprotocol.Parameter) {
	p.mu.RLock()
	subs := make([]*clientSession, 0, len(p.subscribers))
	for _, cs := range p.subscribers {
		subs = append(subs, cs)
	}
	p.mu.RUnlock()

	msg, err := wsprotocol.EncodeParameterValues(changed, "")
	if err != nil {
		return
	}
	for _, cs := range subs {
		cs.sendControl(msg)
	}
}

func (cs *clientSession) handleGetParameters(msg *wsprotocol.GetParametersMessage) {
	if msg == nil || !cs.server.caps.has(wsprotocol.CapabilityParameters) {
		return
	}
	cs.server.cfg.Listener.OnGetParameters(cs.id, msg.ParameterNames)

	values := cs.server.params.get(msg.ParameterNames)
	id := ""
	if msg.ID != nil {
		id = *msg.ID
	}
	out, err := wsprotocol.EncodeParameterValues(values, id)
	if err != nil {
		return
	}
	cs.sendControl(out)
}

func (cs *clientSession) handleSetParameters(msg *wsprotocol.SetParametersMessage) {
	if msg == nil || !cs.server.caps.has(wsprotocol.CapabilityParameters) {
		return
	}
	cs.server.cfg.Listener.OnSetParameters(cs.id, msg.Parameters)

	changed := cs.server.params.set(msg.Parameters)
	cs.server.params.notifySubscribers(changed)

	if msg.ID != nil {
		id := *msg.ID
		ack, err := wsprotocol.EncodeParameterValues(changed, id)
		if err == nil {
			cs.sendControl(ack)
		}
	}
}

func (cs *clientSession) handleSubscribeParameterUpdates(msg *wsprotocol.ParameterNamesMessage) {
	if msg == nil || !cs.server.caps.has(wsprotocol.CapabilityParametersSubscribe) {
		return
	}
	cs.server.params.subscribe(cs)
	cs.server.cfg.Listener.OnParametersSubscribe(cs.id, msg.ParameterNames)
}

func (cs *clientSession) handleUnsubscribeParameterUpdates(msg *wsprotocol.ParameterNamesMessage) {
	if msg == nil || !cs.server.caps.has(wsprotocol.CapabilityParametersSubscribe) {
		return
	}
	cs.server.params.unsubscribe(cs)
	cs.server.cfg.Listener.OnParametersUnsubscribe(cs.id, msg.ParameterNames)
}
