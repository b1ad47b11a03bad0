package wsserver

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/odin-telemetry/telemetry-sdk/logcontext"
	"github.com/odin-telemetry/telemetry-sdk/wsprotocol"
	"github.com/odin-telemetry/telemetry-sdk/wsserver/service"
)

const pongWait = 60 * time.Second

// maxSendAttempts is the number of consecutive queue-full sends at which a
// client is considered too slow to keep up and disconnected.
const maxSendAttempts = 3

// clientSession owns one connected client's state: its subscriptions, any
// channels it has advertised for publishing, and the outbound queues that
// decouple message production from the client's read rate.
type clientSession struct {
	id         ClientID
	server     *Server
	conn       net.Conn
	remoteAddr string
	logger     zerolog.Logger

	connectedAt time.Time

	dataCh    chan []byte
	controlCh chan []byte

	subMu         sync.RWMutex
	subscriptions *subscriptionBimap

	advertiseMu    sync.Mutex
	clientChannels map[uint32]*logcontext.Channel // client-advertised id -> channel

	limiter *rate.Limiter

	serviceSem chan struct{}

	sendAttempts atomic.Int32

	closeOnce sync.Once
	closed    chan struct{}
}

func newClientSession(s *Server, conn net.Conn, remoteAddr string) *clientSession {
	cs := &clientSession{
		id:             newClientID(),
		server:         s,
		conn:           conn,
		remoteAddr:     remoteAddr,
		connectedAt:    time.Now(),
		dataCh:         make(chan []byte, s.cfg.DataQueueSize),
		controlCh:      make(chan []byte, s.cfg.ControlQueueSize),
		subscriptions:  newSubscriptionBimap(),
		clientChannels: make(map[uint32]*logcontext.Channel),
		serviceSem:     make(chan struct{}, s.cfg.MaxInFlightServiceCalls),
		closed:         make(chan struct{}),
	}
	cs.logger = s.logger.With().Uint64("client_id", uint64(cs.id)).Str("remote_addr", remoteAddr).Logger()
	if s.cfg.ClientRateLimit > 0 {
		cs.limiter = rate.NewLimiter(rate.Limit(s.cfg.ClientRateLimit), s.cfg.ClientRateBurst)
	}
	return cs
}

// run drives the session: it sends the initial handshake, starts the
// writer, and blocks reading client frames until the connection ends.
func (cs *clientSession) run() {
	defer cs.server.removeClient(cs)
	defer cs.server.params.unsubscribe(cs)
	defer cs.close("connection closed")

	info, err := wsprotocol.EncodeServerInfo(cs.server.sessionID, cs.server.cfg.Name, cs.server.caps.slice(), cs.server.cfg.SupportedEncodings)
	if err != nil {
		cs.logger.Error().Err(err).Msg("failed to encode serverInfo")
		return
	}
	if !cs.sendControl(info) {
		return
	}

	for _, ch := range cs.server.advertisedChannels() {
		cs.advertiseChannel(ch)
	}
	if cs.server.caps.has(wsprotocol.CapabilityServices) {
		cs.sendServiceAdvertisement()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		cs.writePump()
	}()

	cs.readPump()
	close(cs.closed)
	wg.Wait()
}

func (cs *clientSession) sendServiceAdvertisement() {
	services := cs.server.services.All()
	ads := make([]*wsprotocol.ServiceAdvertisement, 0, len(services))
	for _, svc := range services {
		schema := svc.Schema()
		var req, resp *wsprotocol.ServiceMessageSchema
		if r := schema.Request(); r != nil {
			req = &wsprotocol.ServiceMessageSchema{
				Encoding: r.Encoding, SchemaName: r.Schema.Name, SchemaEncoding: r.Schema.Encoding, Schema: r.Schema.Data,
			}
		}
		if r := schema.Response(); r != nil {
			resp = &wsprotocol.ServiceMessageSchema{
				Encoding: r.Encoding, SchemaName: r.Schema.Name, SchemaEncoding: r.Schema.Encoding, Schema: r.Schema.Data,
			}
		}
		ads = append(ads, wsprotocol.NewServiceAdvertisement(svc.ID(), svc.Name(), schema.Name, req, resp))
	}
	msg, err := wsprotocol.EncodeAdvertiseServices(ads)
	if err != nil {
		cs.logger.Error().Err(err).Msg("failed to encode advertiseServices")
		return
	}
	cs.sendControl(msg)
}

// advertiseChannel sends an advertise message for ch, unless it has no
// schema: a live server refuses to advertise schemaless channels, since a
// subscribing client would have no way to interpret the payload. File sinks
// (mcapsink) have no such restriction.
func (cs *clientSession) advertiseChannel(ch *logcontext.Channel) {
	schema := ch.Schema()
	if schema == nil {
		cs.logger.Error().Str("topic", ch.Topic()).Msg("refusing to advertise channel with no schema")
		return
	}
	msg, err := wsprotocol.EncodeAdvertise(ch.ID(), ch.Topic(), ch.MessageEncoding(), schema.Name, schema.Encoding, schema.Data)
	if err != nil {
		cs.logger.Warn().Err(err).Str("topic", ch.Topic()).Msg("failed to encode advertise")
		return
	}
	cs.sendControl(msg)
}

func (cs *clientSession) unadvertiseChannel(channelID uint64) {
	msg, err := wsprotocol.EncodeUnadvertise(channelID)
	if err != nil {
		return
	}
	cs.sendControl(msg)

	cs.subMu.Lock()
	_, hadSubscription := cs.subscriptions.removeByChannel(channelID)
	cs.subMu.Unlock()
	if hadSubscription {
		cs.server.metrics.subscriptionsActive.Dec()
	}
}

// publish delivers a logged message to this client, if it's subscribed to
// channelID. logTime is the timestamp carried in the binary MessageData
// frame, per the protocol's (subscription_id, log_time, payload) layout.
func (cs *clientSession) publish(channelID uint64, logTime uint64, payload []byte) {
	subID, ok := cs.subscriptionFor(channelID)
	if !ok {
		return
	}
	frame := wsprotocol.EncodeMessageData(subID, logTime, payload)
	cs.sendData(frame)
}

func (cs *clientSession) subscriptionFor(channelID uint64) (uint32, bool) {
	cs.subMu.RLock()
	defer cs.subMu.RUnlock()
	return cs.subscriptions.subscriptionFor(channelID)
}

// sendErrorStatus pushes an error-level status message to the client, used
// for malformed or invalid requests that don't warrant disconnecting it.
func (cs *clientSession) sendErrorStatus(message string) {
	msg, err := wsprotocol.EncodeStatus(wsprotocol.StatusLevelError, message, "")
	if err != nil {
		return
	}
	cs.sendControl(msg)
}

// sendWarningStatus pushes a warning-level status message to the client, for
// requests that are honored or ignored rather than rejected outright.
func (cs *clientSession) sendWarningStatus(message string) {
	msg, err := wsprotocol.EncodeStatus(wsprotocol.StatusLevelWarning, message, "")
	if err != nil {
		return
	}
	cs.sendControl(msg)
}

// sendData enqueues a data-plane frame (published messages), applying the
// send-lossy backpressure policy: if the queue is full, the oldest queued
// frame is dropped to make room rather than blocking the publisher. Each
// time that eviction is needed counts as one consecutive failure; three in
// a row disconnect the client as too slow to keep up. A successful send
// that didn't need to evict anything resets the counter.
func (cs *clientSession) sendData(frame []byte) {
	select {
	case cs.dataCh <- frame:
		cs.sendAttempts.Store(0)
		return
	default:
	}

	for attempt := 0; attempt < 10; attempt++ {
		select {
		case <-cs.dataCh:
		default:
		}
		select {
		case cs.dataCh <- frame:
			cs.server.metrics.droppedBroadcasts.WithLabelValues("queue_full").Inc()
			attempts := cs.sendAttempts.Add(1)
			if attempts >= maxSendAttempts {
				cs.logger.Warn().Int32("consecutive_failures", attempts).Msg("disconnecting slow client")
				cs.server.metrics.slowClientsDisconnected.Inc()
				cs.closeWithCode(ws.StatusPolicyViolation, "client too slow to process messages")
			}
			return
		default:
		}
	}
}

// sendControl enqueues a control-plane message (advertisements, status,
// service call failures). Unlike data frames, control messages are never
// dropped; if the queue is full the client is disconnected rather than
// silently desynchronized.
func (cs *clientSession) sendControl(msg []byte) bool {
	select {
	case cs.controlCh <- msg:
		return true
	case <-cs.closed:
		return false
	default:
		cs.logger.Warn().Msg("control queue full, disconnecting")
		cs.closeWithCode(ws.StatusPolicyViolation, "control queue full")
		return false
	}
}

func (cs *clientSession) writePump() {
	writer := bufio.NewWriter(cs.conn)
	ticker := time.NewTicker(cs.server.cfg.PingInterval)
	defer ticker.Stop()

	writeDeadline := cs.server.cfg.WriteTimeout
	write := func(op ws.OpCode, payload []byte) error {
		cs.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		return wsutil.WriteServerMessage(writer, op, payload)
	}

	for {
		select {
		case <-cs.closed:
			return
		case msg := <-cs.controlCh:
			if err := write(ws.OpText, msg); err != nil {
				return
			}
			if err := writer.Flush(); err != nil {
				return
			}
			cs.server.metrics.messagesSent.Inc()
			cs.server.metrics.bytesSent.Add(float64(len(msg)))
		case msg := <-cs.dataCh:
			op := ws.OpBinary
			n := len(cs.dataCh)
			if err := write(op, msg); err != nil {
				return
			}
			total := int64(len(msg))
			for i := 0; i < n; i++ {
				next := <-cs.dataCh
				if err := write(op, next); err != nil {
					return
				}
				total += int64(len(next))
			}
			if err := writer.Flush(); err != nil {
				return
			}
			cs.server.metrics.messagesSent.Add(float64(1 + n))
			cs.server.metrics.bytesSent.Add(float64(total))
			cs.server.metrics.clientBufferUsage.Observe(float64(len(cs.dataCh)) / float64(cap(cs.dataCh)))
		case <-ticker.C:
			if err := write(ws.OpPing, nil); err != nil {
				return
			}
		}
	}
}

func (cs *clientSession) readPump() {
	cs.conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		data, op, err := wsutil.ReadClientData(cs.conn)
		if err != nil {
			return
		}
		if cs.limiter != nil && !cs.limiter.Allow() {
			cs.closeWithCode(ws.StatusPolicyViolation, "rate limit exceeded")
			return
		}
		cs.conn.SetReadDeadline(time.Now().Add(pongWait))
		cs.server.metrics.messagesReceived.Inc()
		cs.server.metrics.bytesReceived.Add(float64(len(data)))

		switch op {
		case ws.OpText:
			cs.handleJSON(data)
		case ws.OpBinary:
			cs.handleBinary(data)
		case ws.OpClose:
			return
		}
	}
}

func (cs *clientSession) handleJSON(data []byte) {
	msg, err := wsprotocol.ParseClientJSON(data)
	if err != nil {
		cs.logger.Debug().Err(err).Msg("dropping malformed client message")
		cs.sendErrorStatus(fmt.Sprintf("Invalid message: %v", err))
		return
	}
	switch msg.Kind {
	case wsprotocol.OpSubscribe:
		cs.handleSubscribe(msg.Subscribe)
	case wsprotocol.OpUnsubscribe:
		cs.handleUnsubscribe(msg.Unsubscribe)
	case wsprotocol.OpAdvertise:
		cs.handleAdvertise(msg.Advertise)
	case wsprotocol.OpUnadvertise:
		cs.handleClientUnadvertise(msg.Unadvertise)
	case wsprotocol.OpGetParameters:
		cs.handleGetParameters(msg.GetParameters)
	case wsprotocol.OpSetParameters:
		cs.handleSetParameters(msg.SetParameters)
	case wsprotocol.OpSubscribeParameterUpdates:
		cs.handleSubscribeParameterUpdates(msg.SubscribeParameterUpdates)
	case wsprotocol.OpUnsubscribeParameterUpdates:
		cs.handleUnsubscribeParameterUpdates(msg.UnsubscribeParameterUpdates)
	case wsprotocol.OpSubscribeConnectionGraph, wsprotocol.OpUnsubscribeConnectionGraph:
		// Connection graph discovery is accepted but inert: the SDK has no
		// cross-process registry to report on.
	case wsprotocol.OpFetchAsset:
		cs.handleFetchAsset(msg.FetchAsset)
	}
}

func (cs *clientSession) handleSubscribe(msg *wsprotocol.SubscribeMessage) {
	if msg == nil {
		return
	}
	for _, sub := range msg.Subscriptions {
		if _, ok := cs.server.channelByID(sub.ChannelID); !ok {
			cs.sendErrorStatus(fmt.Sprintf("Unknown channel ID: %d", sub.ChannelID))
			continue
		}

		cs.subMu.Lock()
		switch {
		case cs.subscriptions.containsLeft(sub.ID):
			cs.subMu.Unlock()
			cs.sendErrorStatus(fmt.Sprintf("Subscription ID %d was already used; ignoring subscription", sub.ID))
			continue
		case cs.subscriptions.containsRight(sub.ChannelID):
			cs.subMu.Unlock()
			cs.sendWarningStatus(fmt.Sprintf("Client is already subscribed to channel %d; ignoring subscription", sub.ChannelID))
			continue
		}
		cs.subscriptions.insertNoOverwrite(sub.ID, sub.ChannelID)
		cs.subMu.Unlock()

		cs.server.metrics.subscriptionsActive.Inc()
		cs.server.cfg.Listener.OnSubscribe(cs.id, sub.ChannelID)
	}
}

func (cs *clientSession) handleUnsubscribe(msg *wsprotocol.UnsubscribeMessage) {
	if msg == nil {
		return
	}
	removed := make([]uint64, 0, len(msg.SubscriptionIDs))
	cs.subMu.Lock()
	for _, subID := range msg.SubscriptionIDs {
		if chID, ok := cs.subscriptions.removeByID(subID); ok {
			removed = append(removed, chID)
		}
	}
	cs.subMu.Unlock()

	for _, chID := range removed {
		cs.server.metrics.subscriptionsActive.Dec()
		cs.server.cfg.Listener.OnUnsubscribe(cs.id, chID)
	}
}

func (cs *clientSession) handleAdvertise(msg *wsprotocol.ClientAdvertiseMessage) {
	if msg == nil {
		return
	}
	if !cs.server.caps.has(wsprotocol.CapabilityClientPublish) {
		cs.sendErrorStatus("Server does not support clientPublish capability")
		return
	}
	for _, c := range msg.Channels {
		cs.advertiseMu.Lock()
		if _, exists := cs.clientChannels[c.ID]; exists {
			cs.advertiseMu.Unlock()
			cs.sendWarningStatus(fmt.Sprintf("Client channel %d was already advertised; ignoring", c.ID))
			continue
		}
		cs.advertiseMu.Unlock()

		schema := &logcontext.Schema{Name: c.SchemaName}
		if c.Schema != nil {
			schema.Data = []byte(*c.Schema)
		}
		if c.SchemaEncoding != nil {
			schema.Encoding = *c.SchemaEncoding
		}
		ch, err := cs.server.cfg.Context.NewChannel(c.Topic, c.Encoding, schema, nil)
		if err != nil {
			// Topic already registered server-side; reuse it for this
			// client's publishes rather than failing the advertisement.
			existing, ok := cs.server.cfg.Context.GetChannelByTopic(c.Topic)
			if !ok {
				continue
			}
			ch = existing
		}

		cs.advertiseMu.Lock()
		cs.clientChannels[c.ID] = ch
		cs.advertiseMu.Unlock()

		cs.server.cfg.Listener.OnClientAdvertise(cs.id, c.ID, ch)
	}
}

func (cs *clientSession) handleClientUnadvertise(msg *wsprotocol.ClientUnadvertiseMessage) {
	if msg == nil {
		return
	}
	cs.advertiseMu.Lock()
	removed := make([]uint32, 0, len(msg.ChannelIDs))
	for _, id := range msg.ChannelIDs {
		if _, ok := cs.clientChannels[id]; ok {
			delete(cs.clientChannels, id)
			removed = append(removed, id)
		}
	}
	cs.advertiseMu.Unlock()

	for _, id := range removed {
		cs.server.cfg.Listener.OnClientUnadvertise(cs.id, id)
	}
}

func (cs *clientSession) handleBinary(data []byte) {
	msg, err := wsprotocol.DecodeClientBinary(data)
	if err != nil || msg == nil {
		if err != nil {
			cs.logger.Debug().Err(err).Msg("dropping malformed binary frame")
			cs.sendErrorStatus(fmt.Sprintf("Invalid binary message: %v", err))
		}
		return
	}
	switch msg.Opcode {
	case wsprotocol.ClientOpcodeMessageData:
		cs.handleClientMessageData(msg.ChannelID, msg.Payload)
	case wsprotocol.ClientOpcodeServiceCallRequest:
		cs.handleServiceCallRequest(msg.ServiceID, msg.CallID, msg.Encoding, msg.Payload)
	}
}

// handleClientMessageData forwards a client-published payload to the
// Listener rather than logging it itself: the server has no way to know
// whether an arbitrary client should be allowed to inject messages into the
// process's logcontext, so that decision belongs to the embedding
// application's Listener.OnMessageData, not to the server.
func (cs *clientSession) handleClientMessageData(clientChannelID uint32, payload []byte) {
	cs.advertiseMu.Lock()
	ch, ok := cs.clientChannels[clientChannelID]
	cs.advertiseMu.Unlock()
	if !ok {
		cs.sendErrorStatus(fmt.Sprintf("Unknown channel ID: %d", clientChannelID))
		return
	}
	cs.server.cfg.Listener.OnMessageData(cs.id, ch, payload)
}

func (cs *clientSession) handleServiceCallRequest(serviceID, callID uint32, encoding string, payload []byte) {
	if !cs.server.caps.has(wsprotocol.CapabilityServices) {
		msg, _ := wsprotocol.EncodeServiceCallFailure(serviceID, callID, "server does not support services capability")
		cs.sendControl(msg)
		return
	}
	svc, ok := cs.server.services.Get(serviceID)
	if !ok {
		msg, _ := wsprotocol.EncodeServiceCallFailure(serviceID, callID, "unknown service")
		cs.sendControl(msg)
		return
	}

	select {
	case cs.serviceSem <- struct{}{}:
	default:
		msg, _ := wsprotocol.EncodeServiceCallFailure(serviceID, callID, "too many in-flight service calls")
		cs.sendControl(msg)
		return
	}
	cs.server.metrics.serviceCallsInFlight.Inc()

	release := func() {
		<-cs.serviceSem
		cs.server.metrics.serviceCallsInFlight.Dec()
	}
	responder := service.NewResponder(cs, serviceID, callID, release)
	go svc.Call(cs, callID, encoding, payload, responder)
}

// SendServiceCallResponse implements service.ClientSender.
func (cs *clientSession) SendServiceCallResponse(serviceID, callID uint32, encoding string, payload []byte) {
	cs.server.metrics.serviceCallsTotal.WithLabelValues("ok").Inc()
	cs.sendData(wsprotocol.EncodeServiceCallResponse(serviceID, callID, encoding, payload))
}

// SendServiceCallFailure implements service.ClientSender.
func (cs *clientSession) SendServiceCallFailure(serviceID, callID uint32, message string) {
	cs.server.metrics.serviceCallsTotal.WithLabelValues("error").Inc()
	msg, err := wsprotocol.EncodeServiceCallFailure(serviceID, callID, message)
	if err != nil {
		return
	}
	cs.sendControl(msg)
}

func (cs *clientSession) close(reason string) {
	cs.closeOnce.Do(func() {
		cs.logger.Debug().Str("reason", reason).Msg("closing client session")
		cs.conn.Close()
	})
}

func (cs *clientSession) closeWithCode(code ws.StatusCode, reason string) {
	cs.closeOnce.Do(func() {
		closeMsg := ws.NewCloseFrameBody(code, reason)
		ws.WriteFrame(cs.conn, ws.NewCloseFrame(closeMsg))
		cs.conn.Close()
	})
}
