package wsserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/odin-telemetry/telemetry-sdk/logcontext"
	"github.com/odin-telemetry/telemetry-sdk/wsprotocol"
	"github.com/odin-telemetry/telemetry-sdk/wsserver/service"
)

// ServerConfig configures a Server. Zero values fall back to the defaults
// documented on each field.
type ServerConfig struct {
	Addr       string
	Name       string
	WriteTimeout time.Duration
	PingInterval time.Duration

	// MaxConnections bounds how many clients may be connected at once. Zero
	// means unbounded.
	MaxConnections int

	// CPURejectThreshold, if positive, rejects new connections whenever
	// sampled system-wide CPU usage is at or above this percentage (0-100).
	CPURejectThreshold float64

	DataQueueSize    int
	ControlQueueSize int

	Capabilities       []wsprotocol.Capability
	SupportedEncodings []string

	MaxInFlightServiceCalls int

	// TimeBroadcastInterval controls how often TimeData frames are sent
	// when the time capability is enabled. Defaults to one second.
	TimeBroadcastInterval time.Duration

	// ClientRateLimit/ClientRateBurst bound how many inbound messages (text
	// and binary frames alike) a client may send per second; a client that
	// exceeds the limit is disconnected. Zero disables rate limiting.
	ClientRateLimit float64
	ClientRateBurst int

	// Context is the logcontext.Context that client-advertised (published)
	// channels are registered with, so they reach every other sink
	// (recorders, other servers) attached to it, not just this one.
	// Defaults to logcontext.Global().
	Context *logcontext.Context

	// AssetProvider, if set, backs the fetchAsset operation. Nil means any
	// fetchAsset request is answered with an error.
	AssetProvider AssetProvider

	// JWTPublicKeyPath, if set, enables the optional identity decorator:
	// a client's bearer token is verified and its subject logged alongside
	// the connection, purely for audit purposes.
	JWTPublicKeyPath string

	// Listener, if set, is notified of client activity: subscriptions,
	// client-published data, client-advertised channels, parameters, and
	// asset fetches. Defaults to NoopListener.
	Listener Listener

	// Registry receives the server's Prometheus collectors and backs the
	// /metrics endpoint. Defaults to a fresh, private registry.
	Registry         *prometheus.Registry
	MetricsNamespace string
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.Name == "" {
		c.Name = "telemetry-sdk"
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 20 * time.Second
	}
	if c.DataQueueSize <= 0 {
		c.DataQueueSize = DefaultDataQueueSize
	}
	if c.ControlQueueSize <= 0 {
		c.ControlQueueSize = DefaultControlQueueSize
	}
	if c.MaxInFlightServiceCalls <= 0 {
		c.MaxInFlightServiceCalls = DefaultMaxInFlightServiceCalls
	}
	if c.Listener == nil {
		c.Listener = NoopListener{}
	}
	if c.Registry == nil {
		c.Registry = prometheus.NewRegistry()
	}
	if c.MetricsNamespace == "" {
		c.MetricsNamespace = "telemetry_ws"
	}
	if c.SupportedEncodings == nil {
		c.SupportedEncodings = []string{"json"}
	}
	if c.Context == nil {
		c.Context = logcontext.Global()
	}
	if c.TimeBroadcastInterval <= 0 {
		c.TimeBroadcastInterval = time.Second
	}
	return c
}

// Server is a foxglove.sdk.v1 WebSocket server. It implements
// logcontext.Sink and logcontext.ChannelObserver, so attaching it to a
// Context with Context.AddSink makes every message logged on every channel
// of that context available for client subscription.
//
// The zero value is not usable; construct one with NewServer.
type Server struct {
	cfg    ServerConfig
	logger zerolog.Logger
	caps   capabilitySet
	metrics *metrics

	httpServer *http.Server
	listener   net.Listener

	mu       sync.RWMutex
	clients  map[ClientID]*clientSession
	channels map[uint64]*logcontext.Channel // advertised channels, by id

	connectionsSem chan struct{}

	services *service.Registry

	params *paramStore

	sessionID string

	guard    *resourceGuard
	identity *identityVerifier

	wg       sync.WaitGroup
	shutdown chan struct{}
	closed   atomic.Bool
}

// NewServer constructs a Server. It does not start listening; call Start to
// bind and accept connections.
func NewServer(cfg ServerConfig, logger zerolog.Logger) (*Server, error) {
	cfg = cfg.withDefaults()
	identity, err := newIdentityVerifier(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger.With().Str("component", "wsserver").Logger(),
		caps:     newCapabilitySet(cfg.Capabilities),
		metrics:  newMetrics(cfg.Registry, cfg.MetricsNamespace),
		clients:  make(map[ClientID]*clientSession),
		channels: make(map[uint64]*logcontext.Channel),
		services: service.NewRegistry(),
		params:   newParamStore(),
		guard:    newResourceGuard(cfg.CPURejectThreshold),
		identity: identity,
		shutdown: make(chan struct{}),
	}
	if cfg.MaxConnections > 0 {
		s.connectionsSem = make(chan struct{}, cfg.MaxConnections)
	}
	sessionUUID, err := uuid.NewRandom()
	if err != nil {
		s.sessionID = "telemetry-sdk-session"
	} else {
		s.sessionID = sessionUUID.String()
	}
	return s, nil
}

// AddService registers a service clients may call. It must be called before
// any client capable of seeing it connects to reflect it in a given
// connection's advertiseServices message; existing connections are not
// retroactively notified.
func (s *Server) AddService(svc *service.Service) bool {
	return s.services.Add(svc)
}

// Start binds the configured address and begins accepting WebSocket
// connections in the background. It returns once the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("wsserver: listen: %w", err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.cfg.Registry, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Handler:        mux,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	s.logger.Info().Str("addr", s.cfg.Addr).Msg("websocket server listening")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("accept loop exited")
		}
	}()

	s.startTimeBroadcast(s.cfg.TimeBroadcastInterval)
	s.guard.start(s.shutdown, 5*time.Second)

	return nil
}

// Shutdown stops accepting new connections and closes every client session,
// waiting up to the context's deadline for the accept loop to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.shutdown)

	s.mu.RLock()
	sessions := make([]*clientSession, 0, len(s.clients))
	for _, cs := range s.clients {
		sessions = append(sessions, cs)
	}
	s.mu.RUnlock()
	for _, cs := range sessions {
		cs.close("server shutting down")
	}

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.wg.Wait()
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.closed.Load() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	if !s.guard.shouldAcceptConnection() {
		s.metrics.disconnectsTotal.WithLabelValues("overloaded").Inc()
		http.Error(w, "server overloaded", http.StatusServiceUnavailable)
		return
	}

	if s.connectionsSem != nil {
		select {
		case s.connectionsSem <- struct{}{}:
		default:
			s.metrics.disconnectsTotal.WithLabelValues("at_capacity").Inc()
			http.Error(w, "server at capacity", http.StatusServiceUnavailable)
			return
		}
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		if s.connectionsSem != nil {
			<-s.connectionsSem
		}
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	identity := s.identity.identify(r)
	cs := newClientSession(s, conn, r.RemoteAddr)
	if identity != "" {
		cs.logger = cs.logger.With().Str("identity", identity).Logger()
	}
	s.mu.Lock()
	s.clients[cs.id] = cs
	s.mu.Unlock()

	s.metrics.connectionsTotal.Inc()
	s.metrics.connectionsActive.Inc()

	go cs.run()
}

func (s *Server) removeClient(cs *clientSession) {
	s.mu.Lock()
	delete(s.clients, cs.id)
	s.mu.Unlock()
	if s.connectionsSem != nil {
		select {
		case <-s.connectionsSem:
		default:
		}
	}
	s.metrics.connectionsActive.Dec()
}

// Log implements logcontext.Sink: it fans the message out to every client
// currently subscribed to channel.
func (s *Server) Log(channel *logcontext.Channel, data []byte, metadata logcontext.Metadata) error {
	s.mu.RLock()
	sessions := make([]*clientSession, 0, len(s.clients))
	for _, cs := range s.clients {
		sessions = append(sessions, cs)
	}
	s.mu.RUnlock()

	for _, cs := range sessions {
		cs.publish(channel.ID(), metadata.LogTime, data)
	}
	return nil
}

// AddChannel implements logcontext.ChannelObserver: it tracks the channel so
// new connections can be sent an advertise message, and notifies already
// connected clients.
func (s *Server) AddChannel(channel *logcontext.Channel) {
	s.mu.Lock()
	s.channels[channel.ID()] = channel
	sessions := make([]*clientSession, 0, len(s.clients))
	for _, cs := range s.clients {
		sessions = append(sessions, cs)
	}
	s.mu.Unlock()

	for _, cs := range sessions {
		cs.advertiseChannel(channel)
	}
}

// RemoveChannel implements logcontext.ChannelObserver.
func (s *Server) RemoveChannel(channel *logcontext.Channel) {
	s.mu.Lock()
	delete(s.channels, channel.ID())
	sessions := make([]*clientSession, 0, len(s.clients))
	for _, cs := range s.clients {
		sessions = append(sessions, cs)
	}
	s.mu.Unlock()

	for _, cs := range sessions {
		cs.unadvertiseChannel(channel.ID())
	}
}

func (s *Server) advertisedChannels() []*logcontext.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*logcontext.Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		out = append(out, ch)
	}
	return out
}

func (s *Server) channelByID(id uint64) (*logcontext.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[id]
	return ch, ok
}
