package wsserver

import "github.com/prometheus/client_golang/prometheus"

// metrics bundles the Prometheus collectors for a single Server instance.
// Unlike the teacher's package-level MustRegister globals, these are
// instance-scoped and registered against a caller-supplied registry, so
// more than one Server can coexist in a process (e.g. in tests).
type metrics struct {
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	disconnectsTotal  *prometheus.CounterVec

	messagesSent     prometheus.Counter
	messagesReceived prometheus.Counter
	bytesSent        prometheus.Counter
	bytesReceived    prometheus.Counter

	droppedBroadcasts     *prometheus.CounterVec
	slowClientsDisconnected prometheus.Counter

	subscriptionsActive prometheus.Gauge

	serviceCallsTotal    *prometheus.CounterVec
	serviceCallsInFlight prometheus.Gauge

	clientBufferUsage prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer, namespace string) *metrics {
	m := &metrics{
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "connections_active", Help: "Currently connected WebSocket clients.",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "connections_total", Help: "Total WebSocket connections accepted.",
		}),
		disconnectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "disconnects_total", Help: "Total client disconnects by reason.",
		}, []string{"reason"}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_sent_total", Help: "Total messages sent to clients.",
		}),
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_received_total", Help: "Total messages received from clients.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_sent_total", Help: "Total bytes sent to clients.",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_received_total", Help: "Total bytes received from clients.",
		}),
		droppedBroadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "dropped_broadcasts_total", Help: "Messages dropped due to a full client queue.",
		}, []string{"reason"}),
		slowClientsDisconnected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "slow_clients_disconnected_total", Help: "Clients disconnected for falling too far behind.",
		}),
		subscriptionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "subscriptions_active", Help: "Currently active channel subscriptions across all clients.",
		}),
		serviceCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "service_calls_total", Help: "Total service calls by outcome.",
		}, []string{"outcome"}),
		serviceCallsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "service_calls_in_flight", Help: "Service calls currently awaiting a response.",
		}),
		clientBufferUsage: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "client_buffer_usage_ratio", Help: "Sampled fraction-full of client data queues.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}

	reg.MustRegister(
		m.connectionsActive, m.connectionsTotal, m.disconnectsTotal,
		m.messagesSent, m.messagesReceived, m.bytesSent, m.bytesReceived,
		m.droppedBroadcasts, m.slowClientsDisconnected, m.subscriptionsActive,
		m.serviceCallsTotal, m.serviceCallsInFlight, m.clientBufferUsage,
	)
	return m
}
