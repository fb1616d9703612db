package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics are the transport-level collectors of one server.
type metrics struct {
	connections   prometheus.Gauge
	handshakes    *prometheus.CounterVec
	framesIn      *prometheus.CounterVec
	framesOut     *prometheus.CounterVec
	bytesIn       prometheus.Counter
	bytesOut      prometheus.Counter
	decodeErrors  prometheus.Counter
	writeErrors   prometheus.Counter
	eventsDropped prometheus.Counter
}

func newMetrics(reg prometheus.Registerer, typ string) *metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"type": typ}

	return &metrics{
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "huddle",
			Subsystem:   "server",
			Name:        "connections",
			Help:        "Number of open client connections",
			ConstLabels: labels,
		}),
		handshakes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "huddle",
			Subsystem:   "server",
			Name:        "handshakes_total",
			Help:        "Handshakes by resulting status",
			ConstLabels: labels,
		}, []string{"status"}),
		framesIn: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "huddle",
			Subsystem:   "server",
			Name:        "frames_received_total",
			Help:        "Frames received by frame type",
			ConstLabels: labels,
		}, []string{"frame"}),
		framesOut: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "huddle",
			Subsystem:   "server",
			Name:        "frames_sent_total",
			Help:        "Frames sent by frame type",
			ConstLabels: labels,
		}, []string{"frame"}),
		bytesIn: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "huddle",
			Subsystem:   "server",
			Name:        "bytes_received_total",
			Help:        "WebSocket payload bytes received",
			ConstLabels: labels,
		}),
		bytesOut: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "huddle",
			Subsystem:   "server",
			Name:        "bytes_sent_total",
			Help:        "WebSocket payload bytes sent",
			ConstLabels: labels,
		}),
		decodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "huddle",
			Subsystem:   "server",
			Name:        "decode_errors_total",
			Help:        "Frames dropped because they could not be decoded",
			ConstLabels: labels,
		}),
		writeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "huddle",
			Subsystem:   "server",
			Name:        "write_errors_total",
			Help:        "WebSocket write failures",
			ConstLabels: labels,
		}),
		eventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "huddle",
			Subsystem:   "server",
			Name:        "events_dropped_total",
			Help:        "Events dropped because the connection was closing",
			ConstLabels: labels,
		}),
	}
}

// sessionCollector reports hosted sessions at scrape time.
type sessionCollector struct {
	srv      *Server
	sessions *prometheus.Desc
	clients  *prometheus.Desc
}

func newSessionCollector(srv *Server) *sessionCollector {
	labels := prometheus.Labels{"type": srv.config.Type}
	return &sessionCollector{
		srv: srv,
		sessions: prometheus.NewDesc("huddle_sessions",
			"Number of live sessions", nil, labels),
		clients: prometheus.NewDesc("huddle_session_clients",
			"Number of clients joined to a session", []string{"session"}, labels),
	}
}

// Describe implements prometheus.Collector.
func (c *sessionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sessions
	ch <- c.clients
}

// Collect implements prometheus.Collector.
func (c *sessionCollector) Collect(ch chan<- prometheus.Metric) {
	infos := c.srv.manager.Infos()
	ch <- prometheus.MustNewConstMetric(c.sessions, prometheus.GaugeValue, float64(len(infos)))
	for _, info := range infos {
		ch <- prometheus.MustNewConstMetric(c.clients, prometheus.GaugeValue, float64(len(info.Clients)), info.Name)
	}
}
