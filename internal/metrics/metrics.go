// Package metrics exposes Prometheus collectors for the broadcast server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "updown"

// Rejection reasons used as the "reason" label
const (
	ReasonParse     = "parse"
	ReasonCommand   = "command"
	ReasonRateLimit = "rate_limit"
	ReasonFrame     = "frame"
)

// Registry holds all application metrics
type Registry struct {
	ConnectedUsers  prometheus.Gauge
	Commands        *prometheus.CounterVec
	Rejected        *prometheus.CounterVec
	Broadcasts      prometheus.Counter
	DroppedMessages prometheus.Counter
	RelayedMessages *prometheus.CounterVec

	reg *prometheus.Registry
}

// NewRegistry creates the collectors and registers them on a dedicated registry
func NewRegistry() *Registry {
	r := &Registry{
		ConnectedUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_users",
			Help:      "Number of websocket clients currently subscribed.",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Decoded commands received from clients.",
		}, []string{"command"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_messages_total",
			Help:      "Inbound messages dropped before dispatch.",
		}, []string{"reason"}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Payloads published to subscribers.",
		}),
		DroppedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_messages_total",
			Help:      "Outbound frames dropped because a peer's send queue was full.",
		}),
		RelayedMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relayed_messages_total",
			Help:      "Payloads exchanged with other instances through the relay.",
		}, []string{"direction"}),
		reg: prometheus.NewRegistry(),
	}

	r.reg.MustRegister(
		r.ConnectedUsers,
		r.Commands,
		r.Rejected,
		r.Broadcasts,
		r.DroppedMessages,
		r.RelayedMessages,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Handler returns an HTTP handler for the metrics endpoint
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry, mainly for tests
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
