package receiver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the host's instrumentation counters. Each host owns its
// registry so multiple hosts in one process (tests) never collide.
type Metrics struct {
	ConnectedClients  prometheus.Gauge
	Commands          *prometheus.CounterVec
	Datagrams         *prometheus.CounterVec
	AuthFailures      prometheus.Counter
	RejectedDatagrams prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "glidedeck_connected_clients",
			Help: "Number of authenticated client sessions.",
		}),
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glidedeck_commands_total",
			Help: "Control messages dispatched, by message type.",
		}, []string{"type"}),
		Datagrams: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glidedeck_datagrams_total",
			Help: "Motion datagrams dispatched, by kind.",
		}, []string{"kind"}),
		AuthFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "glidedeck_auth_failures_total",
			Help: "Rejected authentication attempts.",
		}),
		RejectedDatagrams: factory.NewCounter(prometheus.CounterOpts{
			Name: "glidedeck_udp_rejected_total",
			Help: "Datagrams dropped for a bad token or unknown session.",
		}),
	}
}
