package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(keepalivePingsTotal)
}

var keepalivePingsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "keepalive_pings_total",
		Help: "Keep-alive pings, by outcome.",
	},
	[]string{"outcome"},
)

func IncKeepalivePing(outcome string) {
	keepalivePingsTotal.WithLabelValues(norm(outcome)).Inc()
}
