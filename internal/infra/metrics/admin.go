package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(adminActionsTotal, broadcastQueuedTotal)
}

var (
	adminActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_actions_total",
			Help: "Admin panel actions performed.",
		},
		[]string{"action"},
	)

	broadcastQueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_messages_queued_total",
			Help: "Messages queued by broadcast jobs.",
		},
	)
)

func IncAdminAction(action string) {
	adminActionsTotal.WithLabelValues(norm(action)).Inc()
}

func AddBroadcastQueued(n int) {
	broadcastQueuedTotal.Add(float64(n))
}
