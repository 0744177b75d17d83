package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		sharesCreatedTotal,
		sharesViewedTotal,
		sharesRevokedTotal,
		sharesExpiredTotal,
		sharesDestructedTotal,
	)
}

var (
	sharesCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shares_created_total",
			Help: "Shares created, by kind (text/message/inline).",
		},
		[]string{"kind"},
	)

	sharesViewedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shares_viewed_total",
			Help: "Successful view claims, by resulting status.",
		},
		[]string{"status"},
	)

	sharesRevokedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shares_revoked_total",
			Help: "Shares revoked by their sender.",
		},
	)

	sharesExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shares_expired_total",
			Help: "Shares flipped to expired by the sweep.",
		},
	)

	sharesDestructedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shares_destructed_total",
			Help: "Delivered copies removed by the self-destruct sweep.",
		},
	)
)

func IncShareCreated(kind string) {
	sharesCreatedTotal.WithLabelValues(norm(kind)).Inc()
}

func IncShareViewed(status string) {
	sharesViewedTotal.WithLabelValues(norm(status)).Inc()
}

func IncShareRevoked() {
	sharesRevokedTotal.Inc()
}

func AddSharesExpired(n int) {
	sharesExpiredTotal.Add(float64(n))
}

func AddSharesDestructed(n int) {
	sharesDestructedTotal.Add(float64(n))
}
