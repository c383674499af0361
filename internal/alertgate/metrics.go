package alertgate

import "github.com/prometheus/client_golang/prometheus"

var (
	gateSessions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moodguard",
		Subsystem: "alertgate",
		Name:      "sessions_total",
		Help:      "Alert sessions opened and closed.",
	}, []string{"event"}) // "opened", "closed"

	gateMarks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moodguard",
		Subsystem: "alertgate",
		Name:      "marks_total",
		Help:      "MarkShown calls by outcome.",
	}, []string{"result"}) // "transitioned", "already_shown"

	gateStoreErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moodguard",
		Subsystem: "alertgate",
		Name:      "store_errors_total",
		Help:      "Session store failures by operation.",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(gateSessions, gateMarks, gateStoreErrors)
}
