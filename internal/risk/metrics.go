package risk

import "github.com/prometheus/client_golang/prometheus"

var (
	riskAnalyses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moodguard",
		Subsystem: "risk",
		Name:      "analyses_total",
		Help:      "Total completed risk analyses by resulting level.",
	}, []string{"level"})

	riskAnalysisFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moodguard",
		Subsystem: "risk",
		Name:      "analysis_failures_total",
		Help:      "Total failed risk analyses by reason.",
	}, []string{"reason"}) // "data_unavailable", "configuration"

	riskUnknownEmotions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "moodguard",
		Subsystem: "risk",
		Name:      "unknown_emotions_total",
		Help:      "Diary entries scored as 0 because their emotion label was not recognised.",
	})

	riskAnalysisLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "moodguard",
		Subsystem: "risk",
		Name:      "analysis_duration_seconds",
		Help:      "Risk analysis latency including store reads.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})
)

func init() {
	prometheus.MustRegister(
		riskAnalyses,
		riskAnalysisFailures,
		riskUnknownEmotions,
		riskAnalysisLatency,
	)
}
