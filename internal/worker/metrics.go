package worker

import (
	"github.com/prometheus/client_golang/prometheus"

	"thinkchat/pkg/types"
)

var (
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thinkchat",
			Subsystem: "worker",
			Name:      "generations_total",
			Help:      "Generations by outcome (complete, interrupted, error, rejected)",
		},
		[]string{"outcome"},
	)

	tokensTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "thinkchat",
			Subsystem: "worker",
			Name:      "tokens_total",
			Help:      "Total generated tokens",
		},
	)

	tokensPerSecond = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "thinkchat",
			Subsystem: "worker",
			Name:      "tokens_per_second",
			Help:      "Final decode throughput per generation",
			Buckets:   []float64{1, 2, 5, 10, 20, 40, 80, 160},
		},
	)

	loadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "thinkchat",
			Subsystem: "worker",
			Name:      "load_duration_seconds",
			Help:      "Time from load command to ready",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	statusGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "thinkchat",
			Subsystem: "worker",
			Name:      "status",
			Help:      "1 for the current lifecycle status, 0 otherwise",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(generationsTotal, tokensTotal, tokensPerSecond, loadDuration, statusGauge)
}

var allStatuses = []types.SessionStatus{
	types.StatusInitializing, types.StatusLoading, types.StatusReady, types.StatusError,
}

func setStatusGauge(cur types.SessionStatus) {
	for _, s := range allStatuses {
		v := 0.0
		if s == cur {
			v = 1
		}
		statusGauge.WithLabelValues(string(s)).Set(v)
	}
}
