package stream

import "github.com/prometheus/client_golang/prometheus"

const (
	resultOK        = "ok"
	resultCancelled = "cancelled"
	resultError     = "error"
)

var (
	fragmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "doclingd_generation_fragments_total",
			Help: "Decoded fragments delivered to sinks.",
		},
	)
	generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "doclingd_generation_duration_seconds",
			Help:    "Wall time of a generation by result.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(fragmentsTotal, generationDuration)
}
