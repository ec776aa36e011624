package session

import "github.com/prometheus/client_golang/prometheus"

const (
	resultOK        = "ok"
	resultInvalid   = "invalid_input"
	resultInit      = "init_error"
	resultGen       = "generation_error"
	resultCancelled = "cancelled"
	resultBusy      = "too_busy"
	resultOther     = "error"
)

var (
	stateGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "doclingd_session_state",
			Help: "1 for the current session state, 0 otherwise.",
		},
		[]string{"state"},
	)
	progressGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "doclingd_assets_progress_percent",
			Help: "Last aggregate model download percentage.",
		},
	)
	ensureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doclingd_ensure_total",
			Help: "Model initialization attempts by result.",
		},
		[]string{"result"},
	)
	ensureDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "doclingd_ensure_duration_seconds",
			Help:    "Time to make the model ready.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doclingd_runs_total",
			Help: "Inference runs by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(stateGauge, progressGauge, ensureTotal, ensureDuration, runsTotal)
}

func setStateGauge(cur State) {
	for _, st := range allStates {
		v := 0.0
		if st == cur {
			v = 1
		}
		stateGauge.WithLabelValues(string(st)).Set(v)
	}
}

func resultFor(err error) string {
	switch {
	case err == nil:
		return resultOK
	case IsInvalidInput(err):
		return resultInvalid
	case IsInitialization(err):
		return resultInit
	case IsCancelled(err):
		return resultCancelled
	case IsGeneration(err):
		return resultGen
	case IsTooBusy(err):
		return resultBusy
	}
	return resultOther
}
