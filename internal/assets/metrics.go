package assets

import "github.com/prometheus/client_golang/prometheus"

var downloadedBytes = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "doclingd",
	Subsystem: "assets",
	Name:      "downloaded_bytes_total",
	Help:      "Total bytes of model assets downloaded",
})

func init() {
	prometheus.MustRegister(downloadedBytes)
}
