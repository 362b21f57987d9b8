package xmetric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricJob collects state owned by the main loop. Pull runs on the main
// loop inside Gather.Run, Push runs on the scraping goroutine.
type MetricJob interface {
	Pull()
	Push(g *Gather, ch chan<- prometheus.Metric)
}
