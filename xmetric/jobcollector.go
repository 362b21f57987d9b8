package xmetric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const pullTimeout = 2 * time.Second

// jobCollector hands a fresh MetricJob to the main loop and pushes the
// result once the loop has pulled it. Its metrics are dynamic, so it
// describes nothing and registers unchecked.
type jobCollector struct {
	gather *Gather
}

func newJobCollector(g *Gather) *jobCollector {
	return &jobCollector{gather: g}
}

func (c *jobCollector) Describe(ch chan<- *prometheus.Desc) {}

func (c *jobCollector) Collect(ch chan<- prometheus.Metric) {
	job := c.gather.newJob()
	timer := time.NewTimer(pullTimeout)
	defer timer.Stop()
	select {
	case c.gather.pullChan <- job:
	case <-timer.C:
		return
	}
	select {
	case retJob := <-c.gather.pushChan:
		retJob.Push(c.gather, ch)
	case <-timer.C:
	}
}
