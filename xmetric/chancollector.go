package xmetric

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/qixi7/xchan/xcontainer/channel"
)

var chanLabel = []string{"channel"}

// channelCollector exports the Stats of every registered channel.
type channelCollector struct {
	mu    sync.Mutex
	stats map[string]*channel.Stats

	sent     *prometheus.Desc
	received *prometheus.Desc
	dropped  *prometheus.Desc
	swaps    *prometheus.Desc
	waits    *prometheus.Desc
	senders  *prometheus.Desc
	pending  *prometheus.Desc
}

func newChannelCollector(constLabels prometheus.Labels) *channelCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(name, help, chanLabel, constLabels)
	}
	return &channelCollector{
		stats:    make(map[string]*channel.Stats),
		sent:     desc("xchan_sent_total", "Values sent into the channel."),
		received: desc("xchan_received_total", "Values received from the channel."),
		dropped:  desc("xchan_dropped_total", "Values discarded because the receiver was closed."),
		swaps:    desc("xchan_swaps_total", "Bulk moves of the shared queue into the receiver buffer."),
		waits:    desc("xchan_waits_total", "Times the receiver blocked waiting for a value."),
		senders:  desc("xchan_senders", "Live sender handles."),
		pending:  desc("xchan_pending", "Values sent but not yet received."),
	}
}

func (c *channelCollector) add(name string, s *channel.Stats) {
	c.mu.Lock()
	c.stats[name] = s
	c.mu.Unlock()
}

func (c *channelCollector) remove(name string) {
	c.mu.Lock()
	delete(c.stats, name)
	c.mu.Unlock()
}

func (c *channelCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sent
	ch <- c.received
	ch <- c.dropped
	ch <- c.swaps
	ch <- c.waits
	ch <- c.senders
	ch <- c.pending
}

func (c *channelCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	names := make([]string, 0, len(c.stats))
	for name := range c.stats {
		names = append(names, name)
	}
	sort.Strings(names)
	snaps := make([]channel.StatsSnapshot, len(names))
	for i, name := range names {
		snaps[i] = c.stats[name].Snapshot()
	}
	c.mu.Unlock()

	for i, name := range names {
		ss := snaps[i]
		ch <- prometheus.MustNewConstMetric(c.sent, prometheus.CounterValue, float64(ss.Sent), name)
		ch <- prometheus.MustNewConstMetric(c.received, prometheus.CounterValue, float64(ss.Received), name)
		ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(ss.Dropped), name)
		ch <- prometheus.MustNewConstMetric(c.swaps, prometheus.CounterValue, float64(ss.Swaps), name)
		ch <- prometheus.MustNewConstMetric(c.waits, prometheus.CounterValue, float64(ss.Waits), name)
		ch <- prometheus.MustNewConstMetric(c.senders, prometheus.GaugeValue, float64(ss.Senders), name)
		ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(ss.Pending()), name)
	}
}
