package xmetric

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmizerany/pat"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qixi7/xchan/xcontainer/channel"
	"github.com/qixi7/xchan/xlog"
	"github.com/qixi7/xchan/xmodule"
)

const unknown = "unknown"

type labelConfig struct {
	host    string
	alias   string
	program string
}

type Gather struct {
	labelConfig
	registry   *prometheus.Registry
	newJob     func() MetricJob
	pullChan   chan MetricJob
	pushChan   chan MetricJob
	chans      *channelCollector
	descMu     sync.Mutex
	descs      map[string]*prometheus.Desc
	pattern    *pat.PatternServeMux
	server     *http.Server
	listenAddr string
}

// NewGather builds a Gather. newJob may be nil when there is no main loop
// state to export.
func NewGather(newJob func() MetricJob) *Gather {
	g := &Gather{
		registry: prometheus.NewRegistry(),
		newJob:   newJob,
		pullChan: make(chan MetricJob),
		pushChan: make(chan MetricJob, 4),
		descs:    make(map[string]*prometheus.Desc),
		pattern:  pat.New(),
	}
	g.chans = newChannelCollector(g.defaultLabels())
	g.registry.MustRegister(g.chans)
	g.registry.MustRegister(collectors.NewGoCollector())
	g.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if newJob != nil {
		g.registry.MustRegister(newJobCollector(g))
	}

	g.pattern.Get("/metrics", promhttp.HandlerFor(g.registry, promhttp.HandlerOpts{}))
	// [/health] 探活
	g.pattern.Get("/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintln(w, "ok")
	}))
	return g
}

func (g *Gather) Init(selfGetter xmodule.DModuleGetter) bool {
	return true
}

func (g *Gather) Destroy() {
	if g.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := g.server.Shutdown(ctx); err != nil {
		xlog.Errorf("xmetric: shutdown %s err=%v", g.listenAddr, err)
	}
	g.server = nil
}

// Run serves one pending scrape on the caller's goroutine.
func (g *Gather) Run(delta int64) {
	select {
	case job := <-g.pullChan:
		job.Pull()
		select {
		case g.pushChan <- job:
		default:
			return
		}
	default:
		return
	}
}

// Registry is the registry behind /metrics.
func (g *Gather) Registry() *prometheus.Registry {
	return g.registry
}

// RegisterChannel exports the counters of a channel under name.
func (g *Gather) RegisterChannel(name string, s *channel.Stats) {
	g.chans.add(name, s)
}

func (g *Gather) UnregisterChannel(name string) {
	g.chans.remove(name)
}

// Handler serves /metrics and /health.
func (g *Gather) Handler() http.Handler {
	return g.pattern
}

// Serve listens on addr in the background.
func (g *Gather) Serve(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "xmetric: listen %s", addr)
	}
	g.listenAddr = l.Addr().String()
	g.server = &http.Server{Handler: g.pattern}
	srv := g.server
	go func() {
		if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
			xlog.Errorf("xmetric: http.Serve err=%v", err)
		}
	}()
	xlog.InfoF("http metric url: http://%s/metrics", g.listenAddr)
	return nil
}

// Addr is the address Serve is listening on.
func (g *Gather) Addr() string {
	return g.listenAddr
}

func (g *Gather) modGetDesc(name string, labels []string) *prometheus.Desc {
	namekey := name
	for _, v := range labels {
		namekey += "_" + v
	}
	g.descMu.Lock()
	defer g.descMu.Unlock()
	desc, ok := g.descs[namekey]
	if ok {
		return desc
	}
	desc = prometheus.NewDesc(name, name, labels, g.defaultLabels())
	g.descs[namekey] = desc
	return desc
}

func (g *Gather) PushGaugeMetric(ch chan<- prometheus.Metric, name string, value float64, labels []string, labelValues ...string) {
	desc := g.modGetDesc(name, labels)
	metric, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, value, labelValues...)
	if err != nil {
		xlog.Errorf("PushGaugeMetric, NewConstMetric err=%v", err)
		return
	}
	ch <- metric
}

func (g *Gather) PushCounterMetric(ch chan<- prometheus.Metric, name string, value float64, labels []string, labelValues ...string) {
	desc := g.modGetDesc(name, labels)
	metric, err := prometheus.NewConstMetric(desc, prometheus.CounterValue, value, labelValues...)
	if err != nil {
		xlog.Errorf("PushCounterMetric, NewConstMetric err=%v", err)
		return
	}
	ch <- metric
}

func (g *Gather) defaultLabels() map[string]string {
	if len(g.program) == 0 {
		g.program = filepath.Base(os.Args[0])
	}
	if len(g.host) == 0 {
		g.host = getLocalAddr()
		if g.host == unknown {
			g.host = getHostName()
		}
	}
	if len(g.alias) == 0 {
		g.alias = unknown
	}
	return map[string]string{"host": g.host, "alias": g.alias, "program": g.program}
}

func getLocalAddr() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return unknown
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}
	return unknown
}

func getHostName() string {
	host, err := os.Hostname()
	if err != nil {
		return unknown
	}
	return host
}
