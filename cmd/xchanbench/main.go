package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fastrand"

	"github.com/qixi7/xchan/xconfig"
	"github.com/qixi7/xchan/xcontainer/channel"
	"github.com/qixi7/xchan/xcontainer/job"
	"github.com/qixi7/xchan/xcontainer/timer"
	"github.com/qixi7/xchan/xlog"
	"github.com/qixi7/xchan/xmetric"
	"github.com/qixi7/xchan/xmodule"
	"github.com/qixi7/xchan/xprofile"
)

const (
	modMetric = iota
	modTimer
	modJob
	modPump
	modNum
)

const reportInterval = time.Second

type result struct {
	Messages int
	Elapsed  time.Duration
	Stats    channel.StatsSnapshot
	Panics   uint64
}

// parseFlags loads the config file, then applies the flags that were set
// explicitly on top of it.
func parseFlags(args []string, stderr io.Writer) (xconfig.Config, error) {
	fs := flag.NewFlagSet("xchanbench", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		path      = fs.String("config", "", "config file (.toml/.yaml)")
		producers = fs.Int("producers", 0, "producer goroutines")
		messages  = fs.Int("messages", 0, "messages per producer")
		listen    = fs.String("metric.listen", "", "prometheus listen address")
		profMode  = fs.String("prof.mode", "", "profile mode, such as \"mutex,block\"")
		level     = fs.String("log.level", "", "log level")
	)
	if err := fs.Parse(args); err != nil {
		return xconfig.Config{}, err
	}

	cfg := xconfig.Default()
	if len(*path) > 0 {
		var err error
		if cfg, err = xconfig.Load(*path); err != nil {
			return cfg, err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "producers":
			cfg.Bench.Producers = *producers
		case "messages":
			cfg.Bench.Messages = *messages
		case "metric.listen":
			cfg.Metric.Listen = *listen
		case "prof.mode":
			cfg.Bench.ProfMode = *profMode
		case "log.level":
			cfg.Log.Level = *level
		}
	})
	return cfg, cfg.Validate()
}

func produce(id, messages, maxBurst int, tx *channel.Sender[message], wg *sync.WaitGroup) {
	defer wg.Done()
	defer tx.Close()
	burst := 1 + int(fastrand.Uint32n(uint32(maxBurst)))
	for seq := 0; seq < messages; seq++ {
		tx.Send(message{producer: id, seq: seq})
		burst--
		if burst == 0 {
			runtime.Gosched()
			burst = 1 + int(fastrand.Uint32n(uint32(maxBurst)))
		}
	}
}

// loopMetric reports module tick times. Pull runs on the main loop.
type loopMetric struct {
	mgr   *xmodule.DModuleMgr
	names []string
	now   []time.Duration
	total []time.Duration
}

func (m *loopMetric) Pull() {
	m.mgr.ForEachModuleMetric(func(name string, now, total time.Duration) {
		m.names = append(m.names, name)
		m.now = append(m.now, now)
		m.total = append(m.total, total)
	})
}

func (m *loopMetric) Push(g *xmetric.Gather, ch chan<- prometheus.Metric) {
	labels := []string{"module"}
	for i, name := range m.names {
		g.PushGaugeMetric(ch, "xchan_module_tick_seconds", m.now[i].Seconds(), labels, name)
		g.PushCounterMetric(ch, "xchan_module_tick_seconds_total", m.total[i].Seconds(), labels, name)
	}
}

func run(cfg xconfig.Config) (result, error) {
	b := cfg.Bench
	var res result

	mgr := xmodule.NewDModuleMgr(modNum)
	gather := xmetric.NewGather(func() xmetric.MetricJob { return &loopMetric{mgr: &mgr} })
	if len(cfg.Metric.Listen) > 0 {
		if err := gather.Serve(cfg.Metric.Listen); err != nil {
			return res, err
		}
	}
	ctrl := job.NewController(b.BufLen, b.Workers)
	tx, rx := channel.NewWithSize[message](b.BufLen)
	p := newPump(rx, ctrl, b.Producers)
	gather.RegisterChannel("bench", rx.Stats())
	gather.RegisterChannel("job_done", ctrl.DoneStats())

	timers := timer.New()
	timers.Add(reportInterval, timer.TimeoutFunc(func(ctl *timer.Controller, item *timer.Item) {
		ss := rx.Stats().Snapshot()
		xlog.InfoF("bench progress: received=%d pending=%d senders=%d jobs=%d",
			ss.Received, ss.Pending(), ss.Senders, ctrl.GetJobNum())
		ctl.Next(item)
	}))

	mgr.Register(modMetric, gather)
	mgr.Register(modTimer, timers)
	mgr.Register(modJob, ctrl)
	mgr.Register(modPump, p)
	if !mgr.InitAll() {
		tx.Close()
		return res, errors.New("init modules failed")
	}

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < b.Producers; i++ {
		wg.Add(1)
		go produce(i, b.Messages, b.MaxBurst, tx.Clone(), &wg)
	}
	tx.Close()
	xlog.InfoF("bench start: producers=%d messages=%d workers=%d", b.Producers, b.Messages, b.Workers)

	last := start
	for !p.closed {
		now := time.Now()
		mgr.RunAll(int64(now.Sub(last)))
		last = now
	}
	wg.Wait()
	ctrl.ProcessWaitReturn()
	res.Elapsed = time.Since(start)
	res.Messages = p.count
	res.Stats = rx.Stats().Snapshot()
	res.Panics = ctrl.PanicCount()
	mgr.DestroyAll()

	if err := p.verify(b.Producers, b.Messages); err != nil {
		return res, errors.Wrap(err, "bench verify")
	}
	return res, nil
}

func realMain() int {
	cfg, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "xchanbench: %v\n", err)
		return 2
	}
	if err = xlog.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "xchanbench: %+v\n", err)
		return 2
	}
	defer xlog.Close()

	prof, err := xprofile.Start(".", cfg.Bench.ProfMode)
	if err != nil {
		xlog.Errorf("%+v", err)
		return 2
	}
	res, err := run(cfg)
	prof.Stop()
	if err != nil {
		xlog.Errorf("%+v", err)
		return 1
	}

	rate := float64(res.Messages) / res.Elapsed.Seconds()
	xlog.InfoF("bench ok: messages=%d elapsed=%v rate=%.0f/s swaps=%d waits=%d",
		res.Messages, res.Elapsed, rate, res.Stats.Swaps, res.Stats.Waits)
	return 0
}

func main() {
	os.Exit(realMain())
}
