package xprofile

import (
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/qixi7/xchan/xlog"
)

/*
	按 mode 开启性能收集, Stop 时写出 profile 文件. 支持 cpu, mem, trace, mutex, block
	eg: ./xchanbench -prof.mode=mutex,block
	mutex/block 用来看 channel 锁竞争和消费者阻塞
*/

type Profiler struct {
	dir            string
	closer         []func()
	memProfileRate int
	status         uint32
}

func (p *Profiler) create(name string) (*os.File, error) {
	f, err := os.Create(filepath.Join(p.dir, name))
	if err != nil {
		return nil, errors.Wrapf(err, "profiler: create %s", name)
	}
	return f, nil
}

func (p *Profiler) cpuProfile() error {
	f, err := p.create("cpu.pprof")
	if err != nil {
		return err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return errors.Wrap(err, "profiler: start cpu profile")
	}
	xlog.InfoF("profiler: cpu profile enabled")
	p.closer = append(p.closer, func() {
		pprof.StopCPUProfile()
		f.Close()
		xlog.InfoF("profiler: cpu profile disabled")
	})
	return nil
}

// lookupProfile 在 Stop 时把 runtime 里的 profile 写到文件
func (p *Profiler) lookupProfile(name string, enable, disable func()) error {
	f, err := p.create(name + ".pprof")
	if err != nil {
		return err
	}
	enable()
	xlog.InfoF("profiler: %s profile enabled", name)
	p.closer = append(p.closer, func() {
		defer f.Close()
		defer disable()
		if err := pprof.Lookup(name).WriteTo(f, 0); err != nil {
			xlog.Errorf("profiler: could not write %s profile err=%v", name, err)
			return
		}
		xlog.InfoF("profiler: %s profile disabled", name)
	})
	return nil
}

func (p *Profiler) memProfile() error {
	old := runtime.MemProfileRate
	return p.lookupProfile("heap",
		func() { runtime.MemProfileRate = p.memProfileRate },
		func() { runtime.MemProfileRate = old })
}

func (p *Profiler) mutexProfile() error {
	return p.lookupProfile("mutex",
		func() { runtime.SetMutexProfileFraction(1) },
		func() { runtime.SetMutexProfileFraction(0) })
}

func (p *Profiler) blockProfile() error {
	return p.lookupProfile("block",
		func() { runtime.SetBlockProfileRate(1) },
		func() { runtime.SetBlockProfileRate(0) })
}

func (p *Profiler) traceProfile() error {
	f, err := p.create("trace.out")
	if err != nil {
		return err
	}
	if err := trace.Start(f); err != nil {
		f.Close()
		return errors.Wrap(err, "profiler: start trace")
	}
	xlog.InfoF("profiler: trace profile enabled")
	p.closer = append(p.closer, func() {
		trace.Stop()
		f.Close()
		xlog.InfoF("profiler: trace profile disabled")
	})
	return nil
}

// Start enables every mode in the comma separated pmode. An empty pmode
// is a no-op.
func (p *Profiler) Start(pmode string) error {
	if len(pmode) == 0 {
		return nil
	}
	mmodes := map[string]func() error{
		"cpu":   p.cpuProfile,
		"mem":   p.memProfile,
		"mutex": p.mutexProfile,
		"block": p.blockProfile,
		"trace": p.traceProfile,
	}
	modes := strings.FieldsFunc(pmode, func(r rune) bool {
		return uint32(r) == ','
	})
	for _, m := range modes {
		if _, ok := mmodes[m]; !ok {
			return errors.Errorf("profiler: unknown mode %q", m)
		}
	}
	if !atomic.CompareAndSwapUint32(&p.status, 0, 1) {
		return errors.New("profiler: already started")
	}
	p.memProfileRate = 4096

	for _, m := range modes {
		if err := mmodes[m](); err != nil {
			p.Stop()
			return err
		}
	}
	return nil
}

func (p *Profiler) Stop() {
	if !atomic.CompareAndSwapUint32(&p.status, 1, 0) {
		return
	}
	for i := len(p.closer) - 1; i >= 0; i-- {
		p.closer[i]()
	}
	p.closer = nil
}

// Start returns a running Profiler writing into dir.
func Start(dir, mode string) (*Profiler, error) {
	prof := &Profiler{dir: dir}
	if err := prof.Start(mode); err != nil {
		return nil, err
	}
	return prof, nil
}
