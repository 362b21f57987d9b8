package xmodule

/**
dynamic 模块. 由主循环驱动的模块, 比如 job 控制器, 性能收集, channel 消费者
*/

import (
	"reflect"
	"strings"
	"time"

	"github.com/qixi7/xchan/xlog"
)

type DModule interface {
	Init(selfGetter DModuleGetter) bool
	Destroy()
	Run(delta int64)
}

type implDmodule struct {
	module        DModule
	tickUseTime   time.Duration
	tickTimeTotal time.Duration
	moduleName    string
	inited        bool
}

// DModuleMgr is driven by a single main loop goroutine.
type DModuleMgr []implDmodule

func NewDModuleMgr(num int) DModuleMgr {
	return make([]implDmodule, num)
}

type DModuleGetter struct {
	mgr *DModuleMgr
	id  int
}

func (g DModuleGetter) Get() DModule {
	return (*g.mgr)[g.id].module
}

func moduleName(m DModule) string {
	mName := strings.Replace(reflect.TypeOf(m).String(), "*", "_", -1)
	return "module" + strings.Replace(mName, ".", "_", -1)
}

func (mgr *DModuleMgr) Register(id int, m DModule) DModuleGetter {
	(*mgr)[id] = implDmodule{module: m, moduleName: moduleName(m)}
	return mgr.Getter(id)
}

func (mgr *DModuleMgr) Getter(id int) DModuleGetter {
	return DModuleGetter{mgr: mgr, id: id}
}

// InitAll inits in id order. On failure the modules already inited are
// destroyed in reverse order.
func (mgr *DModuleMgr) InitAll() bool {
	for n := range *mgr {
		m := &(*mgr)[n]
		if m.module == nil {
			continue
		}
		if !m.module.Init(mgr.Getter(n)) {
			xlog.Fatalf("dynamic module [%d:%s] init failed", n, m.moduleName)
			mgr.DestroyAll()
			return false
		}
		m.inited = true
	}
	return true
}

// DestroyAll destroys inited modules in reverse id order.
func (mgr *DModuleMgr) DestroyAll() {
	for n := len(*mgr) - 1; n >= 0; n-- {
		m := &(*mgr)[n]
		if m.module != nil && m.inited {
			xlog.InfoF("dynamic module [%d:%s] destroy", n, m.moduleName)
			m.module.Destroy()
			m.inited = false
		}
	}
}

func moduleRunOnce(m *implDmodule, delta int64) {
	if m.module != nil && m.inited {
		nowTime := time.Now()
		m.module.Run(delta)
		m.tickUseTime = time.Since(nowTime)
		m.tickTimeTotal += m.tickUseTime
	}
}

func (mgr *DModuleMgr) RunAll(delta int64) {
	for i := 0; i < len(*mgr); i++ {
		moduleRunOnce(&(*mgr)[i], delta)
	}
}

func (mgr *DModuleMgr) ForEachModuleMetric(runFunc func(name string, now time.Duration, total time.Duration)) {
	for i := 0; i < len(*mgr); i++ {
		m := &(*mgr)[i]
		if m.module != nil {
			runFunc(m.moduleName, m.tickUseTime, m.tickTimeTotal)
		}
	}
}
