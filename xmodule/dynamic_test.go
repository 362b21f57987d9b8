package xmodule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recModule struct {
	name   string
	initOK bool
	log    *[]string
	runs   int
}

func (m *recModule) Init(selfGetter DModuleGetter) bool {
	*m.log = append(*m.log, "init "+m.name)
	return m.initOK
}

func (m *recModule) Destroy() {
	*m.log = append(*m.log, "destroy "+m.name)
}

func (m *recModule) Run(delta int64) {
	m.runs++
}

func TestDModuleLifecycle(t *testing.T) {
	var log []string
	a := &recModule{name: "a", initOK: true, log: &log}
	b := &recModule{name: "b", initOK: true, log: &log}

	mgr := NewDModuleMgr(3)
	getter := mgr.Register(0, a)
	mgr.Register(2, b)
	assert.Same(t, a, getter.Get())

	assert.True(t, mgr.InitAll())
	mgr.RunAll(int64(time.Millisecond))
	mgr.RunAll(int64(time.Millisecond))
	assert.Equal(t, 2, a.runs)
	assert.Equal(t, 2, b.runs)

	var names []string
	mgr.ForEachModuleMetric(func(name string, now, total time.Duration) {
		names = append(names, name)
		assert.GreaterOrEqual(t, total, now)
	})
	assert.Equal(t, []string{"module_xmodule_recModule", "module_xmodule_recModule"}, names)

	mgr.DestroyAll()
	mgr.DestroyAll()
	assert.Equal(t, []string{"init a", "init b", "destroy b", "destroy a"}, log)
}

func TestDModuleInitFailureUnwinds(t *testing.T) {
	var log []string
	a := &recModule{name: "a", initOK: true, log: &log}
	b := &recModule{name: "b", initOK: false, log: &log}

	mgr := NewDModuleMgr(2)
	mgr.Register(0, a)
	mgr.Register(1, b)

	assert.False(t, mgr.InitAll())
	assert.Equal(t, []string{"init a", "init b", "destroy a"}, log)

	mgr.RunAll(0)
	assert.Equal(t, 0, a.runs, "destroyed modules are not run")
}
