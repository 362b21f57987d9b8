package job

import (
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/qixi7/xchan/xcontainer/channel"
	"github.com/qixi7/xchan/xlog"
	"github.com/qixi7/xchan/xmodule"
)

const returnBatch = 25

// Controller runs jobs on a pool of goroutines and hands their results
// back to a single owner goroutine. PostJob may be called from any
// goroutine, the other methods only from the owner.
type Controller struct {
	jobChan  *channel.SliceChan[Do]
	doneRecv *channel.Receiver[Done] // 每个 worker 持有一个 Sender
	goNum    int
	jobNum   atomic.Int64 // 已投递未返回的 job 数
	panics   atomic.Uint64
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewController(bufLen int, goNum int) *Controller {
	if goNum <= 0 {
		goNum = 1
	}
	tx, rx := channel.NewWithSize[Done](bufLen)
	ctrl := &Controller{
		jobChan:  channel.NewSliceChan[Do](bufLen),
		doneRecv: rx,
		goNum:    goNum,
	}
	for i := 0; i < goNum; i++ {
		ctrl.wg.Add(1)
		go ctrl.doJob(i, tx.Clone())
	}
	// 只留 worker 手里的 Sender, 全部退出后 doneRecv 关闭
	tx.Close()
	return ctrl
}

func (ctrl *Controller) doJob(idx int, done *channel.Sender[Done]) {
	defer ctrl.wg.Done()
	defer done.Close()

	for {
		job, ok := ctrl.jobChan.Read()
		if !ok {
			return
		}
		done.Send(ctrl.safeDo(idx, job))
	}
}

// safeDo 保证 panic 的 job 也有返回, 否则 jobNum 永远归不了零
func (ctrl *Controller) safeDo(idx int, job Do) (ret Done) {
	defer func() {
		if r := recover(); r != nil {
			ctrl.panics.Add(1)
			xlog.Errorf("job worker %d panic: %v\n%s", idx, r, debug.Stack())
			ret = nil
		}
	}()
	return job.DoJob()
}

// Stop stops accepting jobs and waits for the workers to finish the jobs
// already posted. Results are still delivered by ProcessReturn or Drain.
func (ctrl *Controller) Stop() {
	ctrl.stopOnce.Do(func() {
		ctrl.jobChan.Close()
		ctrl.wg.Wait()
	})
}

// PostJob returns false after Stop.
func (ctrl *Controller) PostJob(job Do) bool {
	ctrl.jobNum.Add(1)
	if !ctrl.jobChan.Write(job) {
		ctrl.jobNum.Add(-1)
		return false
	}
	return true
}

func (ctrl *Controller) doReturn(d Done) {
	ctrl.jobNum.Add(-1)
	if d != nil {
		d.DoReturn()
	}
}

// ProcessReturn runs at most a batch of ready results without blocking.
func (ctrl *Controller) ProcessReturn() {
	for i := 0; i < returnBatch; i++ {
		d, ok, _ := ctrl.doneRecv.TryRecv()
		if !ok {
			return
		}
		ctrl.doReturn(d)
	}
}

// ProcessWaitReturn blocks until every posted job has returned.
func (ctrl *Controller) ProcessWaitReturn() {
	for ctrl.jobNum.Load() > 0 {
		d, ok := ctrl.doneRecv.Recv()
		if !ok {
			return
		}
		ctrl.doReturn(d)
	}
}

// Drain stops the controller and runs every outstanding result.
func (ctrl *Controller) Drain() {
	ctrl.Stop()
	for d := range ctrl.doneRecv.All() {
		ctrl.doReturn(d)
	}
}

// 获取job数量
func (ctrl *Controller) GetJobNum() int {
	return int(ctrl.jobNum.Load())
}

// PanicCount is the number of jobs that panicked.
func (ctrl *Controller) PanicCount() uint64 {
	return ctrl.panics.Load()
}

// DoneStats exposes the result channel counters for metrics.
func (ctrl *Controller) DoneStats() *channel.Stats {
	return ctrl.doneRecv.Stats()
}

func (ctrl *Controller) Init(selfGetter xmodule.DModuleGetter) bool {
	return true
}

func (ctrl *Controller) Run(delta int64) {
	ctrl.ProcessReturn()
}

func (ctrl *Controller) Destroy() {
	ctrl.Drain()
}
