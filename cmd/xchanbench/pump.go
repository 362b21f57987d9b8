package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/qixi7/xchan/xcontainer/channel"
	"github.com/qixi7/xchan/xcontainer/job"
	"github.com/qixi7/xchan/xmodule"
)

const (
	pollWait   = 10 * time.Millisecond // 每帧最多等这么久, 给其他模块让出主线程
	maxPerTick = 4096
	batchLen   = 256
)

type message struct {
	producer int
	seq      int
}

// pump is the single consumer. It checks per-producer order on the main
// loop and hands batches to the job workers for summing.
type pump struct {
	rx     *channel.Receiver[message]
	ctrl   *job.Controller
	next   []int // 每个生产者期望的下一个 seq
	batch  []int
	count  int
	total  int64 // worker 算出的 seq 总和, 在主线程累加
	err    error
	closed bool
}

func newPump(rx *channel.Receiver[message], ctrl *job.Controller, producers int) *pump {
	return &pump{
		rx:    rx,
		ctrl:  ctrl,
		next:  make([]int, producers),
		batch: make([]int, 0, batchLen),
	}
}

func (p *pump) Init(selfGetter xmodule.DModuleGetter) bool {
	return true
}

func (p *pump) Destroy() {
	p.rx.Close()
}

func (p *pump) Run(delta int64) {
	if p.closed {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), pollWait)
	msg, err := p.rx.RecvContext(ctx)
	cancel()
	switch {
	case errors.Is(err, channel.ErrClosed):
		p.finish()
		return
	case err != nil:
		return
	}
	p.accept(msg)
	for i := 0; i < maxPerTick; i++ {
		msg, ok, closed := p.rx.TryRecv()
		if closed {
			p.finish()
			return
		}
		if !ok {
			break
		}
		p.accept(msg)
	}
	p.flush()
}

func (p *pump) accept(msg message) {
	if msg.producer < 0 || msg.producer >= len(p.next) {
		p.fail(errors.Errorf("unknown producer %d", msg.producer))
		return
	}
	if want := p.next[msg.producer]; msg.seq != want {
		p.fail(errors.Errorf("producer %d: got seq %d, want %d", msg.producer, msg.seq, want))
	}
	p.next[msg.producer] = msg.seq + 1
	p.count++
	p.batch = append(p.batch, msg.seq)
	if len(p.batch) >= batchLen {
		p.flush()
	}
}

func (p *pump) flush() {
	if len(p.batch) == 0 {
		return
	}
	b := p.batch
	p.batch = make([]int, 0, batchLen)
	p.ctrl.PostJob(job.Func(func() job.Done {
		var sum int64
		for _, v := range b {
			sum += int64(v)
		}
		return job.DoneFunc(func() { p.total += sum })
	}))
}

func (p *pump) finish() {
	p.flush()
	p.closed = true
}

func (p *pump) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

// verify checks the totals once every job result has been applied.
func (p *pump) verify(producers, messages int) error {
	if p.err != nil {
		return p.err
	}
	if want := producers * messages; p.count != want {
		return errors.Errorf("received %d messages, want %d", p.count, want)
	}
	for i, n := range p.next {
		if n != messages {
			return errors.Errorf("producer %d: received %d messages, want %d", i, n, messages)
		}
	}
	want := int64(producers) * int64(messages) * int64(messages-1) / 2
	if p.total != want {
		return errors.Errorf("seq sum %d, want %d", p.total, want)
	}
	return nil
}
