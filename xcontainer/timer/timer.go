package timer

import (
	"container/heap"
	"time"

	"github.com/qixi7/xchan/xmodule"
)

// 主线程定时器, 由 Run/Tick 驱动, 不是协程安全的

type priorityQueue struct {
	q   []*Item
	now time.Time
}

func (q *priorityQueue) Len() int {
	return len(q.q)
}

func (q *priorityQueue) Swap(i, j int) {
	q.q[i], q.q[j] = q.q[j], q.q[i]
	q.q[i].index = i
	q.q[j].index = j
}

func (q *priorityQueue) Push(x interface{}) {
	item := x.(*Item)
	item.index = len(q.q)
	q.q = append(q.q, item)
}

func (q *priorityQueue) Pop() interface{} {
	old := q.q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	q.q = old[:n-1]
	return item
}

func (q *priorityQueue) Less(i, j int) bool {
	return q.q[i].deadline().Before(q.q[j].deadline())
}

type Item struct {
	index int
	dual  time.Duration
	since time.Time
	v     Timeout
}

func (item *Item) deadline() time.Time {
	return item.since.Add(item.dual)
}

type Timeout interface {
	Invoke(ctl *Controller, item *Item)
}

// TimeoutFunc adapts a function to Timeout.
type TimeoutFunc func(ctl *Controller, item *Item)

func (f TimeoutFunc) Invoke(ctl *Controller, item *Item) {
	f(ctl, item)
}

type Controller struct {
	q priorityQueue
}

func New() *Controller {
	return &Controller{
		q: priorityQueue{now: time.Now()},
	}
}

// Tick fires every item whose deadline has passed.
func (c *Controller) Tick() {
	c.tickAt(time.Now())
}

func (c *Controller) tickAt(now time.Time) {
	c.q.now = now
	for c.q.Len() > 0 {
		item := c.q.q[0]
		if item.deadline().After(c.q.now) {
			break
		}
		heap.Pop(&c.q)
		item.v.Invoke(c, item)
	}
}

// Add fires v once, dual after the current tick.
func (c *Controller) Add(dual time.Duration, v Timeout) *Item {
	item := &Item{
		index: -1,
		dual:  dual,
		since: c.q.now,
		v:     v,
	}
	heap.Push(&c.q, item)
	return item
}

func (c *Controller) Remove(item *Item) Timeout {
	if item.index == -1 {
		return nil
	}
	heap.Remove(&c.q, item.index)
	return item.v
}

// Update 修改item的时间
func (c *Controller) Update(item *Item, dual time.Duration) {
	if item.index == -1 {
		return
	}
	item.dual = dual
	item.since = c.q.now
	heap.Fix(&c.q, item.index)
}

// Next re-arms a fired item one period after its last deadline.
func (c *Controller) Next(item *Item) {
	if item.index == -1 {
		item.since = item.deadline()
		heap.Push(&c.q, item)
	}
}

func (c *Controller) RemainTime(item *Item) time.Duration {
	return item.deadline().Sub(c.q.now)
}

func (c *Controller) Count() int {
	return len(c.q.q)
}

func (c *Controller) Init(selfGetter xmodule.DModuleGetter) bool {
	return true
}

func (c *Controller) Run(delta int64) {
	c.Tick()
}

func (c *Controller) Destroy() {
	c.q.q = nil
}
