package channel

import (
	"context"
	"errors"
	"iter"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/qixi7/xchan/xcontainer/queue"
)

// 多生产者单消费者 channel.
//
// Sender 可以 Clone 给多个生产者, 每个 Sender 用完必须 Close.
// 最后一个 Sender Close 后, Receiver 读完剩余数据再返回 closed.
// 无界队列, Send 永不阻塞.

const defaultBufLen = 16

// ErrClosed is returned by RecvContext once every sender is gone and the
// queue is drained.
var ErrClosed = errors.New("xchan: channel closed")

type shared[T any] struct {
	mu        sync.Mutex
	available *sync.Cond
	queue     *queue.Queue[T]
	senders   int  // 存活的 Sender 数量
	rxClosed  bool // Receiver 已 Close, Send 直接丢弃
	stats     Stats
}

// Sender is one producer handle. Safe for concurrent use, but a handle
// must not be used after Close.
type Sender[T any] struct {
	shared *shared[T]
	closed atomic.Bool
}

// Receiver is the single consumer handle. It must only be used from one
// goroutine at a time.
type Receiver[T any] struct {
	shared *shared[T]
	buffer *queue.Queue[T] // 本地缓冲, 只有消费者访问
	closed bool
}

// New returns the two ends of an unbounded MPSC channel.
func New[T any]() (*Sender[T], *Receiver[T]) {
	return NewWithSize[T](defaultBufLen)
}

// NewWithSize is New with the initial queue capacity set to bufLen.
func NewWithSize[T any](bufLen int) (*Sender[T], *Receiver[T]) {
	if bufLen <= 0 {
		bufLen = defaultBufLen
	}
	s := &shared[T]{
		queue:   queue.NewWithSize[T](bufLen),
		senders: 1,
	}
	s.available = sync.NewCond(&s.mu)
	s.stats.senders.Store(1)
	rx := &Receiver[T]{
		shared: s,
		buffer: queue.NewWithSize[T](bufLen),
	}
	return newSender(s), rx
}

func newSender[T any](s *shared[T]) *Sender[T] {
	tx := &Sender[T]{shared: s}
	runtime.SetFinalizer(tx, func(tx *Sender[T]) {
		if tx.closed.CompareAndSwap(false, true) {
			warnF("xchan: sender collected without Close, closing it now")
			tx.release()
		}
	})
	return tx
}

// Send queues v and wakes the receiver. It never blocks. If the receiver
// has been closed the value is discarded.
func (tx *Sender[T]) Send(v T) {
	if tx.closed.Load() {
		panic("xchan: send on closed sender")
	}
	s := tx.shared
	s.mu.Lock()
	if s.rxClosed {
		s.stats.sent.Add(1)
		s.stats.dropped.Add(1)
		s.mu.Unlock()
		return
	}
	s.queue.Push(v)
	s.stats.sent.Add(1)
	s.mu.Unlock()
	s.available.Signal()
	runtime.KeepAlive(tx)
}

// Clone returns a new Sender on the same channel. The clone must be closed
// independently.
func (tx *Sender[T]) Clone() *Sender[T] {
	if tx.closed.Load() {
		panic("xchan: clone of closed sender")
	}
	s := tx.shared
	s.mu.Lock()
	s.senders++
	s.mu.Unlock()
	s.stats.senders.Add(1)
	return newSender(s)
}

// Close releases this handle. Calling it more than once is a no-op.
func (tx *Sender[T]) Close() {
	if !tx.closed.CompareAndSwap(false, true) {
		return
	}
	runtime.SetFinalizer(tx, nil)
	tx.release()
}

func (tx *Sender[T]) release() {
	s := tx.shared
	s.mu.Lock()
	s.senders--
	last := s.senders == 0
	s.mu.Unlock()
	s.stats.senders.Add(-1)
	if last {
		s.available.Broadcast()
	}
}

// Stats returns the live counters of the channel.
func (tx *Sender[T]) Stats() *Stats {
	return &tx.shared.stats
}

// Recv returns the next value, blocking while the channel is empty and at
// least one sender is alive. ok is false once every sender has closed and
// all queued values have been received; every later call returns false too.
func (rx *Receiver[T]) Recv() (v T, ok bool) {
	if v, ok = rx.buffer.Pop(); ok {
		rx.shared.stats.received.Add(1)
		return v, true
	}
	if rx.closed {
		return v, false
	}
	s := rx.shared
	s.mu.Lock()
	for {
		if v, ok = rx.popLocked(); ok {
			s.mu.Unlock()
			s.stats.received.Add(1)
			return v, true
		}
		if s.senders == 0 {
			rx.closed = true
			s.mu.Unlock()
			return v, false
		}
		s.stats.waits.Add(1)
		s.available.Wait()
	}
}

// TryRecv is Recv without waiting. closed reports end of stream.
func (rx *Receiver[T]) TryRecv() (v T, ok bool, closed bool) {
	if v, ok = rx.buffer.Pop(); ok {
		rx.shared.stats.received.Add(1)
		return v, true, false
	}
	if rx.closed {
		return v, false, true
	}
	s := rx.shared
	s.mu.Lock()
	v, ok = rx.popLocked()
	if !ok && s.senders == 0 {
		rx.closed = true
	}
	s.mu.Unlock()
	if ok {
		s.stats.received.Add(1)
	}
	return v, ok, rx.closed
}

// RecvContext is Recv bounded by ctx. It returns ErrClosed at end of
// stream and ctx.Err() if ctx is done before a value arrives. A value that
// is already queued is returned even if ctx is done.
func (rx *Receiver[T]) RecvContext(ctx context.Context) (v T, err error) {
	if v, ok := rx.buffer.Pop(); ok {
		rx.shared.stats.received.Add(1)
		return v, nil
	}
	if rx.closed {
		return v, ErrClosed
	}
	s := rx.shared
	// sync.Cond 没有超时, ctx 结束时持锁广播一次, 保证不丢唤醒
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.available.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	for {
		if val, ok := rx.popLocked(); ok {
			s.mu.Unlock()
			s.stats.received.Add(1)
			return val, nil
		}
		if s.senders == 0 {
			rx.closed = true
			s.mu.Unlock()
			return v, ErrClosed
		}
		if err = ctx.Err(); err != nil {
			s.mu.Unlock()
			return v, err
		}
		s.stats.waits.Add(1)
		s.available.Wait()
	}
}

// popLocked pops the head of the shared queue and moves whatever is left
// into the local buffer in one go. Must hold s.mu with rx.buffer empty.
func (rx *Receiver[T]) popLocked() (v T, ok bool) {
	s := rx.shared
	if v, ok = s.queue.Pop(); !ok {
		return v, false
	}
	if s.queue.Len() > 0 {
		rx.buffer.Swap(s.queue)
		s.stats.swaps.Add(1)
	}
	return v, true
}

// All ranges over received values until the channel is closed.
func (rx *Receiver[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			v, ok := rx.Recv()
			if !ok || !yield(v) {
				return
			}
		}
	}
}

// Close drops the receiving end. Queued values are discarded and later
// sends are discarded as well. Senders still have to be closed.
func (rx *Receiver[T]) Close() {
	s := rx.shared
	s.mu.Lock()
	if s.rxClosed {
		s.mu.Unlock()
		return
	}
	s.rxClosed = true
	n := s.queue.Len() + rx.buffer.Len()
	s.queue.Reset()
	s.mu.Unlock()
	rx.buffer.Reset()
	rx.closed = true
	s.stats.dropped.Add(uint64(n))
}

// Len is the number of queued values. Only call it from the receiving
// goroutine.
func (rx *Receiver[T]) Len() int {
	s := rx.shared
	s.mu.Lock()
	n := s.queue.Len()
	s.mu.Unlock()
	return n + rx.buffer.Len()
}

// Stats returns the live counters of the channel.
func (rx *Receiver[T]) Stats() *Stats {
	return &rx.shared.stats
}
