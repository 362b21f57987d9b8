package channel

import (
	"sync"

	"github.com/qixi7/xchan/xcontainer/queue"
)

// mpmc channel, 由生产方显式 Close

type SliceChan[T any] struct {
	queue    *queue.Queue[T]
	mu       sync.Mutex
	nonEmpty *sync.Cond
	closed   bool
}

func NewSliceChan[T any](bufLen int) *SliceChan[T] {
	s := &SliceChan[T]{}
	s.Init(bufLen)
	return s
}

func (s *SliceChan[T]) Init(bufLen int) {
	if bufLen <= 0 {
		bufLen = defaultBufLen
	}
	s.queue = queue.NewWithSize[T](bufLen)
	s.nonEmpty = sync.NewCond(&s.mu)
}

// Write returns false if the chan is closed.
func (s *SliceChan[T]) Write(ele T) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue.Push(ele)
	s.mu.Unlock()
	s.nonEmpty.Signal()
	return true
}

func (s *SliceChan[T]) TryRead() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Pop()
}

// Read blocks until an element is available. After Close the remaining
// elements are still returned, then ok is false.
func (s *SliceChan[T]) Read() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.queue.Len() < 1 && !s.closed {
		s.nonEmpty.Wait()
	}
	return s.queue.Pop()
}

func (s *SliceChan[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

func (s *SliceChan[T]) Close() {
	s.mu.Lock()
	s.closed = true
	s.nonEmpty.Broadcast()
	s.mu.Unlock()
}
