package queue

const initQueueLen = 16

// Queue is a growable FIFO ring. Not safe for concurrent use.
type Queue[T any] struct {
	buf     []T
	head    int
	tail    int
	count   int
	initLen int
}

func New[T any]() *Queue[T] {
	return NewWithSize[T](initQueueLen)
}

func NewWithSize[T any](size int) *Queue[T] {
	if size < 1 {
		size = 1
	}
	return &Queue[T]{
		buf:     make([]T, size),
		initLen: size,
	}
}

func (q *Queue[T]) resize(size int) {
	newBuf := make([]T, size)
	if q.count > 0 {
		if q.tail > q.head {
			copy(newBuf, q.buf[q.head:q.tail])
		} else {
			n := copy(newBuf, q.buf[q.head:])
			copy(newBuf[n:], q.buf[:q.tail])
		}
	}
	q.head = 0
	q.tail = q.count % size
	q.buf = newBuf
}

func (q *Queue[T]) Push(ele T) {
	if q.count == len(q.buf) {
		q.resize(q.count << 1)
	}
	q.buf[q.tail] = ele
	q.tail = (q.tail + 1) % len(q.buf)
	q.count++
}

// Pop removes the head. ok is false if the queue is empty.
func (q *Queue[T]) Pop() (ret T, ok bool) {
	if q.count <= 0 {
		return ret, false
	}
	var zero T
	ret = q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	// 缩容: 只剩1/4且比初始大
	if len(q.buf) > q.initLen && (q.count<<2) == len(q.buf) {
		q.resize(len(q.buf) >> 1)
	}
	return ret, true
}

// Get (from q.head, 0 as first, -1 as last)
func (q *Queue[T]) Get(i int) (ret T, ok bool) {
	if i < 0 {
		i += q.count
	}
	if i < 0 || i >= q.count {
		return ret, false
	}
	return q.buf[(q.head+i)%len(q.buf)], true
}

// Peek return the ele at the head of the queue
func (q *Queue[T]) Peek() (ret T, ok bool) {
	if q.count <= 0 {
		return ret, false
	}
	return q.buf[q.head], true
}

func (q *Queue[T]) Len() int {
	return q.count
}

// Swap exchanges the contents of q and other without copying elements.
func (q *Queue[T]) Swap(other *Queue[T]) {
	*q, *other = *other, *q
}

// Reset drops every element and shrinks back to the initial size.
func (q *Queue[T]) Reset() {
	q.buf = make([]T, q.initLen)
	q.head, q.tail, q.count = 0, 0, 0
}
