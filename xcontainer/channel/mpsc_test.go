package channel

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recvResult struct {
	v  int
	ok bool
}

// recvAsync runs one Recv on its own goroutine.
func recvAsync(rx *Receiver[int]) <-chan recvResult {
	done := make(chan recvResult, 1)
	go func() {
		v, ok := rx.Recv()
		done <- recvResult{v: v, ok: ok}
	}()
	return done
}

func assertBlocked(t *testing.T, done <-chan recvResult) {
	t.Helper()
	select {
	case r := <-done:
		t.Fatalf("recv should still be blocked, got %+v", r)
	case <-time.After(30 * time.Millisecond):
	}
}

func waitResult(t *testing.T, done <-chan recvResult) recvResult {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("recv did not wake up")
		return recvResult{}
	}
}

func TestPingPong(t *testing.T) {
	tx, rx := New[int]()
	defer tx.Close()

	tx.Send(42)
	v, ok := rx.Recv()
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestClosedTx(t *testing.T) {
	tx, rx := New[struct{}]()
	tx.Close()

	_, ok := rx.Recv()
	assert.False(t, ok)
	// 关闭是终态
	for i := 0; i < 3; i++ {
		_, ok = rx.Recv()
		assert.False(t, ok)
	}
}

func TestClosedRx(t *testing.T) {
	tx, rx := New[int]()
	rx.Close()

	assert.NotPanics(t, func() { tx.Send(42) })
	tx.Close()

	snap := rx.Stats().Snapshot()
	assert.Equal(t, uint64(1), snap.Sent)
	assert.Equal(t, uint64(1), snap.Dropped)
	assert.Equal(t, uint64(0), snap.Pending())

	_, ok := rx.Recv()
	assert.False(t, ok)
}

func TestCloseRxDiscardsQueued(t *testing.T) {
	tx, rx := New[int]()
	defer tx.Close()
	for i := 0; i < 10; i++ {
		tx.Send(i)
	}
	// 先读一个, 让剩下的进本地缓冲
	v, ok := rx.Recv()
	require.True(t, ok)
	require.Equal(t, 0, v)

	rx.Close()
	rx.Close()
	assert.Equal(t, 0, rx.Len())
	assert.Equal(t, uint64(9), rx.Stats().Snapshot().Dropped)
}

func TestFIFOSingleProducer(t *testing.T) {
	tx, rx := New[int]()
	const n = 1000
	for i := 0; i < n; i++ {
		tx.Send(i)
	}
	tx.Close()

	for i := 0; i < n; i++ {
		v, ok := rx.Recv()
		require.True(t, ok)
		require.Equal(t, i, v, "FIFO violated")
	}
	_, ok := rx.Recv()
	assert.False(t, ok)
}

func TestDrainBeforeClose(t *testing.T) {
	tx, rx := New[string]()
	tx.Send("a")
	tx.Send("b")
	tx.Close()

	var got []string
	for v := range rx.All() {
		got = append(got, v)
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestBlockedRecvWakesOnSend(t *testing.T) {
	tx, rx := New[int]()
	defer tx.Close()

	done := recvAsync(rx)
	assertBlocked(t, done)

	tx.Send(7)
	r := waitResult(t, done)
	assert.True(t, r.ok)
	assert.Equal(t, 7, r.v)
}

func TestMultiSenderAccounting(t *testing.T) {
	const clones = 5
	tx, rx := New[int]()
	senders := []*Sender[int]{tx}
	for i := 0; i < clones; i++ {
		senders = append(senders, tx.Clone())
	}
	assert.Equal(t, int64(clones+1), rx.Stats().Snapshot().Senders)

	done := recvAsync(rx)
	for _, s := range senders[:clones] {
		s.Close()
		assertBlocked(t, done)
	}

	senders[clones].Close()
	r := waitResult(t, done)
	assert.False(t, r.ok)
	assert.Equal(t, int64(0), rx.Stats().Snapshot().Senders)
}

func TestSenderCloseIdempotent(t *testing.T) {
	tx, rx := New[int]()
	defer tx.Close()

	clone := tx.Clone()
	clone.Close()
	clone.Close()

	_, ok, closed := rx.TryRecv()
	assert.False(t, ok)
	assert.False(t, closed, "double close of one handle must not drop the other")
}

func TestClosedSenderPanics(t *testing.T) {
	tx, _ := New[int]()
	tx.Close()

	assert.PanicsWithValue(t, "xchan: send on closed sender", func() { tx.Send(1) })
	assert.PanicsWithValue(t, "xchan: clone of closed sender", func() { tx.Clone() })
}

func TestBulkDrain(t *testing.T) {
	const (
		producers = 8
		perProd   = 500
	)
	tx, rx := New[[2]int]()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int, s *Sender[[2]int]) {
			defer wg.Done()
			defer s.Close()
			for i := 0; i < perProd; i++ {
				s.Send([2]int{p, i})
			}
		}(p, tx.Clone())
	}
	wg.Wait()

	next := make([]int, producers)
	for k := 0; k < producers*perProd; k++ {
		v, ok := rx.Recv()
		require.True(t, ok)
		require.Equal(t, next[v[0]], v[1], "producer %d order violated", v[0])
		next[v[0]]++
	}
	for p := range next {
		assert.Equal(t, perProd, next[p])
	}

	snap := rx.Stats().Snapshot()
	// 第一次 Recv 就把整个队列搬到本地
	assert.Equal(t, uint64(1), snap.Swaps)
	assert.Equal(t, 0, rx.Len())

	tx.Close()
	_, ok := rx.Recv()
	assert.False(t, ok)
}

func TestNoLossNoDuplicate(t *testing.T) {
	const (
		producers = 16
		perProd   = 2000
	)
	tx, rx := New[int]()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int, s *Sender[int]) {
			defer wg.Done()
			defer s.Close()
			for i := 0; i < perProd; i++ {
				s.Send(p*perProd + i)
				if i%97 == 0 {
					runtime.Gosched()
				}
			}
		}(p, tx.Clone())
	}
	tx.Close()

	seen := make(map[int]int, producers*perProd)
	for v := range rx.All() {
		seen[v]++
	}
	wg.Wait()

	require.Len(t, seen, producers*perProd)
	for v, n := range seen {
		require.Equal(t, 1, n, "value %d delivered %d times", v, n)
	}
	snap := rx.Stats().Snapshot()
	assert.Equal(t, uint64(producers*perProd), snap.Sent)
	assert.Equal(t, snap.Sent, snap.Received)
	assert.Equal(t, uint64(0), snap.Pending())
}

func TestTryRecv(t *testing.T) {
	tx, rx := New[int]()

	_, ok, closed := rx.TryRecv()
	assert.False(t, ok)
	assert.False(t, closed)

	tx.Send(1)
	tx.Send(2)
	v, ok, _ := rx.TryRecv()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	tx.Close()
	// 已缓冲的数据照样读出
	v, ok, closed = rx.TryRecv()
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.False(t, closed)

	_, ok, closed = rx.TryRecv()
	assert.False(t, ok)
	assert.True(t, closed)
}

func TestRecvContext(t *testing.T) {
	tx, rx := New[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := rx.RecvContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	tx.Send(3)
	v, err := rx.RecvContext(ctx)
	require.NoError(t, err, "queued value wins over a done ctx")
	assert.Equal(t, 3, v)

	tx.Close()
	_, err = rx.RecvContext(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = rx.RecvContext(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRecvContextCancelWhileWaiting(t *testing.T) {
	tx, rx := New[int]()
	defer tx.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := rx.RecvContext(ctx)
		errCh <- err
	}()

	select {
	case err := <-errCh:
		t.Fatalf("RecvContext returned early: %v", err)
	case <-time.After(30 * time.Millisecond):
	}
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("RecvContext ignored cancel")
	}
}

func TestAllBreakKeepsRemaining(t *testing.T) {
	tx, rx := New[int]()
	for i := 0; i < 5; i++ {
		tx.Send(i)
	}
	tx.Close()

	for v := range rx.All() {
		if v == 1 {
			break
		}
	}
	var rest []int
	for v := range rx.All() {
		rest = append(rest, v)
	}
	assert.Equal(t, []int{2, 3, 4}, rest)
}

func TestLen(t *testing.T) {
	tx, rx := NewWithSize[int](2)
	defer tx.Close()
	for i := 0; i < 10; i++ {
		tx.Send(i)
	}
	assert.Equal(t, 10, rx.Len())
	_, _ = rx.Recv()
	assert.Equal(t, 9, rx.Len())
	assert.Equal(t, uint64(9), rx.Stats().Snapshot().Pending())
}

func TestLeakedSenderClosedByFinalizer(t *testing.T) {
	var warned sync.WaitGroup
	warned.Add(1)
	var once sync.Once
	SetWarnLogger(func(format string, v ...interface{}) {
		once.Do(warned.Done)
	})
	defer SetWarnLogger(nil)

	tx, rx := New[int]()
	func() {
		_ = tx.Clone()
	}()
	tx.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		runtime.GC()
		if _, _, closed := rx.TryRecv(); closed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("leaked sender was never released")
		}
		time.Sleep(10 * time.Millisecond)
	}
	warned.Wait()
}
