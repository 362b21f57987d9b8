package channel

import "sync/atomic"

// Stats holds the counters of one channel. All fields are updated
// atomically and may be read from any goroutine.
type Stats struct {
	sent     atomic.Uint64
	received atomic.Uint64
	dropped  atomic.Uint64 // Receiver 关闭后丢弃的数量
	swaps    atomic.Uint64 // 整队列搬到本地缓冲的次数
	waits    atomic.Uint64 // 消费者进入 cond.Wait 的次数
	senders  atomic.Int64
}

type StatsSnapshot struct {
	Sent     uint64
	Received uint64
	Dropped  uint64
	Swaps    uint64
	Waits    uint64
	Senders  int64
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Sent:     s.sent.Load(),
		Received: s.received.Load(),
		Dropped:  s.dropped.Load(),
		Swaps:    s.swaps.Load(),
		Waits:    s.waits.Load(),
		Senders:  s.senders.Load(),
	}
}

// Pending is the number of values sent but not yet received or dropped.
func (ss StatsSnapshot) Pending() uint64 {
	done := ss.Received + ss.Dropped
	if done >= ss.Sent {
		return 0
	}
	return ss.Sent - done
}
