package xlog

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/qixi7/xchan/xcontainer/channel"
	"gopkg.in/natefinch/lumberjack.v2"
)

var errLoggerClosed = errors.New("xlog: logger closed")

type logEntry struct {
	p    []byte
	done chan struct{} // 非空表示 Sync 屏障
}

// Logger is an async io.WriteCloser. Callers on any goroutine enqueue
// into an MPSC channel and a single goroutine does the real write.
type Logger struct {
	mu       sync.RWMutex // 保护 tx 与 Close 的并发
	tx       *channel.Sender[logEntry]
	closed   bool
	wg       sync.WaitGroup
	w        io.WriteCloser
	logCount atomic.Uint64
	logBytes atomic.Uint64
	writeErr atomic.Uint64
}

func (l *Logger) Write(p []byte) (n int, err error) {
	slice := make([]byte, len(p))
	copy(slice, p)
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return 0, errLoggerClosed
	}
	l.tx.Send(logEntry{p: slice})
	return len(slice), nil
}

// Sync blocks until everything written before it reached the underlying
// writer.
func (l *Logger) Sync() error {
	done := make(chan struct{})
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return nil
	}
	l.tx.Send(logEntry{done: done})
	l.mu.RUnlock()
	<-done
	return nil
}

// Close flushes the queue and closes the underlying writer.
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.tx.Close()
	l.mu.Unlock()
	l.wg.Wait()
	return nil
}

func (l *Logger) LogCount() uint64 {
	return l.logCount.Load()
}

func (l *Logger) LogBytes() uint64 {
	return l.logBytes.Load()
}

// WriteErrCount is the number of failed writes to the underlying writer.
func (l *Logger) WriteErrCount() uint64 {
	return l.writeErr.Load()
}

func (l *Logger) run(rx *channel.Receiver[logEntry]) {
	defer l.wg.Done()
	for e := range rx.All() {
		if e.done != nil {
			close(e.done)
			continue
		}
		l.logCount.Add(1)
		l.logBytes.Add(uint64(len(e.p)))
		if _, err := l.w.Write(e.p); err != nil {
			l.writeErr.Add(1)
		}
	}
	// 所有 Sender 已关闭, 队列已读空
	_ = l.w.Close()
}

// NewLogger starts the writer goroutine in front of w.
func NewLogger(w io.WriteCloser) *Logger {
	tx, rx := channel.NewWithSize[logEntry](1024)
	l := &Logger{
		tx: tx,
		w:  w,
	}
	l.wg.Add(1)
	go l.run(rx)
	return l
}

// NewFileLogger is NewLogger over a size-rotated file.
func NewFileLogger(fname string, msize, mage, mbackups int) *Logger {
	return NewLogger(&lumberjack.Logger{
		Filename:   fname,
		MaxSize:    msize,
		MaxAge:     mage,
		MaxBackups: mbackups,
	})
}
