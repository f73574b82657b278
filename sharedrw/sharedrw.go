// Package sharedrw implements SharedReadWriteLock: a lock that permits
// N concurrent readers OR N concurrent writers, but never a mix of the
// two. TokenLockService hands this out for arity-2-or-greater tokens,
// where multiple writers touching disjoint components of the same
// logical record are allowed to proceed together.
//
// The two sides are built on sync.RWMutex, composing a two-state lock
// out of primitive Go sync types rather than hand-rolling a monitor.
package sharedrw

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"lockcore/internal/gid"
)

// Lock is a shared read/write lock: readers.readCount > 0 and
// writers.readCount > 0 are never simultaneously true. Internally this
// holds two sync.RWMutex values, readers and writers, each used only in
// shared mode (RLock/RUnlock); their exclusive mode (Lock/Unlock) is
// used only as a momentary barrier while a new side tries to enter.
type Lock struct {
	readers sync.RWMutex
	writers sync.RWMutex

	mu          sync.Mutex
	readerDepth map[int64]int
	writerDepth map[int64]int
	waiters     int32
}

// New returns a ready-to-use SharedReadWriteLock.
func New() *Lock {
	return &Lock{
		readerDepth: make(map[int64]int),
		writerDepth: make(map[int64]int),
	}
}

// ReaderCount reports the number of distinct goroutines holding the
// read side.
func (l *Lock) ReaderCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.readerDepth)
}

// WriterCount reports the number of distinct goroutines holding the
// write side.
func (l *Lock) WriterCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.writerDepth)
}

// QueueLength reports how many goroutines are currently spinning in the
// barrier dance trying to enter either side.
func (l *Lock) QueueLength() int {
	return int(atomic.LoadInt32(&l.waiters))
}

// Idle reports whether the lock has no holders on either side and
// nothing queued.
func (l *Lock) Idle() bool {
	l.mu.Lock()
	empty := len(l.readerDepth) == 0 && len(l.writerDepth) == 0
	l.mu.Unlock()
	return empty && l.QueueLength() == 0
}

// LockRead acquires the read side. A goroutine that already holds the
// write side is admitted directly, without the barrier dance, per the
// reentrant "a writer may also read" rule.
func (l *Lock) LockRead(ctx context.Context) error {
	g := gid.Current()

	l.mu.Lock()
	if l.writerDepth[g] > 0 {
		l.readerDepth[g]++
		l.mu.Unlock()
		return nil
	}
	if l.readerDepth[g] > 0 {
		l.readerDepth[g]++
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	if err := l.enterShared(ctx, &l.writers, &l.readers); err != nil {
		return err
	}

	l.mu.Lock()
	l.readerDepth[g]++
	l.mu.Unlock()
	return nil
}

// TryLockRead attempts to acquire the read side within timeout.
func (l *Lock) TryLockRead(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return l.LockRead(ctx) == nil
}

// UnlockRead releases one level of read reentrancy.
func (l *Lock) UnlockRead() {
	g := gid.Current()

	l.mu.Lock()
	if l.writerDepth[g] > 0 {
		if l.readerDepth[g] == 0 {
			l.mu.Unlock()
			panic("sharedrw: UnlockRead called without matching LockRead while holding write side")
		}
		l.readerDepth[g]--
		if l.readerDepth[g] == 0 {
			delete(l.readerDepth, g)
		}
		l.mu.Unlock()
		return
	}
	d, ok := l.readerDepth[g]
	if !ok || d == 0 {
		l.mu.Unlock()
		panic("sharedrw: UnlockRead called without a matching LockRead")
	}
	if d == 1 {
		delete(l.readerDepth, g)
		l.mu.Unlock()
		l.readers.RUnlock()
		return
	}
	l.readerDepth[g] = d - 1
	l.mu.Unlock()
}

// LockWrite acquires the write side, symmetric to LockRead.
func (l *Lock) LockWrite(ctx context.Context) error {
	g := gid.Current()

	l.mu.Lock()
	if l.writerDepth[g] > 0 {
		l.writerDepth[g]++
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	if err := l.enterShared(ctx, &l.readers, &l.writers); err != nil {
		return err
	}

	l.mu.Lock()
	l.writerDepth[g] = 1
	l.mu.Unlock()
	return nil
}

// TryLockWrite attempts to acquire the write side within timeout.
func (l *Lock) TryLockWrite(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return l.LockWrite(ctx) == nil
}

// UnlockWrite releases one level of write reentrancy.
func (l *Lock) UnlockWrite() {
	g := gid.Current()

	l.mu.Lock()
	d, ok := l.writerDepth[g]
	if !ok || d == 0 {
		l.mu.Unlock()
		panic("sharedrw: UnlockWrite called without a matching LockWrite")
	}
	if d == 1 {
		delete(l.writerDepth, g)
		l.mu.Unlock()
		l.writers.RUnlock()
		return
	}
	l.writerDepth[g] = d - 1
	l.mu.Unlock()
}

// enterShared runs the barrier dance to acquire the shared (RLock) view
// of target, using barrier as a momentary exclusive gate: take barrier
// exclusively, try target shared, release barrier. If the shared try
// fails (the other side is currently occupied), yield and retry. This
// is a spin loop, not a park/wake, because the expected hold is short
// and the blocking condition changes often.
func (l *Lock) enterShared(ctx context.Context, barrier, target *sync.RWMutex) error {
	atomic.AddInt32(&l.waiters, 1)
	defer atomic.AddInt32(&l.waiters, -1)

	for {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		barrier.Lock()
		if target.TryRLock() {
			barrier.Unlock()
			return nil
		}
		barrier.Unlock()
		runtime.Gosched()
	}
}
