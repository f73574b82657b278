// Package reentrant implements the condition-variable-based lock core
// shared by ReferenceCountedLock (package reflock) and the TokenLockService
// entry map. Go's sync.RWMutex is neither reentrant nor goroutine-aware,
// so this hand-rolls the wait/notify loop the way dijkstracula/go-ilock's
// Mutex does (a sync.Mutex guarding state plus a sync.Cond as the
// blocking primitive), generalized here for full per-goroutine
// reentrancy instead of ilock's fixed four-state intention-lock states.
package reentrant

import (
	"context"
	"sync"
	"time"

	"lockcore/internal/gid"
)

// RW is a reentrant, goroutine-aware read/write lock. Reentrancy is full
// and per-goroutine: a goroutine that already holds the write view may
// also acquire the read view. Upgrading from a read-only hold to the
// write view is not supported, matching the usual contract of reentrant
// read/write locks.
type RW struct {
	mu   sync.Mutex
	cond *sync.Cond

	writerGID   int64
	writerDepth int
	readerDepth map[int64]int
	waiters     int
}

// New returns a ready-to-use reentrant read/write lock.
func New() *RW {
	l := &RW{readerDepth: make(map[int64]int)}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// ReaderCount reports the number of distinct goroutines currently
// holding the read view (not counting reentrant depth).
func (l *RW) ReaderCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.readerDepth)
}

// HasWriter reports whether some goroutine currently holds the write view.
func (l *RW) HasWriter() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writerGID != 0
}

// QueueLength reports how many goroutines are currently blocked waiting
// to acquire either view. TokenLockService uses this, together with
// ReaderCount/HasWriter, to decide whether a lock's map entry has no
// holders and no queued waiters and is eligible for removal.
func (l *RW) QueueLength() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.waiters
}

// Idle reports whether the lock has no holders and no queued waiters.
func (l *RW) Idle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writerGID == 0 && len(l.readerDepth) == 0 && l.waiters == 0
}

// wait blocks on the condition variable until woken, honoring ctx
// cancellation. l.mu must be held on entry and is held again on return.
// sync.Cond has no native context support, so a short-lived watcher
// goroutine is used to translate ctx cancellation into a Broadcast.
func (l *RW) wait(ctx context.Context) error {
	if ctx == nil {
		l.waiters++
		l.cond.Wait()
		l.waiters--
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan struct{})
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.cond.Broadcast()
			l.mu.Unlock()
		case <-stop:
		}
		close(done)
	}()
	l.waiters++
	l.cond.Wait()
	l.waiters--
	close(stop)
	<-done
	return ctx.Err()
}

// LockRead acquires the read view, blocking until it is free of a
// conflicting writer or ctx is done.
func (l *RW) LockRead(ctx context.Context) error {
	g := gid.Current()
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writerGID == g {
		l.readerDepth[g]++
		return nil
	}
	if l.readerDepth[g] > 0 {
		l.readerDepth[g]++
		return nil
	}
	for l.writerGID != 0 {
		if err := l.wait(ctx); err != nil {
			return err
		}
	}
	l.readerDepth[g]++
	return nil
}

// TryLockRead attempts to acquire the read view without blocking beyond
// timeout. It never leaves partial state on failure.
func (l *RW) TryLockRead(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return l.LockRead(ctx) == nil
}

// UnlockRead releases one level of read reentrancy. Panics if the
// calling goroutine does not hold the read view, the same way Go's own
// sync.RWMutex panics on an unmatched Unlock.
func (l *RW) UnlockRead() {
	g := gid.Current()
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writerGID == g {
		if l.readerDepth[g] == 0 {
			panic("reentrant: UnlockRead called without matching LockRead while holding write view")
		}
		l.readerDepth[g]--
		if l.readerDepth[g] == 0 {
			delete(l.readerDepth, g)
		}
		return
	}
	d, ok := l.readerDepth[g]
	if !ok || d == 0 {
		panic("reentrant: UnlockRead called without a matching LockRead")
	}
	if d == 1 {
		delete(l.readerDepth, g)
	} else {
		l.readerDepth[g] = d - 1
	}
	if len(l.readerDepth) == 0 {
		l.cond.Broadcast()
	}
}

// LockWrite acquires the write view, blocking until no other goroutine
// holds the read or write view, or ctx is done.
func (l *RW) LockWrite(ctx context.Context) error {
	g := gid.Current()
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writerGID == g {
		l.writerDepth++
		return nil
	}
	for l.writerGID != 0 || l.otherReaders(g) {
		if err := l.wait(ctx); err != nil {
			return err
		}
	}
	l.writerGID = g
	l.writerDepth = 1
	return nil
}

// otherReaders reports whether any goroutine other than g currently
// holds the read view. l.mu must be held.
func (l *RW) otherReaders(g int64) bool {
	for holder := range l.readerDepth {
		if holder != g {
			return true
		}
	}
	return false
}

// TryLockWrite attempts to acquire the write view without blocking
// beyond timeout.
func (l *RW) TryLockWrite(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return l.LockWrite(ctx) == nil
}

// UnlockWrite releases one level of write reentrancy.
func (l *RW) UnlockWrite() {
	g := gid.Current()
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writerGID != g {
		panic("reentrant: UnlockWrite called without a matching LockWrite")
	}
	l.writerDepth--
	if l.writerDepth == 0 {
		l.writerGID = 0
		l.cond.Broadcast()
	}
}
