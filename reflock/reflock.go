// Package reflock implements ReferenceCountedLock: a reentrant read/write
// lock wrapped with pre/post-acquire hooks and an atomic in-use counter
// that an owning service can use to decide when a map entry is safe to
// evict. Each lock carries its own lifecycle hooks rather than feeding
// into one shared callback set for a whole map of locks.
package reflock

import (
	"context"
	"sync/atomic"
	"time"

	"lockcore/internal/reentrant"
)

// Hooks are the lifecycle callbacks a Lock invokes around each
// acquire/release. Any of them may be nil. They run with no lock state
// held, so they may safely call back into the owning service.
type Hooks struct {
	BeforeReadLock   func()
	AfterReadLock    func()
	AfterReadUnlock  func()
	BeforeWriteLock  func()
	AfterWriteLock   func()
	AfterWriteUnlock func()
}

// Lock is a reentrant read/write lock with an atomic reference count.
// The count changes only through Ref and Unref; an owning service that
// uses it calls Ref on every request for a read or write view, before
// the acquire happens, and Unref after the corresponding release.
// TokenLockService keeps its own per-entry count instead and leaves this
// one at zero. A Lock whose count reaches zero with no
// holders and no queued waiters is eligible for removal from the
// service's map.
type Lock struct {
	rw    *reentrant.RW
	refs  int32
	hooks Hooks
}

// New returns a Lock ready for use, invoking hooks (which may be the
// zero value) around every acquire and release.
func New(hooks Hooks) *Lock {
	return &Lock{rw: reentrant.New(), hooks: hooks}
}

// Ref increments the in-use counter and returns the new value. Calling
// it before exposing the lock to a caller means that by the time the
// caller can see the lock, refs is already nonzero and the lock cannot
// be evicted out from under it.
func (l *Lock) Ref() int32 {
	return atomic.AddInt32(&l.refs, 1)
}

// Unref decrements the in-use counter and returns the new value. The
// caller is responsible for checking Idle() and evicting the map entry
// when it reaches zero.
func (l *Lock) Unref() int32 {
	return atomic.AddInt32(&l.refs, -1)
}

// Refs reports the current in-use counter value.
func (l *Lock) Refs() int32 {
	return atomic.LoadInt32(&l.refs)
}

// Idle reports whether the lock has zero refs, no current holders, and
// no queued waiters, i.e. whether it is safe to remove from a map.
func (l *Lock) Idle() bool {
	return l.Refs() == 0 && l.rw.Idle()
}

// LockRead acquires the read view, running BeforeReadLock before the
// acquire and AfterReadLock after.
func (l *Lock) LockRead(ctx context.Context) error {
	if l.hooks.BeforeReadLock != nil {
		l.hooks.BeforeReadLock()
	}
	if err := l.rw.LockRead(ctx); err != nil {
		return err
	}
	if l.hooks.AfterReadLock != nil {
		l.hooks.AfterReadLock()
	}
	return nil
}

// TryLockRead attempts the read view within timeout.
func (l *Lock) TryLockRead(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return l.LockRead(ctx) == nil
}

// UnlockRead releases the read view and runs AfterReadUnlock.
func (l *Lock) UnlockRead() {
	l.rw.UnlockRead()
	if l.hooks.AfterReadUnlock != nil {
		l.hooks.AfterReadUnlock()
	}
}

// LockWrite acquires the write view, running BeforeWriteLock before the
// acquire and AfterWriteLock after.
func (l *Lock) LockWrite(ctx context.Context) error {
	if l.hooks.BeforeWriteLock != nil {
		l.hooks.BeforeWriteLock()
	}
	if err := l.rw.LockWrite(ctx); err != nil {
		return err
	}
	if l.hooks.AfterWriteLock != nil {
		l.hooks.AfterWriteLock()
	}
	return nil
}

// TryLockWrite attempts the write view within timeout.
func (l *Lock) TryLockWrite(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return l.LockWrite(ctx) == nil
}

// UnlockWrite releases the write view and runs AfterWriteUnlock.
func (l *Lock) UnlockWrite() {
	l.rw.UnlockWrite()
	if l.hooks.AfterWriteUnlock != nil {
		l.hooks.AfterWriteUnlock()
	}
}
