// Package noop provides the trivial lock facade handed out when a
// caller has already established isolation by other means (for example,
// inside a single-threaded transaction) and paying for real
// acquire/release bookkeeping would be wasted work.
package noop

import "context"

// Lock is a lock whose every operation is a no-op. Both TokenLockService
// and RangeLockService expose a NoOp() factory that returns values
// satisfying the same acquire/release shape as their real locks.
type Lock struct{}

// New returns the shared no-op lock. It carries no state, so a single
// value can be reused by every caller.
func New() Lock { return Lock{} }

// LockRead is a no-op.
func (Lock) LockRead(context.Context) error { return nil }

// UnlockRead is a no-op.
func (Lock) UnlockRead() {}

// LockWrite is a no-op.
func (Lock) LockWrite(context.Context) error { return nil }

// UnlockWrite is a no-op.
func (Lock) UnlockWrite() {}
