// Package tokenlock implements TokenLockService: a concurrent map from
// Token to a reentrant read/write lock, handing out read and write
// handles and reclaiming map entries once nothing references them.
// Arity-1 tokens (single records) get a plain reentrant read/write lock
// (package reflock); arity-2-or-more tokens (fields within a shared
// record) get a lock that additionally allows multiple concurrent
// writers (package sharedrw).
//
// The get-or-create race is resolved with sync.Map.LoadOrStore, and the
// eviction race is resolved with sync.Map.CompareAndDelete matching the
// exact entry pointer, so a concurrently-recreated successor for the
// same token is never evicted by mistake.
package tokenlock

import (
	"context"
	"sync"
	"sync/atomic"

	"lockcore/internal/tracer"
	"lockcore/noop"
	"lockcore/reflock"
	"lockcore/sharedrw"
	"lockcore/token"
)

// LockHandle is the view returned by GetReadLock/GetWriteLock: acquire
// with Lock, release with Unlock. A handle must be used for exactly one
// acquire/release cycle.
type LockHandle interface {
	Lock(ctx context.Context) error
	Unlock()
}

// Service is implemented by both the real TokenLockService and its
// no-op counterpart, so callers that already know their isolation mode
// can be written generically.
type Service interface {
	GetReadLock(t token.Token) LockHandle
	GetWriteLock(t token.Token) LockHandle
}

type lockView interface {
	LockRead(ctx context.Context) error
	UnlockRead()
	LockWrite(ctx context.Context) error
	UnlockWrite()
	Idle() bool
}

type entry struct {
	lock lockView
	refs int32
}

func newEntry(t token.Token) *entry {
	if t.Cardinality() >= 2 {
		return &entry{lock: sharedEntryLock{sharedrw.New()}}
	}
	return &entry{lock: reflock.New(reflock.Hooks{})}
}

// sharedEntryLock adapts *sharedrw.Lock to the lockView interface, which
// needs an Idle() that does not also fold in a refs field sharedrw has
// no concept of (refs lives on tokenlock's own entry, uniformly across
// both lock kinds).
type sharedEntryLock struct {
	*sharedrw.Lock
}

// TokenLockService is the concurrent Token -> lock map.
type TokenLockService struct {
	entries sync.Map // token.Token -> *entry
	count   int64
	tracer  *tracer.Tracer
}

// New returns an empty TokenLockService with tracing disabled.
func New() *TokenLockService {
	return &TokenLockService{}
}

// NewWithTracer returns a TokenLockService that reports every acquire
// and release to tr, for the diagnostics server's stale-lock sweep.
func NewWithTracer(tr *tracer.Tracer) *TokenLockService {
	return &TokenLockService{tracer: tr}
}

// Stats is a point-in-time snapshot of service-wide counters, surfaced
// over the diagnostics HTTP server.
type Stats struct {
	EntryCount int
}

// Stats returns a snapshot of the current entry count.
func (s *TokenLockService) Stats() Stats {
	return Stats{EntryCount: int(atomic.LoadInt64(&s.count))}
}

func (s *TokenLockService) getOrCreate(t token.Token) *entry {
	if v, ok := s.entries.Load(t); ok {
		return v.(*entry)
	}
	e := newEntry(t)
	actual, loaded := s.entries.LoadOrStore(t, e)
	if !loaded {
		atomic.AddInt64(&s.count, 1)
	}
	return actual.(*entry)
}

// handle implements LockHandle for a real TokenLockService entry.
type handle struct {
	svc   *TokenLockService
	token token.Token
	e     *entry
	write bool
}

func (h *handle) mode() string {
	if h.write {
		return "write"
	}
	return "read"
}

func (h *handle) Lock(ctx context.Context) error {
	var err error
	if h.write {
		err = h.e.lock.LockWrite(ctx)
	} else {
		err = h.e.lock.LockRead(ctx)
	}
	if err == nil {
		h.svc.tracer.RecordAcquire(h.token.String(), h.mode())
	}
	return err
}

func (h *handle) Unlock() {
	h.svc.tracer.RecordRelease(h.token.String(), h.mode())
	if h.write {
		h.e.lock.UnlockWrite()
	} else {
		h.e.lock.UnlockRead()
	}
	h.svc.release(h.token, h.e)
}

// release decrements the entry's refcount and, if it has no refs, no
// holders, and no queued waiters, removes it from the map. The
// CompareAndDelete matches the exact entry instance so a successor
// entry created by a racing getOrCreate for the same token is never
// mistakenly evicted.
func (s *TokenLockService) release(t token.Token, e *entry) {
	if atomic.AddInt32(&e.refs, -1) == 0 && e.lock.Idle() {
		if s.entries.CompareAndDelete(t, e) {
			atomic.AddInt64(&s.count, -1)
		}
	}
}

// GetReadLock returns a read handle for t. Concurrent callers racing on
// the same token observe the same underlying lock instance as long as
// it stays live; refs is incremented before the handle is returned, so
// the lock cannot be evicted out from under a caller that acquires
// immediately as required.
func (s *TokenLockService) GetReadLock(t token.Token) LockHandle {
	e := s.getOrCreate(t)
	atomic.AddInt32(&e.refs, 1)
	return &handle{svc: s, token: t, e: e, write: false}
}

// GetWriteLock returns a write handle for t, symmetric to GetReadLock.
func (s *TokenLockService) GetWriteLock(t token.Token) LockHandle {
	e := s.getOrCreate(t)
	atomic.AddInt32(&e.refs, 1)
	return &handle{svc: s, token: t, e: e, write: true}
}

type noOpHandle struct{ lock noop.Lock }

func (h noOpHandle) Lock(ctx context.Context) error { return h.lock.LockRead(ctx) }
func (h noOpHandle) Unlock()                        { h.lock.UnlockRead() }

type noOpService struct{}

func (noOpService) GetReadLock(token.Token) LockHandle  { return noOpHandle{} }
func (noOpService) GetWriteLock(token.Token) LockHandle { return noOpHandle{} }

// NoOp returns a Service whose acquire/release are identity operations,
// for callers that already have isolation by other means (for example,
// inside a single-threaded transaction).
func NoOp() Service { return noOpService{} }
