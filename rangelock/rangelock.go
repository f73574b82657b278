// Package rangelock implements RangeLockService: decides whether a
// pending read or write over a RangeToken is blocked by the reads and
// writes currently live for that key, and spins until it is not.
//
// The spin-yield acquisition loop is deliberate, not an oversight: the
// blocking set changes frequently and the expected wait is short, so
// runtime.Gosched() between checks outperforms parking a goroutine and
// waking it on every registration change.
package rangelock

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"lockcore/clock"
	"lockcore/internal/gid"
	"lockcore/internal/rangemap"
	"lockcore/internal/tracer"
	"lockcore/token"
	"lockcore/value"
)

// ErrTimeout is returned by the Try* variants when the deadline passes
// before the requested lock becomes available.
var ErrTimeout = errors.New("rangelock: timed out waiting for lock")

// Releasable is satisfied by both a live Handle and the no-op service's
// handle, so callers that already know their isolation mode can be
// written generically.
type Releasable interface {
	Release()
}

// Service is implemented by both RangeLockService and its no-op
// counterpart.
type Service interface {
	GetReadLock(ctx context.Context, key []byte, op token.Operator, values ...value.Value) (Releasable, error)
	GetWriteLock(ctx context.Context, key []byte, v value.Value) (Releasable, error)
}

type writeEntry struct {
	value value.Value
	gid   int64
	refs  int
}

type readEntry struct {
	refs int
}

// keyState holds the live reads/writes for a single key, indexed through
// internal/rangemap so a blocking check prunes by sorted interval
// endpoints instead of sweeping every live reservation on the key.
type keyState struct {
	mu             sync.Mutex // guards refs bookkeeping on entries already in reads/writes
	key            []byte
	reads          *rangemap.Map[*readEntry]
	writes         *rangemap.Map[*writeEntry]
	pendingWriters int32
}

func newKeyState(key []byte, shards int) *keyState {
	return &keyState{
		key:    key,
		reads:  rangemap.NewWithShards[*readEntry](shards),
		writes: rangemap.NewWithShards[*writeEntry](shards),
	}
}

// readCount and writeCount are used by RangeLockService.Stats.
func (ks *keyState) readCount() int {
	return ks.reads.Count(ks.key)
}

func (ks *keyState) writeCount() int {
	return ks.writes.Count(ks.key)
}

// blocked implements isRangeBlocked: the four-case predicate deciding
// whether a pending read or write must wait.
func (ks *keyState) blocked(isWrite bool, rt token.RangeToken, callerGID int64) bool {
	if isWrite {
		v := rt.Values()[0]
		return ks.reads.Contains(rt.Key(), token.Equals, v)
	}

	switch rt.Operator() {
	case token.Equals:
		v := rt.Values()[0]
		return ks.writes.Contains(rt.Key(), token.Equals, v)
	case token.NotEquals:
		live := ks.writes.Filter(rt.Key())
		if len(live) >= 2 {
			return true
		}
		if len(live) == 1 {
			v := rt.Values()[0]
			for _, w := range live {
				if !value.Equal(w.value, v) {
					return true
				}
			}
		}
		return false
	default:
		return ks.writes.ContainsMatching(rt.Key(), rt.Operator(), rt.Values(), func(w *writeEntry) bool {
			return w.gid != callerGID
		})
	}
}

func (ks *keyState) register(rt token.RangeToken, isWrite bool, g int64) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if isWrite {
		e, ok := ks.writes.Load(rt)
		if !ok {
			e = &writeEntry{value: rt.Values()[0], gid: g}
			ks.writes.Store(rt, e)
		}
		e.refs++
		return
	}
	e, ok := ks.reads.Load(rt)
	if !ok {
		e = &readEntry{}
		ks.reads.Store(rt, e)
	}
	e.refs++
}

func (ks *keyState) unregister(rt token.RangeToken, isWrite bool) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if isWrite {
		if e, ok := ks.writes.Load(rt); ok {
			e.refs--
			if e.refs <= 0 {
				ks.writes.Delete(rt)
			}
		}
		return
	}
	if e, ok := ks.reads.Load(rt); ok {
		e.refs--
		if e.refs <= 0 {
			ks.reads.Delete(rt)
		}
	}
}

// defaultShards is the per-key rangemap shard count used when a
// RangeLockService is built without an explicit shard count.
const defaultShards = 64

// RangeLockService decides blocking and grants range locks.
type RangeLockService struct {
	states sync.Map // string(key) -> *keyState
	clk    clock.Clock
	fair   bool
	tracer *tracer.Tracer
	shards int
}

// New returns a RangeLockService using the real wall clock, with
// fairness and tracing both disabled.
func New() *RangeLockService {
	return &RangeLockService{clk: clock.Real{}, shards: defaultShards}
}

// NewWithClock is used by tests that need a deterministic timeout clock.
func NewWithClock(c clock.Clock) *RangeLockService {
	return &RangeLockService{clk: c, shards: defaultShards}
}

// NewFair returns a RangeLockService where a writer waiting for a key
// blocks new reads on that key from being granted ahead of it, trading
// the plain spin loop's throughput for protection against writer
// starvation under a steady stream of readers.
func NewFair() *RangeLockService {
	return &RangeLockService{clk: clock.Real{}, fair: true, shards: defaultShards}
}

// NewWithOptions gives callers (typically wired from config.Config)
// control over the clock, fairness mode, tracer, and the per-key
// rangemap shard count (config.Config.RangeMapShards) in one call.
// shards <= 0 falls back to the default.
func NewWithOptions(c clock.Clock, fair bool, tr *tracer.Tracer, shards int) *RangeLockService {
	if shards <= 0 {
		shards = defaultShards
	}
	return &RangeLockService{clk: c, fair: fair, tracer: tr, shards: shards}
}

// Stats is a point-in-time snapshot of service-wide counters.
type Stats struct {
	KeyCount   int
	ReadCount  int
	WriteCount int
}

// Stats walks every live key and sums its read/write reservation
// counts, surfaced over the diagnostics HTTP server.
func (svc *RangeLockService) Stats() Stats {
	var st Stats
	svc.states.Range(func(_, v interface{}) bool {
		st.KeyCount++
		ks := v.(*keyState)
		st.ReadCount += ks.readCount()
		st.WriteCount += ks.writeCount()
		return true
	})
	return st
}

func (svc *RangeLockService) keyStateFor(key []byte) *keyState {
	k := string(key)
	if v, ok := svc.states.Load(k); ok {
		return v.(*keyState)
	}
	ks := newKeyState(append([]byte(nil), key...), svc.shards)
	actual, _ := svc.states.LoadOrStore(k, ks)
	return actual.(*keyState)
}

// Handle is a live, acquired range lock. Release must be called exactly
// once.
type Handle struct {
	ks      *keyState
	rt      token.RangeToken
	isWrite bool
	svc     *RangeLockService
	once    sync.Once
}

// Release unregisters this handle's reservation from the live set.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.ks.unregister(h.rt, h.isWrite)
		h.svc.tracer.RecordRelease(h.rt.MapKey(), mode(h.isWrite))
	})
}

// GetReadLock blocks until a read over (key, op, values) is not blocked
// by any live write, then registers it and returns a Handle. ctx may be
// nil to block uninterruptibly; a non-nil ctx's cancellation aborts the
// wait.
func (svc *RangeLockService) GetReadLock(ctx context.Context, key []byte, op token.Operator, values ...value.Value) (Releasable, error) {
	rt, err := token.ForRead(key, op, values...)
	if err != nil {
		return nil, err
	}
	return svc.acquire(ctx, rt, false)
}

// GetWriteLock blocks until a write of value at key is not blocked by
// any live read, then registers it and returns a Handle.
func (svc *RangeLockService) GetWriteLock(ctx context.Context, key []byte, v value.Value) (Releasable, error) {
	rt := token.ForWrite(key, v)
	return svc.acquire(ctx, rt, true)
}

func (svc *RangeLockService) acquire(ctx context.Context, rt token.RangeToken, isWrite bool) (*Handle, error) {
	g := gid.Current()
	ks := svc.keyStateFor(rt.Key())
	if svc.fair && isWrite {
		atomic.AddInt32(&ks.pendingWriters, 1)
		defer atomic.AddInt32(&ks.pendingWriters, -1)
	}
	for ks.blocked(isWrite, rt, g) || svc.outranked(ks, isWrite) {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		runtime.Gosched()
	}
	ks.register(rt, isWrite, g)
	svc.tracer.RecordAcquire(rt.MapKey(), mode(isWrite))
	return &Handle{ks: ks, rt: rt, isWrite: isWrite, svc: svc}, nil
}

// outranked reports whether a pending read must yield to a writer that
// is already waiting on the same key, when fairness mode is enabled. A
// writer never outranks itself or another writer.
func (svc *RangeLockService) outranked(ks *keyState, isWrite bool) bool {
	return svc.fair && !isWrite && atomic.LoadInt32(&ks.pendingWriters) > 0
}

func mode(isWrite bool) string {
	if isWrite {
		return "write"
	}
	return "read"
}

// TryGetReadLock polls isRangeBlocked with nanosecond-accurate
// remaining-time arithmetic against svc's clock, rather than a plain
// context timeout, so tests can drive it with a fake clock.
func (svc *RangeLockService) TryGetReadLock(timeout time.Duration, key []byte, op token.Operator, values ...value.Value) (*Handle, error) {
	rt, err := token.ForRead(key, op, values...)
	if err != nil {
		return nil, err
	}
	return svc.acquireDeadline(svc.clk.Now().Add(timeout), rt, false)
}

// TryGetWriteLock is the write-side counterpart of TryGetReadLock.
func (svc *RangeLockService) TryGetWriteLock(timeout time.Duration, key []byte, v value.Value) (*Handle, error) {
	rt := token.ForWrite(key, v)
	return svc.acquireDeadline(svc.clk.Now().Add(timeout), rt, true)
}

func (svc *RangeLockService) acquireDeadline(deadline time.Time, rt token.RangeToken, isWrite bool) (*Handle, error) {
	g := gid.Current()
	ks := svc.keyStateFor(rt.Key())
	if svc.fair && isWrite {
		atomic.AddInt32(&ks.pendingWriters, 1)
		defer atomic.AddInt32(&ks.pendingWriters, -1)
	}
	for ks.blocked(isWrite, rt, g) || svc.outranked(ks, isWrite) {
		if !svc.clk.Now().Before(deadline) {
			return nil, ErrTimeout
		}
		runtime.Gosched()
	}
	ks.register(rt, isWrite, g)
	svc.tracer.RecordAcquire(rt.MapKey(), mode(isWrite))
	return &Handle{ks: ks, rt: rt, isWrite: isWrite, svc: svc}, nil
}

type noOpHandle struct{}

func (noOpHandle) Release() {}

type noOpService struct{}

func (noOpService) GetReadLock(context.Context, []byte, token.Operator, ...value.Value) (Releasable, error) {
	return noOpHandle{}, nil
}

func (noOpService) GetWriteLock(context.Context, []byte, value.Value) (Releasable, error) {
	return noOpHandle{}, nil
}

// NoOp returns a Service whose acquire/release are identity operations.
func NoOp() Service { return noOpService{} }
