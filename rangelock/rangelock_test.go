package rangelock

import (
	"context"
	"testing"
	"time"

	"lockcore/clock"
	"lockcore/token"
	"lockcore/value"
)

func tryAcquire(t *testing.T, fn func() (Releasable, error)) (Releasable, bool) {
	t.Helper()
	type result struct {
		h   Releasable
		err error
	}
	ch := make(chan result, 1)
	go func() {
		h, err := fn()
		ch <- result{h, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			return nil, false
		}
		return r.h, true
	case <-time.After(200 * time.Millisecond):
		return nil, false
	}
}

func TestEqualsReadBlocksOnMatchingWrite(t *testing.T) {
	svc := New()
	ctx := context.Background()
	w, err := svc.GetWriteLock(ctx, []byte("age"), value.Int(7))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := tryAcquire(t, func() (Releasable, error) {
		return svc.GetReadLock(context.Background(), []byte("age"), token.Equals, value.Int(7))
	}); ok {
		t.Fatal("S1: read EQUALS(7) should be blocked while write(7) is live")
	}
	w.Release()
	r, ok := tryAcquire(t, func() (Releasable, error) {
		return svc.GetReadLock(context.Background(), []byte("age"), token.Equals, value.Int(7))
	})
	if !ok {
		t.Fatal("read should succeed once the write releases")
	}
	r.Release()
}

func TestLessThanDoesNotBlockHigherWrite(t *testing.T) {
	svc := New()
	ctx := context.Background()
	r, err := svc.GetReadLock(ctx, []byte("age"), token.LessThan, value.Int(5))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Release()

	w, ok := tryAcquire(t, func() (Releasable, error) {
		return svc.GetWriteLock(context.Background(), []byte("age"), value.Int(10))
	})
	if !ok {
		t.Fatal("S2: write(10) should not be blocked by LESS_THAN(5)")
	}
	w.Release()
}

func TestLessThanBlocksWriteInsideRange(t *testing.T) {
	svc := New()
	ctx := context.Background()
	r, err := svc.GetReadLock(ctx, []byte("age"), token.LessThan, value.Int(10))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Release()

	if _, ok := tryAcquire(t, func() (Releasable, error) {
		return svc.GetWriteLock(context.Background(), []byte("age"), value.Int(5))
	}); ok {
		t.Fatal("write(5) should be blocked by LESS_THAN(10), 5 falls inside (-inf, 10)")
	}

	w, ok := tryAcquire(t, func() (Releasable, error) {
		return svc.GetWriteLock(context.Background(), []byte("age"), value.Int(10))
	})
	if !ok {
		t.Fatal("write(10) should not be blocked, LESS_THAN(10) excludes the bound itself")
	}
	w.Release()
}

func TestBetweenBlocksWriteInsideRange(t *testing.T) {
	svc := New()
	ctx := context.Background()
	r, err := svc.GetReadLock(ctx, []byte("age"), token.Between, value.Int(3), value.Int(8))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Release()

	if _, ok := tryAcquire(t, func() (Releasable, error) {
		return svc.GetWriteLock(context.Background(), []byte("age"), value.Int(5))
	}); ok {
		t.Fatal("S3: write(5) should be blocked by BETWEEN[3,8)")
	}
	w, ok := tryAcquire(t, func() (Releasable, error) {
		return svc.GetWriteLock(context.Background(), []byte("age"), value.Int(8))
	})
	if !ok {
		t.Fatal("write(8) should not be blocked, BETWEEN[3,8) excludes the upper bound")
	}
	w.Release()
}

func TestNotEqualsReadDoesNotBlockWriteAtItsOwnExcludedPoint(t *testing.T) {
	svc := New()
	ctx := context.Background()
	r, err := svc.GetReadLock(ctx, []byte("age"), token.NotEquals, value.Int(6))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Release()

	w, ok := tryAcquire(t, func() (Releasable, error) {
		return svc.GetWriteLock(context.Background(), []byte("age"), value.Int(6))
	})
	if !ok {
		t.Fatal("write(6) should not be blocked by NOT_EQUALS(6), 6 is the excluded point")
	}
	w.Release()

	if _, ok := tryAcquire(t, func() (Releasable, error) {
		return svc.GetWriteLock(context.Background(), []byte("age"), value.Int(7))
	}); ok {
		t.Fatal("write(7) should be blocked by NOT_EQUALS(6)")
	}
}

func TestNotEqualsTwoWritesAlwaysBlocks(t *testing.T) {
	svc := New()
	ctx := context.Background()
	w1, err := svc.GetWriteLock(ctx, []byte("age"), value.Int(1))
	if err != nil {
		t.Fatal(err)
	}
	w2, err := svc.GetWriteLock(ctx, []byte("age"), value.Int(2))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := tryAcquire(t, func() (Releasable, error) {
		return svc.GetReadLock(context.Background(), []byte("age"), token.NotEquals, value.Int(1))
	}); ok {
		t.Fatal("NOT_EQUALS should be blocked once two distinct writes are live at the same key")
	}
	w1.Release()
	w2.Release()
}

func TestNotEqualsSingleNonMatchingWriteBlocks(t *testing.T) {
	svc := New()
	ctx := context.Background()
	w, err := svc.GetWriteLock(ctx, []byte("age"), value.Int(2))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Release()

	if _, ok := tryAcquire(t, func() (Releasable, error) {
		return svc.GetReadLock(context.Background(), []byte("age"), token.NotEquals, value.Int(1))
	}); ok {
		t.Fatal("NOT_EQUALS(1) should be blocked by a single write(2), the lone write isn't at value 1")
	}
}

func TestNotEqualsSingleMatchingWriteDoesNotBlock(t *testing.T) {
	svc := New()
	ctx := context.Background()
	w, err := svc.GetWriteLock(ctx, []byte("age"), value.Int(1))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Release()

	r, ok := tryAcquire(t, func() (Releasable, error) {
		return svc.GetReadLock(context.Background(), []byte("age"), token.NotEquals, value.Int(1))
	})
	if !ok {
		t.Fatal("NOT_EQUALS(1) should not be blocked by the single write that is exactly at 1")
	}
	r.Release()
}

func TestGreaterThanExcludesOwnThreadsWrite(t *testing.T) {
	svc := New()
	ctx := context.Background()
	w, err := svc.GetWriteLock(ctx, []byte("age"), value.Int(10))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Release()

	r, err := svc.GetReadLock(ctx, []byte("age"), token.GreaterThan, value.Int(5))
	if err != nil {
		t.Fatal("GREATER_THAN(5) should not be blocked by this same goroutine's own live write(10)")
	}
	r.Release()
}

func TestGreaterThanBlocksOtherGoroutineWrite(t *testing.T) {
	svc := New()
	ctx := context.Background()

	blockedWrite := make(chan struct{})
	release := make(chan struct{})
	go func() {
		w, err := svc.GetWriteLock(ctx, []byte("age"), value.Int(10))
		if err != nil {
			t.Error(err)
			return
		}
		close(blockedWrite)
		<-release
		w.Release()
	}()
	<-blockedWrite

	if _, ok := tryAcquire(t, func() (Releasable, error) {
		return svc.GetReadLock(context.Background(), []byte("age"), token.GreaterThan, value.Int(5))
	}); ok {
		t.Fatal("S4: GREATER_THAN(5) should be blocked by a different goroutine's write(10)")
	}
	close(release)
}

func TestStatsCountsLiveReservations(t *testing.T) {
	svc := New()
	ctx := context.Background()
	r, err := svc.GetReadLock(ctx, []byte("age"), token.LessThan, value.Int(5))
	if err != nil {
		t.Fatal(err)
	}
	w, err := svc.GetWriteLock(ctx, []byte("name"), value.Int(1))
	if err != nil {
		t.Fatal(err)
	}

	st := svc.Stats()
	if st.KeyCount != 2 || st.ReadCount != 1 || st.WriteCount != 1 {
		t.Fatalf("Stats = %+v, want {KeyCount:2 ReadCount:1 WriteCount:1}", st)
	}

	r.Release()
	w.Release()
	st = svc.Stats()
	if st.ReadCount != 0 || st.WriteCount != 0 {
		t.Fatalf("Stats after release = %+v, want zero counts", st)
	}
}

func TestFairModeMakesLaterReadsWaitBehindAPendingWriter(t *testing.T) {
	svc := NewFair()
	ctx := context.Background()

	blockingRead, err := svc.GetReadLock(ctx, []byte("age"), token.Equals, value.Int(5))
	if err != nil {
		t.Fatal(err)
	}

	writerPending := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		close(writerPending)
		w, err := svc.GetWriteLock(context.Background(), []byte("age"), value.Int(5))
		if err != nil {
			t.Error(err)
			return
		}
		w.Release()
		close(writerDone)
	}()
	<-writerPending
	time.Sleep(20 * time.Millisecond) // let the writer register as pending on the key

	// A read over a disjoint value is not blocked by the predicate at
	// all, but fair mode must still hold it behind the pending writer.
	if _, ok := tryAcquire(t, func() (Releasable, error) {
		return svc.GetReadLock(context.Background(), []byte("age"), token.Equals, value.Int(99))
	}); ok {
		t.Fatal("fair mode should not let a later read cut ahead of a writer already pending on the key")
	}

	blockingRead.Release()
	<-writerDone

	r, ok := tryAcquire(t, func() (Releasable, error) {
		return svc.GetReadLock(context.Background(), []byte("age"), token.Equals, value.Int(99))
	})
	if !ok {
		t.Fatal("read should succeed once the pending writer has come and gone")
	}
	r.Release()
}

func TestTryGetReadLockTimesOutAgainstFakeClock(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	svc := NewWithClock(fc)
	ctx := context.Background()
	w, err := svc.GetWriteLock(ctx, []byte("age"), value.Int(7))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Release()

	errCh := make(chan error, 1)
	go func() {
		_, err := svc.TryGetReadLock(time.Second, []byte("age"), token.Equals, value.Int(7))
		errCh <- err
	}()

	// Give the goroutine a chance to enter the spin loop before the
	// clock advances past the deadline.
	time.Sleep(20 * time.Millisecond)
	fc.Advance(2 * time.Second)

	select {
	case err := <-errCh:
		if err != ErrTimeout {
			t.Fatalf("got err %v, want ErrTimeout", err)
		}
	case <-time.After(time.Second):
		t.Fatal("TryGetReadLock should have timed out")
	}
}
