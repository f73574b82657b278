// Package tracer records lock acquisition/release events for the
// diagnostics server and flags locks held past a configured threshold.
//
// It plays the role the storage engine's own lock tracer plays for
// entity locks: a map of currently-held locks keyed by a caller-chosen
// id, refreshed on acquire/release, with a periodic sweep that logs a
// warning for anything that has been held too long.
package tracer

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"lockcore/logger"
)

// Entry describes one currently-held lock, as seen by the tracer.
type Entry struct {
	ID       string
	Mode     string // "read" or "write"
	Holder   string // file:line of the acquiring call
	Acquired time.Time
}

// Tracer tracks live lock holders and recent acquisition history.
//
// It is disabled by default (a nil *Tracer, whose methods are no-ops);
// a real Tracer is only wired in
// when config.Config.TraceLocks is set, since RecordAcquire/Release sit
// on the hot path of every lock request.
type Tracer struct {
	mu       sync.Mutex
	active   map[string]*Entry
	recent   []Event
	capacity int
}

// Event is a completed acquire-then-release pair kept for the
// diagnostics server's recent-activity view.
type Event struct {
	ID       string
	Mode     string
	Holder   string
	Held     time.Duration
	Finished time.Time
}

// New returns a Tracer that keeps at most capacity recent events.
func New(capacity int) *Tracer {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Tracer{active: make(map[string]*Entry), capacity: capacity}
}

// RecordAcquire registers id as held, starting from now.
func (tr *Tracer) RecordAcquire(id, mode string) {
	if tr == nil {
		return
	}
	_, file, line, _ := runtime.Caller(2)
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.active[id] = &Entry{
		ID:       id,
		Mode:     mode,
		Holder:   fmt.Sprintf("%s:%d", file, line),
		Acquired: time.Now(),
	}
}

// RecordRelease marks id as no longer held and appends a completed
// Event to the recent-activity ring.
func (tr *Tracer) RecordRelease(id, mode string) {
	if tr == nil {
		return
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	e, ok := tr.active[id]
	if !ok {
		return
	}
	delete(tr.active, id)
	held := time.Since(e.Acquired)
	tr.recent = append(tr.recent, Event{ID: id, Mode: mode, Holder: e.Holder, Held: held, Finished: time.Now()})
	if len(tr.recent) > tr.capacity {
		tr.recent = tr.recent[len(tr.recent)-tr.capacity:]
	}
}

// ActiveLocks returns a snapshot of everything currently held.
func (tr *Tracer) ActiveLocks() []Entry {
	if tr == nil {
		return nil
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]Entry, 0, len(tr.active))
	for _, e := range tr.active {
		out = append(out, *e)
	}
	return out
}

// RecentEvents returns a snapshot of recently completed acquisitions.
func (tr *Tracer) RecentEvents() []Event {
	if tr == nil {
		return nil
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]Event, len(tr.recent))
	copy(out, tr.recent)
	return out
}

// SweepStale logs a StaleLock warning for every active lock held longer
// than threshold. Meant to be called periodically from a diagnostics
// server background goroutine.
func (tr *Tracer) SweepStale(threshold time.Duration) {
	if tr == nil {
		return
	}
	for _, e := range tr.ActiveLocks() {
		held := time.Since(e.Acquired)
		if held > threshold {
			logger.StaleLock(e.ID, e.Holder, held)
		}
	}
}
