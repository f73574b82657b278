// Package rangemap implements a concurrent map from RangeToken to an
// arbitrary value, sharded by the token's key the way a fixed-shard tag
// index distributes its map across hash buckets, generalized here with
// Go generics over the stored value type instead of a fixed []string
// payload.
//
// Each shard keeps its entries sorted by both interval endpoints so a
// range query can binary-search a headMap/tailMap slice instead of
// sweeping every entry for the key, the same goal a skip-list-backed
// string index pursues; this version uses sorted slices searched with
// sort.Search rather than a skip list, which keeps lookups at O(log n)
// while insert/remove stay O(n) per shard, an acceptable trade given
// shard sizes are bounded by live lock counts, not by the size of the
// storage engine itself.
package rangemap

import (
	"bytes"
	"hash/fnv"
	"sort"
	"sync"

	"lockcore/rangeset"
	"lockcore/token"
	"lockcore/value"
)

const defaultShards = 64

// Map is a concurrent RangeToken -> V store, sharded by key.
type Map[V any] struct {
	shards []*shard[V]
}

type item[V any] struct {
	token token.RangeToken
	// intervals is the token's exact (possibly disjoint) expansion, used
	// for the final overlap check. bound is the single span intervals
	// fit inside, used only to place the item in the sorted byLeft /
	// byRight slices; NOT_EQUALS is the case where the two differ, since
	// its two pieces span a gap that bound alone cannot represent.
	intervals []rangeset.Interval
	bound     rangeset.Interval
	value     V
}

type shard[V any] struct {
	mu      sync.RWMutex
	exact   map[string]*item[V] // RangeToken.MapKey() -> item
	byLeft  []*item[V]          // sorted by bound.Lo
	byRight []*item[V]          // sorted by bound.Hi
}

// New returns an empty sharded RangeTokenMap using the default shard
// count.
func New[V any]() *Map[V] {
	return NewWithShards[V](defaultShards)
}

// NewWithShards returns an empty sharded RangeTokenMap split across n
// shards, for callers that size the shard count off config.Config's
// RangeMapShards rather than the built-in default. n <= 0 falls back to
// the default.
func NewWithShards[V any](n int) *Map[V] {
	if n <= 0 {
		n = defaultShards
	}
	m := &Map[V]{shards: make([]*shard[V], n)}
	for i := range m.shards {
		m.shards[i] = &shard[V]{exact: make(map[string]*item[V])}
	}
	return m
}

func (m *Map[V]) shardFor(key []byte) *shard[V] {
	h := fnv.New32a()
	h.Write(key)
	return m.shards[h.Sum32()%uint32(len(m.shards))]
}

// Store inserts or replaces the value associated with rt.
func (m *Map[V]) Store(rt token.RangeToken, v V) {
	s := m.shardFor(rt.Key())
	s.mu.Lock()
	defer s.mu.Unlock()

	mk := rt.MapKey()
	if existing, ok := s.exact[mk]; ok {
		existing.value = v
		return
	}

	ivs, bound := expandEntry(rt)
	it := &item[V]{
		token:     rt,
		intervals: ivs,
		bound:     bound,
		value:     v,
	}
	s.exact[mk] = it
	s.byLeft = insertSorted(s.byLeft, it, func(a, b *item[V]) bool {
		return a.bound.Lo.Compare(b.bound.Lo) < 0
	})
	s.byRight = insertSorted(s.byRight, it, func(a, b *item[V]) bool {
		return a.bound.Hi.Compare(b.bound.Hi) < 0
	})
}

// Load returns the value stored for rt, if any.
func (m *Map[V]) Load(rt token.RangeToken) (V, bool) {
	s := m.shardFor(rt.Key())
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.exact[rt.MapKey()]
	if !ok {
		var zero V
		return zero, false
	}
	return it.value, true
}

// Delete removes the entry for rt, if present.
func (m *Map[V]) Delete(rt token.RangeToken) {
	s := m.shardFor(rt.Key())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(rt.MapKey())
}

func (s *shard[V]) deleteLocked(mapKey string) {
	it, ok := s.exact[mapKey]
	if !ok {
		return
	}
	delete(s.exact, mapKey)
	s.byLeft = removeItem(s.byLeft, it)
	s.byRight = removeItem(s.byRight, it)
}

// Filter returns every (RangeToken, V) pair currently stored for key.
func (m *Map[V]) Filter(key []byte) map[string]V {
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]V, len(s.exact))
	for mk, it := range s.exact {
		if bytes.Equal(it.token.Key(), key) {
			out[mk] = it.value
		}
	}
	return out
}

// Contains reports whether any entry under key intersects the canonical
// range of (operator, values), without materializing the filtered set.
func (m *Map[V]) Contains(key []byte, op token.Operator, values ...value.Value) bool {
	return m.ContainsMatching(key, op, values, nil)
}

// ContainsMatching is Contains restricted to entries for which match
// returns true, checked only against candidates that already passed the
// endpoint-sorted pruning below; a nil match accepts every candidate.
// RangeLockService uses this to exclude a caller's own live write from
// its own blocking check without giving up the binary-search prefilter.
func (m *Map[V]) ContainsMatching(key []byte, op token.Operator, values []value.Value, match func(v V) bool) bool {
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := rangeset.Expand(op, values)
	lo, hi := boundingInterval(want)

	// headMap-style scan: every entry whose Lo sorts at or before hi is a
	// candidate; every entry whose Hi sorts at or after lo is a
	// candidate. Intersecting both views prunes entries that cannot
	// possibly overlap before the final exact overlap check.
	idx := sort.Search(len(s.byLeft), func(i int) bool {
		return s.byLeft[i].bound.Lo.Compare(hi) > 0
	})
	for _, it := range s.byLeft[:idx] {
		if !bytes.Equal(it.token.Key(), key) {
			continue
		}
		if it.bound.Hi.Compare(lo) < 0 {
			continue
		}
		if match != nil && !match(it.value) {
			continue
		}
		if rangeset.AnyOverlap(want, it.intervals) {
			return true
		}
	}
	return false
}

// Count returns the number of entries currently stored under key.
func (m *Map[V]) Count(key []byte) int {
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, it := range s.exact {
		if bytes.Equal(it.token.Key(), key) {
			n++
		}
	}
	return n
}

// Remove deletes every entry under key whose RangeToken intersects
// candidate and satisfies predicate, invoking cleanup on each removed
// value before it is dropped.
func (m *Map[V]) Remove(candidate token.RangeToken, predicate func(rt token.RangeToken, v V) bool, cleanup func(rt token.RangeToken, v V)) {
	s := m.shardFor(candidate.Key())
	s.mu.Lock()
	defer s.mu.Unlock()

	var toRemove []string
	for mk, it := range s.exact {
		if !bytes.Equal(it.token.Key(), candidate.Key()) {
			continue
		}
		if !candidate.Intersects(it.token) {
			continue
		}
		if predicate != nil && !predicate(it.token, it.value) {
			continue
		}
		toRemove = append(toRemove, mk)
	}
	for _, mk := range toRemove {
		it := s.exact[mk]
		if cleanup != nil {
			cleanup(it.token, it.value)
		}
		s.deleteLocked(mk)
	}
}

// expandEntry returns rt's exact interval expansion plus the single span
// those intervals fit inside, the latter used only for shard-local
// sorting.
func expandEntry(rt token.RangeToken) (ivs []rangeset.Interval, bound rangeset.Interval) {
	op := rt.Operator()
	if !rt.IsRead() {
		op = token.Equals
	}
	ivs = rangeset.Expand(op, rt.Values())
	lo, hi := boundingInterval(ivs)
	return ivs, rangeset.Interval{Lo: lo, LoInclusive: true, Hi: hi, HiInclusive: true}
}

// boundingInterval collapses a possibly-disjoint interval set (as
// NOT_EQUALS produces) into the single span its pieces fit inside, for
// use as a sharding/sort key. The exact overlap decision is always
// re-checked with rangeset.AnyOverlap against the real interval set, so
// this approximation only affects how quickly a candidate is found, not
// correctness.
func boundingInterval(ivs []rangeset.Interval) (lo, hi value.Value) {
	lo, hi = ivs[0].Lo, ivs[0].Hi
	for _, iv := range ivs[1:] {
		if iv.Lo.Compare(lo) < 0 {
			lo = iv.Lo
		}
		if iv.Hi.Compare(hi) > 0 {
			hi = iv.Hi
		}
	}
	return lo, hi
}

func insertSorted[V any](s []*item[V], it *item[V], less func(a, b *item[V]) bool) []*item[V] {
	idx := sort.Search(len(s), func(i int) bool { return !less(s[i], it) })
	s = append(s, nil)
	copy(s[idx+1:], s[idx:])
	s[idx] = it
	return s
}

func removeItem[V any](s []*item[V], target *item[V]) []*item[V] {
	for i, it := range s {
		if it == target {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
