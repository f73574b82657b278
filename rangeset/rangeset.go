// Package rangeset implements the canonical expansion of an operator and
// its values into one or two intervals over the Value total order, plus
// interval containment and overlap tests used by RangeToken's
// intersection predicate and by RangeLockService's blocking decisions.
package rangeset

import "lockcore/value"

// Interval is a bound-inclusive-or-exclusive interval over the Value
// total order, normalized so Lo <= Hi. Unbounded ends are represented
// with value.NegativeInfinity / value.PositiveInfinity rather than a
// separate "no bound" flag, since the sentinels already compare
// correctly against every other Value.
type Interval struct {
	Lo          value.Value
	LoInclusive bool
	Hi          value.Value
	HiInclusive bool
}

// Point returns the degenerate interval containing exactly v.
func Point(v value.Value) Interval {
	return Interval{Lo: v, LoInclusive: true, Hi: v, HiInclusive: true}
}

// Contains reports whether v lies within the interval.
func (r Interval) Contains(v value.Value) bool {
	loOK := v.Compare(r.Lo) > 0 || (r.LoInclusive && v.Compare(r.Lo) == 0)
	if !loOK {
		return false
	}
	hiOK := v.Compare(r.Hi) < 0 || (r.HiInclusive && v.Compare(r.Hi) == 0)
	return hiOK
}

// Overlaps reports whether r and other share at least one Value.
func (r Interval) Overlaps(other Interval) bool {
	// r starts after other ends?
	if cmp := r.Lo.Compare(other.Hi); cmp > 0 || (cmp == 0 && !(r.LoInclusive && other.HiInclusive)) {
		return false
	}
	// other starts after r ends?
	if cmp := other.Lo.Compare(r.Hi); cmp > 0 || (cmp == 0 && !(other.LoInclusive && r.HiInclusive)) {
		return false
	}
	return true
}

// Expand returns the canonical interval set for op applied to values.
// values must already satisfy op's arity (RangeToken construction
// enforces this); Expand does not validate it. LESS_THAN and
// LESS_THAN_OR_EQUALS take their bound from the last value, so both a
// bare {v} and a read RangeToken's widened {-inf, v} expand the same way.
func Expand(op Operator, values []value.Value) []Interval {
	switch op {
	case OpEquals:
		return []Interval{Point(values[0])}
	case OpNotEquals:
		return []Interval{
			{Lo: value.NegativeInfinity, LoInclusive: true, Hi: values[0], HiInclusive: false},
			{Lo: values[0], LoInclusive: false, Hi: value.PositiveInfinity, HiInclusive: true},
		}
	case OpGreaterThan:
		return []Interval{{Lo: values[0], LoInclusive: false, Hi: value.PositiveInfinity, HiInclusive: true}}
	case OpGreaterThanOrEquals:
		return []Interval{{Lo: values[0], LoInclusive: true, Hi: value.PositiveInfinity, HiInclusive: true}}
	case OpLessThan:
		return []Interval{{Lo: value.NegativeInfinity, LoInclusive: true, Hi: values[len(values)-1], HiInclusive: false}}
	case OpLessThanOrEquals:
		return []Interval{{Lo: value.NegativeInfinity, LoInclusive: true, Hi: values[len(values)-1], HiInclusive: true}}
	case OpBetween:
		return []Interval{{Lo: values[0], LoInclusive: true, Hi: values[1], HiInclusive: false}}
	case OpRegex, OpNotRegex:
		return []Interval{{Lo: value.NegativeInfinity, LoInclusive: true, Hi: value.PositiveInfinity, HiInclusive: true}}
	default:
		panic("rangeset: unknown operator")
	}
}

// AnyOverlap reports whether any interval in a overlaps any interval in b.
func AnyOverlap(a, b []Interval) bool {
	for _, ra := range a {
		for _, rb := range b {
			if ra.Overlaps(rb) {
				return true
			}
		}
	}
	return false
}

// AnyContains reports whether any interval in rs contains v.
func AnyContains(rs []Interval, v value.Value) bool {
	for _, r := range rs {
		if r.Contains(v) {
			return true
		}
	}
	return false
}
