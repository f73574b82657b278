package token

import "lockcore/rangeset"

// Intersects reports whether rt and other could both be satisfied by
// some overlapping set of live values: a write RangeToken intersects a
// read RangeToken's range iff the write's value falls inside it; two
// reads intersect iff their ranges overlap.
//
// Rather than reproducing the operator x operator case table by hand,
// both sides are expanded into their canonical intervals (package
// rangeset) and tested for interval overlap. One function of two
// operators and their value arrays reproduces every row of the full
// case table, including the degenerate cases:
//   - REGEX / NOT_REGEX always expand to (-inf, +inf), so they overlap
//     anything.
//   - NOT_EQUALS(v0) expands to (-inf, v0) U (v0, +inf), which overlaps
//     anything except the single point EQUALS(v0).
//   - BETWEEN(a, b) expands to the half-open [a, b), which overlaps
//     EQUALS(c) iff a <= c < b.
// Symmetry and reflexivity follow directly from Interval.Overlaps being
// symmetric and reflexive.
func (rt RangeToken) Intersects(other RangeToken) bool {
	a := rangeset.Expand(rt.effectiveOperator(), rt.values)
	b := rangeset.Expand(other.effectiveOperator(), other.values)
	return rangeset.AnyOverlap(a, b)
}
