package rangeset

import (
	"testing"

	"lockcore/value"
)

func TestExpandEquals(t *testing.T) {
	ivs := Expand(OpEquals, []value.Value{value.Int(7)})
	if len(ivs) != 1 || !ivs[0].Contains(value.Int(7)) || ivs[0].Contains(value.Int(8)) {
		t.Fatalf("EQUALS should expand to a single point, got %+v", ivs)
	}
}

func TestExpandBetweenIsHalfOpen(t *testing.T) {
	ivs := Expand(OpBetween, []value.Value{value.Int(3), value.Int(8)})
	if len(ivs) != 1 {
		t.Fatalf("BETWEEN should expand to one interval, got %d", len(ivs))
	}
	if !ivs[0].Contains(value.Int(3)) {
		t.Fatal("BETWEEN[3,8) should contain 3")
	}
	if ivs[0].Contains(value.Int(8)) {
		t.Fatal("BETWEEN[3,8) should not contain 8")
	}
}

func TestExpandNotEqualsExcludesPoint(t *testing.T) {
	ivs := Expand(OpNotEquals, []value.Value{value.Int(5)})
	if len(ivs) != 2 {
		t.Fatalf("NOT_EQUALS should expand to two intervals, got %d", len(ivs))
	}
	if AnyContains(ivs, value.Int(5)) {
		t.Fatal("NOT_EQUALS(5) should not contain 5")
	}
	if !AnyContains(ivs, value.Int(4)) || !AnyContains(ivs, value.Int(6)) {
		t.Fatal("NOT_EQUALS(5) should contain every other value")
	}
}

func TestIntervalOverlapsIsSymmetric(t *testing.T) {
	a := Interval{Lo: value.Int(0), LoInclusive: true, Hi: value.Int(5), HiInclusive: false}
	b := Interval{Lo: value.Int(5), LoInclusive: true, Hi: value.Int(10), HiInclusive: true}
	if a.Overlaps(b) != b.Overlaps(a) {
		t.Fatal("Overlaps must be symmetric")
	}
	if a.Overlaps(b) {
		t.Fatal("[0,5) and [5,10] should not overlap at the shared boundary")
	}
}

func TestIntervalOverlapsInclusiveBoundary(t *testing.T) {
	a := Interval{Lo: value.Int(0), LoInclusive: true, Hi: value.Int(5), HiInclusive: true}
	b := Interval{Lo: value.Int(5), LoInclusive: true, Hi: value.Int(10), HiInclusive: true}
	if !a.Overlaps(b) {
		t.Fatal("[0,5] and [5,10] should overlap at the shared inclusive boundary")
	}
}
