// Package value defines the total-order Value contract that the lock
// services compare against. The storage engine supplies the concrete
// domain values (its own Text/Number/Boolean wrappers); this package only
// needs the total order, the two sentinels, and a stable byte encoding.
package value

import "bytes"

// Value is the contract the concurrency core requires from the storage
// engine's domain value type. Implementations must be totally ordered and
// must serialize to a stable byte sequence for RangeToken digests.
type Value interface {
	// Compare returns -1, 0, or 1 as v is less than, equal to, or
	// greater than other. Comparing against NegativeInfinity or
	// PositiveInfinity must always resolve consistently with the total
	// order (nothing is less than NegativeInfinity, nothing is greater
	// than PositiveInfinity).
	Compare(other Value) int

	// Bytes returns a stable serialization of the value, used verbatim
	// in the RangeToken wire format.
	Bytes() []byte
}

// Less reports whether a sorts before b.
func Less(a, b Value) bool { return a.Compare(b) < 0 }

// Equal reports whether a and b occupy the same point in the order.
func Equal(a, b Value) bool { return a.Compare(b) == 0 }

// LessOrEqual reports whether a sorts at or before b.
func LessOrEqual(a, b Value) bool { return a.Compare(b) <= 0 }

// sentinel is the Value implementation backing NegativeInfinity and
// PositiveInfinity. It never appears in a caller's domain so it is safe
// to special-case it by identity within Compare.
type sentinel struct {
	sign int // -1 for negative infinity, +1 for positive infinity
}

func (s sentinel) Compare(other Value) int {
	if os, ok := other.(sentinel); ok {
		switch {
		case s.sign == os.sign:
			return 0
		case s.sign < os.sign:
			return -1
		default:
			return 1
		}
	}
	return s.sign
}

func (s sentinel) Bytes() []byte {
	if s.sign < 0 {
		return []byte{0x00}
	}
	return []byte{0xFF}
}

// NegativeInfinity sorts before every other Value.
var NegativeInfinity Value = sentinel{sign: -1}

// PositiveInfinity sorts after every other Value.
var PositiveInfinity Value = sentinel{sign: 1}

// IsNegativeInfinity reports whether v is the NegativeInfinity sentinel.
func IsNegativeInfinity(v Value) bool {
	s, ok := v.(sentinel)
	return ok && s.sign < 0
}

// IsPositiveInfinity reports whether v is the PositiveInfinity sentinel.
func IsPositiveInfinity(v Value) bool {
	s, ok := v.(sentinel)
	return ok && s.sign > 0
}

// BytesEqual is a convenience comparator for Value implementations that
// want structural equality in terms of their own Bytes() encoding.
func BytesEqual(a, b Value) bool {
	return bytes.Equal(a.Bytes(), b.Bytes())
}
