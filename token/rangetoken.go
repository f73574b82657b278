package token

import (
	"encoding/binary"

	"lockcore/value"
)

// RangeToken is an immutable identifier for a key plus an optional
// operator plus one or two totally-ordered values. A read RangeToken
// carries an Operator; a write RangeToken carries none.
type RangeToken struct {
	key      []byte
	operator Operator
	isRead   bool
	values   []value.Value

	// ser is the RangeToken's wire encoding, computed once at
	// construction. Equality, hashing, and map-keying all go through it,
	// since a struct holding slice fields can't be used as a Go map key
	// directly.
	ser string
}

// ForRead builds a read RangeToken for key against operator and values,
// applying the canonical widenings a range lock needs to be correct:
//   - REGEX / NOT_REGEX replace their value with {-inf, +inf}, since the
//     operator has no usable algebraic order.
//   - GT / GTE add a +inf upper bound; LT / LTE add a -inf lower bound.
//
// It returns InvalidTokenShapeError if the operator's required arity
// doesn't match len(values).
func ForRead(key []byte, op Operator, values ...value.Value) (RangeToken, error) {
	want, ok := op.Arity()
	if !ok {
		return RangeToken{}, &InvalidOperatorError{Byte: op.ByteValue()}
	}
	if len(values) != want {
		return RangeToken{}, &InvalidTokenShapeError{Operator: op, Got: len(values), Want: want}
	}

	var widened []value.Value
	switch op {
	case Regex, NotRegex:
		widened = []value.Value{value.NegativeInfinity, value.PositiveInfinity}
	case GreaterThan, GreaterThanOrEquals:
		widened = []value.Value{values[0], value.PositiveInfinity}
	case LessThan, LessThanOrEquals:
		widened = []value.Value{value.NegativeInfinity, values[0]}
	default:
		widened = append([]value.Value(nil), values...)
	}

	rt := RangeToken{
		key:      append([]byte(nil), key...),
		operator: op,
		isRead:   true,
		values:   widened,
	}
	rt.ser = string(rt.encode())
	return rt, nil
}

// ForWrite builds a write RangeToken: operator = null, exactly one
// value.
func ForWrite(key []byte, v value.Value) RangeToken {
	rt := RangeToken{
		key:    append([]byte(nil), key...),
		isRead: false,
		values: []value.Value{v},
	}
	rt.ser = string(rt.encode())
	return rt
}

// IsRead reports whether this token was built with ForRead (carries an
// operator) as opposed to ForWrite (operator is null).
func (rt RangeToken) IsRead() bool { return rt.isRead }

// Operator returns the token's operator. Callers must first check
// IsRead(); a write token's operator is meaningless (treated as EQUALS
// for intersection purposes).
func (rt RangeToken) Operator() Operator { return rt.operator }

// Key returns the token's key. The returned slice must not be mutated.
func (rt RangeToken) Key() []byte { return rt.key }

// Values returns the token's (possibly canonically widened) values. The
// returned slice must not be mutated.
func (rt RangeToken) Values() []value.Value { return rt.values }

// effectiveOperator converts a write token's null operator to EQUALS for
// the intersection predicate: both sides always compare as if the null
// operator were EQUALS.
func (rt RangeToken) effectiveOperator() Operator {
	if rt.isRead {
		return rt.operator
	}
	return Equals
}

// encode produces the wire format:
//
//	[operator_byte | 0xFF-for-null] [len(key) u32] [key bytes] ( [len(value) u32] [value bytes] )+
func (rt RangeToken) encode() []byte {
	opByte := nullOperatorByte
	if rt.isRead {
		opByte = rt.operator.ByteValue()
	}

	size := 1 + 4 + len(rt.key)
	valBytes := make([][]byte, len(rt.values))
	for i, v := range rt.values {
		valBytes[i] = v.Bytes()
		size += 4 + len(valBytes[i])
	}

	buf := make([]byte, 0, size)
	buf = append(buf, opByte)
	buf = appendU32(buf, uint32(len(rt.key)))
	buf = append(buf, rt.key...)
	for _, vb := range valBytes {
		buf = appendU32(buf, uint32(len(vb)))
		buf = append(buf, vb...)
	}
	return buf
}

func appendU32(buf []byte, n uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], n)
	return append(buf, tmp[:]...)
}

// Bytes returns the token's stable serialized form. Other parts of the
// engine persist RangeTokens inside on-disk structures using this
// encoding, so it must never change shape for existing data.
func (rt RangeToken) Bytes() []byte {
	return []byte(rt.ser)
}

// Equal reports whether two RangeTokens have the same serialized form.
// Equality and hashing are defined over this serialized form.
func (rt RangeToken) Equal(other RangeToken) bool {
	return rt.ser == other.ser
}

// MapKey returns a comparable representation of rt suitable for use as a
// Go map key, equivalent to Bytes() but avoiding a []byte-to-string copy
// on every lookup once the token has been constructed.
func (rt RangeToken) MapKey() string {
	return rt.ser
}
