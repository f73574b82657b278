package rangeset

// Operator is the fixed closed set of 9 symbols a RangeToken's read side
// may carry. It lives here, rather than in package token, because the
// canonical expansion table below is defined per operator and package
// token re-exports this type rather than the other way around, to avoid
// an import cycle between the two packages.
type Operator int

const (
	OpEquals Operator = iota
	OpNotEquals
	OpGreaterThan
	OpGreaterThanOrEquals
	OpLessThan
	OpLessThanOrEquals
	OpBetween
	OpRegex
	OpNotRegex
)

var operatorNames = map[Operator]string{
	OpEquals:              "EQUALS",
	OpNotEquals:           "NOT_EQUALS",
	OpGreaterThan:         "GREATER_THAN",
	OpGreaterThanOrEquals: "GREATER_THAN_OR_EQUALS",
	OpLessThan:            "LESS_THAN",
	OpLessThanOrEquals:    "LESS_THAN_OR_EQUALS",
	OpBetween:             "BETWEEN",
	OpRegex:               "REGEX",
	OpNotRegex:            "NOT_REGEX",
}

func (o Operator) String() string {
	if s, ok := operatorNames[o]; ok {
		return s
	}
	return "UNKNOWN_OPERATOR"
}

// Valid reports whether o is one of the 9 recognized operators.
func (o Operator) Valid() bool {
	_, ok := operatorNames[o]
	return ok
}

// Arity reports how many values a read RangeToken built with this
// operator must carry at construction time, before any canonical
// widening.
func (o Operator) Arity() (int, bool) {
	switch o {
	case OpEquals, OpNotEquals, OpGreaterThan, OpGreaterThanOrEquals, OpLessThan, OpLessThanOrEquals, OpRegex, OpNotRegex:
		return 1, true
	case OpBetween:
		return 2, true
	default:
		return 0, false
	}
}

// ByteValue is the operator's representation in the RangeToken wire
// format: operator_byte, or 0xFF for a null (write-token) operator. A
// write token has no operator and is encoded as 0xFF, so valid operators
// must stay below that.
func (o Operator) ByteValue() byte {
	return byte(o)
}

// NullOperatorByte is the wire-format marker for "no operator" (a write
// RangeToken).
const NullOperatorByte byte = 0xFF

// FromByte decodes an operator byte from the wire format. ok is false
// (with a nil error) when b is the null-operator marker.
func FromByte(b byte) (op Operator, ok bool, err error) {
	if b == NullOperatorByte {
		return 0, false, nil
	}
	o := Operator(b)
	if !o.Valid() {
		return 0, false, &InvalidOperatorError{Byte: b}
	}
	return o, true, nil
}
