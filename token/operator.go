package token

import "lockcore/rangeset"

// Operator is one of the fixed set of 9 symbols a RangeToken's read side
// may carry. A write RangeToken carries no operator. The type is defined
// in package rangeset (see that package's operator.go for why) and
// re-exported here under the names this package's callers expect.
type Operator = rangeset.Operator

const (
	Equals              = rangeset.OpEquals
	NotEquals           = rangeset.OpNotEquals
	GreaterThan         = rangeset.OpGreaterThan
	GreaterThanOrEquals = rangeset.OpGreaterThanOrEquals
	LessThan            = rangeset.OpLessThan
	LessThanOrEquals    = rangeset.OpLessThanOrEquals
	Between             = rangeset.OpBetween
	Regex               = rangeset.OpRegex
	NotRegex            = rangeset.OpNotRegex
)

const nullOperatorByte = rangeset.NullOperatorByte

func operatorFromByte(b byte) (Operator, bool, error) {
	return rangeset.FromByte(b)
}
