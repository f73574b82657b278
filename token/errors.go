package token

import (
	"fmt"

	"lockcore/rangeset"
)

// InvalidTokenShapeError is raised at construction time when a
// RangeToken's operator and value count disagree, so a malformed token
// can never be constructed in the first place.
type InvalidTokenShapeError struct {
	Operator Operator
	Got      int
	Want     int
}

func (e *InvalidTokenShapeError) Error() string {
	return fmt.Sprintf("token: operator %s requires %d value(s), got %d", e.Operator, e.Want, e.Got)
}

// InvalidOperatorError is raised when a RangeToken's wire encoding names
// an operator byte outside the fixed closed set of 9. Defined in package
// rangeset; re-exported here.
type InvalidOperatorError = rangeset.InvalidOperatorError
