package rangeset

import "fmt"

// InvalidOperatorError is raised when a byte or value outside the fixed
// closed set of 9 operators is used where an operator is required (spec
// §7, InvalidOperator).
type InvalidOperatorError struct {
	Byte byte
}

func (e *InvalidOperatorError) Error() string {
	return fmt.Sprintf("rangeset: unrecognized operator byte 0x%02x", e.Byte)
}
