package matrix

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is matched by every *DimensionError.
	ErrDimensionMismatch = errors.New("matrix: dimension mismatch")

	// ErrNotImplemented marks an operation that exists on the surface only.
	ErrNotImplemented = errors.New("matrix: operation not implemented")
)

// DimensionError reports the operands of a shape check that failed. For New,
// Right holds the entry count as an N x 1 shape.
type DimensionError struct {
	Op    string
	Left  Shape
	Right Shape
}

func (e *DimensionError) Error() string {
	if e.Op == "new" {
		return fmt.Sprintf("matrix: dimension mismatch: %dx%d needs %d entries, got %d",
			e.Left.Rows, e.Left.Columns, e.Left.Rows*e.Left.Columns, e.Right.Rows)
	}
	return fmt.Sprintf("matrix: dimension mismatch: %s %s %s", e.Left, e.Op, e.Right)
}

func (e *DimensionError) Is(target error) bool { return target == ErrDimensionMismatch }
