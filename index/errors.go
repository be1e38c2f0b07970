package index

import (
	"errors"
	"fmt"
)

// ErrDegenerateVector is returned for vectors whose L2 norm is zero (or not
// finite). Cosine similarity is undefined for them.
var ErrDegenerateVector = errors.New("vector norm must be > 0")

// ErrDimensionMismatch is a named error type for dimension mismatch
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidDimension is returned when an index is created with a
// non-positive dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}
