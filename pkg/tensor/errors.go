package tensor

import (
	"errors"
	"fmt"
)

// ErrShape is matched by every ShapeError via errors.Is.
var ErrShape = errors.New("shape error")

// ShapeError reports a dimension that does not match what an operation
// requires. Expected and Actual are the offending sizes so callers can
// diagnose the mismatch without re-deriving it.
type ShapeError struct {
	Op       string // operation that rejected the input, e.g. "layernorm"
	What     string // which dimension, e.g. "sequence length"
	Expected int
	Actual   int
	// Bound is set when Expected is an upper limit rather than an exact size.
	Bound bool
}

func (e *ShapeError) Error() string {
	if e.Bound {
		return fmt.Sprintf("%s: %s %d exceeds limit %d", e.Op, e.What, e.Actual, e.Expected)
	}
	return fmt.Sprintf("%s: %s mismatch: expected %d, got %d", e.Op, e.What, e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrShape) true for any *ShapeError.
func (e *ShapeError) Is(target error) bool {
	return target == ErrShape
}
