package tensor

import "math"

// Mask is an immutable square boolean matrix. Allowed(i, j) is true where
// query position i may attend to key position j.
type Mask struct {
	n    int
	data []bool
}

// CausalMask creates a lower-triangular mask of size (n, n): position i may
// attend to positions 0..i and never to a later one.
func CausalMask(n int) *Mask {
	m := &Mask{n: n, data: make([]bool, n*n)}
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			m.data[i*n+j] = true
		}
	}
	return m
}

// Size returns the side length of the mask.
func (m *Mask) Size() int { return m.n }

// Allowed reports whether position i may attend to position j.
func (m *Mask) Allowed(i, j int) bool {
	return m.data[i*m.n+j]
}

// ApplyMask returns a copy of scores with -Inf wherever the mask forbids
// attention. scores has shape (..., T, T); the top-left T x T window of the
// mask is used, so T may not exceed the mask size.
func ApplyMask(scores *Tensor, mask *Mask) (*Tensor, error) {
	if len(scores.Shape) < 2 {
		return nil, &ShapeError{Op: "apply mask", What: "rank", Expected: 2, Actual: len(scores.Shape)}
	}
	rows := scores.Shape[len(scores.Shape)-2]
	cols := scores.Shape[len(scores.Shape)-1]
	if rows > mask.n || cols > mask.n {
		return nil, &ShapeError{Op: "apply mask", What: "sequence length", Expected: mask.n, Actual: max(rows, cols), Bound: true}
	}

	result := scores.Clone()
	if rows == 0 || cols == 0 {
		return result, nil
	}
	negInf := float32(math.Inf(-1))
	for off := 0; off < len(result.Data); off += rows * cols {
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				if !mask.Allowed(i, j) {
					result.Data[off+i*cols+j] = negInf
				}
			}
		}
	}
	return result, nil
}
