package tensor

import (
	"fmt"
	"math"
)

// Softmax applies softmax along the specified dimension.
// Elements equal to -Inf receive a weight of exactly zero.
func Softmax(t *Tensor, dim int) (*Tensor, error) {
	if dim < 0 || dim >= len(t.Shape) {
		return nil, fmt.Errorf("invalid dimension %d for tensor with %d dimensions", dim, len(t.Shape))
	}

	// Move the softmax dimension last so every slice is a dense row.
	last := len(t.Shape) - 1
	src := t
	if dim != last {
		var err error
		if src, err = t.Transpose(dim, last); err != nil {
			return nil, err
		}
	}
	result := src.Clone()
	softmaxRows(result.Data, result.Shape[last])

	if dim != last {
		back, err := result.Transpose(dim, last)
		if err != nil {
			return nil, err
		}
		return back.Contiguous(), nil
	}
	return result, nil
}

// SoftmaxLast applies softmax along the last dimension (convenience function).
func SoftmaxLast(t *Tensor) *Tensor {
	result, err := Softmax(t, len(t.Shape)-1)
	if err != nil {
		panic(err)
	}
	return result
}

// softmaxRows normalizes each consecutive run of width values in place.
func softmaxRows(data []float32, width int) {
	if width == 0 {
		return
	}
	for off := 0; off < len(data); off += width {
		row := data[off : off+width]

		// Find max for numerical stability
		maxVal := float32(math.Inf(-1))
		for _, v := range row {
			if v > maxVal {
				maxVal = v
			}
		}
		if math.IsInf(float64(maxVal), -1) {
			// Fully masked row; leave it all zero rather than NaN.
			clear(row)
			continue
		}

		var expSum float64
		for i, v := range row {
			e := math.Exp(float64(v - maxVal))
			row[i] = float32(e)
			expSum += e
		}
		inv := 1 / expSum
		for i := range row {
			row[i] = float32(float64(row[i]) * inv)
		}
	}
}
