// Package tensor provides the dense float32 tensor used by the attention and
// normalization layers.
//
// Tensors are row-major. Views created by View and Transpose share the
// underlying data with their source; Transpose only swaps strides, so its
// result is generally not contiguous and must go through Contiguous before it
// can be viewed with a new shape.
package tensor

import (
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"
)

// Tensor represents a multi-dimensional array of float32 values.
// It stores data in a flat slice with shape and stride information for indexing.
type Tensor struct {
	Data    []float32 // Flattened data storage
	Shape   []int     // Dimensions (e.g., [batch, heads, seq, dim])
	Strides []int     // Element strides per dimension
}

// NewTensor creates a new tensor with the given shape, initialized to zeros.
func NewTensor(shape []int) *Tensor {
	return &Tensor{
		Data:    make([]float32, numElements(shape)),
		Shape:   copyShape(shape),
		Strides: rowMajorStrides(shape),
	}
}

// FromSlice creates a tensor from existing data with the given shape.
// The data is copied. Returns an error if data size doesn't match the shape.
func FromSlice(data []float32, shape []int) (*Tensor, error) {
	for _, dim := range shape {
		if dim < 0 {
			return nil, fmt.Errorf("invalid dimension %d in shape %v", dim, shape)
		}
	}
	expectedSize := numElements(shape)
	if len(data) != expectedSize {
		return nil, fmt.Errorf("data size %d does not match shape %v (expected %d elements)",
			len(data), shape, expectedSize)
	}

	dataCopy := make([]float32, len(data))
	copy(dataCopy, data)

	return &Tensor{
		Data:    dataCopy,
		Shape:   copyShape(shape),
		Strides: rowMajorStrides(shape),
	}, nil
}

// Full creates a tensor of the given shape with every element set to value.
func Full(shape []int, value float32) *Tensor {
	t := NewTensor(shape)
	for i := range t.Data {
		t.Data[i] = value
	}
	return t
}

// IsContiguous reports whether the tensor's strides describe a dense
// row-major layout over Data.
func (t *Tensor) IsContiguous() bool {
	stride := 1
	for i := len(t.Shape) - 1; i >= 0; i-- {
		if t.Shape[i] != 1 && t.Strides[i] != stride {
			return false
		}
		stride *= t.Shape[i]
	}
	return true
}

// Contiguous returns a tensor with a dense row-major layout.
// If t is already contiguous it is returned as is; otherwise the elements are
// copied into fresh storage in logical order.
func (t *Tensor) Contiguous() *Tensor {
	if t.IsContiguous() {
		return t
	}

	result := NewTensor(t.Shape)
	dst := 0

	var walk func(dim, src int)
	walk = func(dim, src int) {
		if dim == len(t.Shape) {
			result.Data[dst] = t.Data[src]
			dst++
			return
		}
		for i := 0; i < t.Shape[dim]; i++ {
			walk(dim+1, src+i*t.Strides[dim])
		}
	}
	walk(0, 0)

	return result
}

// View returns a new tensor with a different shape sharing the same data.
// The tensor must be contiguous and the total size must match.
func (t *Tensor) View(newShape []int) (*Tensor, error) {
	for _, dim := range newShape {
		if dim < 0 {
			return nil, fmt.Errorf("invalid dimension %d in shape %v", dim, newShape)
		}
	}
	if !t.IsContiguous() {
		return nil, fmt.Errorf("cannot view non-contiguous tensor with shape %v as %v; call Contiguous first",
			t.Shape, newShape)
	}

	newSize := numElements(newShape)
	if newSize != t.Size() {
		return nil, fmt.Errorf("cannot view tensor of size %d as shape %v (total size %d)",
			t.Size(), newShape, newSize)
	}

	return &Tensor{
		Data:    t.Data[:newSize],
		Shape:   copyShape(newShape),
		Strides: rowMajorStrides(newShape),
	}, nil
}

// Reshape returns a view with a different shape (same underlying data).
// It panics where View would return an error.
func (t *Tensor) Reshape(newShape []int) *Tensor {
	result, err := t.View(newShape)
	if err != nil {
		panic(err)
	}
	return result
}

// Transpose exchanges two dimensions of the tensor.
// The result shares data with t and is generally not contiguous.
func (t *Tensor) Transpose(dim1, dim2 int) (*Tensor, error) {
	if dim1 < 0 || dim1 >= len(t.Shape) || dim2 < 0 || dim2 >= len(t.Shape) {
		return nil, fmt.Errorf("invalid transpose dimensions %d and %d for tensor with %d dimensions",
			dim1, dim2, len(t.Shape))
	}

	newShape := copyShape(t.Shape)
	newStrides := copyShape(t.Strides)
	newShape[dim1], newShape[dim2] = newShape[dim2], newShape[dim1]
	newStrides[dim1], newStrides[dim2] = newStrides[dim2], newStrides[dim1]

	return &Tensor{
		Data:    t.Data,
		Shape:   newShape,
		Strides: newStrides,
	}, nil
}

// SplitLast splits the trailing dimension into n equal parts and returns each
// part as a new contiguous tensor. A (B, T, 3C) tensor split in 3 yields three
// (B, T, C) tensors.
func (t *Tensor) SplitLast(n int) ([]*Tensor, error) {
	if len(t.Shape) == 0 {
		return nil, fmt.Errorf("cannot split a scalar tensor")
	}
	last := t.Shape[len(t.Shape)-1]
	if n <= 0 || last%n != 0 {
		return nil, fmt.Errorf("cannot split trailing dimension %d into %d equal parts", last, n)
	}

	src := t.Contiguous()
	width := last / n
	rows := src.Size() / max(last, 1)
	partShape := copyShape(t.Shape)
	partShape[len(partShape)-1] = width

	parts := make([]*Tensor, n)
	for p := range parts {
		parts[p] = NewTensor(partShape)
	}
	for r := 0; r < rows; r++ {
		row := src.Data[r*last : (r+1)*last]
		for p, part := range parts {
			copy(part.Data[r*width:(r+1)*width], row[p*width:(p+1)*width])
		}
	}
	return parts, nil
}

// Size returns the total number of elements in the tensor.
func (t *Tensor) Size() int {
	return numElements(t.Shape)
}

// NumDims returns the number of dimensions (rank) of the tensor.
func (t *Tensor) NumDims() int {
	return len(t.Shape)
}

// FlatIndex converts multi-dimensional indices to an offset into Data.
func (t *Tensor) FlatIndex(indices []int) int {
	if len(indices) != len(t.Shape) {
		panic(fmt.Sprintf("indices length %d does not match shape dimensions %d",
			len(indices), len(t.Shape)))
	}

	idx := 0
	for i := 0; i < len(t.Shape); i++ {
		if indices[i] < 0 || indices[i] >= t.Shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d with size %d",
				indices[i], i, t.Shape[i]))
		}
		idx += indices[i] * t.Strides[i]
	}
	return idx
}

// Get retrieves a value at the specified indices.
func (t *Tensor) Get(indices []int) float32 {
	return t.Data[t.FlatIndex(indices)]
}

// Set sets a value at the specified indices.
func (t *Tensor) Set(indices []int, value float32) {
	t.Data[t.FlatIndex(indices)] = value
}

// Clone creates a deep, contiguous copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	src := t.Contiguous()
	result := NewTensor(t.Shape)
	copy(result.Data, src.Data[:result.Size()])
	return result
}

// ShapeString returns a string representation of the shape.
func (t *Tensor) ShapeString() string {
	return fmt.Sprintf("%v", t.Shape)
}

// Equals checks if two tensors have the same shape and approximately equal values.
func (t *Tensor) Equals(other *Tensor, tolerance float32) bool {
	if !t.ShapeEquals(other) {
		return false
	}
	a, b := t.Contiguous(), other.Contiguous()
	for i := 0; i < a.Size(); i++ {
		if math.Abs(float64(a.Data[i]-b.Data[i])) > float64(tolerance) {
			return false
		}
	}
	return true
}

// MaxAbsDiff returns the largest absolute elementwise difference between two
// tensors of the same shape.
func MaxAbsDiff(a, b *Tensor) (float32, error) {
	if !a.ShapeEquals(b) {
		return 0, fmt.Errorf("shape mismatch: %v vs %v", a.Shape, b.Shape)
	}
	ca, cb := a.Contiguous(), b.Contiguous()
	var worst float64
	for i := 0; i < ca.Size(); i++ {
		worst = math.Max(worst, math.Abs(float64(ca.Data[i]-cb.Data[i])))
	}
	return float32(worst), nil
}

// ShapeEquals checks if two tensors have the same shape.
func (t *Tensor) ShapeEquals(other *Tensor) bool {
	if len(t.Shape) != len(other.Shape) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != other.Shape[i] {
			return false
		}
	}
	return true
}

// String returns a string representation of the tensor.
func (t *Tensor) String() string {
	var sb strings.Builder
	sb.WriteString("Tensor[")
	for i, dim := range t.Shape {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%d", dim))
	}
	sb.WriteString("]")

	c := t.Contiguous()
	sb.WriteString(": ")
	sb.WriteString(formatData(c.Shape, c.Data, 0))

	return sb.String()
}

// formatData recursively formats tensor data
func formatData(shape []int, data []float32, offset int) string {
	if len(shape) == 0 {
		return fmt.Sprintf("%g", data[offset])
	}

	var sb strings.Builder
	sb.WriteString("[")
	if len(shape) == 1 {
		for i := 0; i < shape[0] && i < 6; i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%g", data[offset+i]))
		}
		if shape[0] > 6 {
			sb.WriteString(", ...")
		}
		sb.WriteString("]")
		return sb.String()
	}

	subSize := numElements(shape[1:])
	for i := 0; i < shape[0] && i < 3; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(formatData(shape[1:], data, offset+i*subSize))
	}
	if shape[0] > 3 {
		sb.WriteString(", ...")
	}
	sb.WriteString("]")
	return sb.String()
}

func numElements(shape []int) int {
	return lo.Reduce(shape, func(acc, dim int, _ int) int { return acc * dim }, 1)
}

func rowMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

// copyShape creates a copy of a shape slice
func copyShape(shape []int) []int {
	result := make([]int, len(shape))
	copy(result, shape)
	return result
}
