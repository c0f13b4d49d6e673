package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// Matmul performs matrix multiplication on the last two dimensions.
// For tensors of shape (..., m, n) and (..., n, p), returns (..., m, p).
// A 2D right operand is broadcast over all leading dimensions of a, which is
// how a linear layer applies its weight to (batch, seq, in) activations.
func Matmul(a, b *Tensor) (*Tensor, error) {
	if len(a.Shape) < 2 || len(b.Shape) < 2 {
		return nil, fmt.Errorf("matmul requires at least 2D tensors, got %dD and %dD",
			len(a.Shape), len(b.Shape))
	}

	kA := a.Shape[len(a.Shape)-1]
	kB := b.Shape[len(b.Shape)-2]
	if kA != kB {
		return nil, fmt.Errorf("incompatible shapes for matmul: %v and %v (inner dimensions %d and %d don't match)",
			a.Shape, b.Shape, kA, kB)
	}

	a, b = a.Contiguous(), b.Contiguous()

	if len(b.Shape) == 2 {
		return matmulBroadcast(a, b), nil
	}
	return matmulBatched(a, b)
}

// matmulBroadcast handles (..., m, n) @ (n, p) -> (..., m, p) with a single
// GEMM over the flattened leading dimensions.
func matmulBroadcast(a, b *Tensor) *Tensor {
	n, p := b.Shape[0], b.Shape[1]
	rows := a.Size() / max(n, 1)

	resultShape := copyShape(a.Shape)
	resultShape[len(resultShape)-1] = p
	result := NewTensor(resultShape)
	if rows == 0 || n == 0 || p == 0 {
		return result
	}

	gemm(
		general(a.Data, rows, n),
		general(b.Data, n, p),
		general(result.Data, rows, p),
	)
	return result
}

// matmulBatched handles batched matrix multiplication where both operands
// carry identical leading (batch) dimensions.
func matmulBatched(a, b *Tensor) (*Tensor, error) {
	if len(a.Shape) != len(b.Shape) {
		return nil, fmt.Errorf("incompatible shapes for matmul: %v and %v (rank mismatch)", a.Shape, b.Shape)
	}
	batchDims := a.Shape[:len(a.Shape)-2]
	for i, dim := range batchDims {
		if b.Shape[i] != dim {
			return nil, fmt.Errorf("incompatible batch dimensions for matmul: %v and %v", a.Shape, b.Shape)
		}
	}

	m := a.Shape[len(a.Shape)-2]
	n := a.Shape[len(a.Shape)-1]
	p := b.Shape[len(b.Shape)-1]
	batchSize := numElements(batchDims)

	resultShape := append(copyShape(batchDims), m, p)
	result := NewTensor(resultShape)
	if m == 0 || n == 0 || p == 0 {
		return result, nil
	}

	for batch := 0; batch < batchSize; batch++ {
		aOffset := batch * m * n
		bOffset := batch * n * p
		rOffset := batch * m * p
		gemm(
			general(a.Data[aOffset:aOffset+m*n], m, n),
			general(b.Data[bOffset:bOffset+n*p], n, p),
			general(result.Data[rOffset:rOffset+m*p], m, p),
		)
	}

	return result, nil
}

// AddRow adds row to every vector along the trailing dimension of t and
// returns the result as a new tensor.
func AddRow(t, row *Tensor) (*Tensor, error) {
	if len(t.Shape) == 0 {
		return nil, fmt.Errorf("cannot add a row to a scalar tensor")
	}
	width := t.Shape[len(t.Shape)-1]
	if row.Size() != width {
		return nil, &ShapeError{Op: "add row", What: "trailing dimension", Expected: width, Actual: row.Size()}
	}

	result := t.Clone()
	bias := row.Contiguous().Data
	for off := 0; off < len(result.Data); off += width {
		blas32.Axpy(1, vector(bias[:width]), vector(result.Data[off:off+width]))
	}
	return result, nil
}

// Add performs element-wise addition of two tensors with identical shapes.
func Add(a, b *Tensor) (*Tensor, error) {
	if !a.ShapeEquals(b) {
		return nil, fmt.Errorf("cannot add tensors with shapes %v and %v", a.Shape, b.Shape)
	}
	result := a.Clone()
	if len(result.Data) > 0 {
		blas32.Axpy(1, vector(b.Contiguous().Data[:result.Size()]), vector(result.Data))
	}
	return result, nil
}

// Scale multiplies all elements by a scalar.
func Scale(t *Tensor, scalar float32) *Tensor {
	result := t.Clone()
	if len(result.Data) > 0 {
		blas32.Scal(scalar, vector(result.Data))
	}
	return result
}

// Scale multiplies all elements by a scalar (tensor method version).
func (t *Tensor) Scale(s float32) *Tensor {
	return Scale(t, s)
}

func gemm(a, b, c blas32.General) {
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, a, b, 0, c)
}

func general(data []float32, rows, cols int) blas32.General {
	return blas32.General{Rows: rows, Cols: cols, Data: data, Stride: cols}
}

func vector(data []float32) blas32.Vector {
	return blas32.Vector{N: len(data), Data: data, Inc: 1}
}
