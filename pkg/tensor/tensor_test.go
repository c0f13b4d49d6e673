package tensor

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewTensor tests tensor creation
func TestNewTensor(t *testing.T) {
	tests := []struct {
		name     string
		shape    []int
		expected int
	}{
		{"1D", []int{5}, 5},
		{"2D", []int{3, 4}, 12},
		{"3D", []int{2, 3, 4}, 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tensor := NewTensor(tt.shape)

			assert.Equal(t, tt.shape, tensor.Shape)
			assert.Len(t, tensor.Data, tt.expected)
			assert.True(t, tensor.IsContiguous())
			for i, v := range tensor.Data {
				assert.Zero(t, v, "index %d", i)
			}
		})
	}
}

// TestFromSlice tests creating tensor from slice
func TestFromSlice(t *testing.T) {
	tests := []struct {
		name    string
		data    []float32
		shape   []int
		wantErr bool
	}{
		{name: "valid 2D", data: []float32{1, 2, 3, 4, 5, 6}, shape: []int{2, 3}},
		{name: "valid 3D", data: []float32{1, 2, 3, 4, 5, 6, 7, 8}, shape: []int{2, 2, 2}},
		{name: "size mismatch", data: []float32{1, 2, 3}, shape: []int{2, 2}, wantErr: true},
		{name: "negative dim", data: []float32{}, shape: []int{-1, 2}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tensor, err := FromSlice(tt.data, tt.shape)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.data, tensor.Data)

			// Data must be copied, not aliased.
			tt.data[0] = 42
			assert.NotEqual(t, float32(42), tensor.Data[0])
		})
	}
}

func TestTranspose_IsStridedView(t *testing.T) {
	// [[1 2 3]
	//  [4 5 6]]
	a, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, []int{2, 3})
	require.NoError(t, err)

	at, err := a.Transpose(0, 1)
	require.NoError(t, err)

	assert.Equal(t, []int{3, 2}, at.Shape)
	assert.False(t, at.IsContiguous())
	assert.Equal(t, float32(4), at.Get([]int{0, 1}))
	assert.Equal(t, float32(3), at.Get([]int{2, 0}))

	// The view shares storage with its source.
	a.Set([]int{1, 0}, 40)
	assert.Equal(t, float32(40), at.Get([]int{0, 1}))

	_, err = at.View([]int{6})
	assert.Error(t, err, "viewing a non-contiguous tensor must fail")

	flat, err := at.Contiguous().View([]int{6})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 40, 2, 5, 3, 6}, flat.Data)
}

func TestTranspose_InvalidDims(t *testing.T) {
	a := NewTensor([]int{2, 3})
	_, err := a.Transpose(0, 2)
	assert.Error(t, err)
	_, err = a.Transpose(-1, 1)
	assert.Error(t, err)
}

func TestContiguous_FourDimRoundTrip(t *testing.T) {
	// (B, T, H, hd) -> (B, H, T, hd) -> back: the head split/merge pattern.
	const b, tt, h, hd = 2, 3, 2, 4
	x := NewTensor([]int{b, tt, h * hd})
	for i := range x.Data {
		x.Data[i] = float32(i)
	}

	split, err := x.Reshape([]int{b, tt, h, hd}).Transpose(1, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{b, h, tt, hd}, split.Shape)

	heads := split.Contiguous()
	assert.True(t, heads.IsContiguous())
	// Element (b=1, h=1, t=2, d=3) comes from x[1, 2, 1*hd+3].
	assert.Equal(t, x.Get([]int{1, 2, hd + 3}), heads.Get([]int{1, 1, 2, 3}))

	back, err := heads.Transpose(1, 2)
	require.NoError(t, err)
	merged, err := back.Contiguous().View([]int{b, tt, h * hd})
	require.NoError(t, err)
	assert.Equal(t, x.Data, merged.Data)
}

func TestView_SizeMismatch(t *testing.T) {
	a := NewTensor([]int{2, 3})
	_, err := a.View([]int{4, 2})
	assert.Error(t, err)
	assert.Panics(t, func() { a.Reshape([]int{5}) })
}

func TestSplitLast(t *testing.T) {
	// One row of width 6 split into 3 parts of width 2.
	x, err := FromSlice([]float32{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
	}, []int{1, 2, 6})
	require.NoError(t, err)

	parts, err := x.SplitLast(3)
	require.NoError(t, err)
	require.Len(t, parts, 3)

	assert.Equal(t, []int{1, 2, 2}, parts[0].Shape)
	assert.Equal(t, []float32{1, 2, 7, 8}, parts[0].Data)
	assert.Equal(t, []float32{3, 4, 9, 10}, parts[1].Data)
	assert.Equal(t, []float32{5, 6, 11, 12}, parts[2].Data)

	_, err = x.SplitLast(4)
	assert.Error(t, err)
	_, err = NewTensor(nil).SplitLast(1)
	assert.Error(t, err)
}

func TestMatmul(t *testing.T) {
	// [[1 2]    [[5 6]    [[19 22]
	//  [3 4]] @  [7 8]] =  [43 50]]
	a, _ := FromSlice([]float32{1, 2, 3, 4}, []int{2, 2})
	b, _ := FromSlice([]float32{5, 6, 7, 8}, []int{2, 2})

	c, err := Matmul(a, b)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, c.Shape)
	assert.Equal(t, []float32{19, 22, 43, 50}, c.Data)
}

func TestMatmul_BroadcastWeight(t *testing.T) {
	// (2, 1, 2) @ (2, 3)
	x, _ := FromSlice([]float32{1, 0, 0, 1}, []int{2, 1, 2})
	w, _ := FromSlice([]float32{1, 2, 3, 4, 5, 6}, []int{2, 3})

	y, err := Matmul(x, w)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 3}, y.Shape)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, y.Data)
}

func TestMatmul_BatchedWithTransposedOperand(t *testing.T) {
	// q @ kᵀ for a (1, 1, 2, 2) head.
	q, _ := FromSlice([]float32{1, 2, 3, 4}, []int{1, 1, 2, 2})
	k, _ := FromSlice([]float32{1, 0, 0, 1}, []int{1, 1, 2, 2})
	kt, err := k.Transpose(2, 3)
	require.NoError(t, err)

	s, err := Matmul(q, kt)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 2, 2}, s.Shape)
	assert.Equal(t, []float32{1, 2, 3, 4}, s.Data)
}

func TestMatmul_Errors(t *testing.T) {
	_, err := Matmul(NewTensor([]int{3}), NewTensor([]int{3, 3}))
	assert.Error(t, err)
	_, err = Matmul(NewTensor([]int{2, 3}), NewTensor([]int{2, 3}))
	assert.Error(t, err)
	_, err = Matmul(NewTensor([]int{2, 2, 3}), NewTensor([]int{3, 3, 2}))
	assert.Error(t, err)
}

func TestAddRow(t *testing.T) {
	x, _ := FromSlice([]float32{1, 2, 3, 4}, []int{2, 2})
	row, _ := FromSlice([]float32{10, 20}, []int{2})

	y, err := AddRow(x, row)
	require.NoError(t, err)
	assert.Equal(t, []float32{11, 22, 13, 24}, y.Data)
	assert.Equal(t, []float32{1, 2, 3, 4}, x.Data, "input must be left unchanged")

	_, err = AddRow(x, NewTensor([]int{3}))
	var shapeErr *ShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, 2, shapeErr.Expected)
	assert.Equal(t, 3, shapeErr.Actual)
	assert.ErrorIs(t, err, ErrShape)
}

func TestAddAndScale(t *testing.T) {
	a, _ := FromSlice([]float32{1, 2, 3}, []int{3})
	b, _ := FromSlice([]float32{4, 5, 6}, []int{3})

	sum, err := Add(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 7, 9}, sum.Data)

	_, err = Add(a, NewTensor([]int{2}))
	assert.Error(t, err)

	assert.Equal(t, []float32{2, 4, 6}, a.Scale(2).Data)
}

func TestSoftmax(t *testing.T) {
	x, _ := FromSlice([]float32{1, 2, 3, 1, 1, 1}, []int{2, 3})

	y := SoftmaxLast(x)

	e1, e2, e3 := math.Exp(1), math.Exp(2), math.Exp(3)
	sum := e1 + e2 + e3
	want := []float32{
		float32(e1 / sum), float32(e2 / sum), float32(e3 / sum),
		1.0 / 3, 1.0 / 3, 1.0 / 3,
	}
	if diff := cmp.Diff(want, y.Data, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("softmax mismatch (-want +got):\n%s", diff)
	}
}

func TestSoftmax_NonLastDim(t *testing.T) {
	x, _ := FromSlice([]float32{0, 5, 0, 5}, []int{2, 2})

	y, err := Softmax(x, 0)
	require.NoError(t, err)
	// Each column holds equal values, so each column is uniform.
	if diff := cmp.Diff([]float32{0.5, 0.5, 0.5, 0.5}, y.Data, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("softmax mismatch (-want +got):\n%s", diff)
	}

	_, err = Softmax(x, 2)
	assert.Error(t, err)
}

func TestSoftmax_NegativeInfinityIsExactZero(t *testing.T) {
	negInf := float32(math.Inf(-1))
	x, _ := FromSlice([]float32{0.3, negInf, negInf, negInf, negInf, negInf}, []int{2, 3})

	y := SoftmaxLast(x)
	assert.Equal(t, []float32{1, 0, 0}, y.Data[:3])
	// A fully masked row stays zero instead of turning into NaN.
	assert.Equal(t, []float32{0, 0, 0}, y.Data[3:])
}

func TestCausalMask(t *testing.T) {
	m := CausalMask(4)
	assert.Equal(t, 4, m.Size())
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			assert.Equal(t, j <= i, m.Allowed(i, j), "(%d, %d)", i, j)
		}
	}
}

func TestApplyMask(t *testing.T) {
	scores := Full([]int{2, 3, 3}, 1)
	mask := CausalMask(5)

	masked, err := ApplyMask(scores, mask)
	require.NoError(t, err)

	for b := 0; b < 2; b++ {
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				v := masked.Get([]int{b, i, j})
				if j > i {
					assert.True(t, math.IsInf(float64(v), -1), "(%d, %d, %d) = %v", b, i, j, v)
				} else {
					assert.Equal(t, float32(1), v)
				}
			}
		}
	}

	_, err = ApplyMask(Full([]int{6, 6}, 0), mask)
	assert.ErrorIs(t, err, ErrShape)
}

func TestEqualsAndMaxAbsDiff(t *testing.T) {
	a, _ := FromSlice([]float32{1, 2, 3}, []int{3})
	b, _ := FromSlice([]float32{1, 2.5, 3}, []int{3})

	assert.True(t, a.Equals(a.Clone(), 0))
	assert.False(t, a.Equals(b, 0.1))
	assert.True(t, a.Equals(b, 0.5))
	assert.False(t, a.Equals(NewTensor([]int{1, 3}), 1))

	d, err := MaxAbsDiff(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, d, 1e-7)

	_, err = MaxAbsDiff(a, NewTensor([]int{2}))
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	a, _ := FromSlice([]float32{1, 2, 3, 4}, []int{2, 2})
	s := a.String()
	assert.True(t, strings.HasPrefix(s, "Tensor[2, 2]"), s)
	assert.Contains(t, s, "[[1, 2], [3, 4]]")
}

func TestShapeError_Message(t *testing.T) {
	exact := &ShapeError{Op: "layernorm", What: "feature dimension", Expected: 4, Actual: 5}
	assert.Equal(t, "layernorm: feature dimension mismatch: expected 4, got 5", exact.Error())

	bound := &ShapeError{Op: "attention", What: "sequence length", Expected: 8, Actual: 9, Bound: true}
	assert.Equal(t, "attention: sequence length 9 exceeds limit 8", bound.Error())
	assert.ErrorIs(t, bound, ErrShape)
}
