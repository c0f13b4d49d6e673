package model

import (
	"fmt"
	"math/rand"

	"github.com/xandie985/nanoGPT/pkg/tensor"
)

// InitStd is the standard deviation of the GPT-2 weight initialization.
const InitStd = 0.02

// Linear is an affine projection y = x @ Weight (+ Bias).
type Linear struct {
	Weight *tensor.Tensor // (in, out)
	Bias   Bias           // (out,) or NoBias
}

// NewLinear creates a projection from in to out features. Weights are drawn
// from N(0, InitStd²) using rng; the bias, when enabled, starts at zero.
func NewLinear(in, out int, bias bool, rng *rand.Rand) *Linear {
	weight := tensor.NewTensor([]int{in, out})
	for i := range weight.Data {
		weight.Data[i] = float32(rng.NormFloat64() * InitStd)
	}
	return &Linear{
		Weight: weight,
		Bias:   NewBias(bias, out),
	}
}

// In returns the number of input features.
func (l *Linear) In() int { return l.Weight.Shape[0] }

// Out returns the number of output features.
func (l *Linear) Out() int { return l.Weight.Shape[1] }

// Forward applies the projection.
//
// Input shape: (..., in)
// Output shape: (..., out)
func (l *Linear) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) < 2 {
		return nil, fmt.Errorf("linear expects at least 2D input, got shape %v", x.Shape)
	}
	if got := x.Shape[len(x.Shape)-1]; got != l.In() {
		return nil, &tensor.ShapeError{Op: "linear", What: "input features", Expected: l.In(), Actual: got}
	}

	y, err := tensor.Matmul(x, l.Weight)
	if err != nil {
		return nil, fmt.Errorf("failed to apply weight: %w", err)
	}
	y, err = applyBias(y, l.Bias)
	if err != nil {
		return nil, fmt.Errorf("failed to apply bias: %w", err)
	}
	return y, nil
}

// Parameters returns "weight" and, when present, "bias".
func (l *Linear) Parameters() []Param {
	params := []Param{{Name: "weight", Tensor: l.Weight}}
	return append(params, biasParams("bias", l.Bias)...)
}
