package model

import (
	"fmt"
	"math"

	"github.com/xandie985/nanoGPT/pkg/tensor"
)

// LayerNormEps is the variance floor used by every LayerNorm.
const LayerNormEps = 1e-5

// LayerNorm implements layer normalization with a learnable scale and an
// optional learnable shift.
//
// LayerNorm normalizes the input across the last dimension (feature dimension)
// and applies a learned scale (gamma) and, when enabled, shift (beta).
//
// Formula:
//
//	mean = mean(x, dim=-1, keepdim=True)
//	var = var(x, dim=-1, keepdim=True)   # population variance
//	x_norm = (x - mean) / sqrt(var + eps)
//	output = x_norm * scale + shift
//
// With Shift set to NoBias the "+ shift" term is omitted, which is the
// bias-free variant some trained GPT checkpoints use.
type LayerNorm struct {
	Scale *tensor.Tensor // (emb_dim,) - gamma parameter
	Shift Bias           // (emb_dim,) beta parameter, or NoBias
	Eps   float32        // Small constant for numerical stability
}

// NewLayerNorm creates a new LayerNorm layer.
//
// Parameters:
//   - embDim: embedding dimension
//   - bias: whether to allocate a shift vector
//
// Returns:
//   - Initialized LayerNorm with scale=1 and shift=0 (or no shift)
func NewLayerNorm(embDim int, bias bool) *LayerNorm {
	return &LayerNorm{
		Scale: tensor.Full([]int{embDim}, 1),
		Shift: NewBias(bias, embDim),
		Eps:   LayerNormEps,
	}
}

// Forward applies layer normalization to the input.
//
// Input shape: (batch, seq, emb_dim) or any shape where last dim is emb_dim
// Output shape: same as input
//
// The normalization is applied independently to each position in the sequence.
func (ln *LayerNorm) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) == 0 {
		return nil, fmt.Errorf("cannot apply LayerNorm to 0D tensor")
	}

	lastDim := x.Shape[len(x.Shape)-1]
	if lastDim != ln.Scale.Size() {
		return nil, &tensor.ShapeError{Op: "layernorm", What: "feature dimension",
			Expected: ln.Scale.Size(), Actual: lastDim}
	}

	src := x.Contiguous()
	result := tensor.NewTensor(x.Shape)
	if lastDim == 0 {
		return result, nil
	}
	scale := ln.Scale.Contiguous().Data

	for offset := 0; offset < len(result.Data); offset += lastDim {
		row := src.Data[offset : offset+lastDim]

		// Step 1: Compute mean
		var mean float64
		for _, v := range row {
			mean += float64(v)
		}
		mean /= float64(lastDim)

		// Step 2: Compute variance
		var variance float64
		for _, v := range row {
			diff := float64(v) - mean
			variance += diff * diff
		}
		variance /= float64(lastDim)

		// Step 3: Normalize and apply scale
		invStd := 1.0 / math.Sqrt(variance+float64(ln.Eps))
		out := result.Data[offset : offset+lastDim]
		for i, v := range row {
			out[i] = float32((float64(v)-mean)*invStd) * scale[i]
		}
	}

	// Step 4: Apply shift
	out, err := applyBias(result, ln.Shift)
	if err != nil {
		return nil, fmt.Errorf("failed to apply layernorm shift: %w", err)
	}
	return out, nil
}

// Parameters returns the learnable tensors: "weight" and, with a shift, "bias".
func (ln *LayerNorm) Parameters() []Param {
	params := []Param{{Name: "weight", Tensor: ln.Scale}}
	return append(params, biasParams("bias", ln.Shift)...)
}
