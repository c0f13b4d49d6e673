package attention

import (
	"fmt"
	"math"

	"github.com/xandie985/nanoGPT/pkg/tensor"
)

// explicitKernel is the masked fallback:
//
//	att = softmax(mask(q @ kᵀ / sqrt(hd)))
//	y   = dropout(att) @ v
//
// The causal mask covers the full block size and is built once.
type explicitKernel struct {
	mask *tensor.Mask
}

func newExplicitKernel(blockSize int) *explicitKernel {
	return &explicitKernel{mask: tensor.CausalMask(blockSize)}
}

func (e *explicitKernel) Kind() KernelKind { return KindExplicit }

func (e *explicitKernel) Attend(q, k, v *tensor.Tensor, drop Dropout) (*tensor.Tensor, error) {
	if err := checkHeads(q, k, v); err != nil {
		return nil, err
	}

	weights, err := e.weights(q, k)
	if err != nil {
		return nil, err
	}
	weights = weights.Dropout(drop.P, drop.Active(), drop.Rng)

	// (B, H, T, T) @ (B, H, T, hd) -> (B, H, T, hd)
	out, err := tensor.Matmul(weights, v)
	if err != nil {
		return nil, fmt.Errorf("failed to apply attention to V: %w", err)
	}
	return out, nil
}

// weights returns the masked, softmax-normalized attention matrix
// (B, H, T, T) before dropout.
func (e *explicitKernel) weights(q, k *tensor.Tensor) (*tensor.Tensor, error) {
	headDim := q.Shape[3]

	kt, err := k.Transpose(2, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to transpose K: %w", err)
	}
	scores, err := tensor.Matmul(q, kt)
	if err != nil {
		return nil, fmt.Errorf("failed to compute attention scores: %w", err)
	}
	scores = scores.Scale(float32(1 / math.Sqrt(float64(headDim))))

	scores, err = tensor.ApplyMask(scores, e.mask)
	if err != nil {
		return nil, fmt.Errorf("failed to apply causal mask: %w", err)
	}

	weights, err := tensor.Softmax(scores, len(scores.Shape)-1)
	if err != nil {
		return nil, fmt.Errorf("failed to apply softmax: %w", err)
	}
	return weights, nil
}
