package tensor

import (
	"fmt"
	"math/rand"
)

// Dropout randomly zeros out elements with probability p during training.
// During inference (training=false), returns an unchanged copy of the input.
//
// Parameters:
//   - p: dropout probability in [0, 1)
//   - training: if true, apply dropout; if false, return input unchanged
//   - rng: random source used to draw the keep decisions; required when
//     training with p > 0
//
// Kept values are scaled by 1/(1-p) (inverted dropout), so the expected value
// of every element is preserved and no rescaling is needed at inference.
func (t *Tensor) Dropout(p float32, training bool, rng *rand.Rand) *Tensor {
	if !training || p == 0 {
		return t.Clone()
	}

	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("dropout probability must be in [0, 1), got %v", p))
	}
	if rng == nil {
		panic("dropout in training mode requires a random source")
	}

	result := t.Clone()
	scale := 1 / (1 - p)
	for i := range result.Data {
		if Keep(rng, p) {
			result.Data[i] *= scale
		} else {
			result.Data[i] = 0
		}
	}

	return result
}

// Keep draws one inverted-dropout decision: true with probability 1-p.
func Keep(rng *rand.Rand, p float32) bool {
	return rng.Float32() >= p
}

// ApplyDropout applies dropout to a tensor using the given probability and training mode.
// This is a convenience function that calls the Dropout method.
func ApplyDropout(t *Tensor, p float32, training bool, rng *rand.Rand) *Tensor {
	return t.Dropout(p, training, rng)
}
