package model

import (
	"fmt"

	"github.com/xandie985/nanoGPT/pkg/tensor"
)

// Bias is an optional additive vector. It is either WithBias or NoBias;
// there are no other implementations.
type Bias interface {
	isBias()
}

// WithBias carries a learnable vector added along the trailing dimension.
type WithBias struct {
	Vector *tensor.Tensor
}

// NoBias is the absent bias; adding it is the identity.
type NoBias struct{}

func (WithBias) isBias() {}
func (NoBias) isBias()   {}

// NewBias returns a zero-initialized WithBias of length n when enabled and
// NoBias otherwise.
func NewBias(enabled bool, n int) Bias {
	if !enabled {
		return NoBias{}
	}
	return WithBias{Vector: tensor.NewTensor([]int{n})}
}

// applyBias adds b to x along the trailing dimension.
func applyBias(x *tensor.Tensor, b Bias) (*tensor.Tensor, error) {
	switch b := b.(type) {
	case WithBias:
		return tensor.AddRow(x, b.Vector)
	case NoBias:
		return x, nil
	default:
		panic(fmt.Sprintf("unknown bias variant %T", b))
	}
}

// biasParams returns the named parameter list for b (empty for NoBias).
func biasParams(name string, b Bias) []Param {
	switch b := b.(type) {
	case WithBias:
		return []Param{{Name: name, Tensor: b.Vector}}
	case NoBias:
		return nil
	default:
		panic(fmt.Sprintf("unknown bias variant %T", b))
	}
}
