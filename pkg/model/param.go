package model

import "github.com/xandie985/nanoGPT/pkg/tensor"

// Param is a named learnable tensor. Names follow the PyTorch state-dict
// convention of the reference GPT implementation ("weight", "c_attn.bias").
type Param struct {
	Name   string
	Tensor *tensor.Tensor
}

// Prefixed returns params with prefix + "." prepended to every name.
func Prefixed(prefix string, params []Param) []Param {
	out := make([]Param, len(params))
	for i, p := range params {
		out[i] = Param{Name: prefix + "." + p.Name, Tensor: p.Tensor}
	}
	return out
}

// CountParams returns the total number of scalar parameters.
func CountParams(params []Param) int {
	n := 0
	for _, p := range params {
		n += p.Tensor.Size()
	}
	return n
}
