package attention

import (
	"fmt"
	"math/rand"

	"github.com/xandie985/nanoGPT/pkg/tensor"
)

// KernelKind identifies the execution strategy an attention instance uses.
type KernelKind int

const (
	// KindFused streams over keys with an online softmax and never builds
	// the score matrix or a mask tensor.
	KindFused KernelKind = iota + 1
	// KindExplicit materializes scores, masks them with a precomputed
	// triangular matrix, then applies softmax, dropout and the value product.
	KindExplicit
)

func (k KernelKind) String() string {
	switch k {
	case KindFused:
		return "fused"
	case KindExplicit:
		return "explicit"
	default:
		return fmt.Sprintf("KernelKind(%d)", int(k))
	}
}

// Dropout describes the attention-weight dropout for one forward call.
// The zero value is inactive.
type Dropout struct {
	P   float32
	Rng *rand.Rand
}

// Active reports whether any element may be dropped.
func (d Dropout) Active() bool {
	return d.Rng != nil && d.P > 0
}

// Kernel computes causal scaled dot-product attention.
//
// q, k and v have shape (batch, heads, seq, head_dim); the result has the
// same shape and is contiguous. Position i attends to positions 0..i only.
type Kernel interface {
	Kind() KernelKind
	Attend(q, k, v *tensor.Tensor, drop Dropout) (*tensor.Tensor, error)
}

// checkHeads validates that q, k and v share one (B, H, T, hd) shape.
func checkHeads(q, k, v *tensor.Tensor) error {
	if len(q.Shape) != 4 {
		return fmt.Errorf("expected 4D query (batch, heads, seq, head_dim), got shape %v", q.Shape)
	}
	if !q.ShapeEquals(k) || !q.ShapeEquals(v) {
		return fmt.Errorf("query, key and value shapes differ: %v, %v, %v", q.Shape, k.Shape, v.Shape)
	}
	return nil
}
