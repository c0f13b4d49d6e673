package attention

import (
	"fmt"

	"github.com/xandie985/nanoGPT/pkg/model"
	"github.com/xandie985/nanoGPT/pkg/tensor"
)

// Sublayer is the feed-forward half of a transformer block. It is supplied by
// the enclosing model.
type Sublayer interface {
	Forward(x *tensor.Tensor, mode model.Mode) (*tensor.Tensor, error)
}

// Block implements a single pre-norm transformer block.
//
// Architecture (per block):
//  1. x = x + Attn(Norm1(x))
//  2. x = x + MLP(Norm2(x))    # only when MLP is set
//
// Attn applies its own residual dropout, so the block adds none.
type Block struct {
	Norm1 *model.LayerNorm // Pre-attention
	Attn  *CausalSelfAttention
	Norm2 *model.LayerNorm // Pre-MLP
	MLP   Sublayer
}

// NewBlock creates a transformer block around a new attention layer.
// mlp may be nil, in which case the block is attention-only.
func NewBlock(cfg model.Config, mlp Sublayer, opts ...Option) (*Block, error) {
	attn, err := NewCausalSelfAttention(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Block{
		Norm1: model.NewLayerNorm(cfg.EmbeddingDim, cfg.Bias),
		Attn:  attn,
		Norm2: model.NewLayerNorm(cfg.EmbeddingDim, cfg.Bias),
		MLP:   mlp,
	}, nil
}

// Forward computes one transformer block.
//
// Input shape: (batch, seq, emb_dim)
// Output shape: (batch, seq, emb_dim)
func (b *Block) Forward(x *tensor.Tensor, mode model.Mode) (*tensor.Tensor, error) {
	normed, err := b.Norm1.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("failed to apply Norm1: %w", err)
	}
	attnOut, err := b.Attn.Forward(normed, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to compute attention: %w", err)
	}
	x, err = tensor.Add(x, attnOut)
	if err != nil {
		return nil, fmt.Errorf("failed to add attention residual: %w", err)
	}

	if b.MLP == nil {
		return x, nil
	}

	normed, err = b.Norm2.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("failed to apply Norm2: %w", err)
	}
	ffOut, err := b.MLP.Forward(normed, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to compute feed-forward: %w", err)
	}
	x, err = tensor.Add(x, ffOut)
	if err != nil {
		return nil, fmt.Errorf("failed to add feed-forward residual: %w", err)
	}
	return x, nil
}

// Parameters returns ln_1.*, attn.* and ln_2.* parameters. The MLP owns its
// own parameters.
func (b *Block) Parameters() []model.Param {
	params := model.Prefixed("ln_1", b.Norm1.Parameters())
	params = append(params, model.Prefixed("attn", b.Attn.Parameters())...)
	return append(params, model.Prefixed("ln_2", b.Norm2.Parameters())...)
}
