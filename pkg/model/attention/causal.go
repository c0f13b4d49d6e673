// Package attention implements causal multi-head self-attention for GPT-style
// transformer blocks.
//
// CausalSelfAttention projects the input with a single fused QKV matrix,
// splits the result into heads, runs causal scaled dot-product attention with
// one of two kernels and projects the merged heads back:
//   - the fused kernel streams an online softmax over keys j <= i and never
//     materializes the (T, T) score matrix
//   - the explicit kernel builds the score matrix and masks it with a
//     precomputed lower-triangular matrix
//
// The kernel is chosen once per instance; see KernelChoice.
package attention

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/xandie985/nanoGPT/pkg/model"
	"github.com/xandie985/nanoGPT/pkg/tensor"
)

// CausalSelfAttention implements multi-head causal self-attention.
//
// Architecture:
//   - CAttn maps (B, T, C) to (B, T, 3C): query, key and value side by side
//   - Heads are computed in parallel, each over head_dim = C / NumHeads
//   - CProj combines all heads
//
// Parameters are read-only during Forward, so concurrent Forward calls are
// safe as long as no one mutates them at the same time.
type CausalSelfAttention struct {
	Config model.Config

	CAttn *model.Linear // (C, 3C)
	CProj *model.Linear // (C, C)

	kernel Kernel
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand // guarded by mu; seeds per-call dropout streams
}

// NewCausalSelfAttention creates a causal self-attention layer.
//
// The configuration is validated first; an invalid one (for example an
// embedding dimension not divisible by the number of heads) is returned as an
// error wrapping model.ErrInvalidConfig. Weights are drawn from the WithRand
// source: CAttn first, then CProj.
func NewCausalSelfAttention(cfg model.Config, opts ...Option) (*CausalSelfAttention, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	kernel, err := resolveKernel(cfg, o)
	if err != nil {
		return nil, err
	}

	c := cfg.EmbeddingDim
	return &CausalSelfAttention{
		Config: cfg,
		CAttn:  model.NewLinear(c, 3*c, cfg.Bias, o.rng),
		CProj:  model.NewLinear(c, c, cfg.Bias, o.rng),
		kernel: kernel,
		logger: o.logger,
		rng:    o.rng,
	}, nil
}

// resolveKernel turns the requested KernelChoice into a Kernel. Under
// KernelAuto a missing fused capability is logged once, here.
func resolveKernel(cfg model.Config, o options) (Kernel, error) {
	switch o.choice {
	case KernelFused:
		return newFusedKernel(o.workers), nil
	case KernelExplicit:
		return newExplicitKernel(cfg.BlockSize), nil
	case KernelAuto:
		if o.caps.Fused {
			return newFusedKernel(o.workers), nil
		}
		o.logger.Warn("fused attention kernel unavailable, using slow explicit attention",
			"reason", o.caps.Reason,
			"block_size", cfg.BlockSize)
		return newExplicitKernel(cfg.BlockSize), nil
	default:
		return nil, fmt.Errorf("%w: unknown kernel choice %d", model.ErrInvalidConfig, int(o.choice))
	}
}

// Kernel reports which kernel this instance resolved to.
func (a *CausalSelfAttention) Kernel() KernelKind {
	return a.kernel.Kind()
}

// Forward computes causal multi-head self-attention.
//
// Input shape: (batch, seq, emb_dim) with seq <= BlockSize
// Output shape: (batch, seq, emb_dim)
//
// Dropout on the attention weights and on the output is applied only when
// mode is model.Train.
//
// Steps:
//  1. Project to Q, K, V with the fused CAttn matrix
//  2. Split heads: (B, T, C) -> (B, H, T, hd)
//  3. Causal scaled dot-product attention per head
//  4. Merge heads: (B, H, T, hd) -> (B, T, C)
//  5. Output projection and residual dropout
func (a *CausalSelfAttention) Forward(x *tensor.Tensor, mode model.Mode) (*tensor.Tensor, error) {
	if len(x.Shape) != 3 {
		return nil, fmt.Errorf("expected 3D input (batch, seq, emb_dim), got %dD with shape %v: %w",
			len(x.Shape), x.Shape, tensor.ErrShape)
	}
	batchSize, seqLen, embDim := x.Shape[0], x.Shape[1], x.Shape[2]

	if embDim != a.Config.EmbeddingDim {
		return nil, &tensor.ShapeError{Op: "attention", What: "embedding dimension",
			Expected: a.Config.EmbeddingDim, Actual: embDim}
	}
	if seqLen > a.Config.BlockSize {
		return nil, &tensor.ShapeError{Op: "attention", What: "sequence length",
			Expected: a.Config.BlockSize, Actual: seqLen, Bound: true}
	}

	drop := a.dropout(mode)

	// Step 1: Project to Q, K, V
	qkv, err := a.CAttn.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("failed to compute QKV projection: %w", err)
	}
	parts, err := qkv.SplitLast(3)
	if err != nil {
		return nil, fmt.Errorf("failed to split QKV: %w", err)
	}

	// Step 2: Reshape to separate heads
	heads := make([]*tensor.Tensor, len(parts))
	for i, p := range parts {
		if heads[i], err = a.splitHeads(p, batchSize, seqLen); err != nil {
			return nil, err
		}
	}
	q, k, v := heads[0], heads[1], heads[2]

	// Step 3: Attention
	y, err := a.kernel.Attend(q, k, v, drop)
	if err != nil {
		return nil, fmt.Errorf("%s attention failed: %w", a.kernel.Kind(), err)
	}

	// Step 4: Reassemble all head outputs side by side
	y, err = mergeHeads(y, batchSize, seqLen, embDim)
	if err != nil {
		return nil, err
	}

	// Step 5: Output projection
	y, err = a.CProj.Forward(y)
	if err != nil {
		return nil, fmt.Errorf("failed to apply output projection: %w", err)
	}
	return y.Dropout(drop.P, drop.Active(), drop.Rng), nil
}

// splitHeads turns (B, T, C) into a (B, H, T, hd) view.
func (a *CausalSelfAttention) splitHeads(t *tensor.Tensor, batchSize, seqLen int) (*tensor.Tensor, error) {
	split, err := t.View([]int{batchSize, seqLen, a.Config.NumHeads, a.Config.HeadDim()})
	if err != nil {
		return nil, fmt.Errorf("failed to split heads: %w", err)
	}
	return split.Transpose(1, 2)
}

// mergeHeads turns (B, H, T, hd) back into (B, T, C). The transposed view is
// made contiguous before it is reshaped.
func mergeHeads(y *tensor.Tensor, batchSize, seqLen, embDim int) (*tensor.Tensor, error) {
	y, err := y.Transpose(1, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to transpose attention output: %w", err)
	}
	merged, err := y.Contiguous().View([]int{batchSize, seqLen, embDim})
	if err != nil {
		return nil, fmt.Errorf("failed to merge heads: %w", err)
	}
	return merged, nil
}

// dropout returns the dropout settings for one call. In training mode it
// derives a fresh random stream so that a forward call never shares a
// *rand.Rand with another goroutine.
func (a *CausalSelfAttention) dropout(mode model.Mode) Dropout {
	if !mode.Training() || a.Config.Dropout == 0 {
		return Dropout{}
	}
	a.mu.Lock()
	seed := a.rng.Int63()
	a.mu.Unlock()
	return Dropout{P: a.Config.Dropout, Rng: rand.New(rand.NewSource(seed))}
}

// Parameters returns the learnable tensors named as in the GPT-2 state dict:
// c_attn.weight, c_attn.bias, c_proj.weight, c_proj.bias. The causal mask of
// the explicit kernel is derived state and is not included.
func (a *CausalSelfAttention) Parameters() []model.Param {
	params := model.Prefixed("c_attn", a.CAttn.Parameters())
	return append(params, model.Prefixed("c_proj", a.CProj.Parameters())...)
}
