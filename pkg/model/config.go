// Package model provides the configuration and leaf layers shared by the
// GPT-style attention block.
//
// Key pieces:
//   - Config: the hyperparameters read at construction time
//   - Mode: explicit training/evaluation flag passed to every forward call
//   - LayerNorm: normalization over the feature axis with an optional shift
//   - Linear: affine projection with an optional bias
package model

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every error returned from Config.Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the hyperparameters of one attention block.
// A Config is a value; components copy it at construction time.
type Config struct {
	// EmbeddingDim is the width of the residual stream (768 for GPT-2 124M)
	EmbeddingDim int

	// NumHeads is the number of attention heads; must divide EmbeddingDim
	NumHeads int

	// BlockSize is the maximum sequence length (1024 for GPT-2)
	BlockSize int

	// Dropout is the dropout probability applied to attention weights and
	// to the attention output during training
	Dropout float32

	// Bias determines whether LayerNorm and the linear projections carry a
	// bias vector
	Bias bool
}

// DefaultConfig returns the attention configuration of GPT-2 124M.
func DefaultConfig() Config {
	return Config{
		EmbeddingDim: 768,
		NumHeads:     12,
		BlockSize:    1024,
		Dropout:      0.0,
		Bias:         true,
	}
}

// Validate checks if the configuration is valid and consistent.
// Returns an error wrapping ErrInvalidConfig if any parameters are incompatible.
func (c Config) Validate() error {
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("%w: embedding_dim must be positive, got %d", ErrInvalidConfig, c.EmbeddingDim)
	}
	if c.NumHeads <= 0 {
		return fmt.Errorf("%w: num_heads must be positive, got %d", ErrInvalidConfig, c.NumHeads)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("%w: block_size must be positive, got %d", ErrInvalidConfig, c.BlockSize)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("%w: dropout must be in [0, 1), got %v", ErrInvalidConfig, c.Dropout)
	}
	if c.EmbeddingDim%c.NumHeads != 0 {
		return fmt.Errorf("%w: embedding_dim (%d) must be divisible by num_heads (%d)",
			ErrInvalidConfig, c.EmbeddingDim, c.NumHeads)
	}
	return nil
}

// HeadDim returns the dimension per attention head.
func (c Config) HeadDim() int {
	return c.EmbeddingDim / c.NumHeads
}
