// Command attncheck builds one causal self-attention layer per kernel from the
// same seed, runs both on the same random input and reports how far apart
// their outputs are.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/xandie985/nanoGPT/pkg/model"
	"github.com/xandie985/nanoGPT/pkg/model/attention"
	"github.com/xandie985/nanoGPT/pkg/tensor"
)

type flags struct {
	embd      int
	heads     int
	blockSize int
	batch     int
	seq       int
	seed      int64
	bias      bool
	dropout   float32
	tolerance float32
	verbose   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	defaults := model.DefaultConfig()
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "attncheck",
		Short: "Compare the fused and explicit causal attention kernels",
		Long: "attncheck initializes a fused-kernel and an explicit-kernel attention layer " +
			"with identical weights, runs an eval-mode forward pass on random input and " +
			"fails if their outputs differ by more than --tolerance.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level := slog.LevelInfo
			if f.verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return run(f, logger)
		},
	}

	bindFlags(cmd.Flags(), f, defaults)
	return cmd
}

func bindFlags(fs *pflag.FlagSet, f *flags, defaults model.Config) {
	fs.IntVar(&f.embd, "embd", 64, "embedding dimension")
	fs.IntVar(&f.heads, "heads", 4, "number of attention heads")
	fs.IntVar(&f.blockSize, "block-size", 128, "maximum sequence length")
	fs.IntVar(&f.batch, "batch", 2, "batch size")
	fs.IntVar(&f.seq, "seq", 64, "sequence length of the random input")
	fs.Int64Var(&f.seed, "seed", 1337, "random seed for weights and input")
	fs.BoolVar(&f.bias, "bias", defaults.Bias, "use bias in projections")
	fs.Float32Var(&f.dropout, "dropout", defaults.Dropout, "dropout probability (inactive in eval)")
	fs.Float32Var(&f.tolerance, "tolerance", 1e-4, "maximum allowed absolute difference")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "enable debug logging")
}

func run(f *flags, logger *slog.Logger) error {
	cfg := model.Config{
		EmbeddingDim: f.embd,
		NumHeads:     f.heads,
		BlockSize:    f.blockSize,
		Dropout:      f.dropout,
		Bias:         f.bias,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	caps := attention.DetectCapabilities()
	logger.Info("capabilities", "fused", caps.Fused, "reason", caps.Reason)

	auto, err := attention.NewCausalSelfAttention(cfg,
		attention.WithLogger(logger),
		attention.WithCapabilities(caps),
		attention.WithRand(rand.New(rand.NewSource(f.seed))))
	if err != nil {
		return err
	}
	logger.Info("auto-selected kernel", "kernel", auto.Kernel())

	rng := rand.New(rand.NewSource(f.seed + 1))
	x := tensor.NewTensor([]int{f.batch, f.seq, f.embd})
	for i := range x.Data {
		x.Data[i] = float32(rng.NormFloat64())
	}

	outputs := make(map[attention.KernelKind]*tensor.Tensor, 2)
	for _, choice := range []attention.KernelChoice{attention.KernelFused, attention.KernelExplicit} {
		attn, err := attention.NewCausalSelfAttention(cfg,
			attention.WithLogger(logger),
			attention.WithKernel(choice),
			attention.WithRand(rand.New(rand.NewSource(f.seed))))
		if err != nil {
			return err
		}

		start := time.Now()
		y, err := attn.Forward(x, model.Eval)
		if err != nil {
			return fmt.Errorf("%s forward: %w", choice, err)
		}
		logger.Info("forward", "kernel", attn.Kernel(), "shape", y.ShapeString(), "elapsed", time.Since(start))
		logger.Debug("output", "kernel", attn.Kernel(), "value", y.String())
		outputs[attn.Kernel()] = y
	}

	diff, err := tensor.MaxAbsDiff(outputs[attention.KindFused], outputs[attention.KindExplicit])
	if err != nil {
		return err
	}
	logger.Info("comparison", "max_abs_diff", diff, "tolerance", f.tolerance,
		"params", model.CountParams(auto.Parameters()))

	if diff > f.tolerance {
		return errors.New("fused and explicit kernels disagree beyond tolerance")
	}
	return nil
}
