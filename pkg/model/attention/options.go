package attention

import (
	"log/slog"
	"math/rand"
	"time"
)

// KernelChoice is the requested kernel; it is resolved to a Kernel once per
// instance at construction.
type KernelChoice int

const (
	// KernelAuto uses the fused kernel when Capabilities allow it and falls
	// back to the explicit kernel with a warning otherwise.
	KernelAuto KernelChoice = iota
	// KernelFused always uses the fused kernel.
	KernelFused
	// KernelExplicit always uses the explicit masked kernel.
	KernelExplicit
)

func (c KernelChoice) String() string {
	switch c {
	case KernelAuto:
		return "auto"
	case KernelFused:
		return "fused"
	case KernelExplicit:
		return "explicit"
	default:
		return "unknown"
	}
}

// ParseKernelChoice maps "auto", "fused" or "explicit" to a KernelChoice.
func ParseKernelChoice(s string) (KernelChoice, bool) {
	for _, c := range []KernelChoice{KernelAuto, KernelFused, KernelExplicit} {
		if c.String() == s {
			return c, true
		}
	}
	return KernelAuto, false
}

type options struct {
	logger  *slog.Logger
	rng     *rand.Rand
	choice  KernelChoice
	caps    *Capabilities
	workers int
}

// Option configures a CausalSelfAttention.
type Option func(*options)

// WithLogger sets the logger used for construction-time diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRand sets the random source for weight initialization and dropout.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

// WithKernel requests a specific kernel.
func WithKernel(choice KernelChoice) Option {
	return func(o *options) { o.choice = choice }
}

// WithCapabilities overrides the detected Capabilities.
func WithCapabilities(caps Capabilities) Option {
	return func(o *options) { o.caps = &caps }
}

// WithWorkers bounds the number of heads the fused kernel evaluates
// concurrently. Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if o.caps == nil {
		caps := processCapabilities()
		o.caps = &caps
	}
	return o
}
