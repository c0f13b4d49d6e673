package attention

import (
	"os"
	"runtime"
	"strconv"
	"sync"

	"golang.org/x/sys/cpu"
)

// EnvNoFusedAttention disables the fused kernel for the whole process when
// set to a true value ("1", "true", ...).
const EnvNoFusedAttention = "NANOGPT_NO_FUSED_ATTENTION"

// Capabilities describes whether the fused attention kernel can run here.
type Capabilities struct {
	Fused bool
	// Reason explains why Fused is false; empty otherwise.
	Reason string
}

// DetectCapabilities inspects the environment and the CPU. The fused kernel
// relies on vectorized dot/axpy and is only selected where the CPU has a
// vector unit the BLAS routines use (AVX2+FMA on amd64, ASIMD on arm64).
func DetectCapabilities() Capabilities {
	if v, ok := os.LookupEnv(EnvNoFusedAttention); ok {
		if disabled, err := strconv.ParseBool(v); err == nil && disabled {
			return Capabilities{Reason: "disabled by " + EnvNoFusedAttention}
		}
	}

	switch runtime.GOARCH {
	case "amd64":
		if cpu.X86.HasAVX2 && cpu.X86.HasFMA {
			return Capabilities{Fused: true}
		}
		return Capabilities{Reason: "amd64 CPU lacks AVX2/FMA"}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			return Capabilities{Fused: true}
		}
		return Capabilities{Reason: "arm64 CPU lacks ASIMD"}
	default:
		return Capabilities{Reason: "no vector unit support for GOARCH=" + runtime.GOARCH}
	}
}

// processCapabilities is detected on first use and reused by every instance.
var processCapabilities = sync.OnceValue(DetectCapabilities)
