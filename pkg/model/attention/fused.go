package attention

import (
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/xandie985/nanoGPT/pkg/tensor"
)

// fusedKernel evaluates each (batch, head) pair in one pass over the keys.
//
// For query i it keeps a running maximum m, a running denominator l and an
// unnormalized output accumulator; every key j <= i rescales them by
// exp(m_old - m_new) when the maximum grows. Dropout multiplies the value
// contribution only, so the denominator is that of the undropped softmax,
// matching softmax-then-dropout.
type fusedKernel struct {
	workers int
}

func newFusedKernel(workers int) *fusedKernel {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &fusedKernel{workers: workers}
}

func (f *fusedKernel) Kind() KernelKind { return KindFused }

func (f *fusedKernel) Attend(q, k, v *tensor.Tensor, drop Dropout) (*tensor.Tensor, error) {
	if err := checkHeads(q, k, v); err != nil {
		return nil, err
	}
	q, k, v = q.Contiguous(), k.Contiguous(), v.Contiguous()

	batch, heads, seqLen, headDim := q.Shape[0], q.Shape[1], q.Shape[2], q.Shape[3]
	out := tensor.NewTensor(q.Shape)
	if seqLen == 0 || headDim == 0 {
		return out, nil
	}
	scale := float32(1 / math.Sqrt(float64(headDim)))
	stride := seqLen * headDim

	// Seeds are drawn up front on this goroutine so the result depends only
	// on drop.Rng, not on scheduling.
	var seeds []int64
	if drop.Active() {
		seeds = make([]int64, batch*heads)
		for i := range seeds {
			seeds[i] = drop.Rng.Int63()
		}
	}

	var g errgroup.Group
	g.SetLimit(f.workers)
	for idx := 0; idx < batch*heads; idx++ {
		off := idx * stride
		var rng *rand.Rand
		if seeds != nil {
			rng = rand.New(rand.NewSource(seeds[idx]))
		}
		g.Go(func() error {
			causalHead(
				q.Data[off:off+stride], k.Data[off:off+stride], v.Data[off:off+stride],
				out.Data[off:off+stride],
				seqLen, headDim, scale, drop.P, rng,
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// causalHead computes one head. q, k, v and out are (seqLen, headDim)
// row-major; rng is nil when dropout is inactive.
func causalHead(q, k, v, out []float32, seqLen, headDim int, scale, p float32, rng *rand.Rand) {
	acc := make([]float32, headDim)
	keepScale := float32(1)
	if rng != nil {
		keepScale = 1 / (1 - p)
	}

	for i := 0; i < seqLen; i++ {
		qi := vec(q[i*headDim : (i+1)*headDim])
		runMax := math.Inf(-1)
		var runSum float64
		clear(acc)

		for j := 0; j <= i; j++ {
			s := float64(blas32.Dot(qi, vec(k[j*headDim:(j+1)*headDim])) * scale)
			if s > runMax {
				corr := math.Exp(runMax - s)
				runSum *= corr
				blas32.Scal(float32(corr), vec(acc))
				runMax = s
			}
			w := math.Exp(s - runMax)
			runSum += w

			if rng != nil {
				if !tensor.Keep(rng, p) {
					continue
				}
				w *= float64(keepScale)
			}
			blas32.Axpy(float32(w), vec(v[j*headDim:(j+1)*headDim]), vec(acc))
		}

		inv := float32(1 / runSum)
		row := out[i*headDim : (i+1)*headDim]
		for d, a := range acc {
			row[d] = a * inv
		}
	}
}

func vec(data []float32) blas32.Vector {
	return blas32.Vector{N: len(data), Data: data, Inc: 1}
}
