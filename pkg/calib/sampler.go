package calib

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"runtime"
	"sort"

	"github.com/maseology/glbopt"
	"github.com/maseology/montecarlo/smpln"
	"github.com/sourcegraph/conc/pool"
)

// ErrUnknownSampler is returned for sampler names not in the registry.
var ErrUnknownSampler = errors.New("unknown sampler")

// EvalFunc scores one point of the unit hypercube. NaN marks a failed run.
// It must be safe for concurrent use.
type EvalFunc func(u []float64) float64

// Sampler drives the parameter search of one structure.
type Sampler interface {
	Name() string
	Sample(ctx context.Context, rng *rand.Rand, dims int, eval EvalFunc) error
}

// SamplerFunc adapts a function to Sampler.
type SamplerFunc func(ctx context.Context, rng *rand.Rand, dims int, eval EvalFunc) error

func (f SamplerFunc) Name() string { return "func" }

func (f SamplerFunc) Sample(ctx context.Context, rng *rand.Rand, dims int, eval EvalFunc) error {
	return f(ctx, rng, dims, eval)
}

// Defaults of the registered samplers.
const (
	DefaultSamples   = 10
	DefaultComplexes = 4
	DefaultSampler   = "lhs"
)

// SamplerOptions configures the registered samplers.
type SamplerOptions struct {
	Samples   int // lhs sample count
	Workers   int // lhs parallel simulations; 0 picks Workers()
	Complexes int // sce complex count
}

var samplers = map[string]func(SamplerOptions) Sampler{
	"lhs": func(o SamplerOptions) Sampler { return &LatinHypercube{Samples: o.Samples, Workers: o.Workers} },
	"sce": func(o SamplerOptions) Sampler { return &ShuffledComplex{Complexes: o.Complexes} },
}

// NewSampler builds a registered sampler.
func NewSampler(name string, opts SamplerOptions) (Sampler, error) {
	mk, ok := samplers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownSampler, name, SamplerNames())
	}
	return mk(opts), nil
}

// SamplerNames returns the registered sampler names, sorted.
func SamplerNames() []string {
	names := make([]string, 0, len(samplers))
	for n := range samplers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Workers is the default parallelism: one simulation at a time, or one per
// CPU when launched under an MPI runtime.
func Workers() int {
	if os.Getenv("OMPI_COMM_WORLD_SIZE") != "" {
		return runtime.NumCPU()
	}
	return 1
}

// LatinHypercube evaluates a stratified random sample of the hypercube.
type LatinHypercube struct {
	Samples int
	Workers int
}

func (s *LatinHypercube) Name() string { return "lhs" }

func (s *LatinHypercube) Sample(ctx context.Context, rng *rand.Rand, dims int, eval EvalFunc) error {
	n := s.Samples
	if n <= 0 {
		n = DefaultSamples
	}
	workers := s.Workers
	if workers <= 0 {
		workers = Workers()
	}

	sp := smpln.NewLHC(rng, n, dims, false)
	p := pool.New().WithMaxGoroutines(workers)
	for k := 0; k < n; k++ {
		if ctx.Err() != nil {
			break
		}
		ut := make([]float64, dims)
		for j := 0; j < dims; j++ {
			ut[j] = sp.U[j][k]
		}
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			eval(ut)
		})
	}
	p.Wait()
	return ctx.Err()
}

// ShuffledComplex runs the shuffled complex evolution optimiser.
type ShuffledComplex struct {
	Complexes int
}

func (s *ShuffledComplex) Name() string { return "sce" }

func (s *ShuffledComplex) Sample(ctx context.Context, rng *rand.Rand, dims int, eval EvalFunc) error {
	n := s.Complexes
	if n <= 0 {
		n = DefaultComplexes
	}
	// The optimiser minimises; failed runs and runs after cancellation rank last.
	gen := func(u []float64) float64 {
		if ctx.Err() != nil {
			return math.MaxFloat64
		}
		l := eval(u)
		if math.IsNaN(l) || math.IsInf(l, 0) {
			return math.MaxFloat64
		}
		return -l
	}
	glbopt.SCE(n, dims, rng, gen, true)
	return ctx.Err()
}
