package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/wildfunctions/acme/pkg/strategy"
)

// ErrBudgetExhausted is returned when the context ends or the evaluation budget
// runs out before another improvement is found.
var ErrBudgetExhausted = errors.New("search budget exhausted")

// Fitness is implemented by score types. Greater must be a strict order: a
// value is never greater than itself.
type Fitness[F any] interface {
	Greater(other F) bool
}

// Chromosome is a scored candidate.
type Chromosome[G any, F any] struct {
	Genes    G
	Fitness  F
	Age      int
	Strategy strategy.Strategy
}

// Operators supply the problem specific parts of the search. Mutate must not
// modify its argument. Crossover may be nil; it reports ok=false when the two
// inputs cannot produce anything new.
type Operators[G any, F any] struct {
	Create    func(rng *rand.Rand) G
	Mutate    func(g G, rng *rand.Rand) G
	Crossover func(parent, donor G, rng *rand.Rand) (child G, ok bool)
	Fitness   func(ctx context.Context, g G) (F, error)
}

// Options tune the improvement loop.
type Options struct {
	PoolSize int
	// MaxAge is how many failed children a parent tolerates before the
	// annealing decision; zero disables aging.
	MaxAge int
	// Crossover picks uniformly between mutation and crossover when set.
	Crossover bool
	// AdaptiveStrategies appends the strategy of every improvement to the
	// pick list, so successful strategies are chosen more often.
	AdaptiveStrategies bool
	Rand               *rand.Rand
}

// Improver is a pull-based improvement search over a pool of parents. Each
// call to Next runs until a candidate beats every earlier one.
type Improver[G any, F Fitness[F]] struct {
	ops  Operators[G, F]
	opts Options
	rng  *rand.Rand

	parents    []Chromosome[G, F]
	best       Chromosome[G, F]
	historical []F // fitness of every yielded improvement, ascending
	pindex     int
	strategies []strategy.Strategy
	started    bool
}

// NewImprover validates the operators and options.
func NewImprover[G any, F Fitness[F]](ops Operators[G, F], opts Options) (*Improver[G, F], error) {
	if ops.Create == nil || ops.Mutate == nil || ops.Fitness == nil {
		return nil, fmt.Errorf("improver needs create, mutate and fitness operators")
	}
	if opts.Crossover && ops.Crossover == nil {
		return nil, fmt.Errorf("crossover enabled without a crossover operator")
	}
	if opts.PoolSize < 1 {
		opts.PoolSize = 1
	}
	if opts.MaxAge < 0 {
		opts.MaxAge = 0
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	strategies := []strategy.Strategy{strategy.Mutate}
	if opts.Crossover {
		strategies = append(strategies, strategy.Crossover)
	}
	return &Improver[G, F]{
		ops:        ops,
		opts:       opts,
		rng:        rng,
		strategies: strategies,
		pindex:     1,
	}, nil
}

// Best returns the best candidate found so far.
func (im *Improver[G, F]) Best() (Chromosome[G, F], bool) {
	return im.best, im.started
}

// Parents returns a copy of the current pool.
func (im *Improver[G, F]) Parents() []Chromosome[G, F] {
	out := make([]Chromosome[G, F], len(im.parents))
	copy(out, im.parents)
	return out
}

// Next returns the next improvement. The first call returns the initial
// candidate. When ctx ends or a fitness call reports ErrBudgetExhausted, the
// best candidate so far is returned along with an error wrapping
// ErrBudgetExhausted. Other fitness errors are returned as is.
func (im *Improver[G, F]) Next(ctx context.Context) (Chromosome[G, F], error) {
	if !im.started {
		first, err := im.create(ctx)
		if err != nil {
			return first, im.fail(ctx, err)
		}
		im.started = true
		im.best = first
		im.parents = []Chromosome[G, F]{first}
		im.historical = []F{first.Fitness}
		return first, nil
	}

	for len(im.parents) < im.opts.PoolSize {
		if err := ctx.Err(); err != nil {
			return im.best, im.fail(ctx, err)
		}
		parent, err := im.create(ctx)
		if err != nil {
			return im.best, im.fail(ctx, err)
		}
		im.parents = append(im.parents, parent)
		if parent.Fitness.Greater(im.best.Fitness) {
			im.improve(parent)
			return parent, nil
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return im.best, im.fail(ctx, err)
		}
		if c, ok, err := im.step(ctx); err != nil {
			return im.best, im.fail(ctx, err)
		} else if ok {
			return c, nil
		}
	}
}

// step breeds one child from the next parent and reports whether it is a new best.
func (im *Improver[G, F]) step(ctx context.Context) (Chromosome[G, F], bool, error) {
	if im.pindex > 0 {
		im.pindex--
	} else {
		im.pindex = len(im.parents) - 1
	}
	idx := im.pindex
	parent := im.parents[idx]

	child, err := im.breed(ctx, idx)
	if err != nil {
		return child, false, err
	}

	if parent.Fitness.Greater(child.Fitness) {
		if im.opts.MaxAge == 0 {
			return child, false, nil
		}
		im.parents[idx].Age++
		if im.opts.MaxAge > im.parents[idx].Age {
			return child, false, nil
		}
		if im.rng.Float64() < im.acceptance(child.Fitness) {
			im.parents[idx] = child
			return child, false, nil
		}
		im.best.Age = 0
		im.parents[idx] = im.best
		return child, false, nil
	}

	if !child.Fitness.Greater(parent.Fitness) {
		// Lateral move.
		child.Age = parent.Age + 1
		im.parents[idx] = child
		return child, false, nil
	}

	child.Age = 0
	im.parents[idx] = child
	if child.Fitness.Greater(im.best.Fitness) {
		im.improve(child)
		return child, true, nil
	}
	return child, false, nil
}

// acceptance is the probability of keeping a child worse than its parent:
// exp(-p) where p is the share of past improvements the child does not reach.
func (im *Improver[G, F]) acceptance(f F) float64 {
	n := len(im.historical)
	if n == 0 {
		return 1
	}
	index := sort.Search(n, func(i int) bool { return !f.Greater(im.historical[i]) })
	proportion := float64(n-index) / float64(n)
	return math.Exp(-proportion)
}

func (im *Improver[G, F]) improve(c Chromosome[G, F]) {
	im.best = c
	im.historical = append(im.historical, c.Fitness)
	if im.opts.AdaptiveStrategies {
		im.strategies = append(im.strategies, c.Strategy)
	}
}

func (im *Improver[G, F]) breed(ctx context.Context, idx int) (Chromosome[G, F], error) {
	s := im.strategies[im.rng.Intn(len(im.strategies))]
	switch s {
	case strategy.Create:
		return im.create(ctx)
	case strategy.Crossover:
		return im.crossover(ctx, idx)
	default:
		return im.mutate(ctx, im.parents[idx])
	}
}

func (im *Improver[G, F]) create(ctx context.Context) (Chromosome[G, F], error) {
	genes := im.ops.Create(im.rng)
	f, err := im.ops.Fitness(ctx, genes)
	return Chromosome[G, F]{Genes: genes, Fitness: f, Strategy: strategy.Create}, err
}

func (im *Improver[G, F]) mutate(ctx context.Context, parent Chromosome[G, F]) (Chromosome[G, F], error) {
	genes := im.ops.Mutate(parent.Genes, im.rng)
	f, err := im.ops.Fitness(ctx, genes)
	return Chromosome[G, F]{Genes: genes, Fitness: f, Strategy: strategy.Mutate}, err
}

// crossover joins the parent with a random other pool member. When the two
// are indistinguishable the donor slot is refilled and the parent mutated.
func (im *Improver[G, F]) crossover(ctx context.Context, idx int) (Chromosome[G, F], error) {
	donor := im.rng.Intn(len(im.parents))
	if donor == idx {
		donor = (donor + 1) % len(im.parents)
	}
	genes, ok := im.ops.Crossover(im.parents[idx].Genes, im.parents[donor].Genes, im.rng)
	if !ok {
		fresh, err := im.create(ctx)
		if err != nil {
			return fresh, err
		}
		im.parents[donor] = fresh
		return im.mutate(ctx, im.parents[idx])
	}
	f, err := im.ops.Fitness(ctx, genes)
	return Chromosome[G, F]{Genes: genes, Fitness: f, Strategy: strategy.Crossover}, err
}

func (im *Improver[G, F]) fail(ctx context.Context, err error) error {
	if errors.Is(err, ErrBudgetExhausted) {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrBudgetExhausted, ctx.Err())
	}
	return err
}
