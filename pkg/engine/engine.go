package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/wildfunctions/acme/pkg/fitness"
	"github.com/wildfunctions/acme/pkg/genome"
	"github.com/wildfunctions/acme/pkg/pool"
	"github.com/wildfunctions/acme/pkg/strategy"
)

// Candidate is a scored model structure.
type Candidate = Chromosome[genome.Genome, fitness.Likelihood]

// Engine is one structure search session. It owns the fitness cache, so
// sessions never share evaluated structures unless seeded explicitly.
type Engine struct {
	cfg       Config
	runID     string
	pool      pool.Pool
	evaluator *fitness.Evaluator
	rng       *rand.Rand

	// Log receives progress lines; stderr by default.
	Log io.Writer
	// OnImprovement, if set, is called for every improvement.
	OnImprovement func(ImprovementReport)
}

// New creates a session that calibrates structures with oracle.
func New(cfg Config, oracle fitness.Oracle) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if oracle == nil {
		return nil, fmt.Errorf("engine needs a calibration oracle")
	}
	p, err := pool.Get(cfg.Pool)
	if err != nil {
		return nil, err
	}
	mode, err := genome.ParseReduceMode(cfg.Reduce)
	if err != nil {
		return nil, err
	}
	keyMode, err := fitness.ParseKeyMode(cfg.CacheKey)
	if err != nil {
		return nil, err
	}

	if cfg.Seed == 0 {
		cfg.Seed = rand.Int63()
	}

	return &Engine{
		cfg:   cfg,
		runID: uuid.NewString(),
		pool:  p,
		evaluator: &fitness.Evaluator{
			Universe: p.Universe(),
			Mode:     mode,
			Cache:    fitness.NewCache(keyMode),
			Oracle:   oracle,
			MaxCalls: cfg.MaxEvaluations,
		},
		rng: rand.New(rand.NewSource(cfg.Seed)),
		Log: os.Stderr,
	}, nil
}

// RunID identifies this session in stores and result files.
func (e *Engine) RunID() string { return e.runID }

// Config returns the session config with the seed resolved.
func (e *Engine) Config() Config { return e.cfg }

// Cache returns the session's fitness cache.
func (e *Engine) Cache() *fitness.Cache { return e.evaluator.Cache }

// Universe returns the gene universe of the session's pool.
func (e *Engine) Universe() *genome.Universe { return e.pool.Universe() }

// Evaluator returns the session's evaluator.
func (e *Engine) Evaluator() *fitness.Evaluator { return e.evaluator }

// SetObserver installs a callback run after every evaluation.
func (e *Engine) SetObserver(fn func(fitness.Evaluation)) {
	e.evaluator.Observer = fn
}

// Improver builds a fresh improvement loop over the session's pool, cache and rng.
func (e *Engine) Improver() (*Improver[genome.Genome, fitness.Likelihood], error) {
	u := e.pool.Universe()
	ops := Operators[genome.Genome, fitness.Likelihood]{
		Create: func(rng *rand.Rand) genome.Genome {
			return e.pool.Create(rng, e.cfg.Threshold, false)
		},
		Mutate: func(g genome.Genome, rng *rand.Rand) genome.Genome {
			child := g.Clone()
			strategy.MutateGenome(&child, u, rng, e.cfg.MaxChanges)
			return child
		},
		Crossover: strategy.CrossoverGenomes,
		Fitness: func(ctx context.Context, g genome.Genome) (fitness.Likelihood, error) {
			l, err := e.evaluator.Evaluate(ctx, g)
			if errors.Is(err, fitness.ErrEvaluationLimit) {
				return l, fmt.Errorf("%w: %v", ErrBudgetExhausted, err)
			}
			return l, err
		},
	}
	return NewImprover(ops, Options{
		PoolSize:           e.cfg.PoolSize,
		MaxAge:             e.cfg.MaxAge,
		Crossover:          e.cfg.Crossover,
		AdaptiveStrategies: e.cfg.AdaptiveStrategies,
		Rand:               e.rng,
	})
}

// Run executes every search stage and returns the final report. Stage i
// stops once a candidate reaches TargetFitness + i*ObjectiveIncrement or its
// time budget ends. Running out of evaluations or a cancelled ctx ends the
// whole run; the report still covers what was found.
func (e *Engine) Run(ctx context.Context) (FinalReport, error) {
	stages := e.cfg.SearchIterations
	if stages < 1 {
		stages = 1
	}

	budget := "unlimited"
	if e.cfg.MaxEvaluations > 0 {
		budget = fmt.Sprintf("%d", e.cfg.MaxEvaluations)
	}
	fmt.Fprintf(e.Log, "Starting run %s, pool %s, pool size %d, max age %d, crossover %v, reduce %s, cache key %s, %s evaluations, seed %d\n",
		e.runID, e.cfg.Pool, e.cfg.PoolSize, e.cfg.MaxAge, e.cfg.Crossover, e.cfg.Reduce, e.cfg.CacheKey, budget, e.cfg.Seed)

	start := time.Now()
	var best Candidate
	found := false
	var stageReports []StageReport
	var runErr error

	for i := 0; i < stages; i++ {
		target := fitness.Likelihood(e.cfg.TargetFitness + float64(i)*e.cfg.ObjectiveIncrement)
		fmt.Fprintf(e.Log, "\n=== Stage %d, target %.4f ===\n", i+1, float64(target))

		sr, c, ok, err := e.runStage(ctx, i+1, target)
		stageReports = append(stageReports, sr)
		if ok && (!found || c.Fitness.Greater(best.Fitness)) {
			best, found = c, true
		}
		if err != nil {
			runErr = err
			break
		}
	}

	report := e.finalReport(best, found, stageReports, time.Since(start))
	if runErr != nil && !errors.Is(runErr, ErrBudgetExhausted) {
		return report, runErr
	}
	return report, nil
}

// runStage pulls improvements until the target is met. A stage whose own
// deadline passes is not an error; anything that should end the run is.
func (e *Engine) runStage(ctx context.Context, stage int, target fitness.Likelihood) (StageReport, Candidate, bool, error) {
	stageCtx := ctx
	if e.cfg.MaxSeconds > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.MaxSeconds*float64(time.Second)))
		defer cancel()
	}

	sr := StageReport{Stage: stage, Target: target}
	im, err := e.Improver()
	if err != nil {
		return sr, Candidate{}, false, err
	}

	start := time.Now()
	callsBefore := e.evaluator.Calls()
	for {
		c, err := im.Next(stageCtx)
		if err != nil {
			best, ok := im.Best()
			sr.fill(best, ok, e.evaluator, start, callsBefore)
			if errors.Is(err, ErrBudgetExhausted) && ctx.Err() == nil && stageCtx.Err() != nil {
				fmt.Fprintf(e.Log, "[stage %d] time budget of %gs spent\n", stage, e.cfg.MaxSeconds)
				return sr, best, ok, nil
			}
			fmt.Fprintf(e.Log, "[stage %d] stopped: %v\n", stage, err)
			return sr, best, ok, err
		}

		sr.Improvements++
		e.display(stage, c, start)
		if !target.Greater(c.Fitness) {
			sr.Met = true
			sr.fill(c, true, e.evaluator, start, callsBefore)
			return sr, c, true, nil
		}
	}
}

func (e *Engine) display(stage int, c Candidate, start time.Time) {
	repaired := genome.EnsureOutletPath(c.Genes, e.pool.Universe())
	effective := e.evaluator.Effective(c.Genes)
	r := ImprovementReport{
		Stage:     stage,
		Genes:     c.Genes.String(),
		Effective: effective.String(),
		Activity:  activity(repaired, effective),
		Fitness:   c.Fitness,
		Strategy:  c.Strategy.String(),
		Elapsed:   time.Since(start),
	}
	WriteImprovement(e.Log, r)
	if e.OnImprovement != nil {
		e.OnImprovement(r)
	}
}

// activity is the share of repaired genes that survive reduction, in percent.
func activity(raw, effective genome.Genome) float64 {
	if len(raw) == 0 {
		return 0
	}
	return 100 * float64(len(effective.Set())) / float64(len(raw.Set()))
}
