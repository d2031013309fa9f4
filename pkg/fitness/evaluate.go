package fitness

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/wildfunctions/acme/pkg/genome"
)

// ErrEvaluationLimit is returned once the evaluator has spent its oracle budget.
var ErrEvaluationLimit = errors.New("evaluation limit reached")

// Oracle calibrates a structure and returns the best likelihood it found.
// A diverged simulation may be reported either as an error or as NaN.
type Oracle interface {
	Calibrate(ctx context.Context, structure genome.Genome) (float64, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, structure genome.Genome) (float64, error)

func (f OracleFunc) Calibrate(ctx context.Context, structure genome.Genome) (float64, error) {
	return f(ctx, structure)
}

// Evaluation describes one Evaluate call, for logging and metrics.
type Evaluation struct {
	Raw        genome.Genome
	Effective  genome.Genome
	Likelihood Likelihood
	Cached     bool
	Err        error // oracle error that was turned into an unusable score
	Elapsed    time.Duration
}

// Evaluator scores genomes: repair, reduce, look up, calibrate, store.
type Evaluator struct {
	Universe *genome.Universe
	Mode     genome.ReduceMode
	Cache    *Cache
	Oracle   Oracle

	// MaxCalls bounds the number of oracle calls; zero means unbounded.
	MaxCalls int
	// Observer, if set, is called after every evaluation.
	Observer func(Evaluation)

	calls int
}

// Calls returns how many times the oracle has been invoked.
func (e *Evaluator) Calls() int { return e.calls }

// Effective returns the repaired and reduced structure of g.
func (e *Evaluator) Effective(g genome.Genome) genome.Genome {
	return genome.Effective(g, e.Universe, e.Mode)
}

// Evaluate returns the likelihood of g. Structures already in the cache are
// not recalibrated. Failed calibrations score Unusable; only context
// cancellation and an exhausted budget are returned as errors.
func (e *Evaluator) Evaluate(ctx context.Context, g genome.Genome) (Likelihood, error) {
	start := time.Now()
	raw := genome.EnsureOutletPath(g, e.Universe)
	effective := genome.Effective(raw, e.Universe, e.Mode)

	if l, ok := e.Cache.Lookup(raw, effective); ok {
		e.observe(Evaluation{Raw: raw, Effective: effective, Likelihood: l, Cached: true, Elapsed: time.Since(start)})
		return l, nil
	}

	if err := ctx.Err(); err != nil {
		return Unusable(), err
	}
	if e.MaxCalls > 0 && e.calls >= e.MaxCalls {
		return Unusable(), ErrEvaluationLimit
	}

	e.calls++
	v, err := e.Oracle.Calibrate(ctx, effective)
	if err != nil && ctx.Err() != nil {
		// Interrupted, not diverged; leave the structure uncached.
		return Unusable(), ctx.Err()
	}

	l := Likelihood(v)
	if err != nil || math.IsInf(v, 0) {
		l = Unusable()
	}
	e.Cache.Store(raw, effective, l)
	e.observe(Evaluation{Raw: raw, Effective: effective, Likelihood: l, Err: err, Elapsed: time.Since(start)})
	return l, nil
}

func (e *Evaluator) observe(ev Evaluation) {
	if e.Observer != nil {
		e.Observer(ev)
	}
}
