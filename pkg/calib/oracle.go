package calib

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"

	mrg63k3a "github.com/maseology/pnrg/MRG63k3a"

	"github.com/wildfunctions/acme/pkg/genome"
	"github.com/wildfunctions/acme/pkg/hydro"
)

// ErrAllDiverged is returned when no parameter set of a structure could be simulated.
var ErrAllDiverged = errors.New("every simulation diverged")

// Result is the outcome of calibrating one structure.
type Result struct {
	Likelihood float64
	Params     map[string]float64
	// Validation is the objective of the best parameters over the validation
	// period, NaN when no validation period is set.
	Validation float64
	Runs       int
	Diverged   int
}

// Oracle calibrates structures of the lumped bucket model against observed
// discharge and reports the best objective found.
type Oracle struct {
	Forcing     *hydro.Forcing
	Calibration hydro.Period
	Validation  hydro.Period
	Objective   Objective
	Sampler     Sampler
	Seed        int64
}

// NewOracle checks that both periods select data from the forcing.
func NewOracle(f *hydro.Forcing, calibration, validation hydro.Period, obj Objective, s Sampler, seed int64) (*Oracle, error) {
	if f == nil {
		return nil, fmt.Errorf("oracle needs forcing data")
	}
	if _, _, err := f.Window(calibration); err != nil {
		return nil, fmt.Errorf("calibration period: %w", err)
	}
	if !validation.IsZero() {
		if _, _, err := f.Window(validation); err != nil {
			return nil, fmt.Errorf("validation period: %w", err)
		}
	}
	if obj.fn == nil {
		return nil, fmt.Errorf("oracle needs an objective")
	}
	if s == nil {
		return nil, fmt.Errorf("oracle needs a sampler")
	}
	return &Oracle{Forcing: f, Calibration: calibration, Validation: validation, Objective: obj, Sampler: s, Seed: seed}, nil
}

// Calibrate returns the best calibration likelihood of a structure.
func (o *Oracle) Calibrate(ctx context.Context, structure genome.Genome) (float64, error) {
	r, err := o.Fit(ctx, structure)
	if err != nil {
		return math.NaN(), err
	}
	return r.Likelihood, nil
}

// rng returns a generator seeded from the structure, so a structure gets the
// same samples whatever order it is met in.
func (o *Oracle) rng(structure genome.Genome) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(structure.Signature()))
	rng := rand.New(mrg63k3a.New())
	rng.Seed(o.Seed ^ int64(h.Sum64()))
	return rng
}

// Fit calibrates a structure and scores its best parameters on the validation period.
func (o *Oracle) Fit(ctx context.Context, structure genome.Genome) (Result, error) {
	m := hydro.Build(structure)
	dims := len(m.Dims())

	var (
		mu   sync.Mutex
		best = Result{Likelihood: math.NaN(), Validation: math.NaN()}
		err  error
	)
	eval := func(u []float64) float64 {
		params, perr := m.Params(u)
		if perr != nil {
			mu.Lock()
			err = perr
			mu.Unlock()
			return math.NaN()
		}
		out, serr := m.Simulate(params, o.Forcing, o.Calibration)
		l := math.NaN()
		if serr == nil && out.Status == hydro.Converged {
			l = o.Objective.Score(out.Observed, out.Simulated)
		}

		mu.Lock()
		defer mu.Unlock()
		if serr != nil {
			err = serr
		}
		best.Runs++
		if out.Status == hydro.Diverged || math.IsNaN(l) {
			best.Diverged++
			return l
		}
		if math.IsNaN(best.Likelihood) || l > best.Likelihood {
			best.Likelihood = l
			best.Params = params
		}
		return l
	}

	if serr := o.Sampler.Sample(ctx, o.rng(structure), dims, eval); serr != nil {
		return best, serr
	}
	if err != nil {
		return best, err
	}
	if best.Params == nil {
		return best, fmt.Errorf("%w (%d runs)", ErrAllDiverged, best.Runs)
	}

	if !o.Validation.IsZero() {
		out, verr := m.Simulate(best.Params, o.Forcing, o.Validation)
		if verr != nil {
			return best, verr
		}
		if out.Status == hydro.Converged {
			best.Validation = o.Objective.Score(out.Observed, out.Simulated)
		}
	}
	return best, nil
}
