package calib

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/maseology/objfunc"
)

// ErrUnknownObjective is returned for objective names not in the registry.
var ErrUnknownObjective = errors.New("unknown objective function")

// Objective scores simulated against observed discharge. Larger is better:
// error measures are negated so every objective is a likelihood.
type Objective struct {
	Name string
	fn   func(obs, sim []float64) float64
}

// Score compares the series over the steps where an observation exists.
func (o Objective) Score(obs, sim []float64) float64 {
	if len(obs) != len(sim) {
		return math.NaN()
	}
	o2, s2 := make([]float64, 0, len(obs)), make([]float64, 0, len(sim))
	for i := range obs {
		if math.IsNaN(obs[i]) {
			continue
		}
		o2 = append(o2, obs[i])
		s2 = append(s2, sim[i])
	}
	if len(o2) == 0 {
		return math.NaN()
	}
	return o.fn(o2, s2)
}

var objectives = map[string]Objective{
	"nashsutcliffe": {Name: "nashsutcliffe", fn: objfunc.NSE},
	"kge":           {Name: "kge", fn: objfunc.KGE},
	"rmse": {Name: "rmse", fn: func(obs, sim []float64) float64 {
		return -objfunc.RMSE(obs, sim)
	}},
	"bias": {Name: "bias", fn: func(obs, sim []float64) float64 {
		return -math.Abs(objfunc.Bias(obs, sim))
	}},
}

// DefaultObjective is the Nash-Sutcliffe efficiency.
const DefaultObjective = "nashsutcliffe"

// GetObjective looks an objective up by name.
func GetObjective(name string) (Objective, error) {
	o, ok := objectives[name]
	if !ok {
		return Objective{}, fmt.Errorf("%w: %q (available: %v)", ErrUnknownObjective, name, ObjectiveNames())
	}
	return o, nil
}

// ObjectiveNames returns the registered objective names, sorted.
func ObjectiveNames() []string {
	names := make([]string, 0, len(objectives))
	for n := range objectives {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
