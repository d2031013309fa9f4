package hydro

import (
	"fmt"
	"math"
)

// Status is the result class of a simulation.
type Status int

const (
	Converged Status = iota
	Diverged
)

func (s Status) String() string {
	if s == Converged {
		return "converged"
	}
	return "diverged"
}

// Outcome is the discharge simulated over a period together with the
// observations it is scored against.
type Outcome struct {
	Status    Status
	Simulated []float64
	Observed  []float64
	// Step and Reason locate the first numerical failure of a diverged run.
	Step   int
	Reason string
}

// Err returns nil for converged runs.
func (o Outcome) Err() error {
	if o.Status == Converged {
		return nil
	}
	return fmt.Errorf("simulation diverged at step %d: %s", o.Step, o.Reason)
}

const negativeTolerance = 1e-9

// Simulate runs the model from the first forcing step to the end of period
// and returns the discharge inside period. Steps before the period warm the
// storages up.
func (m *Model) Simulate(params map[string]float64, f *Forcing, period Period) (Outcome, error) {
	lo, hi, err := f.Window(period)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{
		Simulated: make([]float64, 0, hi-lo),
		Observed:  f.Discharge[lo:hi],
	}

	etv1 := param(params, ParamETV1, 200)
	fetv0 := param(params, ParamFETV0, 0)
	meltRate := param(params, paramMeltRate, DefaultMeltRate)
	meltTemp := param(params, paramMeltTemp, DefaultMeltTemp)
	lai := param(params, paramLAI, DefaultLAI)
	closure := param(params, paramClosure, DefaultClosure)
	canopyCapacity := lai * CanopyCapacityPerLAI

	type wave struct{ tr, v0, beta float64 }
	waves := make([]wave, len(m.links))
	for i, l := range m.links {
		waves[i] = wave{
			tr:   param(params, l.token, 1),
			v0:   param(params, l.v0, DefaultV0),
			beta: param(params, l.beta, DefaultBeta),
		}
	}

	vol := make([]float64, len(m.storages))
	vol[0] = InitialFirstVolume
	var snowpack, intercepted float64
	demand := make([]float64, len(vol))
	flow := make([]float64, len(m.links))
	moved := make([]float64, len(m.links))

	fail := func(t int, reason string) Outcome {
		out.Status = Diverged
		out.Step = t
		out.Reason = reason
		out.Simulated = nil
		return out
	}

	for t := 0; t < hi; t++ {
		pet := hargreaves(f.TMean[t], f.TMin[t], f.TMax[t], f.Latitude, f.Dates[t].YearDay())
		water := f.Prec[t]

		if m.canopy {
			in := water * closure
			water -= in
			intercepted += in
			if over := intercepted - canopyCapacity; over > 0 {
				intercepted -= over
				water += over
			}
			evap := math.Min(intercepted, pet)
			intercepted -= evap
			pet -= evap
		}

		if m.snow {
			if f.TMean[t] < meltTemp {
				snowpack += water
				water = 0
			} else {
				melt := math.Min(snowpack, meltRate*(f.TMean[t]-meltTemp))
				snowpack -= melt
				water += melt
			}
		}

		vol[0] += water
		vol[0] -= math.Min(vol[0], pet*uptakeStress(vol[0], etv1, fetv0))

		// All fluxes use start-of-step volumes and are scaled so no storage
		// releases more than it holds.
		for i := range demand {
			demand[i] = 0
		}
		for i, l := range m.links {
			w := waves[i]
			q := kinematicWave(vol[l.source], w.tr, w.v0, w.beta)
			if math.IsNaN(q) || q < 0 {
				return fail(t, fmt.Sprintf("%s flux %g", l.token, q)), nil
			}
			flow[i] = q
			demand[l.source] += q
		}
		discharge := 0.0
		for i, l := range m.links {
			q := flow[i]
			if d := demand[l.source]; d > vol[l.source] {
				switch {
				case !math.IsInf(d, 1):
					q *= vol[l.source] / d
				case math.IsInf(q, 1):
					q = vol[l.source] / float64(unbounded(flow, m.links, l.source))
				default:
					q = 0
				}
			}
			moved[i] = q
		}
		for i, l := range m.links {
			vol[l.source] -= moved[i]
			if l.target == outlet {
				discharge += moved[i]
			} else {
				vol[l.target] += moved[i]
			}
		}

		for i, v := range vol {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fail(t, fmt.Sprintf("%s volume %g", m.storages[i], v)), nil
			}
			if v < -negativeTolerance {
				return fail(t, fmt.Sprintf("%s volume %g", m.storages[i], v)), nil
			}
			if v < 0 {
				vol[i] = 0
			}
		}
		if math.IsNaN(discharge) || math.IsInf(discharge, 0) {
			return fail(t, fmt.Sprintf("discharge %g", discharge)), nil
		}
		if t >= lo {
			out.Simulated = append(out.Simulated, discharge)
		}
	}
	out.Status = Converged
	return out, nil
}

// unbounded counts the unbounded fluxes leaving a storage.
func unbounded(flow []float64, links []link, source int) int {
	n := 0
	for i, l := range links {
		if l.source == source && math.IsInf(flow[i], 1) {
			n++
		}
	}
	return n
}
