package fitness

import (
	"math"
	"strconv"
)

// Likelihood is a goodness-of-fit score where larger is better. NaN marks a
// structure that could not be simulated; it loses against every usable score.
type Likelihood float64

// Unusable returns the score given to structures whose simulation diverged.
func Unusable() Likelihood { return Likelihood(math.NaN()) }

// Usable reports whether l is a real score.
func (l Likelihood) Usable() bool { return !math.IsNaN(float64(l)) }

// Greater reports whether l is strictly better than other.
func (l Likelihood) Greater(other Likelihood) bool {
	if !l.Usable() {
		return false
	}
	if !other.Usable() {
		return true
	}
	return l > other
}

func (l Likelihood) String() string {
	return strconv.FormatFloat(float64(l), 'g', -1, 64)
}

// MarshalJSON writes unusable scores as null, since JSON has no NaN.
func (l Likelihood) MarshalJSON() ([]byte, error) {
	if !l.Usable() || math.IsInf(float64(l), 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(l), 'g', -1, 64), nil
}

// Distance is a cost where smaller is better, for minimisation problems.
// NaN is treated like an unusable likelihood.
type Distance float64

// Greater reports whether d is strictly better (shorter) than other.
func (d Distance) Greater(other Distance) bool {
	if math.IsNaN(float64(d)) {
		return false
	}
	if math.IsNaN(float64(other)) {
		return true
	}
	return d < other
}

func (d Distance) String() string {
	return strconv.FormatFloat(float64(d), 'g', -1, 64)
}
