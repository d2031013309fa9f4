package strategy

import "fmt"

// Strategy records how a candidate came to be.
type Strategy int

const (
	Create    Strategy = iota // drawn fresh from a pool
	Mutate                    // mutated copy of a parent
	Crossover                 // parent prefix joined with a donor suffix
)

var names = map[Strategy]string{
	Create:    "create",
	Mutate:    "mutate",
	Crossover: "crossover",
}

func (s Strategy) String() string {
	if name, ok := names[s]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}
