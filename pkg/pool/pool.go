package pool

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/wildfunctions/acme/pkg/genome"
)

// DefaultThreshold is the probability with which Create includes an optional group.
const DefaultThreshold = 1.0 / 3

// Pool provides the gene universe of a model family and random structures drawn from it.
type Pool interface {
	Name() string
	Universe() *genome.Universe
	// Create draws a new structure. Each group is included with probability
	// threshold, or always when forceAll is set. The result always drains
	// to the outlet.
	Create(rng *rand.Rand, threshold float64, forceAll bool) genome.Genome
}

var registry = map[string]func() Pool{}

// Register adds a pool constructor to the registry.
func Register(name string, constructor func() Pool) {
	registry[name] = constructor
}

// Get returns a pool by name.
func Get(name string) (Pool, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown pool: %s", name)
	}
	return ctor(), nil
}

// Names returns all registered pool names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Group is one optional gene together with the genes that only make sense
// once it is present.
type Group struct {
	Gene     genome.Gene
	Children []Group
	// Always includes the gene whenever its parent is included.
	Always bool
	// AtLeastOne re-rolls the children until at least one of them is included.
	AtLeastOne bool
}

// Plan is the ordered list of top level groups Create walks.
type Plan []Group

// Genes flattens the plan in walk order.
func (p Plan) Genes() genome.Genome {
	var out genome.Genome
	var walk func(groups []Group)
	walk = func(groups []Group) {
		for _, g := range groups {
			out = append(out, g.Gene)
			walk(g.Children)
		}
	}
	walk(p)
	return out
}

// PlanPool is a Pool backed by a creation plan.
type PlanPool struct {
	name     string
	plan     Plan
	universe *genome.Universe
}

// NewPlanPool builds a pool whose universe is exactly the genes of plan.
func NewPlanPool(name string, plan Plan) (*PlanPool, error) {
	u, err := genome.NewUniverse(plan.Genes())
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", name, err)
	}
	return &PlanPool{name: name, plan: plan, universe: u}, nil
}

func mustPlanPool(name string, plan Plan) *PlanPool {
	p, err := NewPlanPool(name, plan)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *PlanPool) Name() string { return p.name }

func (p *PlanPool) Universe() *genome.Universe { return p.universe }

func (p *PlanPool) Create(rng *rand.Rand, threshold float64, forceAll bool) genome.Genome {
	var g genome.Genome
	for _, group := range p.plan {
		g = appendGroup(g, group, rng, threshold, forceAll)
	}
	return genome.EnsureOutletPath(g, p.universe)
}

func appendGroup(g genome.Genome, group Group, rng *rand.Rand, threshold float64, forceAll bool) genome.Genome {
	if !(forceAll || group.Always || rng.Float64() < threshold) {
		return g
	}
	g = append(g, group.Gene)
	if !group.AtLeastOne || len(group.Children) == 0 {
		for _, child := range group.Children {
			g = appendGroup(g, child, rng, threshold, forceAll)
		}
		return g
	}
	if threshold <= 0 {
		// Re-rolling could never succeed; take the first child.
		first := group.Children[0]
		first.Always = true
		g = appendGroup(g, first, rng, threshold, forceAll)
		for _, child := range group.Children[1:] {
			g = appendGroup(g, child, rng, threshold, forceAll)
		}
		return g
	}
	for {
		var picked genome.Genome
		for _, child := range group.Children {
			picked = appendGroup(picked, child, rng, threshold, forceAll)
		}
		if len(picked) > 0 {
			return append(g, picked...)
		}
	}
}
