package genome

import (
	"fmt"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// ReduceMode selects how storage activity is decided.
type ReduceMode int

const (
	// ReduceAdjacent keeps a storage that is both the source and the target
	// of some connection in the genome. Single pass, no transitive closure:
	// an isolated two-storage cycle survives.
	ReduceAdjacent ReduceMode = iota
	// ReduceReachable keeps a storage only if it lies on a directed path
	// from the first layer to the outlet.
	ReduceReachable
)

func (m ReduceMode) String() string {
	switch m {
	case ReduceAdjacent:
		return "adjacent"
	case ReduceReachable:
		return "reachable"
	default:
		return fmt.Sprintf("reducemode(%d)", int(m))
	}
}

// ParseReduceMode maps a config name to a mode.
func ParseReduceMode(name string) (ReduceMode, error) {
	switch name {
	case "", "adjacent":
		return ReduceAdjacent, nil
	case "reachable":
		return ReduceReachable, nil
	default:
		return 0, fmt.Errorf("unknown reduce mode: %s (available: adjacent, reachable)", name)
	}
}

// SelfRouted storages receive and release water through processes rather
// than transition genes, so their presence alone makes them active.
var SelfRouted = map[string]bool{Snow: true, Canopy: true}

// Reduce returns the effective structure of g: inactive storages are removed,
// and so is every connection or parameter none of whose referenced storages
// is active. The first layer is always active. g is not modified.
func Reduce(g Genome, mode ReduceMode) Genome {
	var active map[string]bool
	switch mode {
	case ReduceReachable:
		active = reachableStorages(g)
	default:
		active = adjacentStorages(g)
	}

	out := make(Genome, 0, len(g))
	for _, gene := range g {
		if keepGene(gene, active, mode) {
			out = append(out, gene)
		}
	}
	return out
}

func keepGene(gene Gene, active map[string]bool, mode ReduceMode) bool {
	if gene.Kind == KindStorage {
		return active[gene.Storage]
	}
	if mode == ReduceReachable && !(gene.Kind == KindParameter && gene.Param == ParamStorage) {
		// Both ends must carry water.
		return active[gene.Source] && (active[gene.Target] || gene.Target == Outlet)
	}
	for _, ref := range gene.References() {
		if active[ref] {
			return true
		}
	}
	return false
}

func adjacentStorages(g Genome) map[string]bool {
	sources := make(map[string]bool)
	targets := make(map[string]bool)
	for _, gene := range g.Connections() {
		sources[gene.Source] = true
		targets[gene.Target] = true
	}

	active := map[string]bool{FirstLayer: true}
	for _, gene := range g.Storages() {
		name := gene.Storage
		if SelfRouted[name] || (sources[name] && targets[name]) {
			active[name] = true
		}
	}
	return active
}

func reachableStorages(g Genome) map[string]bool {
	present := map[string]bool{FirstLayer: true, Outlet: true}
	for _, gene := range g.Storages() {
		present[gene.Storage] = true
	}

	ids := make(map[string]int64, len(present))
	graph := simple.NewDirectedGraph()
	node := func(name string) simple.Node {
		id, ok := ids[name]
		if !ok {
			id = int64(len(ids))
			ids[name] = id
			graph.AddNode(simple.Node(id))
		}
		return simple.Node(id)
	}
	first, outlet := node(FirstLayer), node(Outlet)
	for _, gene := range g.Connections() {
		if !present[gene.Source] || !present[gene.Target] || gene.Source == gene.Target {
			continue
		}
		graph.SetEdge(graph.NewEdge(node(gene.Source), node(gene.Target)))
	}

	active := map[string]bool{FirstLayer: true}
	for _, gene := range g.Storages() {
		name := gene.Storage
		if SelfRouted[name] {
			active[name] = true
			continue
		}
		n := node(name)
		if topo.PathExistsIn(graph, first, n) && topo.PathExistsIn(graph, n, outlet) {
			active[name] = true
		}
	}
	return active
}
