package strategy

import (
	"math"
	"math/rand"
	"testing"

	"github.com/wildfunctions/acme/pkg/genome"
)

func baseline() genome.Genome {
	return genome.Lumped.MustParse(
		"snow", "snow_meltrate", "second", "tr_first_second", "tr_second_river",
		"river", "tr_river_out", "beta_river_out", "canopy", "canopy_lai",
	)
}

func TestMutation_LengthChangesInThirds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := baseline()
	if len(base) != 10 {
		t.Fatalf("baseline has %d genes", len(base))
	}

	var longer, shorter, same int
	total := 10000
	for i := 0; i < total; i++ {
		g := base.Clone()
		MutateGenome(&g, genome.Lumped, rng, DefaultMaxChanges)
		switch {
		case len(g) > len(base):
			longer++
		case len(g) < len(base):
			shorter++
		default:
			same++
		}
	}

	const tolerance = 0.05
	for name, n := range map[string]int{"longer": longer, "shorter": shorter, "same": same} {
		frac := float64(n) / float64(total)
		if math.Abs(frac-1.0/3) > tolerance {
			t.Errorf("%s: %.3f of mutations, want 1/3 ± %.2f", name, frac, tolerance)
		}
	}
	t.Logf("longer=%d shorter=%d same=%d", longer, shorter, same)
}

func TestMutation_ChangeCountBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := baseline()
	for i := 0; i < 1000; i++ {
		g := base.Clone()
		mut := MutateGenome(&g, genome.Lumped, rng, DefaultMaxChanges)
		diff := len(g) - len(base)
		switch mut {
		case MutAdd:
			if diff < 1 || diff > DefaultMaxChanges {
				t.Fatalf("add changed length by %d", diff)
			}
		case MutDelete:
			if diff > -1 || diff < -DefaultMaxChanges {
				t.Fatalf("delete changed length by %d", diff)
			}
		case MutSwap:
			if diff != 0 {
				t.Fatalf("swap changed length by %d", diff)
			}
		}
	}
}

func TestMutation_AddOnFullGenomeRemoves(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	g := genome.Lumped.Genes()
	addMutate(&g, genome.Lumped, rng)
	if len(g) != genome.Lumped.Len()-1 {
		t.Errorf("len = %d, want %d", len(g), genome.Lumped.Len()-1)
	}
}

func TestMutation_DeleteOnEmptyAdds(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	var g genome.Genome
	deleteMutate(&g, genome.Lumped, rng)
	if len(g) != 1 {
		t.Errorf("len = %d, want 1", len(g))
	}
}

func TestMutation_AddNeverDuplicates(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	var g genome.Genome
	for i := 0; i < genome.Lumped.Len(); i++ {
		addMutate(&g, genome.Lumped, rng)
	}
	if len(g.Set()) != len(g) || !g.SetEqual(genome.Lumped.Genes()) {
		t.Errorf("repeated adds should fill the universe exactly, got %q", g.Signature())
	}
}

func TestCrossover_Closure(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	u := genome.Lumped
	pick := func() genome.Genome {
		var g genome.Genome
		for i := 0; i < u.Len(); i++ {
			if rng.Float64() < 0.4 {
				g = append(g, u.At(i))
			}
		}
		rng.Shuffle(len(g), func(i, j int) { g[i], g[j] = g[j], g[i] })
		return g
	}

	for i := 0; i < 2000; i++ {
		parent, donor := pick(), pick()
		parentSig, donorSig := parent.String(), donor.String()

		child, ok := CrossoverGenomes(parent, donor, rng)
		if !ok {
			if !parent.SetEqual(donor) {
				t.Fatalf("crossover reported degenerate for distinct parents")
			}
			continue
		}
		if len(child.Set()) != len(child) {
			t.Fatalf("duplicate genes in child %q", child)
		}
		for _, gene := range child {
			if !parent.Contains(gene.Token) && !donor.Contains(gene.Token) {
				t.Fatalf("gene %s came from nowhere", gene)
			}
		}
		if parent.String() != parentSig || donor.String() != donorSig {
			t.Fatal("crossover modified its inputs")
		}
	}
}

func TestCrossover_Degenerate(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := genome.Lumped.MustParse("snow", "river", "tr_first_out")
	b := genome.Lumped.MustParse("tr_first_out", "snow", "river")
	if _, ok := CrossoverGenomes(a, b, rng); ok {
		t.Error("set-equal parents should be degenerate")
	}
}

func TestStrategyString(t *testing.T) {
	for s, want := range map[Strategy]string{Create: "create", Mutate: "mutate", Crossover: "crossover"} {
		if s.String() != want {
			t.Errorf("Strategy(%d) = %q, want %q", int(s), s.String(), want)
		}
	}
	if got := Strategy(9).String(); got != "strategy(9)" {
		t.Errorf("unknown strategy prints %q", got)
	}
}

func TestSwapMutate_AlwaysReplaces(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	u := genome.MustUniverse(genome.Lumped.MustParse("snow", "river"))
	for i := 0; i < 200; i++ {
		g := genome.Lumped.MustParse("snow")
		swapMutate(&g, u, rng)
		if len(g) != 1 || g[0].Token != "river" {
			t.Fatalf("swap on a two gene universe produced %v", g)
		}
	}
}

func TestSwapMutate_SingleGeneUniverse(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	u := genome.MustUniverse(genome.Lumped.MustParse("snow"))
	g := genome.Lumped.MustParse("snow")
	swapMutate(&g, u, rng)
	if g.String() != "snow" {
		t.Errorf("swap = %v, want snow", g)
	}
}
