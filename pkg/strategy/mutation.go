package strategy

import (
	"math/rand"

	"github.com/wildfunctions/acme/pkg/genome"
)

// MutationType identifies a kind of mutation.
type MutationType int

const (
	MutAdd    MutationType = iota // append genes not yet present
	MutDelete                     // remove random genes
	MutSwap                       // replace the gene at a random position
)

func (m MutationType) String() string {
	switch m {
	case MutAdd:
		return "add"
	case MutDelete:
		return "delete"
	case MutSwap:
		return "swap"
	default:
		return "unknown"
	}
}

// DefaultMaxChanges bounds the number of elementary edits per mutation.
const DefaultMaxChanges = 3

// MutateGenome applies one randomly chosen mutation kind between 1 and
// maxChanges times to g (modifies in place) and returns the kind applied.
func MutateGenome(g *genome.Genome, u *genome.Universe, rng *rand.Rand, maxChanges int) MutationType {
	if maxChanges < 1 {
		maxChanges = 1
	}
	mut := MutationType(rng.Intn(3))
	k := rng.Intn(maxChanges) + 1
	for i := 0; i < k; i++ {
		switch mut {
		case MutAdd:
			addMutate(g, u, rng)
		case MutDelete:
			deleteMutate(g, u, rng)
		case MutSwap:
			swapMutate(g, u, rng)
		}
	}
	return mut
}

// addMutate appends one missing gene. A genome that already holds the whole
// universe loses a random gene instead.
func addMutate(g *genome.Genome, u *genome.Universe, rng *rand.Rand) {
	if u.Len() == 0 {
		return
	}
	set := g.Set()
	if isFull(set, u) {
		removeAt(g, rng.Intn(len(*g)))
		return
	}
	for {
		gene := u.At(rng.Intn(u.Len()))
		if _, ok := set[gene.Token]; !ok {
			*g = append(*g, gene)
			return
		}
	}
}

// deleteMutate removes a random gene, or adds one when g is empty.
func deleteMutate(g *genome.Genome, u *genome.Universe, rng *rand.Rand) {
	if len(*g) == 0 {
		addMutate(g, u, rng)
		return
	}
	removeAt(g, rng.Intn(len(*g)))
}

// swapMutate replaces a random position with one of two distinct draws,
// taking the second when the first equals the current gene.
func swapMutate(g *genome.Genome, u *genome.Universe, rng *rand.Rand) {
	if len(*g) == 0 {
		addMutate(g, u, rng)
		return
	}
	if u.Len() == 0 {
		return
	}
	idx := rng.Intn(len(*g))
	if u.Len() == 1 {
		(*g)[idx] = u.At(0)
		return
	}
	i, j := rng.Intn(u.Len()), rng.Intn(u.Len()-1)
	if j >= i {
		j++
	}
	first, second := u.At(i), u.At(j)
	if first.Token == (*g)[idx].Token {
		(*g)[idx] = second
	} else {
		(*g)[idx] = first
	}
}

func isFull(set map[string]struct{}, u *genome.Universe) bool {
	for i := 0; i < u.Len(); i++ {
		if _, ok := set[u.At(i).Token]; !ok {
			return false
		}
	}
	return true
}

func removeAt(g *genome.Genome, idx int) {
	s := *g
	copy(s[idx:], s[idx+1:])
	*g = s[:len(s)-1]
}
