package genome

import (
	"sort"
	"strings"
)

// Genome is an ordered list of genes describing one candidate model structure.
// Order carries no meaning for evaluation; it only matters to the operators.
type Genome []Gene

// Clone returns a copy that can be mutated independently.
func (g Genome) Clone() Genome {
	if g == nil {
		return nil
	}
	out := make(Genome, len(g))
	copy(out, g)
	return out
}

// Tokens returns the gene tokens in order.
func (g Genome) Tokens() []string {
	out := make([]string, len(g))
	for i, gene := range g {
		out[i] = gene.Token
	}
	return out
}

// String joins the tokens with spaces, preserving order.
func (g Genome) String() string {
	return strings.Join(g.Tokens(), " ")
}

// Contains reports whether a gene with the given token is present.
func (g Genome) Contains(token string) bool {
	return g.Index(token) >= 0
}

// Index returns the position of the first gene with the given token, or -1.
func (g Genome) Index(token string) int {
	for i, gene := range g {
		if gene.Token == token {
			return i
		}
	}
	return -1
}

// Set returns the distinct tokens of g.
func (g Genome) Set() map[string]struct{} {
	set := make(map[string]struct{}, len(g))
	for _, gene := range g {
		set[gene.Token] = struct{}{}
	}
	return set
}

// SetEqual reports whether g and other hold the same distinct tokens.
func (g Genome) SetEqual(other Genome) bool {
	a, b := g.Set(), other.Set()
	if len(a) != len(b) {
		return false
	}
	for token := range a {
		if _, ok := b[token]; !ok {
			return false
		}
	}
	return true
}

// Signature is the canonical order-insensitive key of g: its distinct tokens,
// sorted and joined by a space.
func (g Genome) Signature() string {
	set := g.Set()
	tokens := make([]string, 0, len(set))
	for token := range set {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// Storages returns the storage genes in order.
func (g Genome) Storages() Genome {
	return g.filter(KindStorage)
}

// Connections returns the connection genes in order.
func (g Genome) Connections() Genome {
	return g.filter(KindConnection)
}

// Parameters returns the parameter genes in order.
func (g Genome) Parameters() Genome {
	return g.filter(KindParameter)
}

func (g Genome) filter(kind Kind) Genome {
	var out Genome
	for _, gene := range g {
		if gene.Kind == kind {
			out = append(out, gene)
		}
	}
	return out
}
