package genome

import (
	"fmt"
	"strings"
)

// Universe is the fixed catalogue of legal genes. It is immutable after
// construction and safe to share.
type Universe struct {
	genes    Genome
	index    map[string]int
	storages map[string]bool
}

// NewUniverse builds a catalogue from a gene list. Duplicate tokens are
// rejected; so are the reserved node names used as storage genes.
func NewUniverse(genes Genome) (*Universe, error) {
	u := &Universe{
		genes:    genes.Clone(),
		index:    make(map[string]int, len(genes)),
		storages: make(map[string]bool),
	}
	for i, gene := range genes {
		if _, dup := u.index[gene.Token]; dup {
			return nil, fmt.Errorf("duplicate gene %q in universe", gene.Token)
		}
		if gene.Kind == KindStorage && (gene.Storage == FirstLayer || gene.Storage == Outlet) {
			return nil, fmt.Errorf("%q is reserved and cannot be a storage gene", gene.Storage)
		}
		u.index[gene.Token] = i
		if gene.Kind == KindStorage {
			u.storages[gene.Storage] = true
		}
	}
	return u, nil
}

// MustUniverse is NewUniverse that panics on error; for package-level catalogues.
func MustUniverse(genes Genome) *Universe {
	u, err := NewUniverse(genes)
	if err != nil {
		panic(err)
	}
	return u
}

// Genes returns a copy of all catalogued genes in catalogue order.
func (u *Universe) Genes() Genome { return u.genes.Clone() }

// Len returns the number of catalogued genes.
func (u *Universe) Len() int { return len(u.genes) }

// At returns the i-th catalogued gene.
func (u *Universe) At(i int) Gene { return u.genes[i] }

// Has reports whether token is catalogued.
func (u *Universe) Has(token string) bool {
	_, ok := u.index[token]
	return ok
}

// Lookup returns the catalogued gene for token.
func (u *Universe) Lookup(token string) (Gene, bool) {
	i, ok := u.index[token]
	if !ok {
		return Gene{}, false
	}
	return u.genes[i], true
}

// IsStorage reports whether name is a catalogued optional storage.
func (u *Universe) IsStorage(name string) bool { return u.storages[name] }

// StorageNames returns the catalogued optional storages in catalogue order.
func (u *Universe) StorageNames() []string {
	var names []string
	for _, gene := range u.genes {
		if gene.Kind == KindStorage {
			names = append(names, gene.Storage)
		}
	}
	return names
}

// OutletConnections returns the catalogued connections that end in the outlet.
func (u *Universe) OutletConnections() Genome {
	var out Genome
	for _, gene := range u.genes {
		if gene.IsOutletConnection() {
			out = append(out, gene)
		}
	}
	return out
}

// Parse turns a token into a gene. Catalogued tokens resolve directly; other
// tokens are read with the naming grammar so that structurally meaningful
// but uncatalogued connections such as tr_second_out are still understood.
func (u *Universe) Parse(token string) (Gene, error) {
	if gene, ok := u.Lookup(token); ok {
		return gene, nil
	}
	return parseGene(token, u.storages)
}

// ParseTokens parses every token, in order.
func (u *Universe) ParseTokens(tokens []string) (Genome, error) {
	out := make(Genome, 0, len(tokens))
	for _, token := range tokens {
		gene, err := u.Parse(token)
		if err != nil {
			return nil, err
		}
		out = append(out, gene)
	}
	return out, nil
}

// ParseString parses a space separated list of tokens.
func (u *Universe) ParseString(s string) (Genome, error) {
	return u.ParseTokens(strings.Fields(s))
}

// MustParse is ParseTokens that panics on error; meant for tests and literals.
func (u *Universe) MustParse(tokens ...string) Genome {
	g, err := u.ParseTokens(tokens)
	if err != nil {
		panic(err)
	}
	return g
}
