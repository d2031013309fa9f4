package strategy

import (
	"math/rand"

	"github.com/wildfunctions/acme/pkg/genome"
)

// CrossoverGenomes joins a random prefix of parent with a random suffix of
// donor, keeping the first occurrence of each gene. Neither input is modified.
// ok is false when parent and donor hold the same genes, since no new
// structure can come out of them.
func CrossoverGenomes(parent, donor genome.Genome, rng *rand.Rand) (child genome.Genome, ok bool) {
	if parent.SetEqual(donor) {
		return nil, false
	}
	cutParent := rng.Intn(len(parent) + 1)
	cutDonor := rng.Intn(len(donor) + 1)

	seen := make(map[string]struct{}, cutParent+len(donor)-cutDonor)
	child = make(genome.Genome, 0, cutParent+len(donor)-cutDonor)
	for _, gene := range append(parent[:cutParent:cutParent], donor[cutDonor:]...) {
		if _, dup := seen[gene.Token]; dup {
			continue
		}
		seen[gene.Token] = struct{}{}
		child = append(child, gene)
	}
	return child, true
}
