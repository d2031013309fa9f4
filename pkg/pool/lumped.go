package pool

import "github.com/wildfunctions/acme/pkg/genome"

func init() {
	Register("lumped", func() Pool { return mustPlanPool("lumped", lumpedPlan()) })
}

// connection returns the group of a routing gene with its optional exponent
// and, for first layer outflows, its reference volume.
func connection(source, target string) Group {
	children := []Group{{Gene: genome.ExponentGene(source, target)}}
	if source == genome.FirstLayer {
		children = append(children, Group{Gene: genome.VolumeGene(source, target)})
	}
	return Group{Gene: genome.ConnectionGene(source, target), Children: children}
}

// subsurfacePlan covers the first layer outflows and the deeper layers down to the river.
func subsurfacePlan() Plan {
	third := connection(genome.Third, genome.River)
	third.Always = true

	return Plan{
		connection(genome.FirstLayer, genome.Outlet),
		connection(genome.FirstLayer, genome.River),
		connection(genome.FirstLayer, genome.Second),
		{
			Gene: genome.StorageGene(genome.Second),
			Children: []Group{
				connection(genome.Second, genome.Third),
				connection(genome.Second, genome.River),
			},
			AtLeastOne: true,
		},
		{
			Gene:     genome.StorageGene(genome.Third),
			Children: []Group{third},
		},
		{
			Gene:     genome.StorageGene(genome.River),
			Children: []Group{connection(genome.River, genome.Outlet)},
		},
	}
}

// lumpedPlan is the full one-cell model: subsurface plus snow and canopy.
func lumpedPlan() Plan {
	return append(subsurfacePlan(),
		Group{
			Gene: genome.StorageGene(genome.Snow),
			Children: []Group{
				{Gene: genome.StorageParamGene(genome.Snow, "meltrate")},
				{Gene: genome.StorageParamGene(genome.Snow, "melt_temp")},
			},
		},
		Group{
			Gene: genome.StorageGene(genome.Canopy),
			Children: []Group{
				{Gene: genome.StorageParamGene(genome.Canopy, "lai")},
				{Gene: genome.StorageParamGene(genome.Canopy, "closure")},
			},
		},
	)
}
