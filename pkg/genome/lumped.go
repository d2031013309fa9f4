package genome

// Optional storages of the lumped catalogue. "first" and "out" are implicit.
const (
	Snow   = "snow"
	Canopy = "canopy"
	Second = "second"
	Third  = "third"
	River  = "river"
)

// Lumped is the catalogue of the one-cell lumped model: five optional
// storages, seven connections and fourteen parameters.
var Lumped = MustUniverse(Genome{
	StorageGene(Snow),
	StorageGene(Canopy),
	StorageGene(Second),
	StorageGene(Third),
	StorageGene(River),

	ConnectionGene(FirstLayer, Outlet),
	ConnectionGene(FirstLayer, River),
	ConnectionGene(FirstLayer, Second),
	ConnectionGene(Second, Third),
	ConnectionGene(Second, River),
	ConnectionGene(Third, River),
	ConnectionGene(River, Outlet),

	StorageParamGene(Snow, "meltrate"),
	StorageParamGene(Snow, "melt_temp"),
	StorageParamGene(Canopy, "lai"),
	StorageParamGene(Canopy, "closure"),
	ExponentGene(FirstLayer, Outlet),
	ExponentGene(FirstLayer, River),
	ExponentGene(FirstLayer, Second),
	VolumeGene(FirstLayer, Outlet),
	VolumeGene(FirstLayer, River),
	VolumeGene(FirstLayer, Second),
	ExponentGene(Second, River),
	ExponentGene(Second, Third),
	ExponentGene(Third, River),
	ExponentGene(River, Outlet),
})

// DefaultOutletConnection is appended by EnsureOutletPath when no outlet
// connection is present.
var DefaultOutletConnection = ConnectionGene(FirstLayer, Outlet)
