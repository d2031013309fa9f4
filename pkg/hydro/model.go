package hydro

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/wildfunctions/acme/pkg/genome"
)

// Always calibrated evapotranspiration parameters of the first layer.
const (
	ParamETV1  = "ETV1"
	ParamFETV0 = "fETV0"
)

// Defaults for parameters whose gene is absent from a structure.
const (
	DefaultBeta          = 1.0
	DefaultV0            = 1.0
	DefaultMeltRate      = 7.0
	DefaultMeltTemp      = 0.5
	DefaultLAI           = 2.88
	DefaultClosure       = 1.0
	InitialFirstVolume   = 100.0 // mm
	CanopyCapacityPerLAI = 0.1   // mm of interception per unit LAI
)

// Names of the storage process parameters.
var (
	paramMeltRate = genome.StorageParamGene(genome.Snow, "meltrate").Token
	paramMeltTemp = genome.StorageParamGene(genome.Snow, "melt_temp").Token
	paramLAI      = genome.StorageParamGene(genome.Canopy, "lai").Token
	paramClosure  = genome.StorageParamGene(genome.Canopy, "closure").Token
)

// Dim is one calibrated parameter with its uniform prior bounds.
type Dim struct {
	Name string
	Lo   float64
	Hi   float64
}

// Scale maps u in [0,1] onto the bounds.
func (d Dim) Scale(u float64) float64 { return d.Lo + u*(d.Hi-d.Lo) }

// boundsFor returns the prior of a parameter name.
func boundsFor(gene genome.Gene) (Dim, bool) {
	d := Dim{Name: gene.Token}
	switch gene.Kind {
	case genome.KindConnection:
		d.Lo, d.Hi = 0, 300
	case genome.KindParameter:
		switch gene.Param {
		case genome.ParamExponent:
			d.Lo, d.Hi = 0, 4
		case genome.ParamVolume:
			d.Lo, d.Hi = 0, 200
		default:
			switch gene.Name {
			case "meltrate":
				d.Lo, d.Hi = 0.1, 15
			case "melt_temp":
				d.Lo, d.Hi = -5, 5
			case "lai":
				d.Lo, d.Hi = 1, 14
			case "closure":
				d.Lo, d.Hi = 0, 1
			default:
				return Dim{}, false
			}
		}
	default:
		return Dim{}, false
	}
	return d, true
}

// link is one kinematic wave connection between two nodes.
type link struct {
	token  string
	source int
	target int // index into volumes, or outlet
	beta   string
	v0     string
}

const outlet = -1

// Model is a lumped bucket model assembled from an effective structure.
type Model struct {
	structure genome.Genome
	storages  []string // index 0 is always the first layer
	index     map[string]int
	links     []link
	dims      []Dim
	snow      bool
	canopy    bool
}

// routed storages in the order they are listed; snow and canopy are handled
// as precipitation processes.
var routedStorages = []string{genome.FirstLayer, genome.Second, genome.Third, genome.River}

// Build assembles a model. Connections whose source is absent, or whose
// target is an absent storage other than the river, carry no water. Flow
// into an absent river reaches the outlet directly.
func Build(structure genome.Genome) *Model {
	m := &Model{
		structure: structure.Clone(),
		index:     make(map[string]int),
		snow:      structure.Contains(genome.Snow),
		canopy:    structure.Contains(genome.Canopy),
	}
	for _, s := range routedStorages {
		if s == genome.FirstLayer || structure.Contains(s) {
			m.index[s] = len(m.storages)
			m.storages = append(m.storages, s)
		}
	}

	m.dims = []Dim{{Name: ParamETV1, Lo: 0, Hi: 200}, {Name: ParamFETV0, Lo: 0, Hi: 0.5}}
	for _, g := range structure {
		if d, ok := boundsFor(g); ok {
			m.dims = append(m.dims, d)
		}
		if g.Kind != genome.KindConnection {
			continue
		}
		src, ok := m.index[g.Source]
		if !ok {
			continue
		}
		dst, ok := m.index[g.Target]
		switch {
		case ok:
		case g.Target == genome.Outlet, g.Target == genome.River:
			dst = outlet
		default:
			continue
		}
		m.links = append(m.links, link{
			token:  g.Token,
			source: src,
			target: dst,
			beta:   genome.ExponentGene(g.Source, g.Target).Token,
			v0:     genome.VolumeGene(g.Source, g.Target).Token,
		})
	}
	return m
}

// Dims returns the calibrated parameters of the model.
func (m *Model) Dims() []Dim { return append([]Dim(nil), m.dims...) }

// Params maps a point of the unit hypercube onto named parameter values.
func (m *Model) Params(u []float64) (map[string]float64, error) {
	if len(u) != len(m.dims) {
		return nil, fmt.Errorf("got %d values for %d parameters", len(u), len(m.dims))
	}
	p := make(map[string]float64, len(u))
	for i, d := range m.dims {
		p[d.Name] = d.Scale(u[i])
	}
	return p, nil
}

// Structure returns the structure the model was built from.
func (m *Model) Structure() genome.Genome { return m.structure.Clone() }

// Describe writes the storages, active connections and parameter bounds.
func (m *Model) Describe(w io.Writer) {
	fmt.Fprintf(w, "storages: %s", strings.Join(m.storages, ", "))
	if m.snow {
		fmt.Fprint(w, ", snow")
	}
	if m.canopy {
		fmt.Fprint(w, ", canopy")
	}
	fmt.Fprintln(w)
	if !m.structure.Contains(genome.River) {
		fmt.Fprintln(w, "river: short-circuited to outlet")
	}
	fmt.Fprintln(w, "connections:")
	for _, l := range m.links {
		target := genome.Outlet
		if l.target != outlet {
			target = m.storages[l.target]
		}
		fmt.Fprintf(w, "  %s: %s -> %s\n", l.token, m.storages[l.source], target)
	}
	fmt.Fprintln(w, "parameters:")
	dims := m.Dims()
	sort.Slice(dims, func(i, j int) bool { return dims[i].Name < dims[j].Name })
	for _, d := range dims {
		fmt.Fprintf(w, "  %-18s [%g, %g]\n", d.Name, d.Lo, d.Hi)
	}
}

func param(p map[string]float64, name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// kinematicWave is the outflow of a storage holding v: V0/tr * (v/V0)^beta.
func kinematicWave(v, tr, v0, beta float64) float64 {
	if v <= 0 {
		return 0
	}
	return v0 / tr * math.Pow(v/v0, beta)
}

// uptakeStress scales potential ET linearly between a dry volume and ETV1.
func uptakeStress(v, etv1, fetv0 float64) float64 {
	dry := etv1 * fetv0
	switch {
	case v >= etv1:
		return 1
	case v <= dry:
		return 0
	default:
		return (v - dry) / (etv1 - dry)
	}
}

// hargreaves returns potential evapotranspiration in mm/day.
func hargreaves(tmean, tmin, tmax, latitude float64, dayOfYear int) float64 {
	const gsc = 0.0820 // solar constant, MJ m-2 min-1
	phi := latitude * math.Pi / 180
	j := 2 * math.Pi * float64(dayOfYear) / 365
	dr := 1 + 0.033*math.Cos(j)
	delta := 0.409 * math.Sin(j-1.39)
	ws := math.Acos(math.Max(-1, math.Min(1, -math.Tan(phi)*math.Tan(delta))))
	ra := 24 * 60 / math.Pi * gsc * dr * (ws*math.Sin(phi)*math.Sin(delta) + math.Cos(phi)*math.Cos(delta)*math.Sin(ws))
	pet := 0.0023 * 0.408 * ra * (tmean + 17.8) * math.Sqrt(math.Max(tmax-tmin, 0))
	return math.Max(pet, 0)
}
