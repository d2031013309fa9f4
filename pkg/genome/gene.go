package genome

import (
	"errors"
	"fmt"
	"strings"
)

// Node names that are never genes themselves.
const (
	FirstLayer = "first" // implicit first soil layer, always present
	Outlet     = "out"   // terminal sink
)

const (
	connectionPrefix = "tr"
	delimiter        = "_"
)

// ErrUnknownGene is returned when a token does not follow the gene naming grammar.
var ErrUnknownGene = errors.New("unknown gene")

// Kind identifies what a gene switches on.
type Kind int

const (
	KindStorage Kind = iota
	KindConnection
	KindParameter
)

func (k Kind) String() string {
	switch k {
	case KindStorage:
		return "storage"
	case KindConnection:
		return "connection"
	case KindParameter:
		return "parameter"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParamKind identifies the role of a parameter gene.
type ParamKind int

const (
	ParamExponent ParamKind = iota // beta_<src>_<dst>, kinematic wave exponent
	ParamVolume                    // v0_<src>_<dst>, reference volume
	ParamStorage                   // <storage>_<name>, process rate of a storage
)

// Gene is one token of a genome. The fields that apply depend on Kind:
// storages set Storage, connections set Source and Target, connection
// parameters set Source, Target and Param, storage parameters set Storage,
// Param and Name.
type Gene struct {
	Kind    Kind
	Token   string
	Storage string
	Source  string
	Target  string
	Param   ParamKind
	Name    string
}

// StorageGene returns the presence gene of a storage.
func StorageGene(name string) Gene {
	return Gene{Kind: KindStorage, Token: name, Storage: name}
}

// ConnectionGene returns the routing gene from source to target.
func ConnectionGene(source, target string) Gene {
	return Gene{
		Kind:   KindConnection,
		Token:  connectionPrefix + delimiter + source + delimiter + target,
		Source: source,
		Target: target,
	}
}

// ExponentGene returns the beta parameter of a connection.
func ExponentGene(source, target string) Gene {
	return Gene{
		Kind:   KindParameter,
		Token:  "beta" + delimiter + source + delimiter + target,
		Source: source,
		Target: target,
		Param:  ParamExponent,
	}
}

// VolumeGene returns the V0 parameter of a connection.
func VolumeGene(source, target string) Gene {
	return Gene{
		Kind:   KindParameter,
		Token:  "v0" + delimiter + source + delimiter + target,
		Source: source,
		Target: target,
		Param:  ParamVolume,
	}
}

// StorageParamGene returns a named process parameter owned by a storage.
func StorageParamGene(storage, name string) Gene {
	return Gene{
		Kind:    KindParameter,
		Token:   storage + delimiter + name,
		Storage: storage,
		Param:   ParamStorage,
		Name:    name,
	}
}

// String returns the token.
func (g Gene) String() string { return g.Token }

// IsOutletConnection reports whether g routes water into the outlet.
func (g Gene) IsOutletConnection() bool {
	return g.Kind == KindConnection && g.Target == Outlet
}

// References returns the node names a gene depends on. A gene stays active
// while at least one of them is an active storage.
func (g Gene) References() []string {
	switch g.Kind {
	case KindStorage:
		return []string{g.Storage}
	case KindConnection:
		return []string{g.Source, g.Target}
	default:
		if g.Param == ParamStorage {
			return []string{g.Storage}
		}
		return []string{g.Source, g.Target}
	}
}

// parseGene reads a token using the naming grammar. storages is the set of
// catalogued optional storages.
func parseGene(token string, storages map[string]bool) (Gene, error) {
	if storages[token] {
		return StorageGene(token), nil
	}
	parts := strings.Split(token, delimiter)
	if len(parts) == 3 {
		switch parts[0] {
		case connectionPrefix:
			return ConnectionGene(parts[1], parts[2]), nil
		case "beta":
			return ExponentGene(parts[1], parts[2]), nil
		case "v0":
			return VolumeGene(parts[1], parts[2]), nil
		}
	}
	if i := strings.Index(token, delimiter); i > 0 && storages[token[:i]] {
		return StorageParamGene(token[:i], token[i+1:]), nil
	}
	return Gene{}, fmt.Errorf("%w: %q", ErrUnknownGene, token)
}
