package genome

// EnsureOutletPath guarantees that g routes water to the outlet. If none of
// the universe's outlet connections is present, a copy of g with the default
// first layer to outlet connection appended is returned; otherwise g itself
// is returned untouched. Applying it twice changes nothing the second time.
//
// Only a syntactic edge is guaranteed; whether every storage can reach it is
// left to the reducer.
func EnsureOutletPath(g Genome, u *Universe) Genome {
	if HasOutletPath(g, u) {
		return g
	}
	out := make(Genome, len(g), len(g)+1)
	copy(out, g)
	return append(out, DefaultOutletConnection)
}

// Effective returns the structure that is actually simulated: g is repaired,
// reduced, and repaired again when the reduction dropped every outlet
// connection, e.g. tr_river_out without an active river.
func Effective(g Genome, u *Universe, mode ReduceMode) Genome {
	return EnsureOutletPath(Reduce(EnsureOutletPath(g, u), mode), u)
}

// HasOutletPath reports whether g already holds a catalogued outlet connection.
func HasOutletPath(g Genome, u *Universe) bool {
	for _, conn := range u.OutletConnections() {
		if g.Contains(conn.Token) {
			return true
		}
	}
	return false
}
