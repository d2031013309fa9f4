package fitness

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/wildfunctions/acme/pkg/genome"
)

type countingOracle struct {
	calls int
	value float64
	err   error
}

func (o *countingOracle) Calibrate(ctx context.Context, structure genome.Genome) (float64, error) {
	o.calls++
	return o.value, o.err
}

func newEvaluator(o Oracle, mode KeyMode) *Evaluator {
	return &Evaluator{
		Universe: genome.Lumped,
		Mode:     genome.ReduceAdjacent,
		Cache:    NewCache(mode),
		Oracle:   o,
	}
}

func TestLikelihood_Greater(t *testing.T) {
	nan := Unusable()
	tests := []struct {
		a, b Likelihood
		want bool
	}{
		{0.8, 0.5, true},
		{0.5, 0.8, false},
		{0.5, 0.5, false},
		{-3, nan, true},
		{nan, -3, false},
		{nan, nan, false},
	}
	for _, tt := range tests {
		if got := tt.a.Greater(tt.b); got != tt.want {
			t.Errorf("%v.Greater(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestDistance_Greater(t *testing.T) {
	if !Distance(3).Greater(Distance(5)) {
		t.Error("shorter distance should be greater")
	}
	if Distance(5).Greater(Distance(3)) {
		t.Error("longer distance should not be greater")
	}
	if Distance(math.NaN()).Greater(Distance(100)) {
		t.Error("NaN distance should never be greater")
	}
}

func TestEvaluate_CacheHitSkipsOracle(t *testing.T) {
	o := &countingOracle{value: 0.42}
	e := newEvaluator(o, KeyRaw)
	g := genome.Lumped.MustParse("snow", "snow_meltrate", "tr_first_out")

	first, err := e.Evaluate(context.Background(), g)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Evaluate(context.Background(), g)
	if err != nil {
		t.Fatal(err)
	}
	if o.calls != 1 {
		t.Errorf("oracle called %d times, want 1", o.calls)
	}
	if first != second || first != 0.42 {
		t.Errorf("got %v then %v, want 0.42 twice", first, second)
	}
	if hits, misses := e.Cache.Stats(); hits != 1 || misses != 1 {
		t.Errorf("hits=%d misses=%d", hits, misses)
	}
}

func TestEvaluate_KeyModes(t *testing.T) {
	// Same effective structure, different raw genomes.
	a := genome.Lumped.MustParse("snow", "tr_first_out", "canopy_lai")
	b := genome.Lumped.MustParse("snow", "tr_first_out", "third")

	tests := []struct {
		mode  KeyMode
		calls int
	}{
		{KeyRaw, 2},
		{KeyEffective, 1},
	}
	for _, tt := range tests {
		o := &countingOracle{value: 0.1}
		e := newEvaluator(o, tt.mode)
		for _, g := range []genome.Genome{a, b} {
			if _, err := e.Evaluate(context.Background(), g); err != nil {
				t.Fatal(err)
			}
		}
		if o.calls != tt.calls {
			t.Errorf("%s: oracle called %d times, want %d", tt.mode, o.calls, tt.calls)
		}
	}
}

func TestEvaluate_RawModeHitsOnEffectiveSignature(t *testing.T) {
	o := &countingOracle{value: 0.3}
	e := newEvaluator(o, KeyRaw)
	// Already reduced, so its raw key equals the effective key of the padded genome.
	if _, err := e.Evaluate(context.Background(), genome.Lumped.MustParse("snow", "tr_first_out")); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Evaluate(context.Background(), genome.Lumped.MustParse("snow", "third", "tr_first_out")); err != nil {
		t.Fatal(err)
	}
	if o.calls != 1 {
		t.Errorf("oracle called %d times, want 1", o.calls)
	}
}

func TestEvaluate_OracleAlwaysSeesOutlet(t *testing.T) {
	tests := []struct {
		genes []string
		want  map[genome.ReduceMode]string
	}{
		{[]string{"tr_river_out"}, map[genome.ReduceMode]string{
			genome.ReduceAdjacent:  "tr_first_out",
			genome.ReduceReachable: "tr_first_out",
		}},
		{[]string{"river", "tr_river_out"}, map[genome.ReduceMode]string{
			genome.ReduceAdjacent:  "tr_first_out",
			genome.ReduceReachable: "tr_first_out",
		}},
		{[]string{"snow", "tr_river_out", "beta_river_out"}, map[genome.ReduceMode]string{
			genome.ReduceAdjacent:  "snow tr_first_out",
			genome.ReduceReachable: "snow tr_first_out",
		}},
	}
	for _, tt := range tests {
		for _, mode := range []genome.ReduceMode{genome.ReduceAdjacent, genome.ReduceReachable} {
			var seen genome.Genome
			e := newEvaluator(OracleFunc(func(ctx context.Context, structure genome.Genome) (float64, error) {
				seen = structure
				return 0.5, nil
			}), KeyRaw)
			e.Mode = mode
			if _, err := e.Evaluate(context.Background(), genome.Lumped.MustParse(tt.genes...)); err != nil {
				t.Fatal(err)
			}
			if !genome.HasOutletPath(seen, genome.Lumped) {
				t.Errorf("%s %v: oracle got %q without an outlet connection", mode, tt.genes, seen)
			}
			if got := seen.Signature(); got != tt.want[mode] {
				t.Errorf("%s %v: oracle got %q, want %q", mode, tt.genes, got, tt.want[mode])
			}
		}
	}
}

func TestEvaluate_DivergenceIsUnusable(t *testing.T) {
	o := &countingOracle{err: errors.New("solver diverged")}
	e := newEvaluator(o, KeyRaw)
	var seen Evaluation
	e.Observer = func(ev Evaluation) { seen = ev }

	l, err := e.Evaluate(context.Background(), genome.Lumped.MustParse("river"))
	if err != nil {
		t.Fatalf("divergence should not surface: %v", err)
	}
	if l.Usable() {
		t.Errorf("got %v, want NaN", l)
	}
	if seen.Err == nil || seen.Cached {
		t.Errorf("observer saw %+v", seen)
	}
	if !seen.Raw.Contains("tr_first_out") {
		t.Errorf("raw genome was not repaired: %v", seen.Raw)
	}
}

func TestEvaluate_CancelledContext(t *testing.T) {
	o := &countingOracle{value: 1}
	e := newEvaluator(o, KeyRaw)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.Evaluate(ctx, genome.Lumped.MustParse("river")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if o.calls != 0 || e.Cache.Len() != 0 {
		t.Error("cancelled evaluation should not call the oracle or cache")
	}
}

func TestEvaluate_CallLimit(t *testing.T) {
	o := &countingOracle{value: 1}
	e := newEvaluator(o, KeyRaw)
	e.MaxCalls = 1

	if _, err := e.Evaluate(context.Background(), genome.Lumped.MustParse("river")); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Evaluate(context.Background(), genome.Lumped.MustParse("snow")); !errors.Is(err, ErrEvaluationLimit) {
		t.Errorf("expected ErrEvaluationLimit, got %v", err)
	}
	// Cached structures are still free.
	if _, err := e.Evaluate(context.Background(), genome.Lumped.MustParse("river")); err != nil {
		t.Errorf("cache hit should not count against the limit: %v", err)
	}
}

func TestCache_EntriesAndLoad(t *testing.T) {
	c := NewCache(KeyEffective)
	c.Store(genome.Lumped.MustParse("snow", "tr_first_out"), genome.Lumped.MustParse("snow", "tr_first_out"), 0.5)
	c.Store(genome.Lumped.MustParse("canopy", "tr_first_out"), genome.Lumped.MustParse("canopy", "tr_first_out"), 0.2)

	entries := c.Entries()
	if len(entries) != 2 || entries[0].Key != "canopy tr_first_out" {
		t.Fatalf("entries = %+v", entries)
	}

	restored := NewCache(KeyEffective)
	restored.Load(entries)
	l, ok := restored.Lookup(genome.Lumped.MustParse("tr_first_out", "snow"), nil)
	if !ok || l != 0.5 {
		t.Errorf("lookup after load = %v, %v", l, ok)
	}
}
