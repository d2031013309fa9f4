package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/wildfunctions/acme/pkg/fitness"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewStore("sqlite", filepath.Join(t.TempDir(), "acme.db"))
	if err != nil {
		t.Fatal(err)
	}
	memory, err := NewStore("memory", "")
	if err != nil {
		t.Fatal(err)
	}
	return map[string]Store{"memory": memory, "sqlite": sqlite}
}

func TestStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		if err := s.Init(ctx); err != nil {
			t.Fatalf("%s init: %v", name, err)
		}
		t.Cleanup(func() { _ = s.Close() })

		run := Run{
			ID:          "run-1",
			Scope:       "lumped|nashsutcliffe|catchment.csv",
			Started:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			Config:      []byte(`{"pool":"lumped"}`),
			BestGenes:   "snow tr_first_out",
			BestFitness: 0.71,
			Evaluations: 42,
		}
		if err := s.SaveRun(ctx, run); err != nil {
			t.Fatalf("%s save run: %v", name, err)
		}
		got, ok, err := s.GetRun(ctx, run.ID)
		if err != nil || !ok {
			t.Fatalf("%s get run: ok=%v err=%v", name, ok, err)
		}
		if got.Scope != run.Scope || got.BestGenes != run.BestGenes || got.BestFitness != run.BestFitness ||
			got.Evaluations != run.Evaluations || !got.Started.Equal(run.Started) || string(got.Config) != string(run.Config) {
			t.Errorf("%s: got %+v, want %+v", name, got, run)
		}

		run.BestFitness = fitness.Unusable()
		if err := s.SaveRun(ctx, run); err != nil {
			t.Fatalf("%s update run: %v", name, err)
		}
		got, _, _ = s.GetRun(ctx, run.ID)
		if got.BestFitness.Usable() {
			t.Errorf("%s: unusable fitness came back as %v", name, got.BestFitness)
		}

		if _, ok, err := s.GetRun(ctx, "missing"); ok || err != nil {
			t.Errorf("%s: missing run ok=%v err=%v", name, ok, err)
		}
	}
}

func TestStoreEntries(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		if err := s.Init(ctx); err != nil {
			t.Fatalf("%s init: %v", name, err)
		}
		t.Cleanup(func() { _ = s.Close() })

		first := []fitness.Entry{
			{Key: "tr_first_out", Effective: "tr_first_out", Likelihood: 0.3},
			{Key: "river tr_first_river tr_river_out", Effective: "river tr_first_river tr_river_out", Likelihood: fitness.Unusable()},
		}
		if err := s.SaveEntries(ctx, "a", "run-1", first); err != nil {
			t.Fatalf("%s save: %v", name, err)
		}
		second := []fitness.Entry{{Key: "tr_first_out", Effective: "tr_first_out", Likelihood: 0.35}}
		if err := s.SaveEntries(ctx, "a", "run-2", second); err != nil {
			t.Fatalf("%s save: %v", name, err)
		}
		if err := s.SaveEntries(ctx, "b", "run-3", second); err != nil {
			t.Fatalf("%s save: %v", name, err)
		}

		got, err := s.LoadEntries(ctx, "a")
		if err != nil {
			t.Fatalf("%s load: %v", name, err)
		}
		if len(got) != 2 {
			t.Fatalf("%s: loaded %d entries, want 2", name, len(got))
		}
		if got[0].Key != "river tr_first_river tr_river_out" || got[0].Likelihood.Usable() {
			t.Errorf("%s: first entry %+v", name, got[0])
		}
		if got[1].Likelihood != 0.35 {
			t.Errorf("%s: later run should overwrite, got %v", name, got[1].Likelihood)
		}

		none, err := s.LoadEntries(ctx, "c")
		if err != nil || len(none) != 0 {
			t.Errorf("%s: unknown scope gave %v, %v", name, none, err)
		}
	}
}

func TestStoreResumeSeedsCache(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "acme.db"))
	if err := s.Init(ctx); err != nil {
		t.Fatal(err)
	}
	entries := []fitness.Entry{{Key: "snow tr_first_out", Effective: "snow tr_first_out", Likelihood: 0.5}}
	if err := s.SaveEntries(ctx, "x", "run-1", entries); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := NewSQLiteStore(s.path)
	if err := reopened.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	loaded, err := reopened.LoadEntries(ctx, "x")
	if err != nil {
		t.Fatal(err)
	}
	cache := fitness.NewCache(fitness.KeyRaw)
	cache.Load(loaded)
	if cache.Len() != 1 || cache.Entries()[0].Likelihood != 0.5 {
		t.Errorf("cache after resume = %+v", cache.Entries())
	}
}

func TestStoreNotInitialized(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		if err := s.SaveRun(ctx, Run{ID: "x"}); err == nil {
			t.Errorf("%s: expected error before Init", name)
		}
		if _, err := s.LoadEntries(ctx, "x"); err == nil {
			t.Errorf("%s: expected error before Init", name)
		}
	}
}

func TestNewStore(t *testing.T) {
	if _, err := NewStore("postgres", ""); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := NewStore("sqlite", ""); err == nil {
		t.Error("expected error for sqlite without a path")
	}
}
