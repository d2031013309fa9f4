package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wildfunctions/acme/pkg/fitness"
	"github.com/wildfunctions/acme/pkg/genome"
)

// storageOracle scores a structure by the share of optional storages it keeps active.
func storageOracle(calls *int) fitness.Oracle {
	return fitness.OracleFunc(func(ctx context.Context, structure genome.Genome) (float64, error) {
		*calls++
		return float64(len(structure.Storages())) / 5, nil
	})
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Seed = 42
	cfg.MaxSeconds = 10
	cfg.TargetFitness = 0.6
	return cfg
}

func TestEngine_SmallRun(t *testing.T) {
	calls := 0
	e, err := New(testConfig(), storageOracle(&calls))
	if err != nil {
		t.Fatal(err)
	}
	e.Log = io.Discard

	var improvements []ImprovementReport
	e.OnImprovement = func(r ImprovementReport) { improvements = append(improvements, r) }

	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(report.Stages) != 1 || !report.Stages[0].Met {
		t.Fatalf("stage not met: %+v", report.Stages)
	}
	if report.BestFitness < 0.6 {
		t.Errorf("best fitness %v below target", report.BestFitness)
	}
	if report.BestEffective == "" || report.RunID == "" {
		t.Errorf("incomplete report: %+v", report)
	}
	if report.Evaluations != calls {
		t.Errorf("report counts %d evaluations, oracle saw %d", report.Evaluations, calls)
	}
	if e.Cache().Len() != calls {
		t.Errorf("cache holds %d structures after %d oracle calls", e.Cache().Len(), calls)
	}
	if len(improvements) != report.Stages[0].Improvements {
		t.Errorf("observed %d improvements, report says %d", len(improvements), report.Stages[0].Improvements)
	}
	for i := 1; i < len(improvements); i++ {
		if !improvements[i].Fitness.Greater(improvements[i-1].Fitness) {
			t.Errorf("improvement %d (%v) does not beat %v", i, improvements[i].Fitness, improvements[i-1].Fitness)
		}
	}

	t.Logf("best %s = %v after %d evaluations", report.BestEffective, report.BestFitness, report.Evaluations)
}

func TestEngine_MultiStage(t *testing.T) {
	cfg := testConfig()
	cfg.SearchIterations = 3
	cfg.TargetFitness = 0.2
	cfg.ObjectiveIncrement = 0.2

	calls := 0
	e, err := New(cfg, storageOracle(&calls))
	if err != nil {
		t.Fatal(err)
	}
	e.Log = io.Discard

	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Stages) != 3 {
		t.Fatalf("got %d stages, want 3", len(report.Stages))
	}
	for i, s := range report.Stages {
		want := 0.2 + 0.2*float64(i)
		if diff := float64(s.Target) - want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("stage %d target %v, want %v", s.Stage, s.Target, want)
		}
		if !s.Met {
			t.Errorf("stage %d not met", s.Stage)
		}
	}
}

func TestEngine_EvaluationBudget(t *testing.T) {
	cfg := testConfig()
	cfg.MaxEvaluations = 15
	cfg.TargetFitness = 2 // unreachable

	calls := 0
	e, err := New(cfg, storageOracle(&calls))
	if err != nil {
		t.Fatal(err)
	}
	e.Log = io.Discard

	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("budget exhaustion should not be an error: %v", err)
	}
	if calls != 15 || report.Evaluations != 15 {
		t.Errorf("oracle called %d times, report says %d, want 15", calls, report.Evaluations)
	}
	if report.Stages[0].Met {
		t.Error("unreachable target reported as met")
	}
	if report.BestEffective == "" {
		t.Error("expected the best structure so far")
	}
}

func TestEngine_TimeBudget(t *testing.T) {
	cfg := testConfig()
	cfg.TargetFitness = 2
	cfg.MaxSeconds = 0.2
	cfg.SearchIterations = 2

	slow := fitness.OracleFunc(func(ctx context.Context, structure genome.Genome) (float64, error) {
		select {
		case <-time.After(5 * time.Millisecond):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
		return float64(len(structure)) / 100, nil
	})
	e, err := New(cfg, slow)
	if err != nil {
		t.Fatal(err)
	}
	e.Log = io.Discard

	start := time.Now()
	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Stages) != 2 {
		t.Errorf("a spent stage budget should move on to the next stage, got %d stages", len(report.Stages))
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("run took %s", elapsed)
	}
}

func TestEngine_DivergedStructuresLose(t *testing.T) {
	cfg := testConfig()
	cfg.TargetFitness = 0.4

	oracle := fitness.OracleFunc(func(ctx context.Context, structure genome.Genome) (float64, error) {
		if structure.Contains(genome.River) {
			return 0, errors.New("solver diverged")
		}
		return float64(len(structure.Storages())) / 5, nil
	})
	e, err := New(cfg, oracle)
	if err != nil {
		t.Fatal(err)
	}
	e.Log = io.Discard

	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, token := range strings.Fields(report.BestEffective) {
		if token == genome.River {
			t.Errorf("best structure holds a storage that always diverges: %s", report.BestEffective)
		}
	}
	if !report.BestFitness.Usable() {
		t.Errorf("best fitness should be usable, got %v", report.BestFitness)
	}
}

func TestEngine_InvalidConfig(t *testing.T) {
	oracle := storageOracle(new(int))
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"pool", func(c *Config) { c.Pool = "nonexistent" }},
		{"reduce", func(c *Config) { c.Reduce = "transitive" }},
		{"cache key", func(c *Config) { c.CacheKey = "both" }},
		{"pool size", func(c *Config) { c.PoolSize = 0 }},
		{"threshold", func(c *Config) { c.Threshold = 1.5 }},
		{"format", func(c *Config) { c.Format = "xml" }},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(&cfg)
		if _, err := New(cfg, oracle); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
	if _, err := New(DefaultConfig(), nil); err == nil {
		t.Error("expected error without oracle")
	}
}

func TestEngine_JSONFormat(t *testing.T) {
	cfg := testConfig()
	cfg.Format = "json"
	e, err := New(cfg, storageOracle(new(int)))
	if err != nil {
		t.Fatal(err)
	}
	e.Log = io.Discard

	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteJSONFinal(&buf, report); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["run_id"] != report.RunID {
		t.Errorf("run_id = %v", decoded["run_id"])
	}

	buf.Reset()
	WriteTextFinal(&buf, report)
	if !strings.Contains(buf.String(), "FINAL RESULT") {
		t.Error("text report missing banner")
	}
}

func TestWriteResults(t *testing.T) {
	entries := []fitness.Entry{
		{Key: "snow tr_first_out", Effective: "snow tr_first_out", Likelihood: 0.5},
		{Key: "tr_first_out", Effective: "tr_first_out", Likelihood: fitness.Unusable()},
	}
	var buf bytes.Buffer
	if err := WriteResults(&buf, entries); err != nil {
		t.Fatal(err)
	}
	want := "Like, Genes\n0.5, snow, tr_first_out\nNaN, tr_first_out\n"
	if buf.String() != want {
		t.Errorf("got\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestWriteResultsFile(t *testing.T) {
	calls := 0
	e, err := New(testConfig(), storageOracle(&calls))
	if err != nil {
		t.Fatal(err)
	}
	e.Log = io.Discard
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	now := time.Unix(1700000000, 0)
	path, err := e.WriteResultsFile(dir, now)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "acme_results_1700000000.csv" {
		t.Errorf("unexpected file name %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != ResultsHeader {
		t.Errorf("header = %q", lines[0])
	}
	if len(lines)-1 != e.Cache().Len() {
		t.Errorf("%d rows for %d cached structures", len(lines)-1, e.Cache().Len())
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]fitness.Entry{
		{Likelihood: 0.2},
		{Likelihood: 0.4},
		{Likelihood: fitness.Unusable()},
	})
	if s.Structures != 3 || s.Unusable != 1 {
		t.Errorf("counts = %+v", s)
	}
	if diff := float64(s.Mean) - 0.3; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("mean = %v", s.Mean)
	}
	if s.Min != 0.2 || s.Max != 0.4 {
		t.Errorf("min/max = %v/%v", s.Min, s.Max)
	}

	empty := Summarize(nil)
	if empty.Mean.Usable() {
		t.Error("mean of nothing should be unusable")
	}
}
