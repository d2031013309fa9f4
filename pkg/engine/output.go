package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wildfunctions/acme/pkg/fitness"
)

// ResultsHeader is the first line of every results file.
const ResultsHeader = "Like, Genes"

// ImprovementReport describes one new best candidate.
type ImprovementReport struct {
	Stage     int                `json:"stage"`
	Genes     string             `json:"genes"`
	Effective string             `json:"effective"`
	Activity  float64            `json:"activity"` // percent of genes that are active
	Fitness   fitness.Likelihood `json:"fitness"`
	Strategy  string             `json:"strategy"`
	Elapsed   time.Duration      `json:"elapsed"`
}

// StageReport summarizes one search stage.
type StageReport struct {
	Stage        int                `json:"stage"`
	Target       fitness.Likelihood `json:"target"`
	Met          bool               `json:"met"`
	Improvements int                `json:"improvements"`
	Evaluations  int                `json:"evaluations"`
	BestGenes    string             `json:"best_genes"`
	BestFitness  fitness.Likelihood `json:"best_fitness"`
	Elapsed      time.Duration      `json:"elapsed"`
}

func (sr *StageReport) fill(best Candidate, ok bool, ev *fitness.Evaluator, start time.Time, callsBefore int) {
	sr.Evaluations = ev.Calls() - callsBefore
	sr.Elapsed = time.Since(start)
	if ok {
		sr.BestGenes = ev.Effective(best.Genes).String()
		sr.BestFitness = best.Fitness
	} else {
		sr.BestFitness = fitness.Unusable()
	}
}

// Summary holds statistics over every usable evaluated structure.
type Summary struct {
	Structures int                `json:"structures"`
	Unusable   int                `json:"unusable"`
	Mean       fitness.Likelihood `json:"mean"`
	StdDev     fitness.Likelihood `json:"std_dev"`
	Min        fitness.Likelihood `json:"min"`
	Max        fitness.Likelihood `json:"max"`
}

// FinalReport summarizes the entire run.
type FinalReport struct {
	RunID         string             `json:"run_id"`
	Config        Config             `json:"config"`
	BestGenes     string             `json:"best_genes"`
	BestEffective string             `json:"best_effective"`
	BestFitness   fitness.Likelihood `json:"best_fitness"`
	BestStrategy  string             `json:"best_strategy"`
	Stages        []StageReport      `json:"stages"`
	Evaluations   int                `json:"evaluations"`
	CacheHits     int                `json:"cache_hits"`
	CacheMisses   int                `json:"cache_misses"`
	Summary       Summary            `json:"summary"`
	Elapsed       time.Duration      `json:"elapsed"`
}

func (e *Engine) finalReport(best Candidate, found bool, stages []StageReport, elapsed time.Duration) FinalReport {
	hits, misses := e.evaluator.Cache.Stats()
	r := FinalReport{
		RunID:       e.runID,
		Config:      e.cfg,
		BestFitness: fitness.Unusable(),
		Stages:      stages,
		Evaluations: e.evaluator.Calls(),
		CacheHits:   hits,
		CacheMisses: misses,
		Summary:     Summarize(e.evaluator.Cache.Entries()),
		Elapsed:     elapsed,
	}
	if found {
		r.BestGenes = best.Genes.String()
		r.BestEffective = e.evaluator.Effective(best.Genes).String()
		r.BestFitness = best.Fitness
		r.BestStrategy = best.Strategy.String()
	}
	return r
}

// Summarize computes statistics over cache entries. Unusable scores are
// counted but left out of the statistics.
func Summarize(entries []fitness.Entry) Summary {
	s := Summary{
		Structures: len(entries),
		Mean:       fitness.Unusable(),
		StdDev:     fitness.Unusable(),
		Min:        fitness.Unusable(),
		Max:        fitness.Unusable(),
	}
	var xs []float64
	for _, e := range entries {
		if !e.Likelihood.Usable() {
			s.Unusable++
			continue
		}
		xs = append(xs, float64(e.Likelihood))
	}
	if len(xs) == 0 {
		return s
	}
	sort.Float64s(xs)
	s.Mean = fitness.Likelihood(stat.Mean(xs, nil))
	if len(xs) > 1 {
		s.StdDev = fitness.Likelihood(stat.StdDev(xs, nil))
	}
	s.Min = fitness.Likelihood(xs[0])
	s.Max = fitness.Likelihood(xs[len(xs)-1])
	return s
}

// WriteImprovement writes one improvement line.
func WriteImprovement(w io.Writer, r ImprovementReport) {
	fmt.Fprintf(w, "[stage %d] %s\t%.0f%% active\t%s\t%s\t%s\n",
		r.Stage, r.Effective, r.Activity, r.Fitness, r.Strategy, r.Elapsed.Round(time.Millisecond))
}

// WriteTextFinal writes the final report in human-readable format.
func WriteTextFinal(w io.Writer, r FinalReport) {
	fmt.Fprintln(w, "\n--- Stages ---")
	for _, s := range r.Stages {
		met := "not met"
		if s.Met {
			met = "met"
		}
		fmt.Fprintf(w, "  #%d: target %.4f %s | %d improvements, %d evaluations, %s | %s %s\n",
			s.Stage, float64(s.Target), met, s.Improvements, s.Evaluations,
			s.Elapsed.Round(time.Millisecond), s.BestFitness, s.BestGenes)
	}
	fmt.Fprintln(w, "\n========== FINAL RESULT ==========")
	fmt.Fprintf(w, "Run:         %s\n", r.RunID)
	fmt.Fprintf(w, "Pool:        %s\n", r.Config.Pool)
	fmt.Fprintf(w, "Best:        %s\n", r.BestGenes)
	fmt.Fprintf(w, "Effective:   %s\n", r.BestEffective)
	fmt.Fprintf(w, "Fitness:     %s\n", r.BestFitness)
	fmt.Fprintf(w, "Strategy:    %s\n", r.BestStrategy)
	fmt.Fprintf(w, "Evaluations: %d (cache %d hits, %d misses)\n", r.Evaluations, r.CacheHits, r.CacheMisses)
	fmt.Fprintf(w, "Structures:  %d (%d unusable), mean %s, std %s\n",
		r.Summary.Structures, r.Summary.Unusable, r.Summary.Mean, r.Summary.StdDev)
	fmt.Fprintf(w, "Elapsed:     %s\n", r.Elapsed.Round(time.Millisecond))
	fmt.Fprintln(w, "==================================")
}

// WriteJSONFinal writes the final report as JSON.
func WriteJSONFinal(w io.Writer, r FinalReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteResults writes every cached structure: a "Like, Genes" header, then
// one line per structure with its likelihood and effective genes, all
// separated by ", ".
func WriteResults(w io.Writer, entries []fitness.Entry) error {
	if _, err := fmt.Fprintln(w, ResultsHeader); err != nil {
		return err
	}
	for _, e := range entries {
		genes := strings.Join(strings.Fields(e.Effective), ", ")
		if _, err := fmt.Fprintf(w, "%s, %s\n", e.Likelihood, genes); err != nil {
			return err
		}
	}
	return nil
}

// ResultsFileName is the name the results of a run started at t are written to.
func ResultsFileName(t time.Time) string {
	return fmt.Sprintf("acme_results_%d.csv", t.Unix())
}

// WriteResultsFile writes the session's cache into dir and returns the path.
func (e *Engine) WriteResultsFile(dir string, t time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating results dir: %w", err)
	}
	path := filepath.Join(dir, ResultsFileName(t))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating results file: %w", err)
	}
	if err := WriteResults(f, e.evaluator.Cache.Entries()); err != nil {
		f.Close()
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, f.Close()
}
