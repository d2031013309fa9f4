package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/maseology/mmio"

	"github.com/wildfunctions/acme/pkg/calib"
	"github.com/wildfunctions/acme/pkg/engine"
	"github.com/wildfunctions/acme/pkg/fitness"
	"github.com/wildfunctions/acme/pkg/hydro"
	"github.com/wildfunctions/acme/pkg/metrics"
	"github.com/wildfunctions/acme/pkg/store"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg fileConfig, stdout, stderr io.Writer) error {
	c := cfg.Calibration
	text := cfg.Search.Format != "json"
	tt := mmio.NewTimer()
	lap := func(msg string) {
		if text {
			tt.Lap(msg)
		}
	}

	if c.Forcing == "" {
		return fmt.Errorf("no forcing file given (-forcing)")
	}
	forcing, err := hydro.LoadForcingFile(c.Forcing)
	if err != nil {
		return err
	}
	forcing.Latitude = c.Latitude
	calPeriod, err := hydro.ParsePeriod(c.Calibration)
	if err != nil {
		return err
	}
	valPeriod, err := hydro.ParsePeriod(c.Validation)
	if err != nil {
		return err
	}
	objective, err := calib.GetObjective(c.Objective)
	if err != nil {
		return err
	}
	sampler, err := calib.NewSampler(c.Sampler, calib.SamplerOptions{Samples: c.Samples, Workers: c.Workers, Complexes: c.Complexes})
	if err != nil {
		return err
	}
	oracle, err := calib.NewOracle(forcing, calPeriod, valPeriod, objective, sampler, cfg.Search.Seed)
	if err != nil {
		return err
	}
	lap(fmt.Sprintf(" loaded %d forcing steps from %s", forcing.Len(), c.Forcing))

	if c.Test {
		dir, err := os.MkdirTemp("", "acme_test_")
		if err != nil {
			return err
		}
		cfg.Search.OutDir = dir
	}
	if err := os.MkdirAll(cfg.Search.OutDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	e, err := engine.New(cfg.Search, oracle)
	if err != nil {
		return err
	}
	e.Log = stderr
	oracle.Seed = e.Config().Seed

	scope := runScope(cfg, forcing, calPeriod)
	// Without -db the run is kept in memory only.
	kind := "memory"
	if c.DB != "" {
		kind = "sqlite"
	}
	st, err := store.NewStore(kind, c.DB)
	if err != nil {
		return err
	}
	if err := st.Init(ctx); err != nil {
		return fmt.Errorf("opening %s store: %w", kind, err)
	}
	defer st.Close()
	if c.Resume {
		entries, err := st.LoadEntries(ctx, scope)
		if err != nil {
			return fmt.Errorf("loading stored structures: %w", err)
		}
		e.Cache().Load(entries)
		fmt.Fprintf(stderr, "resumed %d evaluated structures\n", len(entries))
	}

	m := metrics.New()
	if c.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, c.MetricsAddr); err != nil {
				fmt.Fprintf(stderr, "metrics: %v\n", err)
			}
		}()
	}

	var bar *uiprogress.Bar
	if c.Progress && text && cfg.Search.MaxEvaluations > 0 {
		uiprogress.Start()
		bar = uiprogress.AddBar(cfg.Search.MaxEvaluations).AppendCompleted().PrependElapsed()
		bar.PrependFunc(func(b *uiprogress.Bar) string {
			return fmt.Sprintf("evaluations %d/%d", b.Current(), cfg.Search.MaxEvaluations)
		})
	}
	e.SetObserver(func(ev fitness.Evaluation) {
		m.ObserveEvaluation(ev)
		if bar != nil && !ev.Cached {
			bar.Incr()
		}
		if cfg.Search.Verbose {
			logEvaluation(stderr, ev)
		}
	})
	e.OnImprovement = func(r engine.ImprovementReport) { m.ObserveImprovement(e.RunID(), r) }

	started := time.Now()
	report, err := e.Run(ctx)
	if bar != nil {
		uiprogress.Stop()
	}
	if err != nil {
		return err
	}
	lap(" search complete")

	path, err := e.WriteResultsFile(e.Config().OutDir, started)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "results written to %s\n", path)

	if err := persist(ctx, st, scope, started, report, e); err != nil {
		return err
	}

	switch cfg.Search.Format {
	case "json":
		if err := engine.WriteJSONFinal(stdout, report); err != nil {
			return fmt.Errorf("writing JSON: %w", err)
		}
	default:
		engine.WriteTextFinal(stdout, report)
		describeBest(ctx, stdout, e, oracle, report)
		tt.Print(" done")
	}
	return nil
}

// runScope identifies the experiment; stored structures are reused only
// within the same scope.
func runScope(cfg fileConfig, f *hydro.Forcing, cal hydro.Period) string {
	abs, err := filepath.Abs(cfg.Calibration.Forcing)
	if err != nil {
		abs = cfg.Calibration.Forcing
	}
	return fmt.Sprintf("%s|%s|%s|%s|%d|%s|%s|n=%d",
		cfg.Search.Pool, cfg.Calibration.Objective, cfg.Calibration.Sampler,
		cfg.Search.Reduce, cfg.Calibration.Samples, abs, cal, f.Len())
}

func persist(ctx context.Context, st store.Store, scope string, started time.Time, report engine.FinalReport, e *engine.Engine) error {
	cfgJSON, err := json.Marshal(report.Config)
	if err != nil {
		return err
	}
	if err := st.SaveEntries(ctx, scope, report.RunID, e.Cache().Entries()); err != nil {
		return fmt.Errorf("saving structures: %w", err)
	}
	return st.SaveRun(ctx, store.Run{
		ID:          report.RunID,
		Scope:       scope,
		Started:     started,
		Config:      cfgJSON,
		BestGenes:   report.BestEffective,
		BestFitness: report.BestFitness,
		Evaluations: report.Evaluations,
	})
}

func logEvaluation(w io.Writer, ev fitness.Evaluation) {
	src := "calibrated"
	if ev.Cached {
		src = "cached"
	}
	fmt.Fprintf(w, "  eval %s\t%s\t%s\t%s", ev.Effective, ev.Likelihood, src, ev.Elapsed.Round(time.Millisecond))
	if ev.Err != nil {
		fmt.Fprintf(w, "\t(%v)", ev.Err)
	}
	fmt.Fprintln(w)
}

// describeBest recalibrates the best structure to show its parameters and
// validation score.
func describeBest(ctx context.Context, w io.Writer, e *engine.Engine, oracle *calib.Oracle, report engine.FinalReport) {
	if report.BestEffective == "" {
		return
	}
	structure, err := e.Universe().ParseString(report.BestEffective)
	if err != nil {
		fmt.Fprintf(w, "cannot describe best structure: %v\n", err)
		return
	}
	fmt.Fprintln(w, "\n--- Best structure ---")
	hydro.Build(structure).Describe(w)
	r, err := oracle.Fit(ctx, structure)
	if err != nil {
		fmt.Fprintf(w, "recalibration failed: %v\n", err)
		return
	}
	fmt.Fprintf(w, "calibration %s: %.4f\n", oracle.Objective.Name, r.Likelihood)
	if !oracle.Validation.IsZero() {
		fmt.Fprintf(w, "validation  %s: %.4f\n", oracle.Objective.Name, r.Validation)
	}
	for _, d := range hydro.Build(structure).Dims() {
		fmt.Fprintf(w, "  %-18s %.4f\n", d.Name, r.Params[d.Name])
	}
}
