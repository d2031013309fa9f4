package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wildfunctions/acme/pkg/engine"
	"github.com/wildfunctions/acme/pkg/fitness"
)

// Metrics holds the counters of a search run on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	evaluations  prometheus.Counter
	cacheHits    prometheus.Counter
	diverged     prometheus.Counter
	improvements prometheus.Counter
	bestFitness  *prometheus.GaugeVec
	calibration  prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		Registry:     prometheus.NewRegistry(),
		evaluations:  prometheus.NewCounter(prometheus.CounterOpts{Name: "acme_evaluations_total", Help: "Structures sent to the calibration oracle."}),
		cacheHits:    prometheus.NewCounter(prometheus.CounterOpts{Name: "acme_cache_hits_total", Help: "Evaluations answered from the fitness cache."}),
		diverged:     prometheus.NewCounter(prometheus.CounterOpts{Name: "acme_diverged_total", Help: "Calibrations that produced no usable likelihood."}),
		improvements: prometheus.NewCounter(prometheus.CounterOpts{Name: "acme_improvements_total", Help: "New best structures found."}),
		bestFitness:  prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "acme_best_fitness", Help: "Best likelihood found so far."}, []string{"run_id"}),
		calibration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "acme_calibration_seconds",
			Help:    "Wall time of one oracle call.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	m.Registry.MustRegister(m.evaluations, m.cacheHits, m.diverged, m.improvements, m.bestFitness, m.calibration)
	return m
}

// ObserveEvaluation records one Evaluate call. It fits fitness.Evaluator.Observer.
func (m *Metrics) ObserveEvaluation(ev fitness.Evaluation) {
	if ev.Cached {
		m.cacheHits.Inc()
		return
	}
	m.evaluations.Inc()
	m.calibration.Observe(ev.Elapsed.Seconds())
	if !ev.Likelihood.Usable() {
		m.diverged.Inc()
	}
}

// ObserveImprovement records a new best candidate of a run.
func (m *Metrics) ObserveImprovement(runID string, r engine.ImprovementReport) {
	m.improvements.Inc()
	if r.Fitness.Usable() {
		m.bestFitness.WithLabelValues(runID).Set(float64(r.Fitness))
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
