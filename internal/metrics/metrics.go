// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics records screening outcomes as Prometheus metrics on a
// private registry and writes them in the node-exporter textfile format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pdiddy/trial-prescreen/pkg/types"
)

const namespace = "prescreen"

// Recorder holds the screening metrics.
type Recorder struct {
	reg *prometheus.Registry

	screenings          *prometheus.CounterVec
	screenDuration      prometheus.Histogram
	paretoCriteria      prometheus.Gauge
	combinedElimination prometheus.Gauge
	shortCircuits       prometheus.Counter
}

// NewRecorder registers the screening metrics on a new registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		reg: reg,
		screenings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "screenings_total",
				Help:      "Total number of candidate screenings by verdict",
			},
			[]string{"verdict"},
		),
		screenDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "screen_duration_seconds",
				Help:      "Time to screen one candidate in seconds",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
			},
		),
		paretoCriteria: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pareto_criteria",
				Help:      "Number of criteria selected for the last run",
			},
		),
		combinedElimination: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "combined_elimination_rate",
				Help:      "Estimated combined elimination rate of the last run's criteria",
			},
		),
		shortCircuits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "short_circuits_total",
				Help:      "Screenings that stopped before evaluating every selected criterion",
			},
		),
	}
}

// Registry returns the registry the metrics are registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// ObserveRun records every screening in result.
func (r *Recorder) ObserveRun(result *types.PipelineResult) {
	r.paretoCriteria.Set(float64(len(result.ParetoCriteria)))
	r.combinedElimination.Set(result.CombinedEliminationRate)

	// Touch every label so absent verdicts export as zero.
	for _, v := range []types.Verdict{types.VerdictPass, types.VerdictFail, types.VerdictNeedsReview} {
		r.screenings.WithLabelValues(string(v))
	}

	for _, s := range result.Results() {
		r.screenings.WithLabelValues(string(s.Verdict)).Inc()
		r.screenDuration.Observe(s.Duration.Seconds())
		if s.Verdict == types.VerdictFail && len(s.CriterionResults) < len(result.ParetoCriteria) {
			r.shortCircuits.Inc()
		}
	}
}

// WriteTextfile writes the current metric values to path, creating its
// directory. The write is atomic so a collector never reads a partial file.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("writing metrics textfile %s: %w", path, err)
	}
	return nil
}
