package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"chartevo/internal/model"
)

// Recorder exports trainer progress as Prometheus metrics.
type Recorder struct {
	generation  prometheus.Gauge
	fitness     *prometheus.GaugeVec
	duration    prometheus.Histogram
	evaluations prometheus.Counter
	errorsTotal *prometheus.CounterVec
}

// New registers the trainer metrics on reg. Pass prometheus.DefaultRegisterer
// to expose them on the default /metrics handler.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		generation: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chartevo_generation",
			Help: "Index of the last evaluated generation",
		}),
		fitness: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chartevo_fitness",
				Help: "Fitness summary of the last evaluated generation",
			},
			[]string{"stat"},
		),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chartevo_generation_duration_seconds",
			Help:    "Wall time to evaluate and breed one generation",
			Buckets: prometheus.DefBuckets,
		}),
		evaluations: factory.NewCounter(prometheus.CounterOpts{
			Name: "chartevo_evaluations_total",
			Help: "Total number of individual episodes evaluated",
		}),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartevo_errors_total",
				Help: "Non-fatal errors encountered by the trainer",
			},
			[]string{"type"},
		),
	}
}

// RecordGeneration records one finished generation.
func (r *Recorder) RecordGeneration(stats model.GenerationStats, evaluations int, elapsed time.Duration) {
	r.generation.Set(float64(stats.Generation))
	r.fitness.WithLabelValues("min").Set(stats.MinFitness)
	r.fitness.WithLabelValues("avg").Set(stats.AvgFitness)
	r.fitness.WithLabelValues("max").Set(stats.MaxFitness)
	r.duration.Observe(elapsed.Seconds())
	r.evaluations.Add(float64(evaluations))
}

// RecordError records a non-fatal error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
