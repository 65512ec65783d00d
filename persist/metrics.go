package persist

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts persistence activity. A nil *Metrics records nothing.
type Metrics struct {
	LoadsTotal        *prometheus.CounterVec
	MigrationsTotal   *prometheus.CounterVec
	SavesTotal        prometheus.Counter
	SaveFailuresTotal prometheus.Counter
	ConflictsTotal    prometheus.Counter
	SaveDuration      prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runview_persist_loads_total",
				Help: "Persisted view state loads by result (hit, miss, fallback).",
			},
			[]string{"result"},
		),
		MigrationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runview_persist_migrations_total",
				Help: "Schema migrations applied, by source version.",
			},
			[]string{"from"},
		),
		SavesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "runview_persist_saves_total",
			Help: "Successful writes of persisted view state.",
		}),
		SaveFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "runview_persist_save_failures_total",
			Help: "Failed writes of persisted view state.",
		}),
		ConflictsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "runview_persist_conflicts_total",
			Help: "Writes that found the stored document changed by another writer.",
		}),
		SaveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "runview_persist_save_duration_seconds",
			Help:    "Duration of persisted view state writes.",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}
}

func (m *Metrics) load(result string) {
	if m != nil {
		m.LoadsTotal.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) migrated(from string) {
	if m != nil {
		m.MigrationsTotal.WithLabelValues(from).Inc()
	}
}

func (m *Metrics) saved(d time.Duration) {
	if m != nil {
		m.SavesTotal.Inc()
		m.SaveDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) saveFailed() {
	if m != nil {
		m.SaveFailuresTotal.Inc()
	}
}

func (m *Metrics) conflict() {
	if m != nil {
		m.ConflictsTotal.Inc()
	}
}
