package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/nijaru/mediatext/errors"
	"github.com/nijaru/mediatext/pipeline"
)

const namespace = "mediatext"

// Metrics records job outcomes and stage durations from pipeline events.
type Metrics struct {
	registry      *prometheus.Registry
	jobs          *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	inFlight      prometheus.Gauge

	mu      sync.Mutex
	entered map[string]stageEntry
}

type stageEntry struct {
	state pipeline.State
	at    time.Time
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Finished jobs by outcome, failing stage and error kind.",
		}, []string{"outcome", "stage", "kind"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"stage"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Jobs currently running.",
		}),
		entered: make(map[string]stageEntry),
	}

	m.registry.MustRegister(
		m.jobs,
		m.stageDuration,
		m.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe is a pipeline.Observer.
func (m *Metrics) Observe(ev pipeline.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, running := m.entered[ev.JobID]
	if running && prev.state != pipeline.StateCreated {
		m.stageDuration.WithLabelValues(prev.state.String()).Observe(ev.At.Sub(prev.at).Seconds())
	}

	switch {
	case ev.State == pipeline.StateCreated:
		m.inFlight.Inc()
		m.entered[ev.JobID] = stageEntry{state: ev.State, at: ev.At}
	case ev.State.Terminal():
		if running {
			m.inFlight.Dec()
		}
		delete(m.entered, ev.JobID)
		if ev.State == pipeline.StateDone {
			m.jobs.WithLabelValues("done", "", "").Inc()
		} else {
			m.jobs.WithLabelValues("failed", prev.state.String(), string(apperrors.KindOf(ev.Err))).Inc()
		}
	default:
		m.entered[ev.JobID] = stageEntry{state: ev.State, at: ev.At}
	}
}

// Rejected counts a job that never left CREATED because a precondition
// failed. The orchestrator emits no terminal event for those.
func (m *Metrics) Rejected(jobID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entered[jobID]; ok {
		m.inFlight.Dec()
		delete(m.entered, jobID)
	}
	m.jobs.WithLabelValues("rejected", pipeline.StateCreated.String(), string(apperrors.KindOf(err))).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
