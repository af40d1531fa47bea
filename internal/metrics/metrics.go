package metrics

import (
	"fmt"

	"github.com/desertthunder/plexio/internal/services"
	"github.com/desertthunder/plexio/internal/tasks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"github.com/sony/gobreaker/v2"
)

// Registry owns the plexio collectors. Each Registry is independent, so tests and repeated
// TUI imports never share counters.
type Registry struct {
	reg *prometheus.Registry

	MatchTotal             *prometheus.CounterVec
	PlaylistOutcomesTotal  *prometheus.CounterVec
	CircuitBreakerState    *prometheus.GaugeVec
	CircuitBreakerRequests *prometheus.CounterVec
}

var (
	_ tasks.Observer           = (*Registry)(nil)
	_ services.BreakerObserver = (*Registry)(nil)
)

// New creates a Registry with every match strategy and outcome status pre-initialized to zero.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	r := &Registry{
		reg: reg,
		MatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plexio_match_total",
				Help: "Total number of imported items by matching strategy",
			},
			[]string{"strategy"},
		),
		PlaylistOutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plexio_playlist_outcomes_total",
				Help: "Total number of imported playlists by outcome status",
			},
			[]string{"status"},
		),
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "plexio_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		CircuitBreakerRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plexio_circuit_breaker_requests_total",
				Help: "Total number of requests through the circuit breaker",
			},
			[]string{"name", "result"},
		),
	}

	for _, s := range tasks.Strategies {
		r.MatchTotal.WithLabelValues(string(s))
	}
	for _, s := range []tasks.OutcomeStatus{tasks.StatusCompleted, tasks.StatusCancelled, tasks.StatusCreateFailed} {
		r.PlaylistOutcomesTotal.WithLabelValues(string(s))
	}
	return r
}

func (r *Registry) MatchResolved(strategy tasks.Strategy) {
	r.MatchTotal.WithLabelValues(string(strategy)).Inc()
}

func (r *Registry) PlaylistOutcome(status tasks.OutcomeStatus) {
	r.PlaylistOutcomesTotal.WithLabelValues(string(status)).Inc()
}

func (r *Registry) BreakerState(name string, state gobreaker.State) {
	var v float64
	switch state {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	r.CircuitBreakerState.WithLabelValues(name).Set(v)
}

func (r *Registry) BreakerRequest(name, result string) {
	r.CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// WriteTextfile writes every metric in the text exposition format to path, atomically.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

// MatchCounts returns plexio_match_total per strategy.
func (r *Registry) MatchCounts() (map[string]float64, error) {
	return r.counterValues("plexio_match_total", "strategy")
}

// OutcomeCounts returns plexio_playlist_outcomes_total per status.
func (r *Registry) OutcomeCounts() (map[string]float64, error) {
	return r.counterValues("plexio_playlist_outcomes_total", "status")
}

func (r *Registry) counterValues(family, label string) (map[string]float64, error) {
	families, err := r.reg.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}

	values := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != family {
			continue
		}
		for _, m := range mf.GetMetric() {
			values[labelValue(m, label)] = m.GetCounter().GetValue()
		}
	}
	return values, nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
