// Package metrics exposes Prometheus metrics for site request forms.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-siterequest/pkg/formstate"
)

const defaultNamespace = "siterequest"

var phases = []formstate.Phase{
	formstate.PhaseIdle,
	formstate.PhaseLoadingDivisions,
	formstate.PhaseLoadingSiteTemplates,
	formstate.PhaseLoadingFields,
	formstate.PhaseSaving,
	formstate.PhaseFailed,
	formstate.PhaseSaved,
}

// Collector counts committed and rejected transitions and tracks the current
// phase of the observed form.
type Collector struct {
	logger   zerolog.Logger
	registry *prometheus.Registry

	transitions *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	phase       *prometheus.GaugeVec
	saves       *prometheus.CounterVec
}

// NewCollector creates a collector backed by its own registry. An empty
// namespace defaults to "siterequest".
func NewCollector(logger zerolog.Logger, namespace string) *Collector {
	if namespace == "" {
		namespace = defaultNamespace
	}
	c := &Collector{
		logger:   logger.With().Str("component", "metrics_collector").Logger(),
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "form",
				Name:      "transitions_total",
				Help:      "Committed form state transitions by operation",
			},
			[]string{"op"},
		),
		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "form",
				Name:      "rejected_transitions_total",
				Help:      "Form operations refused as invalid transitions",
			},
			[]string{"op"},
		),
		phase: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "form",
				Name:      "phase",
				Help:      "1 for the phase the form is currently in, 0 otherwise",
			},
			[]string{"phase"},
		),
		saves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "form",
				Name:      "saves_total",
				Help:      "Finished save attempts by outcome",
			},
			[]string{"outcome"},
		),
	}
	c.registry.MustRegister(c.transitions, c.rejected, c.phase, c.saves)
	c.setPhase(formstate.PhaseIdle)
	c.logger.Debug().Str("namespace", namespace).Msg("metrics collector initialized")
	return c
}

// Registry returns the registry holding the form metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Observe records a committed change. It has the shape of a store
// subscriber.
func (c *Collector) Observe(change formstate.Change) {
	c.transitions.WithLabelValues(change.Op).Inc()
	c.setPhase(change.State.Phase)
	switch change.Op {
	case formstate.OpSaveSucceeded:
		c.saves.WithLabelValues("succeeded").Inc()
	case formstate.OpSaveFailed:
		c.saves.WithLabelValues("failed").Inc()
	}
}

// Rejected records a refused operation. It has the shape of a reject hook.
func (c *Collector) Rejected(op string, err error) {
	c.rejected.WithLabelValues(op).Inc()
	c.logger.Debug().Err(err).Str("op", op).Msg("rejected transition recorded")
}

// StoreOptions returns the options that attach the collector to a store.
func (c *Collector) StoreOptions() []formstate.Option {
	return []formstate.Option{
		formstate.WithSubscriber(c.Observe),
		formstate.WithRejectHook(c.Rejected),
	}
}

func (c *Collector) setPhase(current formstate.Phase) {
	for _, p := range phases {
		value := 0.0
		if p == current {
			value = 1
		}
		c.phase.WithLabelValues(string(p)).Set(value)
	}
}
