// Package metrics exports runner activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/petrijr/stepflow/pkg/api"
)

const defaultNamespace = "stepflow"

// PrometheusObserver is an api.Observer that records runner activity in
// Prometheus collectors.
type PrometheusObserver struct {
	runners         prometheus.Gauge
	actionsInFlight prometheus.Gauge
	transitions     *prometheus.CounterVec
	stepErrors      *prometheus.CounterVec
	actions         *prometheus.CounterVec
	actionDuration  *prometheus.HistogramVec
}

// Ensure PrometheusObserver implements api.Observer.
var _ api.Observer = (*PrometheusObserver)(nil)

type options struct {
	namespace string
	buckets   []float64
}

// Option configures a PrometheusObserver.
type Option func(*options)

// WithNamespace overrides the metric namespace ("stepflow").
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithDurationBuckets overrides the action duration histogram buckets.
func WithDurationBuckets(b []float64) Option {
	return func(o *options) { o.buckets = b }
}

// NewPrometheusObserver creates the collectors and registers them with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func NewPrometheusObserver(reg prometheus.Registerer, opts ...Option) (*PrometheusObserver, error) {
	o := options{namespace: defaultNamespace, buckets: prometheus.DefBuckets}
	for _, opt := range opts {
		opt(&o)
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &PrometheusObserver{
		runners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: o.namespace,
			Name:      "runners_active",
			Help:      "Runners started and not yet closed.",
		}),
		actionsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: o.namespace,
			Name:      "actions_in_flight",
			Help:      "Action bodies currently executing.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "transitions_total",
			Help:      "Step transitions by flow and cause.",
		}, []string{"flow", "cause"}),
		stepErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "step_errors_total",
			Help:      "Errors reported by step callbacks and channel resolvers.",
		}, []string{"flow", "step"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "actions_total",
			Help:      "Settled action bodies by result.",
		}, []string{"flow", "step", "result"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "action_duration_seconds",
			Help:      "Wall time of action bodies including retries.",
			Buckets:   o.buckets,
		}, []string{"flow", "step"}),
	}

	var err error
	if p.runners, err = register(reg, p.runners); err != nil {
		return nil, err
	}
	if p.actionsInFlight, err = register(reg, p.actionsInFlight); err != nil {
		return nil, err
	}
	if p.transitions, err = register(reg, p.transitions); err != nil {
		return nil, err
	}
	if p.stepErrors, err = register(reg, p.stepErrors); err != nil {
		return nil, err
	}
	if p.actions, err = register(reg, p.actions); err != nil {
		return nil, err
	}
	if p.actionDuration, err = register(reg, p.actionDuration); err != nil {
		return nil, err
	}
	return p, nil
}

// register adds c to reg, reusing the collector already registered under
// the same descriptor so several observers can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}

func (p *PrometheusObserver) OnRunnerStart(ctx context.Context, r api.RunnerInfo) {
	p.runners.Inc()
}

func (p *PrometheusObserver) OnStepEnter(ctx context.Context, r api.RunnerInfo, step string, kind api.StepKind) {
}

func (p *PrometheusObserver) OnActionStart(ctx context.Context, r api.RunnerInfo, step string, attempt int) {
	if attempt == 1 {
		p.actionsInFlight.Inc()
	}
}

func (p *PrometheusObserver) OnActionCompleted(ctx context.Context, r api.RunnerInfo, step string, err error, d time.Duration) {
	p.actionsInFlight.Dec()

	result := "success"
	if err != nil {
		result = "failure"
	}
	p.actions.WithLabelValues(r.Flow, step, result).Inc()
	p.actionDuration.WithLabelValues(r.Flow, step).Observe(d.Seconds())
}

func (p *PrometheusObserver) OnTransition(ctx context.Context, r api.RunnerInfo, from, to string, cause api.Cause) {
	p.transitions.WithLabelValues(r.Flow, string(cause)).Inc()
}

func (p *PrometheusObserver) OnStepError(ctx context.Context, r api.RunnerInfo, step string, err error) {
	p.stepErrors.WithLabelValues(r.Flow, step).Inc()
}

func (p *PrometheusObserver) OnRunnerClosed(ctx context.Context, r api.RunnerInfo) {
	p.runners.Dec()
}
