// Package metrics exposes routing outcomes as Prometheus metrics.
//
// Metrics (namespace defaults to "routemesh"):
//   - <ns>_decisions_total{level,rule,changed} - routing decisions by rule
//   - <ns>_route_switches_total{level,to} - decisions that moved the conversation
//   - <ns>_degraded_turns_total{level} - turns that fell back after a classifier failure
//   - <ns>_route_duration_seconds{level} - time spent classifying and resolving
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hupe1980/routemesh/runner"
)

var _ runner.Observer = (*Collector)(nil)

// Collector records turn outcomes. It implements runner.Observer.
type Collector struct {
	Decisions     *prometheus.CounterVec
	RouteSwitches *prometheus.CounterVec
	DegradedTurns *prometheus.CounterVec
	RouteDuration *prometheus.HistogramVec
}

// NewCollector creates the metrics and registers them with reg. A nil reg
// uses prometheus.DefaultRegisterer; use a fresh registry per instance to
// avoid duplicate registration panics.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		Decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Total number of routing decisions",
			},
			[]string{"level", "rule", "changed"},
		),
		RouteSwitches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "route_switches_total",
				Help:      "Total number of decisions that changed the route",
			},
			[]string{"level", "to"},
		),
		DegradedTurns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "degraded_turns_total",
				Help:      "Total number of turns that fell back after a classifier failure",
			},
			[]string{"level"},
		),
		RouteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "route_duration_seconds",
				Help:      "Duration of classification and route resolution in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
			},
			[]string{"level"},
		),
	}
}

// ObserveTurn implements runner.Observer.
func (c *Collector) ObserveTurn(res *runner.TurnResult, routeDuration time.Duration) {
	d := res.Decision
	c.Decisions.WithLabelValues(res.Level, string(d.Rule), strconv.FormatBool(d.Changed)).Inc()
	if d.Changed {
		c.RouteSwitches.WithLabelValues(res.Level, d.Route).Inc()
	}
	if res.Degraded {
		c.DegradedTurns.WithLabelValues(res.Level).Inc()
	}
	c.RouteDuration.WithLabelValues(res.Level).Observe(routeDuration.Seconds())
}
