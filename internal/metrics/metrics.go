// Package metrics exposes labyard's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every labyard collector plus the Go runtime collectors.
var Registry = prometheus.NewRegistry()

var (
	Transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labyard",
		Name:      "transitions_total",
		Help:      "Status transitions committed, by entity and target status.",
	}, []string{"entity", "to"})

	TransitionRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labyard",
		Name:      "transition_rejections_total",
		Help:      "Status transitions rejected by the state machine.",
	}, []string{"entity"})

	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labyard",
		Name:      "notifications_total",
		Help:      "Notification attempts by kind and result.",
	}, []string{"kind", "result"})

	SweepRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labyard",
		Name:      "sweep_runs_total",
		Help:      "Storage expiry sweep runs by result.",
	}, []string{"result"})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labyard",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		Transitions,
		TransitionRejections,
		Notifications,
		SweepRuns,
		HTTPRequests,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveTransition counts a committed transition, or a rejection when err
// is non-nil.
func ObserveTransition(entity, to string, err error) {
	if err != nil {
		TransitionRejections.WithLabelValues(entity).Inc()
		return
	}
	Transitions.WithLabelValues(entity, to).Inc()
}
