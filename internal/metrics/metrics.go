// Package metrics exposes Prometheus collectors for port negotiation and
// the cluster lifecycle.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so that several runs in one process (as
// in tests) never collide on the global one.
type Recorder struct {
	registry *prometheus.Registry

	negotiations *prometheus.CounterVec
	portShifts   *prometheus.CounterVec
	startSeconds *prometheus.HistogramVec
	serviceUp    *prometheus.GaugeVec
	healthy      *prometheus.GaugeVec
	clusterState *prometheus.GaugeVec

	states []string
}

// New registers every collector. states lists the lifecycle state names
// reported by bento_cluster_state.
func New(states []string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		negotiations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bento_port_negotiations_total",
				Help: "Completed port negotiations, by whether any port moved off its default",
			},
			[]string{"outcome"},
		),
		portShifts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bento_port_shifts_total",
				Help: "Ports assigned a value other than their effective default",
			},
			[]string{"port"},
		),
		startSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bento_service_start_seconds",
				Help:    "Time from start request until a service was ready",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 120},
			},
			[]string{"service"},
		),
		serviceUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bento_service_up",
				Help: "1 while a service is running under this cluster",
			},
			[]string{"service"},
		),
		healthy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bento_service_healthy",
				Help: "1 when the last health check of a running service succeeded",
			},
			[]string{"service"},
		),
		clusterState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bento_cluster_state",
				Help: "1 for the current lifecycle state of the cluster, 0 otherwise",
			},
			[]string{"state"},
		),
		states: append([]string(nil), states...),
	}

	r.registry.MustRegister(r.negotiations, r.portShifts, r.startSeconds, r.serviceUp, r.healthy, r.clusterState)
	for _, s := range r.states {
		r.clusterState.WithLabelValues(s).Set(0)
	}
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) Negotiated(shifted []string) {
	outcome := "defaults"
	if len(shifted) > 0 {
		outcome = "shifted"
	}
	r.negotiations.WithLabelValues(outcome).Inc()
	for _, p := range shifted {
		r.portShifts.WithLabelValues(p).Inc()
	}
}

func (r *Recorder) ServiceStarted(name string, took time.Duration) {
	r.startSeconds.WithLabelValues(name).Observe(took.Seconds())
	r.serviceUp.WithLabelValues(name).Set(1)
}

func (r *Recorder) ServiceStopped(name string) {
	r.serviceUp.WithLabelValues(name).Set(0)
	r.healthy.DeleteLabelValues(name)
}

func (r *Recorder) ServiceHealth(name string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1
	}
	r.healthy.WithLabelValues(name).Set(v)
}

func (r *Recorder) StateChanged(state string) {
	for _, s := range r.states {
		if s != state {
			r.clusterState.WithLabelValues(s).Set(0)
		}
	}
	r.clusterState.WithLabelValues(state).Set(1)
}
