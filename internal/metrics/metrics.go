// Package metrics exposes Prometheus collectors for the auth service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	Operations *prometheus.CounterVec
	OTPIssued  *prometheus.CounterVec
	AuthDenied *prometheus.CounterVec
}

// New registers the collectors on a private registry so tests can build as
// many instances as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "accountgate",
			Name:      "auth_operations_total",
			Help:      "Account operations by name and outcome code.",
		}, []string{"operation", "outcome"}),
		OTPIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "accountgate",
			Name:      "otp_issued_total",
			Help:      "One-time codes issued and handed to the mailer, by purpose.",
		}, []string{"purpose"}),
		AuthDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "accountgate",
			Name:      "auth_middleware_denied_total",
			Help:      "Requests rejected by the auth middleware, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(
		m.Operations,
		m.OTPIssued,
		m.AuthDenied,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
