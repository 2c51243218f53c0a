// Package metrics holds the prometheus collectors of the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	MagicLinksSent      prometheus.Counter
	SignIns             *prometheus.CounterVec
	SignOuts            prometheus.Counter
	ProfileUpdates      prometheus.Counter
	OnboardingCompletes prometheus.Counter
	CodesExpired        prometheus.Counter
	RequestDurationMs   *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MagicLinksSent: f.NewCounter(prometheus.CounterOpts{
			Name: "beitak_magic_links_sent_total",
			Help: "Total number of magic-link codes issued",
		}),
		SignIns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "beitak_sign_ins_total",
			Help: "Total number of successful sign-ins by method",
		}, []string{"method"}),
		SignOuts: f.NewCounter(prometheus.CounterOpts{
			Name: "beitak_sign_outs_total",
			Help: "Total number of sign-outs",
		}),
		ProfileUpdates: f.NewCounter(prometheus.CounterOpts{
			Name: "beitak_profile_updates_total",
			Help: "Total number of applied partial profile updates",
		}),
		OnboardingCompletes: f.NewCounter(prometheus.CounterOpts{
			Name: "beitak_onboarding_completed_total",
			Help: "Total number of profiles that finished onboarding",
		}),
		CodesExpired: f.NewCounter(prometheus.CounterOpts{
			Name: "beitak_auth_codes_expired_total",
			Help: "Total number of expired auth codes removed by the cleaner",
		}),
		RequestDurationMs: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "beitak_http_request_duration_ms",
			Help:    "HTTP request latency in milliseconds",
			Buckets: []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"method", "status"}),
	}
}

// IncSignIn counts a successful sign-in for method ("otp", "password",
// "oauth_google").
func (m *Metrics) IncSignIn(method string) {
	m.SignIns.WithLabelValues(method).Inc()
}

// AddCodesExpired counts auth codes removed by the expiry cleaner.
func (m *Metrics) AddCodesExpired(n int64) {
	m.CodesExpired.Add(float64(n))
}
