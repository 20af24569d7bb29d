package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registrations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "placement_registrations_total",
		Help: "Accounts registered, by role",
	}, []string{"role"})

	Verifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "placement_email_verifications_total",
		Help: "Email verification attempts, by outcome",
	}, []string{"outcome"})

	Transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "placement_approval_transitions_total",
		Help: "Approval decisions, by target status and outcome",
	}, []string{"to", "outcome"})

	GateOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "placement_gate_outcomes_total",
		Help: "Authorization gate decisions, by outcome",
	}, []string{"outcome"})

	NotificationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "placement_notification_failures_total",
		Help: "Notification deliveries that failed, by kind",
	}, []string{"kind"})
)

func Init() {
	prometheus.MustRegister(Registrations, Verifications, Transitions, GateOutcomes, NotificationFailures)
}

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
