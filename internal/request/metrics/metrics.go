package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks request lifecycle activity.
type Metrics struct {
	Submitted     prometheus.Counter
	Transitioned  *prometheus.CounterVec
	TransitionErr *prometheus.CounterVec
}

// New registers the request metrics on the default registry. Call once per
// process.
func New() *Metrics {
	return &Metrics{
		Submitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fixdesk_requests_submitted_total",
			Help: "Requests submitted.",
		}),
		Transitioned: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fixdesk_request_transitions_total",
			Help: "Committed request status transitions.",
		}, []string{"to"}),
		TransitionErr: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fixdesk_request_transition_failures_total",
			Help: "Rejected request transitions.",
		}, []string{"reason"}),
	}
}
