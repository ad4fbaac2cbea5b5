package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the party directory.
type Metrics struct {
	Registered *prometheus.CounterVec
	Removed    prometheus.Counter
}

// New creates and registers all party directory metrics.
func New() *Metrics {
	return &Metrics{
		Registered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fixdesk_parties_registered_total",
			Help: "Total number of parties registered, by role",
		}, []string{"role"}),
		Removed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fixdesk_parties_removed_total",
			Help: "Total number of parties deactivated by admin action",
		}),
	}
}
