package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// IncidentMetrics implements the services' fire-and-forget metrics ports on
// a prometheus registry. Emission against a registered collector cannot
// fail, so both methods always return nil; the error in the port signature
// belongs to the port, not this backend.
type IncidentMetrics struct {
	created        *prometheus.CounterVec
	resolved       *prometheus.CounterVec
	resolutionTime *prometheus.HistogramVec
}

// NewIncidentMetrics registers the incident collectors. Pass
// prometheus.DefaultRegisterer outside of tests.
func NewIncidentMetrics(reg prometheus.Registerer) *IncidentMetrics {
	m := &IncidentMetrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "incidents_created_total",
			Help: "Incidents created by the ingest processor.",
		}, []string{"scenario", "severity"}),
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "incidents_resolved_total",
			Help: "Incidents auto-resolved by the resolution processor.",
		}, []string{"scenario"}),
		resolutionTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "incident_resolution_seconds",
			Help: "Seconds from incident creation to auto-resolution.",
			// Cooldown-driven resolutions cluster around minutes.
			Buckets: []float64{60, 300, 600, 1800, 3600, 14400, 86400},
		}, []string{"scenario"}),
	}
	reg.MustRegister(m.created, m.resolved, m.resolutionTime)
	return m
}

func (m *IncidentMetrics) IncidentCreated(scenario, severity string) error {
	m.created.WithLabelValues(scenario, severity).Inc()
	return nil
}

func (m *IncidentMetrics) IncidentResolved(scenario string, resolutionSeconds int64) error {
	m.resolved.WithLabelValues(scenario).Inc()
	m.resolutionTime.WithLabelValues(scenario).Observe(float64(resolutionSeconds))
	return nil
}
