package resolution

import (
	"context"

	"github.com/haloview/mfa-incident-backend/internal/domain/classification"
	"github.com/haloview/mfa-incident-backend/internal/domain/incident"
)

// IncidentRepository is the store port for the resolution scan. The open
// set is a store-level filter on status and scenario, never a
// classification re-run.
type IncidentRepository interface {
	// ListOpenByScenario returns OPEN incidents whose scenario is in the
	// given set, up to limit.
	ListOpenByScenario(ctx context.Context, scenarios []classification.Scenario, limit int) ([]*incident.Incident, error)
	// Resolve applies the resolved mutation conditionally: it reports
	// false with no error when the incident was no longer OPEN, making
	// duplicate resolution a no-op.
	Resolve(ctx context.Context, id string, m *incident.Mutation) (bool, error)
}

// MetricsCollector is the fire-and-forget metrics port.
type MetricsCollector interface {
	IncidentResolved(scenario string, resolutionSeconds int64) error
}

// Notifier publishes the "cleared" notification for a resolved incident.
type Notifier interface {
	PublishResolved(ctx context.Context, inc *incident.Incident) error
}
