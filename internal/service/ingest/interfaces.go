package ingest

import (
	"context"
	"time"

	"github.com/haloview/mfa-incident-backend/internal/domain/event"
	"github.com/haloview/mfa-incident-backend/internal/domain/incident"
)

// IncidentRepository is the durable store port. Create must succeed for an
// ingest call to succeed; the external store is the sole owner of incident
// state across invocations.
type IncidentRepository interface {
	Create(ctx context.Context, inc *incident.Incident) error
}

// EventWindow supplies the short-horizon lookback of recent same-principal
// events that burst detection needs. The classification engine itself is
// stateless; this port is queried by the processor, never by the engine.
type EventWindow interface {
	// Record adds an event to the rolling window for its principal and IP.
	Record(ctx context.Context, ev event.NormalizedEvent) error
	// Recent returns events for the principal and IP inside the trailing
	// window ending at ref, most recent first.
	Recent(ctx context.Context, principal, sourceIP string, ref time.Time, window time.Duration) ([]event.NormalizedEvent, error)
}

// MetricsCollector is the fire-and-forget metrics port.
type MetricsCollector interface {
	IncidentCreated(scenario, severity string) error
}

// Notifier is the alert publishing port. Failures are surfaced, never
// silently dropped, and never fail the call that triggered them.
type Notifier interface {
	PublishAlert(ctx context.Context, inc *incident.Incident) error
}
