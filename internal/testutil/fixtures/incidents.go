package fixtures

import (
	"testing"
	"time"

	"github.com/haloview/mfa-incident-backend/internal/domain/classification"
	"github.com/haloview/mfa-incident-backend/internal/domain/incident"
)

// IncidentBuilder builds test Incident entities
type IncidentBuilder struct {
	t   *testing.T
	inc incident.Incident
}

// NewIncidentBuilder creates a builder preloaded with an open
// rate-limiting incident created at a fixed instant.
func NewIncidentBuilder(t *testing.T) *IncidentBuilder {
	t.Helper()
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &IncidentBuilder{
		t: t,
		inc: incident.Incident{
			ID:                      "RATE-LIMIT-0A1B2C3D",
			Scenario:                classification.ScenarioRateLimiting,
			Severity:                classification.SeverityHigh,
			Status:                  incident.StatusOpen,
			CreatedAt:               created,
			DetectionSignal:         map[string]string{"failure_count": "5"},
			AutoRemediationEligible: true,
			Principal:               "alice",
			SourceIP:                "192.0.2.1",
			TTL:                     created.Add(7 * 24 * time.Hour),
		},
	}
}

func (b *IncidentBuilder) WithID(id string) *IncidentBuilder {
	b.inc.ID = id
	return b
}

func (b *IncidentBuilder) WithScenario(s classification.Scenario) *IncidentBuilder {
	b.inc.Scenario = s
	return b
}

func (b *IncidentBuilder) WithSeverity(s classification.Severity) *IncidentBuilder {
	b.inc.Severity = s
	return b
}

func (b *IncidentBuilder) WithStatus(s incident.Status) *IncidentBuilder {
	b.inc.Status = s
	return b
}

func (b *IncidentBuilder) WithCreatedAt(ts time.Time) *IncidentBuilder {
	b.inc.CreatedAt = ts
	return b
}

func (b *IncidentBuilder) WithEligible(eligible bool) *IncidentBuilder {
	b.inc.AutoRemediationEligible = eligible
	return b
}

func (b *IncidentBuilder) WithPrincipal(principal string) *IncidentBuilder {
	b.inc.Principal = principal
	return b
}

// Resolved marks the incident resolved at the given instant, mirroring
// what incident.Resolve would produce.
func (b *IncidentBuilder) Resolved(at time.Time) *IncidentBuilder {
	at = at.UTC()
	seconds := int64(at.Sub(b.inc.CreatedAt) / time.Second)
	b.inc.Status = incident.StatusResolved
	b.inc.ResolvedAt = &at
	b.inc.ResolutionTimeSeconds = &seconds
	return b
}

func (b *IncidentBuilder) Build() *incident.Incident {
	inc := b.inc
	if inc.DetectionSignal != nil {
		signal := make(map[string]string, len(inc.DetectionSignal))
		for k, v := range inc.DetectionSignal {
			signal[k] = v
		}
		inc.DetectionSignal = signal
	}
	return &inc
}
