package incident

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haloview/mfa-incident-backend/internal/domain/classification"
)

type Status int

const (
	StatusOpen Status = iota
	StatusResolved
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "OPEN"
	case StatusResolved:
		return "RESOLVED"
	default:
		return "unknown"
	}
}

// MarshalJSON implements JSON marshaling
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements JSON unmarshaling
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ParseStatus(str)
	return nil
}

// ParseStatus maps the storage form back to a Status.
func ParseStatus(s string) Status {
	if s == "RESOLVED" {
		return StatusResolved
	}
	return StatusOpen
}

// Incident is the persisted unit of work: one classified event with an
// open/resolved lifecycle. Status only ever moves OPEN → RESOLVED;
// ResolvedAt and ResolutionTimeSeconds are set together, exactly once.
type Incident struct {
	ID                      string                  `json:"incident_id"`
	Scenario                classification.Scenario `json:"scenario"`
	Severity                classification.Severity `json:"severity"`
	Status                  Status                  `json:"status"`
	CreatedAt               time.Time               `json:"created_at"`
	ResolvedAt              *time.Time              `json:"resolved_at,omitempty"`
	ResolutionTimeSeconds   *int64                  `json:"resolution_time_seconds,omitempty"`
	DetectionSignal         map[string]string       `json:"detection_signal"`
	AutoRemediationEligible bool                    `json:"auto_remediation_eligible"`
	Principal               string                  `json:"principal"`
	SourceIP                string                  `json:"source_ip"`
	TTL                     time.Time               `json:"ttl"`
}

// New creates an OPEN incident from a classification result. The retention
// window sets the TTL expiry used by storage cleanup.
func New(result *classification.Result, principal, sourceIP string, retention time.Duration) (*Incident, error) {
	if result == nil {
		return nil, fmt.Errorf("classification result cannot be nil")
	}
	if retention <= 0 {
		return nil, fmt.Errorf("retention window must be positive")
	}

	// DetectionSignal is immutable on the incident: copy, don't alias.
	signal := make(map[string]string, len(result.DetectionSignal))
	for k, v := range result.DetectionSignal {
		signal[k] = v
	}

	now := clock.Now().UTC()
	return &Incident{
		ID:                      newID(result.Scenario),
		Scenario:                result.Scenario,
		Severity:                result.Severity,
		Status:                  StatusOpen,
		CreatedAt:               now,
		DetectionSignal:         signal,
		AutoRemediationEligible: result.AutoRemediationEligible,
		Principal:               principal,
		SourceIP:                sourceIP,
		TTL:                     now.Add(retention),
	}, nil
}

// newID generates a scenario-prefixed short id, e.g. RATE-LIMIT-3FA2B81C.
func newID(s classification.Scenario) string {
	var prefix string
	switch s {
	case classification.ScenarioMFAAuthFailure:
		prefix = "MFA-AUTH"
	case classification.ScenarioRateLimiting:
		prefix = "RATE-LIMIT"
	case classification.ScenarioPolicyMismatch:
		prefix = "POLICY"
	default:
		prefix = "UNCLASSIFIED"
	}
	hex := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return prefix + "-" + hex
}

// Resolve transitions the incident to RESOLVED at the given time. It
// rejects double resolution and a resolution time before creation, keeping
// created_at ≤ resolved_at monotonic.
func (i *Incident) Resolve(now time.Time) error {
	if i.Status == StatusResolved {
		return fmt.Errorf("incident %s is already resolved", i.ID)
	}
	now = now.UTC()
	if now.Before(i.CreatedAt) {
		return fmt.Errorf("resolution time %s precedes creation time %s", now, i.CreatedAt)
	}

	seconds := int64(now.Sub(i.CreatedAt) / time.Second)
	i.Status = StatusResolved
	i.ResolvedAt = &now
	i.ResolutionTimeSeconds = &seconds
	return nil
}
