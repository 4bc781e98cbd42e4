package incident

import "time"

// SkipReason explains why an incident was left untouched by a resolution
// pass. Skipped incidents are reported, never treated as errors.
type SkipReason string

const (
	SkipNone            SkipReason = ""
	SkipAlreadyResolved SkipReason = "already_resolved"
	SkipNotEligible     SkipReason = "not_auto_remediation_eligible"
	SkipCooldownPending SkipReason = "cooldown_not_elapsed"
)

// Mutation is the resolved-state change produced for an eligible incident.
// Applying it is the caller's side-effecting boundary; producing it is pure.
type Mutation struct {
	ResolvedAt            time.Time
	ResolutionTimeSeconds int64
}

// EvaluateResolution decides whether an OPEN incident is eligible for
// automatic resolution at the given time. Pure function of
// (incident, now, cooldown): no I/O, no clock reads, and it never
// re-evaluates classification; AutoRemediationEligible is trusted as
// persisted at creation time.
func EvaluateResolution(inc *Incident, now time.Time, cooldown time.Duration) (*Mutation, SkipReason) {
	if inc.Status == StatusResolved {
		return nil, SkipAlreadyResolved
	}
	if !inc.AutoRemediationEligible {
		return nil, SkipNotEligible
	}
	now = now.UTC()
	if now.Sub(inc.CreatedAt) < cooldown {
		return nil, SkipCooldownPending
	}
	return &Mutation{
		ResolvedAt:            now,
		ResolutionTimeSeconds: int64(now.Sub(inc.CreatedAt) / time.Second),
	}, SkipNone
}
