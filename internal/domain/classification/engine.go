package classification

import (
	"fmt"
	"strconv"
	"time"

	"github.com/haloview/mfa-incident-backend/internal/domain/errors"
	"github.com/haloview/mfa-incident-backend/internal/domain/event"
)

// Burst detection parameters for the rate-limiting rule.
const (
	DefaultBurstThreshold = 5
	DefaultBurstWindow    = 60 * time.Second

	// priorSuccessWindow bounds how far back a prior successful MFA login
	// counts as evidence for the token-expiration reading of an MFA
	// failure. Evidentiary only, never changes severity.
	priorSuccessWindow = 15 * time.Minute
)

// Engine maps a NormalizedEvent to exactly one Result. It is stateless:
// burst detection runs over a caller-supplied lookback of recent
// same-principal events, never over storage the engine queries itself.
type Engine struct {
	burstThreshold int
	burstWindow    time.Duration
}

// NewEngine creates a classification engine. Non-positive parameters fall
// back to the defaults (5 failures in a trailing 60s window).
func NewEngine(burstThreshold int, burstWindow time.Duration) *Engine {
	if burstThreshold <= 0 {
		burstThreshold = DefaultBurstThreshold
	}
	if burstWindow <= 0 {
		burstWindow = DefaultBurstWindow
	}
	return &Engine{burstThreshold: burstThreshold, burstWindow: burstWindow}
}

// Classify evaluates the rules in fixed precedence order; the first match
// governs. lookback holds recent events for the same principal, in any
// order; it may be nil. The only failure mode is a missing timestamp:
// every other absent field means "unknown" and degrades toward the
// unclassified fallback.
func (e *Engine) Classify(ev *event.NormalizedEvent, lookback []event.NormalizedEvent) (*Result, error) {
	if ev == nil {
		return nil, errors.NewMalformedInputError("nil event")
	}
	if ev.Timestamp.IsZero() {
		return nil, errors.NewMalformedInputError("event missing mandatory timestamp")
	}

	// Rule 1: rate limiting.
	if count, ok := e.detectBurst(ev, lookback); ok {
		return &Result{
			Scenario:                ScenarioRateLimiting,
			Severity:                SeverityHigh,
			AutoRemediationEligible: true,
			Confidence:              ConfidenceConsistentWith,
			DetectionSignal: map[string]string{
				"event_name":     ev.EventName,
				"failure_count":  strconv.Itoa(count),
				"window_seconds": strconv.Itoa(int(e.burstWindow / time.Second)),
				"pattern":        "multiple failed attempts from same principal and IP",
			},
		}, nil
	}

	// Rule 2: policy mismatch.
	if hasErrorCode(ev, event.ErrorCodeAccessDenied) && isTrue(ev.MFAPresent) {
		signal := map[string]string{
			"error_code":          event.ErrorCodeAccessDenied,
			"condition_evaluated": event.ConditionMFAPresent,
			"condition_result":    "false (expected true)",
		}
		if ev.AttemptedAction != nil {
			signal["attempted_action"] = *ev.AttemptedAction
		}
		return &Result{
			Scenario:        ScenarioPolicyMismatch,
			Severity:        SeverityMedium,
			Confidence:      ConfidenceConsistentWith,
			DetectionSignal: signal,
		}, nil
	}

	// Rule 3: MFA authentication failure.
	if ev.IsConsoleLogin() && ev.HasError() && isFalse(ev.MFAUsed) {
		signal := map[string]string{
			"event_name":   ev.EventName,
			"event_source": ev.EventSource,
			"mfa_used":     "No",
		}
		if ev.ErrorMessage != nil {
			signal["error_message"] = *ev.ErrorMessage
		}
		if prior, ok := e.priorMFASuccess(ev, lookback); ok {
			signal["prior_mfa_success"] = prior.Format(time.RFC3339)
		}
		return &Result{
			Scenario:        ScenarioMFAAuthFailure,
			Severity:        SeverityMedium,
			Confidence:      ConfidenceConsistentWith,
			DetectionSignal: signal,
		}, nil
	}

	// Fallback: expected under signal ambiguity, not an error.
	return &Result{
		Scenario:   ScenarioUnclassified,
		Severity:   SeverityLow,
		Confidence: ConfidenceConsistentWith,
		DetectionSignal: map[string]string{
			"event_name":   ev.EventName,
			"event_source": ev.EventSource,
			"reason":       "no classification rule matched",
		},
	}, nil
}

// detectBurst counts failed console logins by the same principal and IP in
// the trailing window ending at the event's timestamp, the event itself
// included. Lookback entries for other principals or IPs never count.
func (e *Engine) detectBurst(ev *event.NormalizedEvent, lookback []event.NormalizedEvent) (int, bool) {
	if !ev.IsFailedLogin() {
		return 0, false
	}
	windowStart := ev.Timestamp.Add(-e.burstWindow)

	count := 1 // the event under classification
	for i := range lookback {
		prior := &lookback[i]
		if prior.Principal != ev.Principal || prior.SourceIP != ev.SourceIP {
			continue
		}
		if !prior.IsFailedLogin() {
			continue
		}
		if prior.Timestamp.Before(windowStart) || prior.Timestamp.After(ev.Timestamp) {
			continue
		}
		count++
	}
	return count, count >= e.burstThreshold
}

// priorMFASuccess finds the most recent successful MFA console login for
// the same principal inside the preceding evidence window.
func (e *Engine) priorMFASuccess(ev *event.NormalizedEvent, lookback []event.NormalizedEvent) (time.Time, bool) {
	windowStart := ev.Timestamp.Add(-priorSuccessWindow)

	var best time.Time
	for i := range lookback {
		prior := &lookback[i]
		if prior.Principal != ev.Principal {
			continue
		}
		if !prior.IsConsoleLogin() || prior.HasError() || !isTrue(prior.MFAUsed) {
			continue
		}
		if prior.Timestamp.Before(windowStart) || prior.Timestamp.After(ev.Timestamp) {
			continue
		}
		if prior.Timestamp.After(best) {
			best = prior.Timestamp
		}
	}
	return best, !best.IsZero()
}

// Describe renders the one-line human summary carried on alerts.
func Describe(r *Result, principal string) string {
	switch r.Scenario {
	case ScenarioMFAAuthFailure:
		return fmt.Sprintf("MFA authentication failure for user %s consistent with token expiration or timing issue", principal)
	case ScenarioRateLimiting:
		return fmt.Sprintf("Rate limiting triggered: %s failed MFA attempts in %ss for user %s",
			r.DetectionSignal["failure_count"], r.DetectionSignal["window_seconds"], principal)
	case ScenarioPolicyMismatch:
		action := r.DetectionSignal["attempted_action"]
		return fmt.Sprintf("Policy mismatch: user %s has MFA session but %s denied due to condition mismatch", principal, action)
	default:
		return fmt.Sprintf("Unclassified authentication event for user %s", principal)
	}
}

// RecommendedAction returns the operator guidance attached to alerts.
func RecommendedAction(s Scenario) string {
	switch s {
	case ScenarioMFAAuthFailure:
		return "User must re-authenticate with valid MFA token"
	case ScenarioRateLimiting:
		return "Wait for cooldown period, then attempt re-authentication"
	case ScenarioPolicyMismatch:
		return "Admin must review IAM policy conditions for " + event.ConditionMFAPresent
	default:
		return "Review event manually"
	}
}

func hasErrorCode(ev *event.NormalizedEvent, code string) bool {
	return ev.ErrorCode != nil && *ev.ErrorCode == code
}

func isTrue(b *bool) bool  { return b != nil && *b }
func isFalse(b *bool) bool { return b != nil && !*b }
