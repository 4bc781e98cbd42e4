package classification

import "encoding/json"

// Scenario is the fixed incident taxonomy. Every event classifies into
// exactly one scenario.
type Scenario int

const (
	ScenarioUnclassified Scenario = iota
	ScenarioMFAAuthFailure
	ScenarioRateLimiting
	ScenarioPolicyMismatch
)

func (s Scenario) String() string {
	switch s {
	case ScenarioMFAAuthFailure:
		return "mfa_auth_failure"
	case ScenarioRateLimiting:
		return "rate_limiting"
	case ScenarioPolicyMismatch:
		return "policy_mismatch"
	case ScenarioUnclassified:
		return "unclassified"
	default:
		return "unknown"
	}
}

// MarshalJSON implements JSON marshaling
func (s Scenario) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements JSON unmarshaling
func (s *Scenario) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ParseScenario(str)
	return nil
}

// ParseScenario maps the wire/storage form back to a Scenario.
func ParseScenario(s string) Scenario {
	switch s {
	case "mfa_auth_failure":
		return ScenarioMFAAuthFailure
	case "rate_limiting":
		return ScenarioRateLimiting
	case "policy_mismatch":
		return ScenarioPolicyMismatch
	default:
		return ScenarioUnclassified
	}
}

type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "unknown"
	}
}

// MarshalJSON implements JSON marshaling
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements JSON unmarshaling
func (s *Severity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ParseSeverity(str)
	return nil
}

// ParseSeverity maps the wire/storage form back to a Severity.
func ParseSeverity(s string) Severity {
	switch s {
	case "MEDIUM":
		return SeverityMedium
	case "HIGH":
		return SeverityHigh
	case "CRITICAL":
		return SeverityCritical
	default:
		return SeverityLow
	}
}

// Confidence is the epistemic qualifier attached to every classification.
// The upstream event source never emits ground-truth failure reasons, so
// pattern-based scenarios are always ConfidenceConsistentWith; the engine
// never asserts ConfidenceConfirmed.
type Confidence int

const (
	ConfidenceConsistentWith Confidence = iota
	ConfidenceConfirmed
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceConsistentWith:
		return "CONSISTENT_WITH"
	case ConfidenceConfirmed:
		return "CONFIRMED"
	default:
		return "unknown"
	}
}

// MarshalJSON implements JSON marshaling
func (c Confidence) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// Result is the classification engine's output for one event.
type Result struct {
	Scenario                Scenario          `json:"scenario"`
	Severity                Severity          `json:"severity"`
	DetectionSignal         map[string]string `json:"detection_signal"`
	AutoRemediationEligible bool              `json:"auto_remediation_eligible"`
	Confidence              Confidence        `json:"confidence_qualifier"`
}

// Ambiguous reports whether the result fell through every rule. This is
// expected behavior under signal ambiguity, surfaced as metadata rather
// than as an error.
func (r *Result) Ambiguous() bool {
	return r.Scenario == ScenarioUnclassified
}
