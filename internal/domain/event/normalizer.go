package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/haloview/mfa-incident-backend/internal/domain/errors"
)

// Synthetic scenario selectors accepted by the test-descriptor payload shape.
const (
	ScenarioSelectorMFAAuthFailure = "mfa_auth_failure"
	ScenarioSelectorRateLimiting   = "rate_limiting"
	ScenarioSelectorPolicyMismatch = "policy_mismatch"
)

// Synthetic defaults. 192.0.2.1 is TEST-NET-1 per RFC 5737.
const (
	defaultSyntheticUser     = "test-user"
	defaultSyntheticSourceIP = "192.0.2.1"
	defaultDeniedAction      = "s3:GetObject"
	defaultBurstSize         = 5
)

// Normalized is the normalizer's output: the canonical event plus, for
// synthetic burst scenarios, the backdated lookback events that stand in
// for the burst the descriptor pretends happened. Downstream code never
// branches on Synthetic except to skip recording into the live window.
type Normalized struct {
	Event     NormalizedEvent
	Synthetic bool
	Lookback  []NormalizedEvent
}

// Normalizer decodes an untyped payload into a single NormalizedEvent.
// Mode detection is an ordered list of shape predicates: an audit-record
// envelope (eventName/eventSource) wins over a synthetic scenario selector;
// neither shape is a MalformedInputError, never a crash.
type Normalizer struct {
	clock Clock
}

// NewNormalizer creates a normalizer using the given clock for synthetic
// event timestamps. A nil clock falls back to system time.
func NewNormalizer(clock Clock) *Normalizer {
	if clock == nil {
		clock = RealClock{}
	}
	return &Normalizer{clock: clock}
}

// Normalize produces a Normalized from an untyped structured payload.
// It has no side effects.
func (n *Normalizer) Normalize(payload map[string]interface{}) (*Normalized, error) {
	if payload == nil {
		return nil, errors.NewMalformedInputError("empty payload")
	}

	if hasAuditEnvelope(payload) {
		ev, err := n.normalizeAuditRecord(payload)
		if err != nil {
			return nil, err
		}
		return &Normalized{Event: *ev}, nil
	}

	if selector, ok := stringField(payload, "scenario"); ok {
		return n.normalizeSynthetic(selector, payload)
	}

	return nil, errors.NewMalformedInputError(
		"payload matches neither audit-record nor synthetic-descriptor shape")
}

func hasAuditEnvelope(payload map[string]interface{}) bool {
	_, hasName := stringField(payload, "eventName")
	_, hasSource := stringField(payload, "eventSource")
	return hasName && hasSource
}

// normalizeAuditRecord maps a CloudTrail-style audit record into the
// canonical event shape. Absent fields stay nil: unknown, not false.
func (n *Normalizer) normalizeAuditRecord(payload map[string]interface{}) (*NormalizedEvent, error) {
	eventName, _ := stringField(payload, "eventName")
	eventSource, _ := stringField(payload, "eventSource")

	ts, ok := stringField(payload, "eventTime")
	if !ok {
		return nil, errors.NewMalformedInputError("audit record missing eventTime")
	}
	timestamp, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return nil, errors.NewMalformedInputError(
			fmt.Sprintf("audit record eventTime is not RFC3339: %q", ts))
	}

	ev := &NormalizedEvent{
		EventName:   eventName,
		EventSource: eventSource,
		Timestamp:   timestamp.UTC(),
	}

	if v, ok := stringField(payload, "errorCode"); ok {
		ev.ErrorCode = strPtr(v)
	}
	if v, ok := stringField(payload, "errorMessage"); ok {
		ev.ErrorMessage = strPtr(v)
	}
	if v, ok := stringField(payload, "sourceIPAddress"); ok {
		ev.SourceIP = v
	}

	if identity, ok := mapField(payload, "userIdentity"); ok {
		if v, ok := stringField(identity, "userName"); ok {
			ev.Principal = v
		}
		if sess, ok := mapField(identity, "sessionContext"); ok {
			if attrs, ok := mapField(sess, "attributes"); ok {
				if v, ok := stringField(attrs, "mfaAuthenticated"); ok {
					ev.MFAPresent = boolPtr(strings.EqualFold(v, "true"))
				}
			}
		}
	}

	if extra, ok := mapField(payload, "additionalEventData"); ok {
		if v, ok := stringField(extra, "MFAUsed"); ok {
			ev.MFAUsed = boolPtr(strings.EqualFold(v, "Yes"))
		}
	}

	// Non-signin events carry the denied action as service:Operation,
	// reconstructed from the source host and event name.
	if eventSource != EventSourceSignin && eventSource != "" {
		service := strings.SplitN(eventSource, ".", 2)[0]
		ev.AttemptedAction = strPtr(service + ":" + eventName)
	}

	return ev, nil
}

// normalizeSynthetic materializes a representative event for a named
// scenario. Same scenario and subject produce the same signal fields; the
// timestamp is fresh on every call.
func (n *Normalizer) normalizeSynthetic(selector string, payload map[string]interface{}) (*Normalized, error) {
	user := defaultSyntheticUser
	if v, ok := stringField(payload, "user"); ok {
		user = v
	}
	sourceIP := defaultSyntheticSourceIP
	if v, ok := stringField(payload, "source_ip"); ok {
		sourceIP = v
	}
	metadata, _ := mapField(payload, "metadata")

	now := n.clock.Now().UTC()

	switch selector {
	case ScenarioSelectorMFAAuthFailure:
		return &Normalized{
			Synthetic: true,
			Event: NormalizedEvent{
				EventName:    EventNameConsoleLogin,
				EventSource:  EventSourceSignin,
				ErrorMessage: strPtr(FailedAuthErrorMessage),
				MFAUsed:      boolPtr(false),
				Principal:    user,
				SourceIP:     sourceIP,
				Timestamp:    now,
			},
		}, nil

	case ScenarioSelectorRateLimiting:
		burst := defaultBurstSize
		if v, ok := intField(metadata, "failure_count"); ok && v > 0 {
			burst = v
		}
		ev := NormalizedEvent{
			EventName:    EventNameConsoleLogin,
			EventSource:  EventSourceSignin,
			ErrorMessage: strPtr(FailedAuthErrorMessage),
			MFAUsed:      boolPtr(false),
			Principal:    user,
			SourceIP:     sourceIP,
			Timestamp:    now,
		}
		// Backdated failures standing in for the burst: spread inside
		// the trailing window, most recent first.
		lookback := make([]NormalizedEvent, 0, burst)
		for i := 0; i < burst; i++ {
			prior := ev
			prior.Timestamp = now.Add(-time.Duration(i+1) * 5 * time.Second)
			lookback = append(lookback, prior)
		}
		return &Normalized{Synthetic: true, Event: ev, Lookback: lookback}, nil

	case ScenarioSelectorPolicyMismatch:
		action := defaultDeniedAction
		if v, ok := stringField(metadata, "denied_action"); ok {
			action = v
		}
		eventName := action
		eventSource := "aws.amazonaws.com"
		if parts := strings.SplitN(action, ":", 2); len(parts) == 2 {
			eventName = parts[1]
			eventSource = parts[0] + ".amazonaws.com"
		}
		return &Normalized{
			Synthetic: true,
			Event: NormalizedEvent{
				EventName:       eventName,
				EventSource:     eventSource,
				ErrorCode:       strPtr(ErrorCodeAccessDenied),
				ErrorMessage:    strPtr("User has MFA but policy condition denies action"),
				MFAPresent:      boolPtr(true),
				Principal:       user,
				SourceIP:        sourceIP,
				AttemptedAction: strPtr(action),
				Timestamp:       now,
			},
		}, nil
	}

	return nil, errors.NewMalformedInputError(
		fmt.Sprintf("unknown scenario %q, valid scenarios: %s, %s, %s",
			selector, ScenarioSelectorMFAAuthFailure, ScenarioSelectorRateLimiting, ScenarioSelectorPolicyMismatch))
}

func stringField(m map[string]interface{}, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func mapField(m map[string]interface{}, key string) (map[string]interface{}, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m[key].(map[string]interface{})
	return v, ok
}

func intField(m map[string]interface{}, key string) (int, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case int:
		return v, true
	case float64: // JSON numbers decode as float64
		return int(v), true
	}
	return 0, false
}
