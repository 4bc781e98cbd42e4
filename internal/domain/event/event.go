package event

import "time"

// Well-known field values from the upstream audit source.
const (
	EventNameConsoleLogin  = "ConsoleLogin"
	EventSourceSignin      = "signin.amazonaws.com"
	ErrorCodeAccessDenied  = "AccessDenied"
	ConditionMFAPresent    = "aws:MultiFactorAuthPresent"
	FailedAuthErrorMessage = "Failed authentication"
)

// NormalizedEvent is the classification engine's sole input shape. Pointer
// fields distinguish "unknown" from an explicit false or empty value;
// classification must never collapse the two.
type NormalizedEvent struct {
	EventName       string     `json:"event_name"`
	EventSource     string     `json:"event_source"`
	ErrorCode       *string    `json:"error_code,omitempty"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	MFAUsed         *bool      `json:"mfa_used,omitempty"`
	MFAPresent      *bool      `json:"mfa_present_in_session,omitempty"`
	Principal       string     `json:"principal"`
	SourceIP        string     `json:"source_ip"`
	AttemptedAction *string    `json:"attempted_action,omitempty"`
	Timestamp       time.Time  `json:"timestamp"`
}

// IsConsoleLogin reports whether the event is a console-login attempt.
func (e *NormalizedEvent) IsConsoleLogin() bool {
	return e.EventName == EventNameConsoleLogin
}

// HasError reports whether the event carries any error signal.
func (e *NormalizedEvent) HasError() bool {
	return (e.ErrorCode != nil && *e.ErrorCode != "") ||
		(e.ErrorMessage != nil && *e.ErrorMessage != "")
}

// IsFailedLogin reports whether the event is a failed console-login attempt.
// Used by burst detection over the lookback window.
func (e *NormalizedEvent) IsFailedLogin() bool {
	return e.IsConsoleLogin() && e.HasError()
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
