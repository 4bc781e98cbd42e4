package fixtures

import (
	"testing"
	"time"

	"github.com/haloview/mfa-incident-backend/internal/domain/event"
)

// EventBuilder builds test NormalizedEvent values
type EventBuilder struct {
	t  *testing.T
	ev event.NormalizedEvent
}

// NewEventBuilder creates a builder preloaded with a failed console login
// for a fixed principal and TEST-NET-1 source IP.
func NewEventBuilder(t *testing.T) *EventBuilder {
	t.Helper()
	msg := event.FailedAuthErrorMessage
	mfaUsed := false
	return &EventBuilder{
		t: t,
		ev: event.NormalizedEvent{
			EventName:    event.EventNameConsoleLogin,
			EventSource:  event.EventSourceSignin,
			ErrorMessage: &msg,
			MFAUsed:      &mfaUsed,
			Principal:    "alice",
			SourceIP:     "192.0.2.1",
			Timestamp:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func (b *EventBuilder) WithEventName(name string) *EventBuilder {
	b.ev.EventName = name
	return b
}

func (b *EventBuilder) WithEventSource(source string) *EventBuilder {
	b.ev.EventSource = source
	return b
}

func (b *EventBuilder) WithPrincipal(principal string) *EventBuilder {
	b.ev.Principal = principal
	return b
}

func (b *EventBuilder) WithSourceIP(ip string) *EventBuilder {
	b.ev.SourceIP = ip
	return b
}

func (b *EventBuilder) WithTimestamp(ts time.Time) *EventBuilder {
	b.ev.Timestamp = ts
	return b
}

func (b *EventBuilder) WithErrorCode(code string) *EventBuilder {
	b.ev.ErrorCode = &code
	return b
}

func (b *EventBuilder) WithErrorMessage(msg string) *EventBuilder {
	b.ev.ErrorMessage = &msg
	return b
}

// WithoutError clears both error fields, making the event a success.
func (b *EventBuilder) WithoutError() *EventBuilder {
	b.ev.ErrorCode = nil
	b.ev.ErrorMessage = nil
	return b
}

func (b *EventBuilder) WithMFAUsed(used bool) *EventBuilder {
	b.ev.MFAUsed = &used
	return b
}

// WithUnknownMFA clears both MFA fields: unknown, not false.
func (b *EventBuilder) WithUnknownMFA() *EventBuilder {
	b.ev.MFAUsed = nil
	b.ev.MFAPresent = nil
	return b
}

func (b *EventBuilder) WithMFAPresent(present bool) *EventBuilder {
	b.ev.MFAPresent = &present
	return b
}

func (b *EventBuilder) WithAttemptedAction(action string) *EventBuilder {
	b.ev.AttemptedAction = &action
	return b
}

func (b *EventBuilder) Build() event.NormalizedEvent {
	return b.ev
}

// BuildPtr returns a pointer to a copy, for APIs taking *NormalizedEvent.
func (b *EventBuilder) BuildPtr() *event.NormalizedEvent {
	ev := b.ev
	return &ev
}

// Burst builds n copies of the event spaced gap apart, ending gap before
// the builder's timestamp. Useful as a classification lookback.
func (b *EventBuilder) Burst(n int, gap time.Duration) []event.NormalizedEvent {
	events := make([]event.NormalizedEvent, 0, n)
	for i := 0; i < n; i++ {
		ev := b.ev
		ev.Timestamp = b.ev.Timestamp.Add(-time.Duration(i+1) * gap)
		events = append(events, ev)
	}
	return events
}
