package incident_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haloview/mfa-incident-backend/internal/domain/classification"
	"github.com/haloview/mfa-incident-backend/internal/domain/incident"
)

func TestNew(t *testing.T) {
	mock := &incident.MockClock{CurrentTime: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	incident.SetClock(mock)
	defer incident.ResetClock()

	tests := []struct {
		name     string
		result   *classification.Result
		validate func(t *testing.T, inc *incident.Incident)
	}{
		{
			name: "rate limiting incident carries eligibility and prefix",
			result: &classification.Result{
				Scenario:                classification.ScenarioRateLimiting,
				Severity:                classification.SeverityHigh,
				AutoRemediationEligible: true,
				Confidence:              classification.ConfidenceConsistentWith,
				DetectionSignal:         map[string]string{"failure_count": "6"},
			},
			validate: func(t *testing.T, inc *incident.Incident) {
				assert.True(t, strings.HasPrefix(inc.ID, "RATE-LIMIT-"))
				assert.Equal(t, classification.SeverityHigh, inc.Severity)
				assert.True(t, inc.AutoRemediationEligible)
				assert.Equal(t, "6", inc.DetectionSignal["failure_count"])
			},
		},
		{
			name: "mfa auth failure incident",
			result: &classification.Result{
				Scenario:        classification.ScenarioMFAAuthFailure,
				Severity:        classification.SeverityMedium,
				DetectionSignal: map[string]string{},
			},
			validate: func(t *testing.T, inc *incident.Incident) {
				assert.True(t, strings.HasPrefix(inc.ID, "MFA-AUTH-"))
				assert.False(t, inc.AutoRemediationEligible)
			},
		},
		{
			name: "unclassified incident",
			result: &classification.Result{
				Scenario: classification.ScenarioUnclassified,
				Severity: classification.SeverityLow,
			},
			validate: func(t *testing.T, inc *incident.Incident) {
				assert.True(t, strings.HasPrefix(inc.ID, "UNCLASSIFIED-"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inc, err := incident.New(tt.result, "alice", "192.0.2.1", 7*24*time.Hour)
			require.NoError(t, err)
			require.NotNil(t, inc)

			assert.Equal(t, incident.StatusOpen, inc.Status)
			assert.Equal(t, mock.CurrentTime, inc.CreatedAt)
			assert.Equal(t, mock.CurrentTime.Add(7*24*time.Hour), inc.TTL)
			assert.Nil(t, inc.ResolvedAt)
			assert.Nil(t, inc.ResolutionTimeSeconds)
			assert.Equal(t, "alice", inc.Principal)
			assert.Equal(t, "192.0.2.1", inc.SourceIP)
			tt.validate(t, inc)
		})
	}
}

func TestNew_Invalid(t *testing.T) {
	_, err := incident.New(nil, "alice", "192.0.2.1", time.Hour)
	assert.Error(t, err)

	_, err = incident.New(&classification.Result{}, "alice", "192.0.2.1", 0)
	assert.Error(t, err)
}

func TestNew_CopiesDetectionSignal(t *testing.T) {
	result := &classification.Result{
		Scenario:        classification.ScenarioPolicyMismatch,
		Severity:        classification.SeverityMedium,
		DetectionSignal: map[string]string{"attempted_action": "s3:GetObject"},
	}

	inc, err := incident.New(result, "bob", "192.0.2.1", time.Hour)
	require.NoError(t, err)

	result.DetectionSignal["attempted_action"] = "mutated"
	assert.Equal(t, "s3:GetObject", inc.DetectionSignal["attempted_action"])
}

func TestIncident_Resolve(t *testing.T) {
	mock := &incident.MockClock{CurrentTime: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	incident.SetClock(mock)
	defer incident.ResetClock()

	result := &classification.Result{
		Scenario:                classification.ScenarioRateLimiting,
		Severity:                classification.SeverityHigh,
		AutoRemediationEligible: true,
	}
	inc, err := incident.New(result, "alice", "192.0.2.1", 7*24*time.Hour)
	require.NoError(t, err)

	resolvedAt := inc.CreatedAt.Add(5*time.Minute + 12*time.Second)
	require.NoError(t, inc.Resolve(resolvedAt))

	assert.Equal(t, incident.StatusResolved, inc.Status)
	require.NotNil(t, inc.ResolvedAt)
	require.NotNil(t, inc.ResolutionTimeSeconds)
	assert.Equal(t, resolvedAt, *inc.ResolvedAt)
	assert.Equal(t, int64(312), *inc.ResolutionTimeSeconds)
	assert.True(t, !inc.ResolvedAt.Before(inc.CreatedAt))

	// Status never moves backwards: a second resolve is rejected.
	err = inc.Resolve(resolvedAt.Add(time.Minute))
	assert.Error(t, err)
	assert.Equal(t, resolvedAt, *inc.ResolvedAt)
	assert.Equal(t, int64(312), *inc.ResolutionTimeSeconds)
}

func TestIncident_Resolve_BeforeCreation(t *testing.T) {
	mock := &incident.MockClock{CurrentTime: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	incident.SetClock(mock)
	defer incident.ResetClock()

	inc, err := incident.New(&classification.Result{
		Scenario:                classification.ScenarioRateLimiting,
		AutoRemediationEligible: true,
	}, "alice", "192.0.2.1", time.Hour)
	require.NoError(t, err)

	err = inc.Resolve(inc.CreatedAt.Add(-time.Second))
	assert.Error(t, err)
	assert.Equal(t, incident.StatusOpen, inc.Status)
}

func TestStatusRoundTrip(t *testing.T) {
	assert.Equal(t, incident.StatusOpen, incident.ParseStatus("OPEN"))
	assert.Equal(t, incident.StatusResolved, incident.ParseStatus("RESOLVED"))
	assert.Equal(t, "OPEN", incident.StatusOpen.String())
	assert.Equal(t, "RESOLVED", incident.StatusResolved.String())
}
