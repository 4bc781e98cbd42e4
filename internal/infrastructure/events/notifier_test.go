package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/haloview/mfa-incident-backend/internal/domain/classification"
	"github.com/haloview/mfa-incident-backend/internal/domain/incident"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0s"},
		{45, "45s"},
		{60, "1m 0s"},
		{312, "5m 12s"},
		{3599, "59m 59s"},
		{3600, "1h 0m"},
		{7320, "2h 2m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.seconds))
	}
}

func TestDescribeIncident(t *testing.T) {
	inc := &incident.Incident{
		ID:        "RATE-LIMIT-0A1B2C3D",
		Scenario:  classification.ScenarioRateLimiting,
		Principal: "alice",
		DetectionSignal: map[string]string{
			"failure_count":  "6",
			"window_seconds": "60",
		},
	}
	assert.Equal(t,
		"Rate limiting triggered: 6 failed MFA attempts in 60s for user alice",
		describeIncident(inc))
}
