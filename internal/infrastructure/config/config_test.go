package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Version)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, 5, cfg.Incident.BurstThreshold)
	assert.Equal(t, 60*time.Second, cfg.Incident.BurstWindow)

	// Tracing defaults off but carries a usable exporter config.
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.Endpoint)
	assert.Equal(t, 1.0, cfg.Telemetry.SamplingRate)
	assert.Equal(t, 30*time.Second, cfg.Telemetry.ExportTimeout)
	assert.Equal(t, 5*time.Second, cfg.Telemetry.BatchTimeout)
}

func TestLoad_TelemetryEnvOverride(t *testing.T) {
	t.Setenv("AIX_TELEMETRY_ENABLED", "true")
	t.Setenv("AIX_TELEMETRY_ENDPOINT", "collector:4317")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "collector:4317", cfg.Telemetry.Endpoint)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("AIX_SERVER_PORT", "9090")
	t.Setenv("AIX_REDIS_ADDR", "redis:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestValidate_SamplingRateOutOfRange(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Telemetry.SamplingRate = 1.5
	err = cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telemetry.sampling_rate")
}

func TestRetentionWindow(t *testing.T) {
	c := IncidentConfig{RetentionDays: 7}
	assert.Equal(t, 7*24*time.Hour, c.RetentionWindow())
}
