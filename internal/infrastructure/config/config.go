package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	NATS      NATSConfig      `koanf:"nats"`
	Telemetry TelemetryConfig `koanf:"telemetry"`

	Incident   IncidentConfig   `koanf:"incident"`
	Resolution ResolutionConfig `koanf:"resolution"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr         string        `koanf:"addr"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type NATSConfig struct {
	URL             string `koanf:"url"`
	AlertSubject    string `koanf:"alert_subject"`
	ResolvedSubject string `koanf:"resolved_subject"`
}

// TelemetryConfig controls the OTLP trace exporter. Tracing is off by
// default; the logger and prometheus metrics work regardless.
type TelemetryConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Endpoint      string        `koanf:"endpoint"`
	SamplingRate  float64       `koanf:"sampling_rate"`
	ExportTimeout time.Duration `koanf:"export_timeout"`
	BatchTimeout  time.Duration `koanf:"batch_timeout"`
}

// IncidentConfig covers the ingest path.
type IncidentConfig struct {
	// RetentionDays feeds the TTL column used by storage cleanup.
	RetentionDays  int           `koanf:"retention_days"`
	BurstThreshold int           `koanf:"burst_threshold"`
	BurstWindow    time.Duration `koanf:"burst_window"`
}

// ResolutionConfig covers the scheduled resolution path.
type ResolutionConfig struct {
	CooldownPeriod time.Duration `koanf:"cooldown_period"`
	ScanInterval   time.Duration `koanf:"scan_interval"`
	ScanLimit      int           `koanf:"scan_limit"`
}

// RetentionWindow converts the day-based retention setting to a duration.
func (c IncidentConfig) RetentionWindow() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load defaults
	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		NATS: NATSConfig{
			URL:             "nats://localhost:4222",
			AlertSubject:    "incidents.alert",
			ResolvedSubject: "incidents.resolved",
		},
		Telemetry: TelemetryConfig{
			Enabled:       false,
			Endpoint:      "localhost:4317",
			SamplingRate:  1.0,
			ExportTimeout: 30 * time.Second,
			BatchTimeout:  5 * time.Second,
		},
		Incident: IncidentConfig{
			RetentionDays:  7,
			BurstThreshold: 5,
			BurstWindow:    60 * time.Second,
		},
		Resolution: ResolutionConfig{
			CooldownPeriod: 5 * time.Minute,
			ScanInterval:   5 * time.Minute,
			ScanLimit:      500,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Load from config file if exists
	if err := k.Load(file.Provider("configs/config.yaml"), yaml.Parser()); err != nil {
		// Config file is optional, only log if it's not a "file not found" error
	}

	// Override with environment variables
	if err := k.Load(env.Provider("AIX_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "AIX_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Incident.RetentionDays <= 0 {
		return fmt.Errorf("incident.retention_days must be positive, got %d", c.Incident.RetentionDays)
	}
	if c.Resolution.CooldownPeriod <= 0 {
		return fmt.Errorf("resolution.cooldown_period must be positive, got %s", c.Resolution.CooldownPeriod)
	}
	if c.Incident.BurstThreshold <= 0 {
		return fmt.Errorf("incident.burst_threshold must be positive, got %d", c.Incident.BurstThreshold)
	}
	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		return fmt.Errorf("telemetry.sampling_rate must be in [0, 1], got %g", c.Telemetry.SamplingRate)
	}
	return nil
}
