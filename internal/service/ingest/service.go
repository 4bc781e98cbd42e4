package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/haloview/mfa-incident-backend/internal/domain/classification"
	"github.com/haloview/mfa-incident-backend/internal/domain/errors"
	"github.com/haloview/mfa-incident-backend/internal/domain/event"
	"github.com/haloview/mfa-incident-backend/internal/domain/incident"
)

// Config holds the ingest processor's tunables, resolved at process start.
type Config struct {
	RetentionWindow time.Duration
	BurstWindow     time.Duration
}

// Result reports one ingest call. The store write is the single hard
// dependency; metric emission and alert delivery are soft and their
// failures ride along here instead of failing the call.
type Result struct {
	Incident        *incident.Incident
	Ambiguous       bool
	MetricsErr      error
	NotificationErr error
}

// Service is the ingest processor: normalize, classify, persist, emit.
// Each invocation is stateless; duplicate delivery of the same payload
// creates a new incident rather than corrupting an existing one.
type Service struct {
	normalizer *event.Normalizer
	engine     *classification.Engine
	repo       IncidentRepository
	window     EventWindow
	metrics    MetricsCollector
	notifier   Notifier
	cfg        Config
	logger     *slog.Logger
}

// NewService creates the ingest processor.
func NewService(
	normalizer *event.Normalizer,
	engine *classification.Engine,
	repo IncidentRepository,
	window EventWindow,
	metrics MetricsCollector,
	notifier Notifier,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		normalizer: normalizer,
		engine:     engine,
		repo:       repo,
		window:     window,
		metrics:    metrics,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger,
	}
}

// Ingest processes one raw payload end to end and returns the created
// incident. Malformed input and store persistence failures fail the call;
// window, metric and notification failures degrade it.
func (s *Service) Ingest(ctx context.Context, payload map[string]interface{}) (*Result, error) {
	normalized, err := s.normalizer.Normalize(payload)
	if err != nil {
		return nil, err
	}
	ev := &normalized.Event

	lookback := normalized.Lookback
	if !normalized.Synthetic {
		lookback, err = s.window.Recent(ctx, ev.Principal, ev.SourceIP, ev.Timestamp, s.cfg.BurstWindow)
		if err != nil {
			// Burst evidence is best-effort: degrade to an empty
			// lookback and let later rules classify the event.
			s.logger.WarnContext(ctx, "event window lookup failed, classifying without lookback",
				"principal", ev.Principal, "error", err)
			lookback = nil
		}
		if recordErr := s.window.Record(ctx, *ev); recordErr != nil {
			s.logger.WarnContext(ctx, "failed to record event in window",
				"principal", ev.Principal, "error", recordErr)
		}
	}

	result, err := s.engine.Classify(ev, lookback)
	if err != nil {
		return nil, err
	}
	if result.Ambiguous() {
		s.logger.InfoContext(ctx, "event fell through all classification rules",
			"event_name", ev.EventName, "event_source", ev.EventSource)
	}

	inc, err := incident.New(result, ev.Principal, ev.SourceIP, s.cfg.RetentionWindow)
	if err != nil {
		return nil, errors.NewInternalError("building incident").WithCause(err)
	}

	if err := s.repo.Create(ctx, inc); err != nil {
		return nil, errors.NewStorePersistenceError("incident could not be durably recorded").WithCause(err)
	}

	out := &Result{Incident: inc, Ambiguous: result.Ambiguous()}

	if err := s.metrics.IncidentCreated(inc.Scenario.String(), inc.Severity.String()); err != nil {
		out.MetricsErr = err
		s.logger.WarnContext(ctx, "incident count metric emission failed",
			"incident_id", inc.ID, "error", err)
	}

	if inc.Severity >= classification.SeverityHigh {
		if err := s.notifier.PublishAlert(ctx, inc); err != nil {
			out.NotificationErr = errors.NewNotificationDeliveryError("alert publish failed").WithCause(err)
			s.logger.ErrorContext(ctx, "alert delivery failed for persisted incident",
				"incident_id", inc.ID, "severity", inc.Severity.String(), "error", err)
		}
	}

	s.logger.InfoContext(ctx, "incident created",
		"incident_id", inc.ID,
		"scenario", inc.Scenario.String(),
		"severity", inc.Severity.String(),
		"principal", inc.Principal)

	return out, nil
}
