package resolution

import (
	"context"
	"log/slog"
	"time"

	"github.com/haloview/mfa-incident-backend/internal/domain/classification"
	"github.com/haloview/mfa-incident-backend/internal/domain/incident"
)

// AutoResolvableScenarios is the scenario set flagged remediation-eligible
// at creation time. Used only as the store-level query filter; eligibility
// of each incident is still decided by the persisted flag.
var AutoResolvableScenarios = []classification.Scenario{
	classification.ScenarioRateLimiting,
}

// Config holds the resolution processor's tunables.
type Config struct {
	CooldownPeriod time.Duration
	ScanLimit      int
}

// Summary reports one resolution run.
type Summary struct {
	ResolvedCount int `json:"resolved_count"`
	SkippedCount  int `json:"skipped_count"`
	ErrorCount    int `json:"error_count"`
}

// Service is the resolution processor: scan open eligible incidents, apply
// the lifecycle predicate against the current time, persist resolved
// mutations. Each incident is processed independently so one failure never
// blocks the rest, and a mid-scan cancellation leaves already-resolved
// incidents resolved.
type Service struct {
	repo     IncidentRepository
	metrics  MetricsCollector
	notifier Notifier
	cfg      Config
	clock    incident.Clock
	logger   *slog.Logger
}

// NewService creates the resolution processor. A nil clock uses system time.
func NewService(
	repo IncidentRepository,
	metrics MetricsCollector,
	notifier Notifier,
	cfg Config,
	clock incident.Clock,
	logger *slog.Logger,
) *Service {
	if clock == nil {
		clock = incident.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ScanLimit <= 0 {
		cfg.ScanLimit = 500
	}
	return &Service{
		repo:     repo,
		metrics:  metrics,
		notifier: notifier,
		cfg:      cfg,
		clock:    clock,
		logger:   logger,
	}
}

// Run executes one resolution pass. Idempotent across runs: the store-side
// conditional update makes resolving an already-resolved incident a no-op,
// counted as skipped.
func (s *Service) Run(ctx context.Context) (*Summary, error) {
	now := s.clock.Now().UTC()

	incidents, err := s.repo.ListOpenByScenario(ctx, AutoResolvableScenarios, s.cfg.ScanLimit)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	for _, inc := range incidents {
		// Stop between incidents on cancellation; completed updates stay.
		if ctx.Err() != nil {
			s.logger.WarnContext(ctx, "resolution scan interrupted",
				"resolved", summary.ResolvedCount, "remaining", len(incidents)-summary.ResolvedCount-summary.SkippedCount-summary.ErrorCount)
			break
		}
		s.process(ctx, inc, now, summary)
	}

	s.logger.InfoContext(ctx, "resolution run complete",
		"resolved", summary.ResolvedCount,
		"skipped", summary.SkippedCount,
		"errors", summary.ErrorCount)
	return summary, nil
}

func (s *Service) process(ctx context.Context, inc *incident.Incident, now time.Time, summary *Summary) {
	mutation, skip := incident.EvaluateResolution(inc, now, s.cfg.CooldownPeriod)
	if skip != incident.SkipNone {
		summary.SkippedCount++
		s.logger.DebugContext(ctx, "incident skipped",
			"incident_id", inc.ID, "reason", string(skip))
		return
	}

	applied, err := s.repo.Resolve(ctx, inc.ID, mutation)
	if err != nil {
		summary.ErrorCount++
		s.logger.ErrorContext(ctx, "failed to persist resolution",
			"incident_id", inc.ID, "error", err)
		return
	}
	if !applied {
		// Lost the race to a concurrent run; the incident is resolved
		// either way.
		summary.SkippedCount++
		return
	}
	summary.ResolvedCount++

	if err := inc.Resolve(mutation.ResolvedAt); err != nil {
		// In-memory mirror of the persisted mutation for downstream
		// notification payloads; the store update already succeeded.
		s.logger.WarnContext(ctx, "in-memory resolve mismatch", "incident_id", inc.ID, "error", err)
	}

	if err := s.metrics.IncidentResolved(inc.Scenario.String(), mutation.ResolutionTimeSeconds); err != nil {
		s.logger.WarnContext(ctx, "resolution metric emission failed",
			"incident_id", inc.ID, "error", err)
	}

	if err := s.notifier.PublishResolved(ctx, inc); err != nil {
		s.logger.ErrorContext(ctx, "cleared notification failed for resolved incident",
			"incident_id", inc.ID, "error", err)
	}

	s.logger.InfoContext(ctx, "incident auto-resolved",
		"incident_id", inc.ID,
		"resolution_time_seconds", mutation.ResolutionTimeSeconds)
}
