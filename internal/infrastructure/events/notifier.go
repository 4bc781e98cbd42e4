package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/haloview/mfa-incident-backend/internal/domain/classification"
	"github.com/haloview/mfa-incident-backend/internal/domain/incident"
	"github.com/haloview/mfa-incident-backend/internal/infrastructure/config"
)

// NATSNotifier publishes incident alerts and cleared notifications to NATS
// subjects. Publishing is fire-and-forget from the processors' point of
// view: errors surface to the caller but never fail the unit of work that
// persisted the incident.
type NATSNotifier struct {
	conn            *nats.Conn
	alertSubject    string
	resolvedSubject string
	logger          *zap.Logger
}

// Connect dials NATS and returns a notifier bound to the configured
// subjects.
func Connect(cfg *config.NATSConfig, logger *zap.Logger) (*NATSNotifier, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("auth-incident-exchange"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect failed: %w", err)
	}

	logger.Info("nats notifier connected",
		zap.String("url", cfg.URL),
		zap.String("alert_subject", cfg.AlertSubject),
		zap.String("resolved_subject", cfg.ResolvedSubject))

	return &NATSNotifier{
		conn:            conn,
		alertSubject:    cfg.AlertSubject,
		resolvedSubject: cfg.ResolvedSubject,
		logger:          logger,
	}, nil
}

// NewNATSNotifier wraps an existing connection, mainly for tests.
func NewNATSNotifier(conn *nats.Conn, alertSubject, resolvedSubject string, logger *zap.Logger) *NATSNotifier {
	return &NATSNotifier{
		conn:            conn,
		alertSubject:    alertSubject,
		resolvedSubject: resolvedSubject,
		logger:          logger,
	}
}

// Close drains the connection.
func (n *NATSNotifier) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}

// AlertMessage is the payload published for HIGH and CRITICAL incidents.
type AlertMessage struct {
	IncidentID        string `json:"incident_id"`
	Scenario          string `json:"scenario"`
	Severity          string `json:"severity"`
	Principal         string `json:"principal"`
	SourceIP          string `json:"source_ip"`
	Description       string `json:"description"`
	RecommendedAction string `json:"recommended_action"`
	Timestamp         string `json:"timestamp"`
}

// ResolvedMessage is the payload published when an incident auto-resolves.
type ResolvedMessage struct {
	Event                   string `json:"event"`
	IncidentID              string `json:"incident_id"`
	Scenario                string `json:"scenario"`
	Principal               string `json:"principal"`
	OriginalSeverity        string `json:"original_severity"`
	ResolutionTimeSeconds   int64  `json:"resolution_time_seconds"`
	ResolutionTimeFormatted string `json:"resolution_time_formatted"`
	Notes                   string `json:"notes"`
	Timestamp               string `json:"timestamp"`
}

// PublishAlert publishes an incident alert.
func (n *NATSNotifier) PublishAlert(ctx context.Context, inc *incident.Incident) error {
	msg := AlertMessage{
		IncidentID:        inc.ID,
		Scenario:          inc.Scenario.String(),
		Severity:          inc.Severity.String(),
		Principal:         inc.Principal,
		SourceIP:          inc.SourceIP,
		Description:       describeIncident(inc),
		RecommendedAction: classification.RecommendedAction(inc.Scenario),
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
	}
	if err := n.publish(ctx, n.alertSubject, msg); err != nil {
		return err
	}
	n.logger.Info("published incident alert",
		zap.String("incident_id", inc.ID),
		zap.String("severity", inc.Severity.String()))
	return nil
}

// PublishResolved publishes the cleared notification.
func (n *NATSNotifier) PublishResolved(ctx context.Context, inc *incident.Incident) error {
	var seconds int64
	if inc.ResolutionTimeSeconds != nil {
		seconds = *inc.ResolutionTimeSeconds
	}
	msg := ResolvedMessage{
		Event:                   "INCIDENT_RESOLVED",
		IncidentID:              inc.ID,
		Scenario:                inc.Scenario.String(),
		Principal:               inc.Principal,
		OriginalSeverity:        inc.Severity.String(),
		ResolutionTimeSeconds:   seconds,
		ResolutionTimeFormatted: formatDuration(seconds),
		Notes:                   "Cooldown period completed. Rate limiting cleared. User may attempt re-authentication.",
		Timestamp:               time.Now().UTC().Format(time.RFC3339),
	}
	if err := n.publish(ctx, n.resolvedSubject, msg); err != nil {
		return err
	}
	n.logger.Info("published cleared notification", zap.String("incident_id", inc.ID))
	return nil
}

func (n *NATSNotifier) publish(ctx context.Context, subject string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := n.conn.Publish(subject, data); err != nil {
		n.logger.Error("notification publish failed",
			zap.String("subject", subject),
			zap.Error(err))
		return fmt.Errorf("publish to %s failed: %w", subject, err)
	}
	return nil
}

func describeIncident(inc *incident.Incident) string {
	result := &classification.Result{
		Scenario:        inc.Scenario,
		DetectionSignal: inc.DetectionSignal,
	}
	return classification.Describe(result, inc.Principal)
}

// formatDuration renders seconds as a human-readable duration.
func formatDuration(seconds int64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	}
}
