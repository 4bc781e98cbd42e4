package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/haloview/mfa-incident-backend/internal/domain/classification"
	domainErrors "github.com/haloview/mfa-incident-backend/internal/domain/errors"
	"github.com/haloview/mfa-incident-backend/internal/domain/incident"
)

// incidentRepository implements the services' incident store ports using
// PostgreSQL.
type incidentRepository struct {
	db *sql.DB
}

// IncidentRepository is the full store surface over incident records.
type IncidentRepository interface {
	Create(ctx context.Context, inc *incident.Incident) error
	GetByID(ctx context.Context, id string) (*incident.Incident, error)
	ListOpenByScenario(ctx context.Context, scenarios []classification.Scenario, limit int) ([]*incident.Incident, error)
	Resolve(ctx context.Context, id string, m *incident.Mutation) (bool, error)
}

// NewIncidentRepository creates a new incident repository
func NewIncidentRepository(db *sql.DB) IncidentRepository {
	return &incidentRepository{db: db}
}

// Create inserts a new OPEN incident.
func (r *incidentRepository) Create(ctx context.Context, inc *incident.Incident) error {
	if inc.ID == "" {
		return errors.New("incident id cannot be empty")
	}

	signalJSON, err := json.Marshal(inc.DetectionSignal)
	if err != nil {
		return fmt.Errorf("failed to marshal detection signal: %w", err)
	}

	query := `
		INSERT INTO incidents (
			id, scenario, severity, status, created_at,
			resolved_at, resolution_time_seconds, detection_signal,
			auto_remediation_eligible, principal, source_ip, ttl
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12
		)
	`

	_, err = r.db.ExecContext(ctx, query,
		inc.ID, inc.Scenario.String(), inc.Severity.String(), inc.Status.String(), inc.CreatedAt,
		inc.ResolvedAt, inc.ResolutionTimeSeconds, signalJSON,
		inc.AutoRemediationEligible, inc.Principal, inc.SourceIP, inc.TTL,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return fmt.Errorf("duplicate key: incident with ID %s already exists", inc.ID)
		}
		return fmt.Errorf("failed to create incident: %w", err)
	}

	return nil
}

// GetByID retrieves an incident by its ID
func (r *incidentRepository) GetByID(ctx context.Context, id string) (*incident.Incident, error) {
	query := selectColumns + ` FROM incidents WHERE id = $1`

	inc, err := scanIncident(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainErrors.NewNotFoundError("incident")
		}
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	return inc, nil
}

// ListOpenByScenario returns OPEN incidents in the given scenario set,
// oldest first, up to limit. This is the resolution scan's store-level
// filter; classification is never re-run here.
func (r *incidentRepository) ListOpenByScenario(ctx context.Context, scenarios []classification.Scenario, limit int) ([]*incident.Incident, error) {
	if len(scenarios) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 500
	}

	placeholders := make([]string, len(scenarios))
	args := make([]interface{}, 0, len(scenarios)+1)
	for i, s := range scenarios {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args = append(args, s.String())
	}
	args = append(args, limit)

	query := fmt.Sprintf(
		selectColumns+` FROM incidents
		WHERE status = 'OPEN' AND scenario IN (%s)
		ORDER BY created_at ASC
		LIMIT $%d`,
		strings.Join(placeholders, ", "), len(scenarios)+1,
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query open incidents: %w", err)
	}
	defer rows.Close()

	var incidents []*incident.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incidents = append(incidents, inc)
	}
	return incidents, rows.Err()
}

// Resolve applies the resolved mutation conditionally on status, so a
// duplicate resolution of the same incident affects zero rows and reports
// applied=false with no error.
func (r *incidentRepository) Resolve(ctx context.Context, id string, m *incident.Mutation) (bool, error) {
	query := `
		UPDATE incidents
		SET status = 'RESOLVED',
		    resolved_at = $2,
		    resolution_time_seconds = $3
		WHERE id = $1 AND status = 'OPEN'
	`

	result, err := r.db.ExecContext(ctx, query, id, m.ResolvedAt, m.ResolutionTimeSeconds)
	if err != nil {
		return false, fmt.Errorf("failed to resolve incident %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}

const selectColumns = `
	SELECT
		id, scenario, severity, status, created_at,
		resolved_at, resolution_time_seconds, detection_signal,
		auto_remediation_eligible, principal, source_ip, ttl`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIncident(row rowScanner) (*incident.Incident, error) {
	var (
		inc            incident.Incident
		scenarioStr    string
		severityStr    string
		statusStr      string
		resolvedAt     sql.NullTime
		resolutionSecs sql.NullInt64
		signalJSON     []byte
	)

	err := row.Scan(
		&inc.ID, &scenarioStr, &severityStr, &statusStr, &inc.CreatedAt,
		&resolvedAt, &resolutionSecs, &signalJSON,
		&inc.AutoRemediationEligible, &inc.Principal, &inc.SourceIP, &inc.TTL,
	)
	if err != nil {
		return nil, err
	}

	inc.Scenario = classification.ParseScenario(scenarioStr)
	inc.Severity = classification.ParseSeverity(severityStr)
	inc.Status = incident.ParseStatus(statusStr)

	if resolvedAt.Valid {
		t := resolvedAt.Time.UTC()
		inc.ResolvedAt = &t
	}
	if resolutionSecs.Valid {
		v := resolutionSecs.Int64
		inc.ResolutionTimeSeconds = &v
	}
	if len(signalJSON) > 0 {
		if err := json.Unmarshal(signalJSON, &inc.DetectionSignal); err != nil {
			return nil, fmt.Errorf("failed to unmarshal detection signal: %w", err)
		}
	}
	inc.CreatedAt = inc.CreatedAt.UTC()
	inc.TTL = inc.TTL.UTC()

	return &inc, nil
}
