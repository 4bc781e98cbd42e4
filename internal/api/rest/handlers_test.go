package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haloview/mfa-incident-backend/internal/domain/classification"
	domainErrors "github.com/haloview/mfa-incident-backend/internal/domain/errors"
	"github.com/haloview/mfa-incident-backend/internal/domain/incident"
	"github.com/haloview/mfa-incident-backend/internal/service/ingest"
	"github.com/haloview/mfa-incident-backend/internal/service/resolution"
	"github.com/haloview/mfa-incident-backend/internal/testutil/fixtures"
)

type fakeIngest struct {
	result *ingest.Result
	err    error
}

func (f *fakeIngest) Ingest(_ context.Context, _ map[string]interface{}) (*ingest.Result, error) {
	return f.result, f.err
}

type fakeResolution struct {
	summary *resolution.Summary
	err     error
}

func (f *fakeResolution) Run(_ context.Context) (*resolution.Summary, error) {
	return f.summary, f.err
}

type fakeReader struct {
	incident *incident.Incident
	err      error
}

func (f *fakeReader) GetByID(_ context.Context, _ string) (*incident.Incident, error) {
	return f.incident, f.err
}

func newTestHandlers(ing IngestService, res ResolutionService, rd IncidentReader) *Handlers {
	return NewHandlers(ing, res, rd, slog.New(slog.DiscardHandler))
}

func serve(t *testing.T, h *Handlers, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleIngest_Created(t *testing.T) {
	inc := fixtures.NewIncidentBuilder(t).
		WithID("RATE-LIMIT-0A1B2C3D").
		WithScenario(classification.ScenarioRateLimiting).
		WithSeverity(classification.SeverityHigh).
		Build()
	h := newTestHandlers(&fakeIngest{result: &ingest.Result{Incident: inc}}, nil, nil)

	rec := serve(t, h, http.MethodPost, "/api/v1/events", `{"scenario":"rate_limiting"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp ingestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "RATE-LIMIT-0A1B2C3D", resp.IncidentID)
	assert.Equal(t, "rate_limiting", resp.Scenario)
	assert.Equal(t, "HIGH", resp.Severity)
	assert.Equal(t, "OPEN", resp.Status)
	assert.Empty(t, resp.NotificationError)
}

func TestHandleIngest_NotificationErrorSurfaced(t *testing.T) {
	inc := fixtures.NewIncidentBuilder(t).Build()
	result := &ingest.Result{
		Incident:        inc,
		NotificationErr: domainErrors.NewNotificationDeliveryError("nats publish failed"),
	}
	h := newTestHandlers(&fakeIngest{result: result}, nil, nil)

	rec := serve(t, h, http.MethodPost, "/api/v1/events", `{}`)

	// Still created: the alert is a soft dependency.
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp ingestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.NotificationError, "nats publish failed")
}

func TestHandleIngest_InvalidJSON(t *testing.T) {
	h := newTestHandlers(&fakeIngest{}, nil, nil)

	rec := serve(t, h, http.MethodPost, "/api/v1/events", `{not json`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "MALFORMED_INPUT", resp.Error.Code)
}

func TestHandleIngest_MalformedEvent(t *testing.T) {
	h := newTestHandlers(&fakeIngest{
		err: domainErrors.NewMalformedInputError("missing or invalid eventTime"),
	}, nil, nil)

	rec := serve(t, h, http.MethodPost, "/api/v1/events", `{"eventName":"ConsoleLogin"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "MALFORMED_INPUT", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "eventTime")
}

func TestHandleIngest_StoreFailure(t *testing.T) {
	h := newTestHandlers(&fakeIngest{
		err: domainErrors.NewStorePersistenceError("insert failed"),
	}, nil, nil)

	rec := serve(t, h, http.MethodPost, "/api/v1/events", `{}`)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "STORE_PERSISTENCE_FAILED", resp.Error.Code)
}

func TestHandleResolutionRun(t *testing.T) {
	h := newTestHandlers(nil, &fakeResolution{
		summary: &resolution.Summary{ResolvedCount: 2, SkippedCount: 1},
	}, nil)

	rec := serve(t, h, http.MethodPost, "/api/v1/resolutions/run", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var summary resolution.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.ResolvedCount)
	assert.Equal(t, 1, summary.SkippedCount)
	assert.Equal(t, 0, summary.ErrorCount)
}

func TestHandleGetIncident(t *testing.T) {
	resolvedAt := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)
	inc := fixtures.NewIncidentBuilder(t).
		WithID("MFA-AUTH-DEADBEEF").
		Resolved(resolvedAt).
		Build()
	h := newTestHandlers(nil, nil, &fakeReader{incident: inc})

	rec := serve(t, h, http.MethodGet, "/api/v1/incidents/MFA-AUTH-DEADBEEF", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got incident.Incident
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "MFA-AUTH-DEADBEEF", got.ID)
	assert.Equal(t, incident.StatusResolved, got.Status)
}

func TestHandleGetIncident_NotFound(t *testing.T) {
	h := newTestHandlers(nil, nil, &fakeReader{
		err: domainErrors.NewNotFoundError("incident MFA-AUTH-00000000"),
	})

	rec := serve(t, h, http.MethodGet, "/api/v1/incidents/MFA-AUTH-00000000", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "RESOURCE_NOT_FOUND", resp.Error.Code)
}

func TestHandleHealth(t *testing.T) {
	h := newTestHandlers(nil, nil, nil)

	rec := serve(t, h, http.MethodGet, "/healthz", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
