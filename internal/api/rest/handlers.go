package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	domainErrors "github.com/haloview/mfa-incident-backend/internal/domain/errors"
	"github.com/haloview/mfa-incident-backend/internal/domain/incident"
	"github.com/haloview/mfa-incident-backend/internal/service/ingest"
	"github.com/haloview/mfa-incident-backend/internal/service/resolution"
)

// IngestService processes one raw event payload.
type IngestService interface {
	Ingest(ctx context.Context, payload map[string]interface{}) (*ingest.Result, error)
}

// ResolutionService executes one resolution pass.
type ResolutionService interface {
	Run(ctx context.Context) (*resolution.Summary, error)
}

// IncidentReader serves incident lookups.
type IncidentReader interface {
	GetByID(ctx context.Context, id string) (*incident.Incident, error)
}

// Handlers wires the two processors and the read path to HTTP.
type Handlers struct {
	ingest     IngestService
	resolution ResolutionService
	incidents  IncidentReader
	logger     *slog.Logger
}

// NewHandlers creates the API handler set.
func NewHandlers(ingestSvc IngestService, resolutionSvc ResolutionService, incidents IncidentReader, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		ingest:     ingestSvc,
		resolution: resolutionSvc,
		incidents:  incidents,
		logger:     logger,
	}
}

// RegisterRoutes attaches all routes to the mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/events", h.handleIngest)
	mux.HandleFunc("POST /api/v1/resolutions/run", h.handleResolutionRun)
	mux.HandleFunc("GET /api/v1/incidents/{id}", h.handleGetIncident)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// ingestResponse is the caller-facing ingest result.
type ingestResponse struct {
	IncidentID        string `json:"incident_id"`
	Scenario          string `json:"scenario"`
	Severity          string `json:"severity"`
	Status            string `json:"status"`
	NotificationError string `json:"notification_error,omitempty"`
}

func (h *Handlers) handleIngest(w http.ResponseWriter, r *http.Request) {
	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, r, domainErrors.NewMalformedInputError("request body is not valid JSON").WithCause(err))
		return
	}

	result, err := h.ingest.Ingest(r.Context(), payload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := ingestResponse{
		IncidentID: result.Incident.ID,
		Scenario:   result.Incident.Scenario.String(),
		Severity:   result.Incident.Severity.String(),
		Status:     result.Incident.Status.String(),
	}
	// Degraded-but-successful: the incident persisted even though its
	// alert did not go out.
	if result.NotificationErr != nil {
		resp.NotificationError = result.NotificationErr.Error()
	}

	h.writeJSON(w, http.StatusCreated, resp)
}

func (h *Handlers) handleResolutionRun(w http.ResponseWriter, r *http.Request) {
	summary, err := h.resolution.Run(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handlers) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	inc, err := h.incidents.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, inc)
}

func (h *Handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := domainErrors.GetStatusCode(err)
	code := "INTERNAL_ERROR"
	message := "internal error"

	var appErr *domainErrors.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		message = appErr.Message
	}

	if status >= 500 {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	} else {
		h.logger.WarnContext(r.Context(), "request rejected", "path", r.URL.Path, "code", code)
	}

	h.writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
