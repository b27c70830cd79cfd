// Package handlers exposes the submission pipeline over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"formcloud-bridge/internal/common/errors"
	"formcloud-bridge/internal/common/logging"
	"formcloud-bridge/internal/models"
	"formcloud-bridge/internal/pipeline"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	orchestrator *pipeline.Orchestrator
	logger       logging.Logger
}

// New creates the HTTP handler set.
func New(orchestrator *pipeline.Orchestrator, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// RegisterRoutes attaches all routes to the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/submissions/{form}", h.HandleSubmission).Methods(http.MethodPost)
	r.HandleFunc("/admin/token/reset", h.HandleTokenReset).Methods(http.MethodPost)
	r.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
}

// submissionRequest is the inbound request body for a form submission.
type submissionRequest struct {
	FormKind       string                 `json:"form_kind,omitempty"`
	RequestContext string                 `json:"request_context"`
	Fields         map[string]interface{} `json:"fields"`
}

// HandleSubmission accepts one form submission and runs it through the
// pipeline. The form identifier comes from the URL path; the body carries
// the originating page context and the submitted fields.
func (h *Handlers) HandleSubmission(w http.ResponseWriter, r *http.Request) {
	formID := mux.Vars(r)["form"]

	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Fields) == 0 {
		h.writeError(w, http.StatusBadRequest, "fields must not be empty")
		return
	}

	// An explicit form_kind wins; otherwise the pipeline derives the kind
	// from the form identifier
	var kind models.FormKind
	if req.FormKind != "" {
		kind = models.ParseFormKind(req.FormKind)
	}

	raw := &models.RawSubmission{
		FormID:         formID,
		Kind:           kind,
		RequestContext: req.RequestContext,
		Fields:         req.Fields,
	}

	outcome, err := h.orchestrator.HandleSubmission(r.Context(), raw)
	if err != nil {
		switch errors.GetType(err) {
		case errors.ErrTypeValidation, errors.ErrTypeTransformation:
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("Submission handling failed", err,
				logging.Field{Key: "form_id", Value: formID},
			)
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	h.writeJSON(w, statusForOutcome(outcome.Status), outcome)
}

// HandleTokenReset drops the cached tokens for every configured region.
func (h *Handlers) HandleTokenReset(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.ResetTokens(r.Context()); err != nil {
		h.logger.Error("Token reset failed", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusForOutcome maps an outcome classification to an HTTP status.
// Submissions are accepted as long as the pipeline ran; only the total
// absence of a remote response surfaces as a gateway error.
func statusForOutcome(status models.OutcomeStatus) int {
	switch status {
	case models.OutcomeSuccess, models.OutcomeDryRun:
		return http.StatusOK
	case models.OutcomeRemoteError, models.OutcomeAmbiguous:
		return http.StatusBadGateway
	case models.OutcomeNoResponse:
		return http.StatusBadGateway
	default:
		return http.StatusOK
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
