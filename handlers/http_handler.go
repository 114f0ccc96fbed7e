package handlers

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/giygas/benefits-api/apperrors"
	"github.com/giygas/benefits-api/coverage"
	"github.com/giygas/benefits-api/gateway"
	"github.com/giygas/benefits-api/interfaces"
	"github.com/giygas/benefits-api/planform"
	"github.com/giygas/benefits-api/plans"
	"github.com/go-chi/chi/v5"
)

// HTTPHandler serves the benefits API with injected dependencies
type HTTPHandler struct {
	coverage  *coverage.Service
	plans     *plans.Service
	loader    *planform.Loader
	forms     *planform.Registry
	health    interfaces.HealthChecker
	dataStore interfaces.DataStore
}

// NewHTTPHandler creates the handler set
func NewHTTPHandler(
	coverageService *coverage.Service,
	planService *plans.Service,
	loader *planform.Loader,
	forms *planform.Registry,
	health interfaces.HealthChecker,
	dataStore interfaces.DataStore,
) *HTTPHandler {
	return &HTTPHandler{
		coverage:  coverageService,
		plans:     planService,
		loader:    loader,
		forms:     forms,
		health:    health,
		dataStore: dataStore,
	}
}

// ListCoverageCodes returns every coverage code, or only the active ones
// with ?active=true
func (h *HTTPHandler) ListCoverageCodes(w http.ResponseWriter, r *http.Request) {
	fb := &Feedback{}
	list := h.coverage.List
	if r.URL.Query().Get("active") == "true" {
		list = h.coverage.ListActive
	}

	codes, err := list(r.Context(), fb)
	if err != nil {
		respondWithError(w, r, fb, err)
		return
	}
	respond(w, http.StatusOK, fb, codes, "")
}

// AddCoverageCode creates a coverage code
func (h *HTTPHandler) AddCoverageCode(w http.ResponseWriter, r *http.Request) {
	fb := &Feedback{}
	var in coverage.Input
	if err := decodeBody(r, &in); err != nil {
		RespondWithError(w, http.StatusBadRequest, MessageInvalidBody)
		return
	}

	code, err := h.coverage.Add(r.Context(), fb, in)
	if err != nil {
		respondWithError(w, r, fb, err)
		return
	}
	respond(w, http.StatusCreated, fb, code, "")
}

// GetCoverageCode returns one coverage code
func (h *HTTPHandler) GetCoverageCode(w http.ResponseWriter, r *http.Request) {
	fb := &Feedback{}
	code, err := h.coverage.Get(r.Context(), fb, chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, r, fb, err)
		return
	}
	respond(w, http.StatusOK, fb, code, "")
}

// EditCoverageCode saves the submitted values when they differ from the
// stored ones. An unchanged submit performs no write.
func (h *HTTPHandler) EditCoverageCode(w http.ResponseWriter, r *http.Request) {
	fb := &Feedback{}
	var in coverage.Input
	if err := decodeBody(r, &in); err != nil {
		RespondWithError(w, http.StatusBadRequest, MessageInvalidBody)
		return
	}

	code, written, err := h.coverage.Edit(r.Context(), fb, chi.URLParam(r, "id"), in)
	if err != nil {
		respondWithError(w, r, fb, err)
		return
	}
	message := ""
	if !written {
		message = coverage.MessageUnchanged
	}
	respond(w, http.StatusOK, fb, code, message)
}

// DeleteCoverageCode removes a coverage code no plan references
func (h *HTTPHandler) DeleteCoverageCode(w http.ResponseWriter, r *http.Request) {
	fb := &Feedback{}
	if err := h.coverage.Delete(r.Context(), fb, chi.URLParam(r, "id")); err != nil {
		respondWithError(w, r, fb, err)
		return
	}
	respond(w, http.StatusOK, fb, nil, "")
}

// ListPlans returns the flat form of every plan
func (h *HTTPHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	fb := &Feedback{}
	list, err := h.plans.List(r.Context(), fb)
	if err != nil {
		respondWithError(w, r, fb, err)
		return
	}
	respond(w, http.StatusOK, fb, list, "")
}

// AddPlan creates a flat medical plan
func (h *HTTPHandler) AddPlan(w http.ResponseWriter, r *http.Request) {
	fb := &Feedback{}
	var in plans.AddInput
	if err := decodeBody(r, &in); err != nil {
		RespondWithError(w, http.StatusBadRequest, MessageInvalidBody)
		return
	}

	plan, err := h.plans.Add(r.Context(), fb, in)
	if err != nil {
		respondWithError(w, r, fb, err)
		return
	}
	respond(w, http.StatusCreated, fb, plan, "")
}

// DeletePlan removes a plan not assigned to employees. Without
// ?confirm=true the response is pending and carries the confirmation.
func (h *HTTPHandler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	fb := &Feedback{}
	confirm := confirmerFor(r)

	err := h.plans.Delete(r.Context(), fb, confirm, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, apperrors.ErrConfirmationRequired):
		respondPending(w, fb, confirm.asked)
	case err != nil:
		respondWithError(w, r, fb, err)
	default:
		respond(w, http.StatusOK, fb, nil, "")
	}
}

// OpenPlanForm loads a plan into a new form session
func (h *HTTPHandler) OpenPlanForm(w http.ResponseWriter, r *http.Request) {
	fb := &Feedback{}
	form, err := h.loader.Load(r.Context(), fb, fb, chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, r, fb, err)
		return
	}

	sessionID := h.forms.Open(form)
	w.Header().Set("Location", "/forms/"+sessionID)
	respond(w, http.StatusCreated, fb, FormResponse{SessionID: sessionID, State: form.State()}, "")
}

// FormResponse is a form session with its current state
type FormResponse struct {
	SessionID string         `json:"sessionId"`
	State     planform.State `json:"state"`
}

func (h *HTTPHandler) form(w http.ResponseWriter, r *http.Request) (string, *planform.Form, bool) {
	sessionID := chi.URLParam(r, "formID")
	form, err := h.forms.Get(sessionID)
	if err != nil {
		respondWithError(w, r, nil, err)
		return "", nil, false
	}
	return sessionID, form, true
}

// GetPlanForm returns the state of a form session
func (h *HTTPHandler) GetPlanForm(w http.ResponseWriter, r *http.Request) {
	sessionID, form, ok := h.form(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, nil, FormResponse{SessionID: sessionID, State: form.State()}, "")
}

// ApplyPlanFormOps applies a batch of form operations in order. A rejected
// operation stops the batch; the state after the applied ones is returned
// together with the error.
func (h *HTTPHandler) ApplyPlanFormOps(w http.ResponseWriter, r *http.Request) {
	sessionID, form, ok := h.form(w, r)
	if !ok {
		return
	}

	var ops []planform.Operation
	if err := decodeBody(r, &ops); err != nil {
		RespondWithError(w, http.StatusBadRequest, MessageInvalidBody)
		return
	}

	fb := &Feedback{}
	if err := form.Apply(ops); err != nil {
		message := apperrors.Message(err)
		var opErr *planform.OperationError
		if errors.As(err, &opErr) {
			message = apperrors.Message(opErr.Err)
		}
		env := Envelope{
			Status:  gateway.StatusError,
			Data:    FormResponse{SessionID: sessionID, State: form.State()},
			Message: message,
		}
		var validationErr *apperrors.ValidationError
		if errors.As(err, &validationErr) {
			env.Errors = validationErr.Fields
		}
		fb.Error(env.Message)
		fb.apply(&env)
		RespondWithJSON(w, statusFor(err), env)
		return
	}
	respond(w, http.StatusOK, fb, FormResponse{SessionID: sessionID, State: form.State()}, "")
}

// SavePlanForm runs the save sequence of a form session
func (h *HTTPHandler) SavePlanForm(w http.ResponseWriter, r *http.Request) {
	sessionID, form, ok := h.form(w, r)
	if !ok {
		return
	}

	fb := &Feedback{}
	saved, err := form.Save(r.Context(), fb, fb)
	if err != nil {
		env := Envelope{
			Status:  gateway.StatusError,
			Data:    FormResponse{SessionID: sessionID, State: form.State()},
			Message: apperrors.Message(err),
		}
		var validationErr *apperrors.ValidationError
		if errors.As(err, &validationErr) {
			env.Errors = validationErr.Fields
		}
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			env.Message = MessageInternal
		}
		fb.apply(&env)
		RespondWithJSON(w, code, env)
		return
	}
	respond(w, http.StatusOK, fb, saved, "")
}

// DiscardPlanForm drops a form session and its unsaved changes
func (h *HTTPHandler) DiscardPlanForm(w http.ResponseWriter, r *http.Request) {
	h.forms.Discard(chi.URLParam(r, "formID"))
	w.WriteHeader(http.StatusNoContent)
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status        string         `json:"status"`
	LastAudit     string         `json:"last_audit,omitempty"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Data          map[string]any `json:"data"`
}

// HealthCheck reports storage reachability, collection sizes and the
// latest integrity audit
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, details, err := h.health.HealthCheck(r.Context())

	response := HealthResponse{
		Status: status,
		Data:   details,
	}
	if start := h.dataStore.GetServerStartTime(); !start.IsZero() {
		response.UptimeSeconds = math.Round(time.Since(start).Seconds())
	}
	if last := h.dataStore.GetLastAudit(); !last.IsZero() {
		response.LastAudit = last.Format(time.RFC3339)
	}

	code := http.StatusOK
	if err != nil {
		code = http.StatusServiceUnavailable
	}
	RespondWithJSON(w, code, response)
}
