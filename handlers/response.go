// Package handlers provides the HTTP adapters of the benefits API.
// Each request is one user interaction: the flows report toasts and
// navigation through a per-request Feedback, and the response envelope
// carries them back to the client alongside the data.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/giygas/benefits-api/apperrors"
	"github.com/giygas/benefits-api/gateway"
	"github.com/giygas/benefits-api/interfaces"
	"github.com/giygas/benefits-api/logging"
	"github.com/goccy/go-json"
)

// Toast kinds
const (
	ToastSuccess = "success"
	ToastError   = "error"
)

const (
	MessageInvalidBody = "Invalid request body"
	MessageInternal    = "Something went wrong, please try again"
)

// Toast is one notification shown to the user
type Toast struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Envelope is the body of every API response
type Envelope struct {
	Status   gateway.Status      `json:"status"`
	Data     any                 `json:"data"`
	Message  string              `json:"message"`
	Toasts   []Toast             `json:"toasts,omitempty"`
	Redirect string              `json:"redirect,omitempty"`
	Errors   map[string][]string `json:"errors,omitempty"`
}

// Compile-time checks to ensure Feedback implements the collaborator surfaces
var (
	_ interfaces.Notifier  = (*Feedback)(nil)
	_ interfaces.Navigator = (*Feedback)(nil)
)

// Feedback collects the toasts and navigation of one request
type Feedback struct {
	mu       sync.Mutex
	toasts   []Toast
	redirect string
}

func (f *Feedback) Success(message string) {
	f.add(ToastSuccess, message)
}

func (f *Feedback) Error(message string) {
	f.add(ToastError, message)
}

func (f *Feedback) add(kind, message string) {
	if message == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toasts = append(f.toasts, Toast{Kind: kind, Message: message})
}

// Navigate records the path the client should move to; the last call wins
func (f *Feedback) Navigate(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redirect = path
}

func (f *Feedback) apply(env *Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	env.Toasts = append([]Toast(nil), f.toasts...)
	env.Redirect = f.redirect
}

// queryConfirmer answers a confirmation from the request's confirm=true
// parameter. An unconfirmed request keeps what was asked so it can be
// returned to the client as a pending result.
type queryConfirmer struct {
	confirmed bool
	asked     *interfaces.ConfirmRequest
}

func confirmerFor(r *http.Request) *queryConfirmer {
	return &queryConfirmer{confirmed: r.URL.Query().Get("confirm") == "true"}
}

func (c *queryConfirmer) Confirm(_ context.Context, req interfaces.ConfirmRequest) (bool, error) {
	c.asked = &req
	return c.confirmed, nil
}

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	w.WriteHeader(code)
	w.Write(data)
}

// respond writes a success envelope
func respond(w http.ResponseWriter, code int, fb *Feedback, data any, message string) {
	env := Envelope{Status: gateway.StatusSuccess, Data: data, Message: message}
	if fb != nil {
		fb.apply(&env)
	}
	RespondWithJSON(w, code, env)
}

// statusFor maps an error kind to its HTTP status
func statusFor(err error) int {
	var validationErr *apperrors.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrConfirmationRequired):
		return http.StatusAccepted
	case errors.Is(err, apperrors.ErrStorageFailure):
		return http.StatusInternalServerError
	case errors.Is(err, apperrors.ErrUniquenessConflict),
		errors.Is(err, apperrors.ErrReferentialIntegrity):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrSaveInProgress):
		return http.StatusTooManyRequests
	case errors.Is(err, apperrors.ErrFieldLocked),
		errors.Is(err, apperrors.ErrCoverageExclusive):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondWithError writes an error envelope for err. Validation failures
// carry their field errors; unexpected failures get a generic message.
func respondWithError(w http.ResponseWriter, r *http.Request, fb *Feedback, err error) {
	code := statusFor(err)
	env := Envelope{Status: gateway.StatusError, Message: apperrors.Message(err)}

	var validationErr *apperrors.ValidationError
	if errors.As(err, &validationErr) {
		env.Errors = validationErr.Fields
	}
	if code == http.StatusInternalServerError {
		logging.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		env.Message = MessageInternal
	}
	if fb != nil {
		fb.apply(&env)
	}
	RespondWithJSON(w, code, env)
}

// respondPending writes the confirmation a destructive action is waiting for
func respondPending(w http.ResponseWriter, fb *Feedback, req *interfaces.ConfirmRequest) {
	env := Envelope{Status: gateway.StatusPending, Data: req}
	if req != nil {
		env.Message = req.Message
	}
	fb.apply(&env)
	RespondWithJSON(w, http.StatusAccepted, env)
}

// RespondWithError writes a plain error envelope with a message
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, Envelope{Status: gateway.StatusError, Message: message})
}

// decodeBody reads the JSON request body into target
func decodeBody(r *http.Request, target any) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		logging.Warn("Unusual user input", "path", r.URL.Path, "error", err)
		return err
	}
	return nil
}
