package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/and161185/stremur/internal/errs"
)

// Error codes of the JSON error envelope.
const (
	CodeValidation   = "VALIDATION"
	CodeNotFound     = "NOT_FOUND"
	CodeLastAdmin    = "LAST_ADMIN"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeInternal     = "INTERNAL"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// APIError describes one failure.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// classify maps a service error to a status and envelope code.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, CodeValidation, err.Error()
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, "not found"
	case errors.Is(err, errs.ErrLastAdmin):
		return http.StatusConflict, CodeLastAdmin, errs.ErrLastAdmin.Error()
	case errors.Is(err, errs.ErrAlreadyExists):
		return http.StatusConflict, CodeConflict, errs.ErrAlreadyExists.Error()
	case errors.Is(err, errs.ErrUnauthorized), errors.Is(err, errs.ErrInvalidPin):
		return http.StatusUnauthorized, CodeUnauthorized, "unauthorized"
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden, CodeForbidden, "forbidden"
	default:
		return http.StatusInternalServerError, CodeInternal, "internal server error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err)
	writeJSON(w, status, ErrorResponse{Error: APIError{
		Code:      code,
		Message:   msg,
		RequestID: RequestIDFromCtx(r.Context()),
	}})
}

// SentinelFor maps an envelope code back to the sentinel it came from.
func SentinelFor(code string) error {
	switch strings.ToUpper(code) {
	case CodeValidation:
		return errs.ErrValidation
	case CodeNotFound:
		return errs.ErrNotFound
	case CodeLastAdmin:
		return errs.ErrLastAdmin
	case CodeConflict:
		return errs.ErrAlreadyExists
	case CodeUnauthorized:
		return errs.ErrUnauthorized
	case CodeForbidden:
		return errs.ErrForbidden
	default:
		return nil
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed json body", errs.ErrValidation)
	}
	return nil
}
