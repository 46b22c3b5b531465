package api

import (
	"errors"
	"fmt"
	"net/http"

	"motorsport-api/internal/auth"
	"motorsport-api/internal/observability/logging"
	"motorsport-api/internal/standings"
	"motorsport-api/internal/storage"
)

const (
	detailRequestFailed  = "Request failed."
	detailServerError    = "Unexpected server error."
	detailNotFound       = "Not found."
	detailNotProvided    = "Authentication credentials were not provided."
	detailTokenInvalid   = "Token is invalid or expired"
	detailUserNotFound   = "User not found"
	detailForbidden      = "You do not have permission to perform this action."
	detailCSRFFailed     = "CSRF Failed: CSRF token missing or incorrect."
	detailBadCredentials = "No active account found with the given credentials"

	// DetailResourceNotFound is returned for unknown paths under /api/.
	DetailResourceNotFound = "Resource not found."
)

var errorKindByStatus = map[int]string{
	http.StatusBadRequest:           "bad_request",
	http.StatusUnauthorized:         "unauthorized",
	http.StatusForbidden:            "forbidden",
	http.StatusNotFound:             "not_found",
	http.StatusMethodNotAllowed:     "method_not_allowed",
	http.StatusUnsupportedMediaType: "unsupported_media_type",
	http.StatusTooManyRequests:      "too_many_requests",
}

// ErrorResponse is the envelope shared by every error returned from the API.
type ErrorResponse struct {
	Error      string              `json:"error"`
	Detail     string              `json:"detail"`
	StatusCode int                 `json:"status_code"`
	Errors     map[string][]string `json:"errors,omitempty"`
}

// NewErrorResponse builds the envelope for status. Field errors are only kept
// for client errors; server errors always carry the generic detail.
func NewErrorResponse(status int, detail string, fields map[string][]string) ErrorResponse {
	if status >= http.StatusInternalServerError {
		return ErrorResponse{
			Error:      "internal_server_error",
			Detail:     detailServerError,
			StatusCode: status,
		}
	}
	kind, ok := errorKindByStatus[status]
	if !ok {
		kind = "api_error"
	}
	resp := ErrorResponse{Error: kind, Detail: detail, StatusCode: status}
	if len(fields) > 0 {
		resp.Detail = detailRequestFailed
		resp.Errors = fields
	}
	return resp
}

// statusError is an error that already knows its HTTP status and detail.
type statusError struct {
	status int
	detail string
}

func (e *statusError) Error() string {
	return e.detail
}

func newStatusError(status int, detail string) error {
	return &statusError{status: status, detail: detail}
}

func notFound() error {
	return newStatusError(http.StatusNotFound, detailNotFound)
}

// WriteDetail writes an envelope with a flat detail message.
func WriteDetail(w http.ResponseWriter, status int, detail string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	}
	writeJSON(w, status, NewErrorResponse(status, detail, nil))
}

func writeValidation(w http.ResponseWriter, fields map[string][]string) {
	writeJSON(w, http.StatusBadRequest, NewErrorResponse(http.StatusBadRequest, detailRequestFailed, fields))
}

// statusForError maps domain errors onto a status, detail and optional field
// errors. Unknown errors map to 500.
func statusForError(err error) (int, string, map[string][]string) {
	var (
		verr      *storage.ValidationError
		protected *storage.ProtectedError
		missing   *standings.NotFoundError
		statusErr *statusError
	)
	switch {
	case errors.As(err, &statusErr):
		return statusErr.status, statusErr.detail, nil
	case errors.As(err, &verr) && len(verr.Fields) > 0:
		return http.StatusBadRequest, detailRequestFailed, verr.Fields
	case errors.As(err, &protected):
		return http.StatusBadRequest, protected.Message, nil
	case errors.As(err, &missing):
		return http.StatusNotFound, missing.Message, nil
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, detailNotFound, nil
	case errors.Is(err, storage.ErrInvalidCredentials):
		return http.StatusUnauthorized, detailBadCredentials, nil
	case errors.Is(err, storage.ErrUsernameTaken):
		return http.StatusBadRequest, detailRequestFailed, map[string][]string{"username": {"Username already exists."}}
	case errors.Is(err, auth.ErrCSRFFailed):
		return http.StatusForbidden, detailCSRFFailed, nil
	case errors.Is(err, auth.ErrTokenInvalid):
		return http.StatusUnauthorized, detailTokenInvalid, nil
	default:
		return http.StatusInternalServerError, detailServerError, nil
	}
}

// WriteError maps err onto the error envelope. Server errors are logged with
// the request-scoped logger and never leak their message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail, fields := statusForError(err)
	logger := logging.LoggerFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("api server error", "status", status, "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		logger.Warn("api client error", "status", status, "method", r.Method, "path", r.URL.Path, "detail", detail)
	}
	if len(fields) > 0 {
		writeValidation(w, fields)
		return
	}
	WriteDetail(w, status, detail)
}

func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	if allowed != "" {
		w.Header().Set("Allow", allowed)
	}
	WriteDetail(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method %q not allowed.", r.Method))
}

func fieldErrors(field, message string) error {
	verr := &storage.ValidationError{}
	verr.Add(field, message)
	return verr
}
