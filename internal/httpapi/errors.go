package httpapi

import (
	"encoding/json"
	"net/http"

	"doclingd/internal/session"
	"doclingd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// statusFor maps session errors to HTTP status codes.
func statusFor(err error) int {
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	switch {
	case session.IsInvalidInput(err):
		return http.StatusBadRequest
	case session.IsTooBusy(err):
		return http.StatusTooManyRequests
	case session.IsInitialization(err):
		return http.StatusServiceUnavailable
	case session.IsCancelled(err):
		return http.StatusGatewayTimeout
	case session.IsGeneration(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// statusError is a request error with a fixed status code.
type statusError struct {
	code int
	msg  string
}

func (e statusError) Error() string   { return e.msg }
func (e statusError) StatusCode() int { return e.code }
