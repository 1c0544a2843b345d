// Package api provides the JSON response helpers and error envelope shared by
// the stub backend and the backend client.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/onnwee/shopfinder/internal/middleware"
)

// Common error codes.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeAuthFailed indicates a missing, invalid or expired session token.
	ErrCodeAuthFailed = "auth_failed"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeMethodNotAllowed indicates the route exists but not for this method.
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// ErrCodeNoShops indicates a search matched nothing.
	ErrCodeNoShops = "no_shops"
)

// ErrorResponse represents the standard error response format:
// {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response and records the code
// for the logging middleware.
//
//	api.WriteError(w, r.Context(), http.StatusNotFound, api.ErrCodeNoShops, "No shops found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.RecordErrorCode(w, code)
	WriteJSON(w, ctx, status, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
	})
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, ctx context.Context, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write response", "error", err)
	}
}

// ParseError decodes an error envelope. The flat {"error": "message"} form
// is accepted too and yields an empty code. It reports false when body is
// neither.
func ParseError(body []byte) (ErrorDetail, bool) {
	var raw struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &raw); err != nil || len(raw.Error) == 0 {
		return ErrorDetail{}, false
	}

	var detail ErrorDetail
	if err := json.Unmarshal(raw.Error, &detail); err == nil && detail.Code != "" {
		return detail, true
	}
	var msg string
	if err := json.Unmarshal(raw.Error, &msg); err == nil && msg != "" {
		return ErrorDetail{Message: msg}, true
	}
	return ErrorDetail{}, false
}

// StatusCodeMapping returns the recommended HTTP status code for an error code.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case ErrCodeNotFound, ErrCodeNoShops:
		return http.StatusNotFound
	case ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
