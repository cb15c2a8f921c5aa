// Package respond writes JSON HTTP responses. Error responses are
// sanitized so portal credentials and connection strings never reach
// clients or logs in the clear.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// Envelope is the standard response body: success flag, payload, and
// optional metadata (counts, timings).
type Envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// JSON writes a JSON response with the given status code and body.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Default().Error("failed to encode JSON response",
				slog.Int("status_code", code),
				slog.Any("error", err))
		}
	}
}

// Success writes a 200 envelope around data.
func Success(w http.ResponseWriter, data any, meta map[string]any) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data, Meta: meta})
}

// Error writes a JSON error envelope with the given status code.
func Error(w http.ResponseWriter, code int, err error) {
	JSON(w, code, Envelope{Success: false, Error: err.Error()})
}

// AppError carries a user-facing message separate from the internal
// error that gets logged.
type AppError struct {
	UserMsg string
	Err     error
	Code    int
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.UserMsg
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError creates an AppError with the given status code, user
// message and internal cause.
func NewAppError(code int, userMsg string, err error) *AppError {
	return &AppError{Code: code, UserMsg: userMsg, Err: err}
}

// Substrings that mark an error message as safe to return verbatim.
// Everything else on a 4xx is still returned; 5xx messages are always
// replaced with a generic body.
var safeMarkers = []string{
	"required",
	"invalid",
	"not found",
	"not published",
	"unknown",
	"forbidden",
	"unauthorized",
	"must be",
	"cannot be",
	"too long",
	"too large",
}

// SafeError writes an error response, masking internal details.
// AppErrors return their user message and log the wrapped cause.
// Other errors are returned verbatim only when the message matches a
// known-safe validation phrase; anything else is logged (sanitized) and
// replaced with a generic body.
func SafeError(w http.ResponseWriter, code int, err error) {
	if err == nil {
		return
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Err != nil {
			slog.Default().Error("application error",
				slog.String("status", http.StatusText(appErr.Code)),
				slog.Int("code", appErr.Code),
				slog.String("user_message", appErr.UserMsg),
				slog.String("error", SanitizeError(appErr.Err)))
		}
		JSON(w, appErr.Code, Envelope{Success: false, Error: appErr.UserMsg})
		return
	}

	msg := err.Error()
	isSafe := false
	lowerMsg := strings.ToLower(msg)
	for _, marker := range safeMarkers {
		if strings.Contains(lowerMsg, marker) {
			isSafe = true
			break
		}
	}
	if code >= 500 {
		isSafe = false
	}

	if isSafe {
		JSON(w, code, Envelope{Success: false, Error: msg})
		return
	}

	slog.Default().Error("internal server error",
		slog.String("status", http.StatusText(code)),
		slog.Int("code", code),
		slog.String("error", SanitizeError(err)))
	JSON(w, code, Envelope{Success: false, Error: "internal server error"})
}
