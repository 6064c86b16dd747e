package server

import (
	"errors"
	"net/http"
	"strings"

	"orionos/internal/util"
	"orionos/services/desktop/internal/app"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      code,
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, "DESKTOP_INVALID_REQUEST", msg)
}

// writeAppError maps app sentinels to a status and a stable code. Client
// errors carry their message; anything else is logged and reported opaquely.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status int
		code   string
	)
	switch {
	case errors.Is(err, app.ErrUnauthenticated):
		status, code = http.StatusUnauthorized, "AUTH_INVALID_TOKEN"
	case errors.Is(err, app.ErrProfileNotInitialized):
		status, code = http.StatusUnauthorized, "DESKTOP_PROFILE_NOT_INITIALIZED"
	case errors.Is(err, app.ErrInvalidInput):
		status, code = http.StatusBadRequest, "DESKTOP_INVALID_REQUEST"
	case errors.Is(err, app.ErrForbidden):
		status, code = http.StatusForbidden, "DESKTOP_FORBIDDEN"
	case errors.Is(err, app.ErrNotFound):
		status, code = http.StatusNotFound, "DESKTOP_NOT_FOUND"
	case errors.Is(err, app.ErrWindowMaximized):
		status, code = http.StatusConflict, "DESKTOP_WINDOW_MAXIMIZED"
	case errors.Is(err, app.ErrConflict):
		status, code = http.StatusConflict, "DESKTOP_CONFLICT"
	case errors.Is(err, app.ErrQuotaExceeded):
		status, code = http.StatusRequestEntityTooLarge, "DESKTOP_QUOTA_EXCEEDED"
	case errors.Is(err, app.ErrPayloadTooLarge):
		status, code = http.StatusRequestEntityTooLarge, "DESKTOP_FILE_TOO_LARGE"
	case errors.Is(err, app.ErrStorageDisabled):
		status, code = http.StatusServiceUnavailable, "SYSTEM_STORAGE_UNAVAILABLE"
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "err", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "SYSTEM_INTERNAL_ERROR", "internal error")
		return
	}
	writeError(w, status, code, err.Error())
}
