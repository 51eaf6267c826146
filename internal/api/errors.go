package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"sxbin-backend/internal/access"
	"sxbin-backend/internal/archive"
	"sxbin-backend/internal/auth"
	"sxbin-backend/internal/models"
	"sxbin-backend/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}

// statusFor maps domain errors to a status code and client message.
// Unknown errors become 500 with a generic message.
func statusFor(err error) (int, string, bool) {
	switch {
	case errors.Is(err, access.ErrNotFound):
		return http.StatusNotFound, "File not found", false
	case errors.Is(err, access.ErrExpired):
		return http.StatusGone, "File has expired", false
	case errors.Is(err, access.ErrPasswordRequired):
		return http.StatusUnauthorized, "Password required", true
	case errors.Is(err, access.ErrInvalidPassword):
		return http.StatusForbidden, "Invalid password", true
	case errors.Is(err, archive.ErrNotAZipFile):
		return http.StatusBadRequest, "File is not a ZIP archive", false
	case errors.Is(err, archive.ErrMalformedArchive):
		return http.StatusUnprocessableEntity, "Failed to read ZIP contents", false
	case errors.Is(err, archive.ErrEntryNotFound):
		return http.StatusNotFound, "File not found in archive", false
	case errors.Is(err, service.ErrUpstream):
		return http.StatusBadGateway, "Storage unavailable", false
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "Forbidden", false
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrInvalidAPIKey):
		return http.StatusUnauthorized, "Unauthorized", false
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials", false
	case errors.Is(err, service.ErrUsernameTaken):
		return http.StatusConflict, "Username already taken", false
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, "Email already registered", false
	case errors.Is(err, service.ErrPasswordTooShort):
		return http.StatusBadRequest, "Password must be at least 6 characters", false
	case errors.Is(err, service.ErrMissingFields):
		return http.StatusBadRequest, "Username, email, and password are required", false
	case errors.Is(err, service.ErrInvalidExpiry):
		return http.StatusBadRequest, "Invalid expiration", false
	case errors.Is(err, service.ErrEmptyFile):
		return http.StatusBadRequest, "No file provided", false
	case errors.Is(err, service.ErrPathRequired):
		return http.StatusBadRequest, "Path parameter is required", false
	case errors.Is(err, service.ErrShortIDExhausted):
		return http.StatusServiceUnavailable, "Could not allocate a short id, try again", false
	default:
		return http.StatusInternalServerError, "Internal server error", false
	}
}

func handleError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status, message, protected := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeJSON(w, status, models.ErrorResponse{Error: message, PasswordProtected: protected})
}
