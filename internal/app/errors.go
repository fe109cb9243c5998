package app

import (
	"errors"
	"fmt"
	"net/http"

	"roofflow/api/internal/auth"
	"roofflow/api/internal/authpw"
	"roofflow/api/internal/ingest"
	"roofflow/api/internal/session"
	"roofflow/api/internal/store"
)

// DomainError is the API error envelope: every non-2xx response carries a
// stable machine-readable Code alongside the human Message. Service methods
// return one directly when they own the failure (INGEST_DISABLED); everything
// else is mapped from sentinel errors by mapError.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// mapError translates errors from the store, credential, token, session and
// ingestion layers into the envelope. Unknown errors stay a generic 500 so
// internals never leak to clients.
func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, store.ErrPermissionDenied):
		return http.StatusForbidden, "FORBIDDEN", "Forbidden", nil
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid input", nil
	case errors.Is(err, store.ErrRoleInUse):
		return http.StatusConflict, "ROLE_IN_USE", "Role is still assigned to active users", nil
	case errors.Is(err, store.ErrClosed):
		return http.StatusServiceUnavailable, "UNAVAILABLE", "Store is shut down", nil
	case errors.Is(err, authpw.ErrBadCredentials):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password", nil
	case errors.Is(err, authpw.ErrWeakPassword):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Password too weak", nil
	case errors.Is(err, authpw.ErrNotAllowed):
		return http.StatusForbidden, "FORBIDDEN", "Forbidden", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, session.ErrNotFound):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, ingest.ErrBadSignature), errors.Is(err, ingest.ErrStaleTimestamp):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Invalid webhook signature", nil
	case errors.Is(err, ingest.ErrBadPayload):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid webhook payload", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}
