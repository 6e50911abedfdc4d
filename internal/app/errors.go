package app

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Every DomainError wraps exactly one of these so callers can
// branch with errors.Is without caring about the HTTP mapping.
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInternal        = errors.New("internal error")
)

type DomainError struct {
	Kind    error
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

func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Kind
}

func domainError(kind error, status int, code, message string, details any) *DomainError {
	return &DomainError{
		Kind:    kind,
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string) *DomainError {
	return domainError(ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

func unauthenticatedError(message string) *DomainError {
	return domainError(ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

func forbiddenError(message string) *DomainError {
	return domainError(ErrForbidden, http.StatusForbidden, "FORBIDDEN", message, nil)
}

func notFoundError(entity string) *DomainError {
	return domainError(ErrNotFound, http.StatusNotFound, "NOT_FOUND", entity+" not found", nil)
}

func conflictError(message string) *DomainError {
	return domainError(ErrConflict, http.StatusConflict, "CONFLICT", message, nil)
}

// internalError hides cause from the caller; it is still reachable through
// errors.Unwrap for logging.
func internalError(cause error) error {
	return fmt.Errorf("%w: %w", domainError(ErrInternal, http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil), cause)
}
