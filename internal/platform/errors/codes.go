package errors

import (
	stderrors "errors"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session lifecycle errors
	CodeActiveSessionExists Code = "ACTIVE_SESSION_EXISTS"
	CodeNoActiveSession     Code = "NO_ACTIVE_SESSION"
	CodeNoPausedSession     Code = "NO_PAUSED_SESSION"
	CodeSessionNotRunning   Code = "SESSION_NOT_RUNNING"
	CodeSessionNotTerminal  Code = "SESSION_NOT_TERMINAL"

	// Validation errors
	CodeInvalidDuration Code = "INVALID_DURATION"
	CodeInvalidRating   Code = "INVALID_RATING"
	CodeInvalidKind     Code = "INVALID_KIND"
	CodeInvalidGoal     Code = "INVALID_GOAL"
	CodeEmptyOwnerID    Code = "EMPTY_OWNER_ID"

	// Storage errors
	CodeNotFound           Code = "NOT_FOUND"
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
)

// HTTPStatus maps a domain error code to an HTTP status for API responses.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeActiveSessionExists:
		return http.StatusConflict
	case CodeNoActiveSession, CodeNoPausedSession, CodeNotFound:
		return http.StatusNotFound
	case CodeSessionNotRunning, CodeSessionNotTerminal:
		return http.StatusConflict
	case CodeInvalidDuration, CodeInvalidRating, CodeInvalidKind, CodeInvalidGoal, CodeEmptyOwnerID:
		return http.StatusBadRequest
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}
