package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource conflict")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Business errors
	ErrInsufficientSeats = errors.New("not enough seats available")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrRideNotActive     = errors.New("ride is not active")
	ErrExcessiveDetour   = errors.New("detour exceeds allowed maximum")
)

// APIError represents a structured API error
type APIError struct {
	Code       string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new API error
func NewAPIError(code, message string, statusCode int) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Common API errors
func NotFound(resource string) *APIError {
	return NewAPIError("not_found", fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func BadRequest(message string) *APIError {
	return NewAPIError("bad_request", message, http.StatusBadRequest)
}

func Conflict(message string) *APIError {
	return NewAPIError("conflict", message, http.StatusConflict)
}

func InternalError(message string) *APIError {
	return NewAPIError("internal_error", message, http.StatusInternalServerError)
}

func InsufficientSeats(requested, available int) *APIError {
	return NewAPIError("insufficient_seats",
		fmt.Sprintf("requested %d seats but only %d available", requested, available),
		http.StatusConflict)
}

func InvalidTransition(from, to string) *APIError {
	return NewAPIError("invalid_transition", fmt.Sprintf("cannot transition from %s to %s", from, to), http.StatusConflict)
}

func RideNotActive(rideID string) *APIError {
	return NewAPIError("ride_not_active", fmt.Sprintf("ride %s is not active", rideID), http.StatusConflict)
}

func ExcessiveDetour(detourPct, maxPct float64) *APIError {
	return NewAPIError("excessive_detour",
		fmt.Sprintf("detour of %.1f%% exceeds the allowed %.1f%%", detourPct, maxPct),
		http.StatusBadRequest)
}
