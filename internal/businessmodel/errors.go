package businessmodel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kamalcharan/contractnest-ui-sub011/internal/circuitbreaker"
)

// Errors
var (
	ErrPlanNotFound    = errors.New("businessmodel: plan not found")
	ErrInvalidPlan     = errors.New("businessmodel: invalid plan")
	ErrUnexpectedShape = errors.New("businessmodel: unexpected response shape")
	ErrCircuitOpen     = circuitbreaker.ErrOpen
)

// APIError is a non-2xx response from the business-model API.
type APIError struct {
	Status  int
	Code    string
	Message string
	// Details holds server-side validation failures, one message each.
	Details []string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if len(e.Details) > 0 {
		return fmt.Sprintf("API error (%d): %s: %s", e.Status, msg, strings.Join(e.Details, "; "))
	}
	return fmt.Sprintf("API error (%d): %s", e.Status, msg)
}

// Is maps HTTP statuses onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrPlanNotFound:
		return e.Status == http.StatusNotFound
	case ErrInvalidPlan:
		return e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity
	}
	return false
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// ValidationDetails returns the server's validation failure list carried by err, if any.
func ValidationDetails(err error) []string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Details
	}
	return nil
}

// IsAborted reports whether err comes from a cancelled request.
func IsAborted(err error) bool {
	return errors.Is(err, context.Canceled)
}

// Message turns err into the string shown to users. API errors speak for
// themselves; anything else is reported as fallback plus its root cause.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if len(apiErr.Details) > 0 {
			return strings.Join(apiErr.Details, "; ")
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fallback
	}
	if cause := rootCause(err).Error(); cause != "" {
		return fallback + ": " + cause
	}
	return fallback
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
