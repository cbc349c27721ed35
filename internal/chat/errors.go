package chat

import (
	"errors"
	"fmt"
)

// ErrService is the kind shared by every failure of the embedding, search
// and completion services. Test with errors.Is.
var ErrService = errors.New("service error")

// ServiceError describes a failed call to one of the hosted services.
type ServiceError struct {
	// Service is the failing collaborator: "embedding", "search" or "completion".
	Service string
	// Op is the operation that was attempted (e.g. "embed", "search", "generate").
	Op string
	// StatusCode is the HTTP status returned by the service, or 0 when the
	// call failed before a response was received.
	StatusCode int
	// Err is the underlying cause.
	Err error
}

// NewServiceError wraps err as a ServiceError. A nil err yields nil.
func NewServiceError(service, op string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	return &ServiceError{Service: service, Op: op, StatusCode: statusCode, Err: err}
}

// Error implements error.
func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed (HTTP %d): %v", e.Service, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Service, e.Op, e.Err)
}

// Unwrap exposes both the ErrService kind and the underlying cause.
func (e *ServiceError) Unwrap() []error {
	return []error{ErrService, e.Err}
}
