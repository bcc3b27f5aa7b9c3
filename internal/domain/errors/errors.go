package errors

import (
	"errors"
	"fmt"
)

var (
	// Event errors
	ErrEventNotFound          = errors.New("event not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrEventAlreadyCancelled  = errors.New("event is already cancelled")
	ErrNoFieldChanges         = errors.New("there are no changed fields")
	ErrNoSubscribers          = errors.New("event has no subscribers")

	// Outbox errors
	ErrUnknownTaskType      = errors.New("unknown outbox task type")
	ErrMalformedPayload     = errors.New("malformed outbox payload")
	ErrOptimisticLockFailed = errors.New("optimistic lock conflict")

	// Broker errors
	ErrBrokerUnavailable = errors.New("message broker unavailable")
	ErrPublishTimeout    = errors.New("publish was not acknowledged in time")

	// Scheduler errors
	ErrTickInProgress = errors.New("previous tick still running")

	// Lock errors
	ErrLockAcquisitionFailed = errors.New("failed to acquire lock")
	ErrLockNotHeld           = errors.New("lock not held")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")

	// Authorization errors
	ErrForbidden = errors.New("forbidden")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
