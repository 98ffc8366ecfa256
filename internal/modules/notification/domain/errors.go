package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrReceiverNotFound     = errors.New("notification receiver not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrStorage              = errors.New("notification storage failure")
	ErrChannelClosed        = errors.New("live channel closed")
	ErrRegistryClosed       = errors.New("connection registry closed")
)

// ValidationError reports a rejected request parameter or event field.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
