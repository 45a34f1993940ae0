package application

import (
	"errors"
	"fmt"

	"github.com/YoshitsuguKoike/loanstage/internal/domain/model"
)

// Error codes carried by domain errors
const (
	CodeValidation        = "APP_VALIDATION"
	CodeIllegalTransition = "APP_ILLEGAL_TRANSITION"
)

// ValidationError reports malformed input: empty id, missing actor,
// missing rejection note, or an invalid applicant field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a validation error for a field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("[%s] %s", CodeValidation, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", CodeValidation, e.Field, e.Message)
}

// Code returns the error code
func (e *ValidationError) Code() string { return CodeValidation }

// IllegalTransitionError reports a move that violates the stage order,
// targets the current stage, or leaves a terminal stage.
type IllegalTransitionError struct {
	From   model.Stage
	To     model.Stage
	Reason string
}

// NewIllegalTransitionError creates an illegal transition error
func NewIllegalTransitionError(from, to model.Stage, reason string) *IllegalTransitionError {
	return &IllegalTransitionError{From: from, To: to, Reason: reason}
}

// Error implements the error interface
func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("[%s] cannot move from %s to %s: %s", CodeIllegalTransition, e.From, e.To, e.Reason)
}

// Code returns the error code
func (e *IllegalTransitionError) Code() string { return CodeIllegalTransition }

// IsValidation checks if the error is (or wraps) a validation error
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsIllegalTransition checks if the error is (or wraps) an illegal transition error
func IsIllegalTransition(err error) bool {
	var target *IllegalTransitionError
	return errors.As(err, &target)
}
